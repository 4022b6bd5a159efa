package utils

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"strings"
)

const (
	unknownVersion  = "unknown"
	develVersion    = "(devel)"
	gitExecutable   = "git"
	errorGitMissing = ".git directory not found in or above %s"
)

// Version is set at link time with -ldflags "-X .../internal/utils.Version=v1.2.3".
var Version = EmptyString

// GetApplicationVersion returns the linked version, the module version from
// build info, or the output of git describe, in that order.
func GetApplicationVersion() string {
	if Version != EmptyString {
		return Version
	}
	buildInfo, buildInfoAvailable := debug.ReadBuildInfo()
	if buildInfoAvailable && buildInfo.Main.Version != EmptyString && buildInfo.Main.Version != develVersion {
		return buildInfo.Main.Version
	}

	repositoryDirectory, findError := findGitDirectory(".")
	if findError != nil {
		return unknownVersion
	}
	describeArguments := [][]string{
		{"describe", "--tags", "--exact-match"},
		{"describe", "--tags", "--long", "--dirty"},
	}
	for _, arguments := range describeArguments {
		// #nosec G204
		describeCommand := exec.Command(gitExecutable, arguments...)
		describeCommand.Dir = repositoryDirectory
		describeOutput, describeError := describeCommand.Output()
		if describeError == nil && len(describeOutput) > 0 {
			return strings.TrimSpace(string(describeOutput))
		}
	}
	return unknownVersion
}

// findGitDirectory searches upward from startDirectory for the directory
// containing .git.
func findGitDirectory(startDirectory string) (string, error) {
	absoluteStartDirectory, absoluteError := filepath.Abs(startDirectory)
	if absoluteError != nil {
		return EmptyString, fmt.Errorf("failed to get absolute path for %s: %w", startDirectory, absoluteError)
	}
	for currentDirectory := absoluteStartDirectory; ; {
		fileInformation, statError := os.Stat(filepath.Join(currentDirectory, GitDirectoryName))
		if statError == nil && fileInformation.IsDir() {
			return currentDirectory, nil
		}
		parentDirectory := filepath.Dir(currentDirectory)
		if parentDirectory == currentDirectory {
			return EmptyString, fmt.Errorf(errorGitMissing, absoluteStartDirectory)
		}
		currentDirectory = parentDirectory
	}
}
