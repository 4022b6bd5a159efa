package main_test

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

const integrationBinaryName = "treedump_integration_test_binary"

// #nosec G204
func buildBinary(testingHandle *testing.T) string {
	testingHandle.Helper()
	binaryName := integrationBinaryName
	if runtime.GOOS == "windows" {
		binaryName += ".exe"
	}
	binaryPath := filepath.Join(testingHandle.TempDir(), binaryName)

	currentDirectory, directoryError := os.Getwd()
	if directoryError != nil {
		testingHandle.Fatalf("Failed to get current working directory: %v", directoryError)
	}
	buildCommand := exec.Command("go", "build", "-o", binaryPath, ".")
	buildCommand.Dir = currentDirectory
	outputData, buildError := buildCommand.CombinedOutput()
	if buildError != nil {
		testingHandle.Fatalf("Failed to build binary in %s: %v\nBuild Output:\n%s", currentDirectory, buildError, string(outputData))
	}
	return binaryPath
}

// #nosec G204
func runBinary(testingHandle *testing.T, binaryPath string, workingDirectory string, arguments ...string) (string, string, error) {
	testingHandle.Helper()
	command := exec.Command(binaryPath, arguments...)
	command.Dir = workingDirectory
	command.Env = append(os.Environ(), "HOME="+testingHandle.TempDir())

	var standardOutput, standardError bytes.Buffer
	command.Stdout = &standardOutput
	command.Stderr = &standardError
	runError := command.Run()
	return standardOutput.String(), standardError.String(), runError
}

func describeRun(arguments []string, standardOutput string, standardError string) string {
	return fmt.Sprintf("--- Arguments ---\n%s\n--- Standard Output ---\n%s\n--- Standard Error ---\n%s",
		strings.Join(arguments, " "), standardOutput, standardError)
}

func setupProject(testingHandle *testing.T, layout map[string]string) string {
	testingHandle.Helper()
	rootDirectory := testingHandle.TempDir()
	for relativePath, content := range layout {
		absolutePath := filepath.Join(rootDirectory, relativePath)
		if err := os.MkdirAll(filepath.Dir(absolutePath), 0o755); err != nil {
			testingHandle.Fatalf("mkdir %s: %v", filepath.Dir(absolutePath), err)
		}
		if err := os.WriteFile(absolutePath, []byte(content), 0o644); err != nil {
			testingHandle.Fatalf("write %s: %v", absolutePath, err)
		}
	}
	return rootDirectory
}

func readFile(testingHandle *testing.T, path string) string {
	testingHandle.Helper()
	content, readError := os.ReadFile(path)
	if readError != nil {
		testingHandle.Fatalf("read %s: %v", path, readError)
	}
	return string(content)
}

func TestTreedumpBinary(testingHandle *testing.T) {
	if testing.Short() {
		testingHandle.Skip("integration test builds the binary")
	}
	binaryPath := buildBinary(testingHandle)

	testingHandle.Run("dumps_working_directory_idempotently", func(testingHandle *testing.T) {
		projectDirectory := setupProject(testingHandle, map[string]string{
			"main.go":              "package main\n",
			"pkg/util.go":          "package pkg\n",
			".git/HEAD":            "ref: refs/heads/main\n",
			"assets/logo.PNG":      "not really a png",
			"package-lock.json":    "{}",
			"docs/notes/readme.md": "# notes\n",
		})
		expectedStructure := "assets/\ndocs/\n  notes/\n    readme.md\nmain.go\npkg/\n  util.go\n"

		var firstContent string
		for attempt := 1; attempt <= 2; attempt++ {
			standardOutput, standardError, runError := runBinary(testingHandle, binaryPath, projectDirectory)
			if runError != nil {
				testingHandle.Fatalf("run %d failed: %v\n%s", attempt, runError, describeRun(nil, standardOutput, standardError))
			}
			if !strings.Contains(standardOutput, "Done. Files saved: 'project_structure.txt' and 'code_dump.txt'") {
				testingHandle.Fatalf("run %d: completion message missing\n%s", attempt, describeRun(nil, standardOutput, standardError))
			}
			structure := readFile(testingHandle, filepath.Join(projectDirectory, "project_structure.txt"))
			if structure != expectedStructure {
				testingHandle.Fatalf("run %d: structure = %q, want %q", attempt, structure, expectedStructure)
			}
			content := readFile(testingHandle, filepath.Join(projectDirectory, "code_dump.txt"))
			if attempt == 1 {
				firstContent = content
				continue
			}
			if content != firstContent {
				testingHandle.Fatalf("second run content differs:\nfirst: %q\nsecond: %q", firstContent, content)
			}
		}
		if !strings.HasPrefix(firstContent, "\n\n### docs/notes/readme.md ###\n\n# notes\n") {
			testingHandle.Fatalf("unexpected content prefix: %q", firstContent)
		}
		if strings.Contains(firstContent, "project_structure.txt") || strings.Contains(firstContent, "code_dump.txt") {
			testingHandle.Fatalf("output files were dumped into themselves: %q", firstContent)
		}
	})

	testingHandle.Run("missing_root_fails_without_outputs", func(testingHandle *testing.T) {
		workingDirectory := testingHandle.TempDir()
		arguments := []string{"does-not-exist"}
		standardOutput, standardError, runError := runBinary(testingHandle, binaryPath, workingDirectory, arguments...)
		if runError == nil {
			testingHandle.Fatalf("expected failure\n%s", describeRun(arguments, standardOutput, standardError))
		}
		if !strings.Contains(standardError, "fatal traversal error") {
			testingHandle.Fatalf("fatal error not reported\n%s", describeRun(arguments, standardOutput, standardError))
		}
		if _, statError := os.Stat(filepath.Join(workingDirectory, "project_structure.txt")); !os.IsNotExist(statError) {
			testingHandle.Fatalf("structure file created for missing root")
		}
	})

	testingHandle.Run("prints_version", func(testingHandle *testing.T) {
		arguments := []string{"--version"}
		standardOutput, standardError, runError := runBinary(testingHandle, binaryPath, testingHandle.TempDir(), arguments...)
		if runError != nil {
			testingHandle.Fatalf("version failed: %v\n%s", runError, describeRun(arguments, standardOutput, standardError))
		}
		if !strings.HasPrefix(standardOutput, "treedump version: ") {
			testingHandle.Fatalf("unexpected version output %q", standardOutput)
		}
	})
}
