// Package ignore applies .gitignore patterns found at the traversal root.
package ignore

import (
	"fmt"
	"os"
	"path/filepath"

	gitignore "github.com/monochromegane/go-gitignore"
)

// GitIgnoreFileName is the name of the Git ignore file read from the root.
const GitIgnoreFileName = ".gitignore"

const errorParseGitIgnoreFormat = "parsing %s: %w"

// Matcher reports whether an entry is ignored. entryPath is the entry's
// path joined onto the root directory the matcher was loaded from.
type Matcher interface {
	Match(entryPath string, isDirectory bool) bool
}

// NoneMatcher ignores nothing.
type NoneMatcher struct{}

// Match always reports false.
func (NoneMatcher) Match(string, bool) bool { return false }

type gitIgnoreMatcher struct {
	matcher gitignore.IgnoreMatcher
}

func (wrapped gitIgnoreMatcher) Match(entryPath string, isDirectory bool) bool {
	return wrapped.matcher.Match(filepath.Clean(entryPath), isDirectory)
}

// LoadRootGitIgnore returns a matcher for rootDirectoryPath/.gitignore.
// A missing file yields NoneMatcher.
func LoadRootGitIgnore(rootDirectoryPath string) (Matcher, error) {
	gitIgnorePath := filepath.Join(rootDirectoryPath, GitIgnoreFileName)
	if _, statError := os.Stat(gitIgnorePath); statError != nil {
		if os.IsNotExist(statError) {
			return NoneMatcher{}, nil
		}
		return nil, fmt.Errorf(errorParseGitIgnoreFormat, gitIgnorePath, statError)
	}
	matcher, parseError := gitignore.NewGitIgnore(gitIgnorePath, filepath.Clean(rootDirectoryPath))
	if parseError != nil {
		return nil, fmt.Errorf(errorParseGitIgnoreFormat, gitIgnorePath, parseError)
	}
	return gitIgnoreMatcher{matcher: matcher}, nil
}
