// Package policy defines which directory entries are excluded from a dump.
package policy

import (
	"sort"
	"strings"
)

var (
	defaultExcludedDirectories = []string{
		"node_modules", ".next", ".git", "__pycache__", ".vscode", ".idea", ".turbo", ".vercel", ".expo",
	}
	defaultExcludedFiles = []string{
		".DS_Store", "package-lock.json", "yarn.lock", "pnpm-lock.yaml", "bun.lockb",
	}
	defaultExcludedExtensions = []string{
		".lock", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".mp4", ".mp3",
		".webm", ".ttf", ".woff", ".woff2", ".eot", ".otf", ".zip", ".tar", ".gz",
		".exe", ".dll", ".bin", ".log",
	}
)

// ExclusionPolicy is an immutable set of exclusion rules.
// Directory and file names match exactly; extensions match as a
// case-insensitive suffix of the file name.
type ExclusionPolicy struct {
	directories map[string]struct{}
	files       map[string]struct{}
	extensions  []string
}

// New builds a policy from the provided names. Blank values are dropped and
// extensions are stored lower-cased.
func New(directories []string, files []string, extensions []string) ExclusionPolicy {
	policy := ExclusionPolicy{
		directories: toSet(directories),
		files:       toSet(files),
	}
	extensionSet := make(map[string]struct{}, len(extensions))
	for _, extension := range extensions {
		normalized := strings.ToLower(strings.TrimSpace(extension))
		if normalized == "" {
			continue
		}
		if _, exists := extensionSet[normalized]; exists {
			continue
		}
		extensionSet[normalized] = struct{}{}
		policy.extensions = append(policy.extensions, normalized)
	}
	sort.Strings(policy.extensions)
	return policy
}

// Default returns the compiled-in exclusion policy.
func Default() ExclusionPolicy {
	return New(defaultExcludedDirectories, defaultExcludedFiles, defaultExcludedExtensions)
}

// Merge returns the union of the receiver and other.
func (policy ExclusionPolicy) Merge(other ExclusionPolicy) ExclusionPolicy {
	return New(
		append(policy.Directories(), other.Directories()...),
		append(policy.Files(), other.Files()...),
		append(policy.Extensions(), other.Extensions()...),
	)
}

// ExcludesName reports whether name is one of the excluded exact file names.
// The check applies to directories as well.
func (policy ExclusionPolicy) ExcludesName(name string) bool {
	_, excluded := policy.files[name]
	return excluded
}

// ExcludesDirectory reports whether a directory called name is skipped.
func (policy ExclusionPolicy) ExcludesDirectory(name string) bool {
	if policy.ExcludesName(name) {
		return true
	}
	_, excluded := policy.directories[name]
	return excluded
}

// ExcludesFile reports whether a file called name is skipped, either by
// exact name or by extension.
func (policy ExclusionPolicy) ExcludesFile(name string) bool {
	if policy.ExcludesName(name) {
		return true
	}
	lowerName := strings.ToLower(name)
	for _, extension := range policy.extensions {
		if strings.HasSuffix(lowerName, extension) {
			return true
		}
	}
	return false
}

// Directories returns the excluded directory names in sorted order.
func (policy ExclusionPolicy) Directories() []string {
	return sortedKeys(policy.directories)
}

// Files returns the excluded file names in sorted order.
func (policy ExclusionPolicy) Files() []string {
	return sortedKeys(policy.files)
}

// Extensions returns the excluded extensions in sorted order.
func (policy ExclusionPolicy) Extensions() []string {
	return append([]string(nil), policy.extensions...)
}

func toSet(values []string) map[string]struct{} {
	result := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		result[trimmed] = struct{}{}
	}
	return result
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
