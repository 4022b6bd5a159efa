// Package dumper walks a directory tree and writes its structure listing and
// the concatenated contents of its files.
package dumper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/temirov/treedump/internal/ignore"
	"github.com/temirov/treedump/internal/policy"
	"github.com/temirov/treedump/internal/progress"
	"github.com/temirov/treedump/internal/tokenizer"
)

const (
	// DefaultStructureFileName is the default structure listing file.
	DefaultStructureFileName = "project_structure.txt"
	// DefaultContentFileName is the default content dump file.
	DefaultContentFileName = "code_dump.txt"

	indentIncrement     = "  "
	directorySuffix     = "/"
	progressDescription = "dumping"

	errorFatalRootFormat     = "%w: listing %s: %w"
	errorReadDirectoryFormat = "reading directory %s: %w"

	warningSkipDirectoryMessage = "skipping unreadable directory"
	warningSymlinkCycleMessage  = "not descending into symlink cycle"
	warningReadFileMessage      = "recorded unreadable file"
	warningGitIgnoreMessage     = "ignoring unparsable .gitignore"
	warningTokenCountMessage    = "failed to count tokens"
	debugExcludedMessage        = "excluded"
)

// Options configures a Dumper.
type Options struct {
	Policy        policy.ExclusionPolicy
	StructurePath string
	ContentPath   string
	UseGitIgnore  bool
	TokenCounter  tokenizer.Counter
	TokenModel    string
	Progress      progress.Reporter
	Logger        *zap.Logger
}

// Dumper performs depth-first traversals. A Dumper holds no per-run state
// and may be reused for several runs.
type Dumper struct {
	options   Options
	logger    *zap.Logger
	reporter  progress.Reporter
	skipPaths map[string]struct{}
}

// traversalState describes one directory being descended into.
type traversalState struct {
	directoryPath string
	indent        string
	ancestors     []string
}

// run carries the mutable pieces of a single traversal.
type run struct {
	sinks   *Sinks
	matcher ignore.Matcher
	summary Summary
}

// New creates a Dumper from options, filling in defaults for output paths,
// the logger, and the progress reporter.
func New(options Options) *Dumper {
	if options.StructurePath == "" {
		options.StructurePath = DefaultStructureFileName
	}
	if options.ContentPath == "" {
		options.ContentPath = DefaultContentFileName
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reporter := options.Progress
	if reporter == nil {
		reporter = progress.NopReporter{}
	}
	skipPaths := make(map[string]struct{}, 2)
	for _, outputPath := range []string{options.StructurePath, options.ContentPath} {
		if absolutePath, absoluteError := filepath.Abs(outputPath); absoluteError == nil {
			skipPaths[absolutePath] = struct{}{}
		}
	}
	return &Dumper{
		options:   options,
		logger:    logger,
		reporter:  reporter,
		skipPaths: skipPaths,
	}
}

// Run opens the configured output files, dumps rootPath into them, and closes
// them on every exit path. Only a failure to list rootPath is fatal.
func (dumper *Dumper) Run(ctx context.Context, rootPath string) (summary Summary, err error) {
	sinks, openError := OpenFileSinks(dumper.options.StructurePath, dumper.options.ContentPath)
	if openError != nil {
		return Summary{}, openError
	}
	defer func() {
		if closeError := sinks.Close(); closeError != nil && err == nil {
			err = closeError
		}
	}()
	return dumper.Dump(ctx, rootPath, sinks)
}

// Dump traverses rootPath and writes into sinks. The caller owns sinks and is
// responsible for closing them.
func (dumper *Dumper) Dump(ctx context.Context, rootPath string, sinks *Sinks) (Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	current := &run{sinks: sinks, matcher: ignore.NoneMatcher{}}
	if dumper.options.TokenCounter != nil {
		current.summary.TokenModel = dumper.options.TokenModel
		if current.summary.TokenModel == "" {
			current.summary.TokenModel = dumper.options.TokenCounter.Name()
		}
	}
	if dumper.options.UseGitIgnore {
		matcher, loadError := ignore.LoadRootGitIgnore(rootPath)
		if loadError != nil {
			dumper.logger.Warn(warningGitIgnoreMessage, zap.Error(loadError))
		} else {
			current.matcher = matcher
		}
	}

	dumper.reporter.Start(progressDescription)
	defer dumper.reporter.Finish()

	rootState := traversalState{directoryPath: rootPath}
	if resolvedRoot, resolveError := filepath.EvalSymlinks(rootPath); resolveError == nil {
		rootState.ancestors = []string{resolvedRoot}
	}
	if walkError := dumper.traverse(ctx, current, rootState); walkError != nil {
		if ctxError := ctx.Err(); ctxError != nil {
			return current.summary, ctxError
		}
		return current.summary, fmt.Errorf(errorFatalRootFormat, ErrFatalTraversal, rootPath, walkError)
	}
	return current.summary, nil
}

// traverse lists state.directoryPath and processes its entries in name order.
// It returns an error only when the directory itself cannot be listed or the
// context is done; failures below it are absorbed.
func (dumper *Dumper) traverse(ctx context.Context, current *run, state traversalState) error {
	directoryEntries, readDirectoryError := os.ReadDir(state.directoryPath)
	if readDirectoryError != nil {
		return fmt.Errorf(errorReadDirectoryFormat, state.directoryPath, readDirectoryError)
	}

	for _, directoryEntry := range directoryEntries {
		if ctxError := ctx.Err(); ctxError != nil {
			return ctxError
		}
		entryName := directoryEntry.Name()
		entryPath := filepath.Join(state.directoryPath, entryName)
		if dumper.options.Policy.ExcludesName(entryName) {
			dumper.logger.Debug(debugExcludedMessage, zap.String("path", entryPath))
			continue
		}

		if isDirectory(entryPath) {
			if dumper.options.Policy.ExcludesDirectory(entryName) || current.matcher.Match(entryPath, true) {
				dumper.logger.Debug(debugExcludedMessage, zap.String("path", entryPath))
				continue
			}
			if descendError := dumper.descend(ctx, current, state, entryName, entryPath); descendError != nil {
				return descendError
			}
			continue
		}

		if dumper.options.Policy.ExcludesFile(entryName) || current.matcher.Match(entryPath, false) || dumper.isOutputFile(entryPath) {
			dumper.logger.Debug(debugExcludedMessage, zap.String("path", entryPath))
			continue
		}
		dumper.dumpFile(current, state.indent, entryName, entryPath)
	}
	return nil
}

// descend lists a subdirectory and recurses into it. Only context errors
// are returned.
func (dumper *Dumper) descend(ctx context.Context, current *run, parent traversalState, entryName string, entryPath string) error {
	current.sinks.WriteStructureLine(parent.indent + entryName + directorySuffix)
	current.summary.Directories++

	resolvedPath, resolveError := filepath.EvalSymlinks(entryPath)
	if resolveError != nil {
		resolvedPath = entryPath
	}
	for _, ancestor := range parent.ancestors {
		if ancestor == resolvedPath {
			dumper.logger.Warn(warningSymlinkCycleMessage, zap.String("path", entryPath), zap.String("target", resolvedPath))
			return nil
		}
	}

	childState := traversalState{
		directoryPath: entryPath,
		indent:        parent.indent + indentIncrement,
		ancestors:     append(append([]string(nil), parent.ancestors...), resolvedPath),
	}
	if childError := dumper.traverse(ctx, current, childState); childError != nil {
		if ctxError := ctx.Err(); ctxError != nil {
			return ctxError
		}
		dumper.logger.Warn(warningSkipDirectoryMessage, zap.String("path", entryPath), zap.Error(childError))
	}
	return nil
}

// dumpFile lists one file and appends its contents, or a placeholder when it
// cannot be read as text.
func (dumper *Dumper) dumpFile(current *run, indent string, entryName string, entryPath string) {
	current.sinks.WriteStructureLine(indent + entryName)
	current.summary.Files++
	dumper.reporter.Increment(entryName)

	fileContent, readError := readText(entryPath)
	if readError != nil {
		dumper.logger.Warn(warningReadFileMessage, zap.String("path", entryPath), zap.Error(readError.Err))
		current.summary.Unreadable++
		current.sinks.WriteContentBlock(entryPath, []byte(readError.Placeholder()))
		return
	}
	current.sinks.WriteContentBlock(entryPath, fileContent)
	current.summary.addDumped(int64(len(fileContent)))

	if dumper.options.TokenCounter == nil {
		return
	}
	countResult, countError := tokenizer.CountBytes(dumper.options.TokenCounter, fileContent)
	if countError != nil {
		dumper.logger.Warn(warningTokenCountMessage, zap.String("path", entryPath), zap.Error(countError))
		return
	}
	if countResult.Counted {
		current.summary.Tokens += countResult.Tokens
	}
}

func (dumper *Dumper) isOutputFile(entryPath string) bool {
	absolutePath, absoluteError := filepath.Abs(entryPath)
	if absoluteError != nil {
		return false
	}
	_, isOutput := dumper.skipPaths[absolutePath]
	return isOutput
}

// isDirectory follows symlinks. Entries that cannot be stated are treated as
// files so that the read failure is recorded in the dump.
func isDirectory(entryPath string) bool {
	fileInformation, statError := os.Stat(entryPath)
	return statError == nil && fileInformation.IsDir()
}

// readText returns the file's bytes when they form valid UTF-8 text.
func readText(entryPath string) ([]byte, *ReadError) {
	// #nosec G304
	fileBytes, readError := os.ReadFile(entryPath)
	if readError != nil {
		return nil, &ReadError{Path: entryPath, Err: readError}
	}
	if !utf8.Valid(fileBytes) {
		return nil, &ReadError{Path: entryPath, Err: ErrInvalidText}
	}
	return fileBytes, nil
}
