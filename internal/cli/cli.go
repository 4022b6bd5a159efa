// Package cli provides the command line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/treedump/internal/config"
	"github.com/temirov/treedump/internal/dumper"
	"github.com/temirov/treedump/internal/progress"
	"github.com/temirov/treedump/internal/services/clipboard"
	"github.com/temirov/treedump/internal/tokenizer"
	"github.com/temirov/treedump/internal/utils"
)

const (
	defaultPath          = "."
	rootUse              = "treedump [root]"
	rootShortDescription = "dump a directory's structure and file contents"
	rootLongDescription  = `treedump walks a directory tree depth-first in name order.
It writes an indented listing of every included entry to the structure file and
the contents of every included file, each preceded by a "### <path> ###" header,
to the content file. Tooling directories, lockfiles, and binary extensions are
excluded by default.`
	rootUsageExample = `  # Dump the current directory
  treedump

  # Dump ./service into custom files, also honoring its .gitignore
  treedump ./service --structure-output tree.txt --content-output dump.txt --gitignore

  # Add exclusions on top of the defaults
  treedump --exclude-dir dist --exclude-ext .map`
	versionTemplate = "treedump version: {{.Version}}\n"

	initUse              = "init"
	initShortDescription = "write the default configuration file"

	structureOutputFlagName      = "structure-output"
	contentOutputFlagName        = "content-output"
	excludeDirectoryFlagName     = "exclude-dir"
	excludeFileFlagName          = "exclude-file"
	excludeExtensionFlagName     = "exclude-ext"
	noDefaultExclusionsFlagName  = "no-default-exclusions"
	gitIgnoreFlagName            = "gitignore"
	tokensFlagName               = "tokens"
	modelFlagName                = "model"
	progressFlagName             = "progress"
	copyFlagName                 = "copy"
	configFlagName               = "config"
	verboseFlagName              = "verbose"
	globalFlagName               = "global"
	forceFlagName                = "force"
	structureOutputDescription   = "structure listing output file"
	contentOutputDescription     = "content dump output file"
	excludeDirectoryDescription  = "additional directory name to exclude"
	excludeFileDescription       = "additional exact file name to exclude"
	excludeExtensionDescription  = "additional file extension to exclude (case-insensitive)"
	noDefaultExclusionsDescr     = "do not apply the built-in exclusion sets"
	gitIgnoreDescription         = "also skip entries matched by the root .gitignore"
	tokensDescription            = "count tokens of dumped content"
	modelDescription             = "tokenizer model to use for token counting"
	progressDescription          = "show a progress spinner on stderr"
	copyDescription              = "copy the structure listing to the clipboard"
	configDescription            = "configuration file (default .treedump.yaml in the working directory)"
	verboseDescription           = "log excluded entries"
	globalDescription            = "write the configuration under the home directory"
	forceDescription             = "overwrite an existing configuration file"
	completionMessageFormat      = "Done. Files saved: '%s' and '%s'\n"
	configWrittenMessageFormat   = "Configuration written to %s\n"
	workingDirectoryErrorFormat  = "unable to determine working directory: %w"
	rootNotDirectoryErrorFormat  = "%w: %s is not a directory"
	rootStatErrorFormat          = "%w: %w"
	readStructureErrorFormat     = "reading %s for clipboard: %w"
	copyClipboardErrorFormat     = "copying structure listing to clipboard: %w"
	loadConfigurationErrorFormat = "loading configuration: %w"
)

// Dependencies are the collaborators of the command tree. Zero values are
// replaced with production implementations.
type Dependencies struct {
	Logger           *zap.Logger
	LogLevel         *zap.AtomicLevel
	Copier           clipboard.Copier
	NewTokenCounter  func(tokenizer.Config) (tokenizer.Counter, string, error)
	WorkingDirectory string
	HomeDirectory    string
}

// Execute runs the treedump application.
func Execute(logger *zap.Logger, logLevel zap.AtomicLevel) error {
	return NewRootCommand(Dependencies{Logger: logger, LogLevel: &logLevel}).Execute()
}

// runOptions stores the flag values of the root command.
type runOptions struct {
	structureOutput     string
	contentOutput       string
	excludeDirectories  []string
	excludeFiles        []string
	excludeExtensions   []string
	noDefaultExclusions bool
	gitIgnore           bool
	tokens              bool
	model               string
	progress            bool
	copy                bool
	configPath          string
	verbose             bool
}

// NewRootCommand builds the root Cobra command.
func NewRootCommand(dependencies Dependencies) *cobra.Command {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Copier == nil {
		dependencies.Copier = clipboard.NewService()
	}
	if dependencies.NewTokenCounter == nil {
		dependencies.NewTokenCounter = tokenizer.NewCounter
	}

	var options runOptions
	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		Example:      rootUsageExample,
		Args:         cobra.MaximumNArgs(1),
		Version:      utils.GetApplicationVersion(),
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			rootPath := defaultPath
			if len(arguments) == 1 {
				rootPath = arguments[0]
			}
			return runDump(command, dependencies, options, rootPath)
		},
	}
	rootCommand.SetVersionTemplate(versionTemplate)

	flagSet := rootCommand.Flags()
	flagSet.StringVar(&options.structureOutput, structureOutputFlagName, dumper.DefaultStructureFileName, structureOutputDescription)
	flagSet.StringVar(&options.contentOutput, contentOutputFlagName, dumper.DefaultContentFileName, contentOutputDescription)
	flagSet.StringArrayVar(&options.excludeDirectories, excludeDirectoryFlagName, nil, excludeDirectoryDescription)
	flagSet.StringArrayVar(&options.excludeFiles, excludeFileFlagName, nil, excludeFileDescription)
	flagSet.StringArrayVar(&options.excludeExtensions, excludeExtensionFlagName, nil, excludeExtensionDescription)
	registerBooleanFlag(flagSet, &options.noDefaultExclusions, noDefaultExclusionsFlagName, false, noDefaultExclusionsDescr)
	registerBooleanFlag(flagSet, &options.gitIgnore, gitIgnoreFlagName, false, gitIgnoreDescription)
	registerBooleanFlag(flagSet, &options.tokens, tokensFlagName, false, tokensDescription)
	flagSet.StringVar(&options.model, modelFlagName, "", modelDescription)
	registerBooleanFlag(flagSet, &options.progress, progressFlagName, false, progressDescription)
	registerBooleanFlag(flagSet, &options.copy, copyFlagName, false, copyDescription)
	rootCommand.PersistentFlags().StringVar(&options.configPath, configFlagName, "", configDescription)
	registerBooleanFlag(rootCommand.PersistentFlags(), &options.verbose, verboseFlagName, false, verboseDescription)

	rootCommand.AddCommand(createInitCommand(dependencies))
	return rootCommand
}

func createInitCommand(dependencies Dependencies) *cobra.Command {
	var global bool
	var force bool
	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			writtenPath, initError := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            force,
				WorkingDirectory: dependencies.WorkingDirectory,
				HomeDirectory:    dependencies.HomeDirectory,
			})
			if initError != nil {
				return initError
			}
			fmt.Fprintf(command.OutOrStdout(), configWrittenMessageFormat, writtenPath)
			return nil
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, false, globalDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, false, forceDescription)
	return initCommand
}

// runDump resolves configuration, validates the root, and performs one run.
func runDump(command *cobra.Command, dependencies Dependencies, options runOptions, rootPath string) error {
	if options.verbose && dependencies.LogLevel != nil {
		dependencies.LogLevel.SetLevel(zapcore.DebugLevel)
	}

	workingDirectory := dependencies.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	applicationConfiguration, loadError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: options.configPath,
		HomeDirectory:    dependencies.HomeDirectory,
	})
	if loadError != nil {
		return fmt.Errorf(loadConfigurationErrorFormat, loadError)
	}
	applicationConfiguration = applyFlagOverrides(command, options, applicationConfiguration)

	if validationError := validateRoot(rootPath); validationError != nil {
		return validationError
	}

	dumperOptions := dumper.Options{
		Policy:        applicationConfiguration.Policy(),
		StructurePath: resolveOutputPath(workingDirectory, applicationConfiguration.Output.Structure),
		ContentPath:   resolveOutputPath(workingDirectory, applicationConfiguration.Output.Content),
		UseGitIgnore:  config.BoolValue(applicationConfiguration.GitIgnore),
		Logger:        dependencies.Logger,
	}
	if config.BoolValue(applicationConfiguration.Tokens.Enabled) {
		tokenCounter, resolvedModel, counterError := dependencies.NewTokenCounter(tokenizer.Config{Model: applicationConfiguration.Tokens.Model})
		if counterError != nil {
			return counterError
		}
		dumperOptions.TokenCounter = tokenCounter
		dumperOptions.TokenModel = resolvedModel
	}
	if config.BoolValue(applicationConfiguration.Progress) {
		dumperOptions.Progress = progress.NewSpinnerReporter(command.ErrOrStderr())
	}

	summary, runError := dumper.New(dumperOptions).Run(command.Context(), rootPath)
	if runError != nil {
		return runError
	}
	dependencies.Logger.Debug("dump complete", zap.String("root", rootPath), zap.Stringer("summary", summary))

	outputWriter := command.OutOrStdout()
	fmt.Fprintf(outputWriter, completionMessageFormat, applicationConfiguration.Output.Structure, applicationConfiguration.Output.Content)
	fmt.Fprintln(outputWriter, summary.String())

	if options.copy {
		return copyStructureListing(dependencies.Copier, dumperOptions.StructurePath)
	}
	return nil
}

// applyFlagOverrides layers explicitly set flags over the loaded configuration.
func applyFlagOverrides(command *cobra.Command, options runOptions, applicationConfiguration config.ApplicationConfiguration) config.ApplicationConfiguration {
	flagSet := command.Flags()
	override := config.ApplicationConfiguration{
		Exclude: config.ExclusionConfiguration{
			Directories: options.excludeDirectories,
			Files:       options.excludeFiles,
			Extensions:  options.excludeExtensions,
		},
	}
	if flagSet.Changed(structureOutputFlagName) {
		override.Output.Structure = options.structureOutput
	}
	if flagSet.Changed(contentOutputFlagName) {
		override.Output.Content = options.contentOutput
	}
	if flagSet.Changed(noDefaultExclusionsFlagName) {
		useDefaults := !options.noDefaultExclusions
		override.Exclude.Defaults = &useDefaults
	}
	if flagSet.Changed(gitIgnoreFlagName) {
		override.GitIgnore = &options.gitIgnore
	}
	if flagSet.Changed(tokensFlagName) {
		override.Tokens.Enabled = &options.tokens
	}
	if flagSet.Changed(modelFlagName) {
		override.Tokens.Model = options.model
	}
	if flagSet.Changed(progressFlagName) {
		override.Progress = &options.progress
	}
	return applicationConfiguration.Merge(override)
}

// validateRoot reports a fatal traversal error before any output file is
// truncated when the root is missing or is not a directory.
func validateRoot(rootPath string) error {
	fileInformation, statError := os.Stat(rootPath)
	if statError != nil {
		return fmt.Errorf(rootStatErrorFormat, dumper.ErrFatalTraversal, statError)
	}
	if !fileInformation.IsDir() {
		return fmt.Errorf(rootNotDirectoryErrorFormat, dumper.ErrFatalTraversal, rootPath)
	}
	return nil
}

func resolveOutputPath(workingDirectory string, outputPath string) string {
	if filepath.IsAbs(outputPath) {
		return outputPath
	}
	return filepath.Join(workingDirectory, outputPath)
}

func copyStructureListing(copier clipboard.Copier, structurePath string) error {
	// #nosec G304
	structureBytes, readError := os.ReadFile(structurePath)
	if readError != nil {
		return fmt.Errorf(readStructureErrorFormat, structurePath, readError)
	}
	if copyError := copier.Copy(string(structureBytes)); copyError != nil {
		return fmt.Errorf(copyClipboardErrorFormat, copyError)
	}
	return nil
}
