// Package config loads treedump configuration files and renders the default
// configuration template.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/temirov/treedump/internal/dumper"
	"github.com/temirov/treedump/internal/policy"
	"github.com/temirov/treedump/internal/utils"
)

const (
	defaultTokenModel = "gpt-4o"

	errorWorkingDirectoryFormat = "determine working directory: %w"
	errorResolvePathFormat      = "resolve configuration path %s: %w"
	errorStatFormat             = "stat configuration %s: %w"
	errorDirectoryFormat        = "configuration path %s is a directory"
	errorReadFormat             = "read configuration from %s: %w"
	errorDecodeFormat           = "decode configuration from %s: %w"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
	HomeDirectory    string
}

// ApplicationConfiguration holds every setting that may come from a file.
// Pointer fields distinguish "unset" from an explicit false.
type ApplicationConfiguration struct {
	Exclude   ExclusionConfiguration `mapstructure:"exclude" yaml:"exclude"`
	Output    OutputConfiguration    `mapstructure:"output" yaml:"output"`
	GitIgnore *bool                  `mapstructure:"gitignore" yaml:"gitignore"`
	Tokens    TokenConfiguration     `mapstructure:"tokens" yaml:"tokens"`
	Progress  *bool                  `mapstructure:"progress" yaml:"progress"`
}

// ExclusionConfiguration extends or replaces the compiled-in exclusion sets.
type ExclusionConfiguration struct {
	Directories []string `mapstructure:"directories" yaml:"directories"`
	Files       []string `mapstructure:"files" yaml:"files"`
	Extensions  []string `mapstructure:"extensions" yaml:"extensions"`
	Defaults    *bool    `mapstructure:"defaults" yaml:"defaults"`
}

// OutputConfiguration names the two output files.
type OutputConfiguration struct {
	Structure string `mapstructure:"structure" yaml:"structure"`
	Content   string `mapstructure:"content" yaml:"content"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled" yaml:"enabled"`
	Model   string `mapstructure:"model" yaml:"model"`
}

// DefaultConfiguration returns the configuration used when no file sets a value.
func DefaultConfiguration() ApplicationConfiguration {
	return ApplicationConfiguration{
		Exclude: ExclusionConfiguration{
			Directories: []string{},
			Files:       []string{},
			Extensions:  []string{},
			Defaults:    boolPointer(true),
		},
		Output: OutputConfiguration{
			Structure: dumper.DefaultStructureFileName,
			Content:   dumper.DefaultContentFileName,
		},
		GitIgnore: boolPointer(false),
		Tokens: TokenConfiguration{
			Enabled: boolPointer(false),
			Model:   defaultTokenModel,
		},
		Progress: boolPointer(false),
	}
}

// LoadApplicationConfiguration loads the global configuration and then the
// local one, the latter taking precedence. Missing files are not an error.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf(errorWorkingDirectoryFormat, err)
		}
		workingDirectory = currentDirectory
	}

	merged := DefaultConfiguration()

	homeDirectory := options.HomeDirectory
	if homeDirectory == "" {
		if resolvedHome, err := os.UserHomeDir(); err == nil {
			homeDirectory = resolvedHome
		}
	}
	if homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	localConfig, loadErr := loadConfigurationFromPath(localPath)
	if loadErr != nil {
		return ApplicationConfiguration{}, loadErr
	}
	return merged.Merge(localConfig), nil
}

// Policy builds the exclusion policy described by the configuration.
func (config ApplicationConfiguration) Policy() policy.ExclusionPolicy {
	configured := policy.New(config.Exclude.Directories, config.Exclude.Files, config.Exclude.Extensions)
	if config.Exclude.Defaults != nil && !*config.Exclude.Defaults {
		return configured
	}
	return policy.Default().Merge(configured)
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath == "" {
		return filepath.Join(workingDirectory, utils.ConfigFileName), nil
	}
	if filepath.IsAbs(explicitPath) {
		return explicitPath, nil
	}
	if workingDirectory == "" {
		absolute, err := filepath.Abs(explicitPath)
		if err != nil {
			return "", fmt.Errorf(errorResolvePathFormat, explicitPath, err)
		}
		return absolute, nil
	}
	return filepath.Join(workingDirectory, explicitPath), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf(errorStatFormat, path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf(errorDirectoryFormat, path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf(errorReadFormat, path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf(errorDecodeFormat, path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver. Exclusion lists accumulate;
// scalar values are replaced when override sets them.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Exclude = result.Exclude.merge(override.Exclude)
	if override.Output.Structure != "" {
		result.Output.Structure = override.Output.Structure
	}
	if override.Output.Content != "" {
		result.Output.Content = override.Output.Content
	}
	if override.GitIgnore != nil {
		result.GitIgnore = cloneBool(override.GitIgnore)
	}
	result.Tokens = result.Tokens.merge(override.Tokens)
	if override.Progress != nil {
		result.Progress = cloneBool(override.Progress)
	}
	return result
}

func (config ExclusionConfiguration) merge(override ExclusionConfiguration) ExclusionConfiguration {
	result := ExclusionConfiguration{
		Directories: utils.DeduplicatePatterns(append(append([]string{}, config.Directories...), override.Directories...)),
		Files:       utils.DeduplicatePatterns(append(append([]string{}, config.Files...), override.Files...)),
		Extensions:  utils.DeduplicatePatterns(append(append([]string{}, config.Extensions...), override.Extensions...)),
		Defaults:    cloneBool(config.Defaults),
	}
	if override.Defaults != nil {
		result.Defaults = cloneBool(override.Defaults)
	}
	return result
}

func (config TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := config
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	return result
}

// BoolValue dereferences value, returning false when it is unset.
func BoolValue(value *bool) bool {
	return value != nil && *value
}

func boolPointer(value bool) *bool {
	return &value
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
