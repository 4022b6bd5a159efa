package utils

// EmptyString represents a reusable empty string constant.
const EmptyString = ""

const (
	// LoggerInitializationFailedMessageFormat reports a logger construction failure.
	LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"
	// ApplicationExecutionFailedMessage prefixes a fatal command failure.
	ApplicationExecutionFailedMessage = "treedump failed"
	// ConfigFileName is the local configuration file looked up in the working directory.
	ConfigFileName = ".treedump.yaml"
	// GlobalConfigDirectoryName is the configuration directory under the user's home.
	GlobalConfigDirectoryName = ".treedump"
	// GlobalConfigFileName is the configuration file inside GlobalConfigDirectoryName.
	GlobalConfigFileName = "config.yaml"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
)
