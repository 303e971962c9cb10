// Package constants provides centralized definitions of constants used throughout the application
package constants

// Environment variable names
const (
	// EnvPrefix is the prefix viper uses when binding configuration keys to environment variables
	EnvPrefix = "DOCCONV"

	// EnvConfigFile points at the YAML configuration file
	EnvConfigFile = "DOCCONV_CONFIG"

	// EnvServerAddress is the API address used by the CLI
	EnvServerAddress = "DOCCONV_SERVER_ADDRESS"

	// EnvLogLevel overrides the configured log level
	EnvLogLevel = "LOG_LEVEL"
)
