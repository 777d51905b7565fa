// Package exitcodes lists the process exit codes.
package exitcodes

const (
	// General is any failure without a more specific code.
	General = 1
	// UsageError is a bad flag or argument.
	UsageError = 2
	// ConfigError means the config directory or files are unusable.
	ConfigError = 3
	// NetworkError means a required listener or endpoint is unavailable.
	NetworkError = 4
	// HostError means the host application could not be started.
	HostError = 5
)
