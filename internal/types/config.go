package types

// RunMode is the mode the process runs in
type RunMode string

const (
	// ModeLocal is the mode for running the engine locally (CLI, scripts)
	ModeLocal RunMode = "local"
	// ModeService is the mode for running as an embedded library inside the
	// invoicing application
	ModeService RunMode = "service"
)

// LogLevel is the level of logging
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
