package config

// Default values for configuration.
const (
	// Output defaults
	DefaultOutputDir    = "out"
	DefaultOutputFormat = "json"

	// Download defaults: глубина 100 практически не ограничивает
	// выгрузку вложений из репостов.
	DefaultMediaDepth = 100

	// Server defaults
	DefaultServerHost             = "0.0.0.0"
	DefaultServerPort             = 8080
	DefaultShutdownTimeoutSeconds = 15
	DefaultTaskTimeoutSeconds     = 0
	DefaultCacheTTLMinutes        = 60

	// Logging defaults
	DefaultLogLevel = "info"
)
