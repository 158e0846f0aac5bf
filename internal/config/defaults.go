package config

// Default values for configuration options: layer 0 of the override chain.
const (
	defaultAccountsDir = "~/.drive-accounts"
	defaultOutputDir   = "drive_files"
	defaultFormat      = "text-only"
	defaultPageSize    = 100
	defaultListLimit   = 100
	defaultLogLevel    = "warn"
)

// DefaultConfig returns a Config populated with all default values. It is the
// starting point for TOML decoding, so unset keys keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		AccountsDir:     defaultAccountsDir,
		OutputDir:       defaultOutputDir,
		Format:          defaultFormat,
		PageSize:        defaultPageSize,
		ListLimit:       defaultListLimit,
		LogLevel:        defaultLogLevel,
		History:         true,
		VerifyChecksums: true,
	}
}
