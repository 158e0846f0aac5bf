package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig      = "GDFETCH_CONFIG"
	EnvAccountsDir = "GDFETCH_ACCOUNTS_DIR"
	EnvOutputDir   = "GDFETCH_OUTPUT_DIR"
	EnvFormat      = "GDFETCH_FORMAT"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath  string // GDFETCH_CONFIG: override config file path
	AccountsDir string // GDFETCH_ACCOUNTS_DIR: accounts root
	OutputDir   string // GDFETCH_OUTPUT_DIR: download directory
	Format      string // GDFETCH_FORMAT: export preset
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:  os.Getenv(EnvConfig),
		AccountsDir: os.Getenv(EnvAccountsDir),
		OutputDir:   os.Getenv(EnvOutputDir),
		Format:      os.Getenv(EnvFormat),
	}
}
