// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for gdfetch. Settings resolve through a
// four-layer override chain: defaults -> config file -> environment -> CLI flags.
package config

// Config is the top-level configuration structure parsed from a TOML file.
// All keys are flat; there are no sections.
type Config struct {
	AccountsDir     string `toml:"accounts_dir"`
	OutputDir       string `toml:"output_dir"`
	Format          string `toml:"format"`
	PageSize        int    `toml:"page_size"`
	ListLimit       int    `toml:"list_limit"`
	LogLevel        string `toml:"log_level"`
	History         bool   `toml:"history"`
	VerifyChecksums bool   `toml:"verify_checksums"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	OutputDir  *string // --output flag
	Format     *string // --format flag
}

// Resolved is the effective configuration after all override layers.
type Resolved struct {
	Config

	// ConfigPath is the file that was consulted (it may not exist).
	ConfigPath string

	// HistoryPath is the transfer history database location.
	HistoryPath string
}
