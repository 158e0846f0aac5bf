package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Config path: CLI > env > default.
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. File (or defaults).
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Environment.
	if env.AccountsDir != "" {
		cfg.AccountsDir = env.AccountsDir
	}

	if env.OutputDir != "" {
		cfg.OutputDir = env.OutputDir
	}

	if env.Format != "" {
		cfg.Format = env.Format
	}

	// 4. CLI flags.
	if cli.OutputDir != nil {
		cfg.OutputDir = *cli.OutputDir
	}

	if cli.Format != nil {
		cfg.Format = *cli.Format
	}

	// 5. Validate the merged result; env and flags can be wrong too.
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	accountsDir, err := ExpandTilde(cfg.AccountsDir)
	if err != nil {
		return nil, fmt.Errorf("expanding accounts_dir: %w", err)
	}

	cfg.AccountsDir = accountsDir

	outputDir, err := ExpandTilde(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("expanding output_dir: %w", err)
	}

	cfg.OutputDir = outputDir

	return &Resolved{
		Config:      *cfg,
		ConfigPath:  cfgPath,
		HistoryPath: DefaultHistoryPath(),
	}, nil
}
