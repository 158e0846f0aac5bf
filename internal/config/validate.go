package config

import (
	"errors"
	"fmt"

	"github.com/tonimelisma/gdfetch/internal/exportfmt"
)

// Validation ranges. Drive caps files.list pageSize at 1000.
const (
	minPageSize  = 1
	maxPageSize  = 1000
	minListLimit = 1
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks all configuration values and returns every error found,
// so users can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.AccountsDir == "" {
		errs = append(errs, errors.New("accounts_dir: must not be empty"))
	}

	if cfg.OutputDir == "" {
		errs = append(errs, errors.New("output_dir: must not be empty"))
	}

	if _, err := exportfmt.Resolve(cfg.Format); err != nil {
		errs = append(errs, fmt.Errorf("format: %w", err))
	}

	if cfg.PageSize < minPageSize || cfg.PageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("page_size: must be between %d and %d, got %d",
			minPageSize, maxPageSize, cfg.PageSize))
	}

	if cfg.ListLimit < minListLimit {
		errs = append(errs, fmt.Errorf("list_limit: must be at least %d, got %d", minListLimit, cfg.ListLimit))
	}

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", cfg.LogLevel))
	}

	return errors.Join(errs...)
}
