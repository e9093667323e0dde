package config

import (
	"fmt"
	"strings"
)

// Limits enforced on the tree sections. They mirror the tree engine's.
const (
	minTreeOrder = 3
	maxTreeOrder = 1024

	minPoolSize = 1 << 20
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig validates the configuration and returns a list of validation errors.
// An empty slice indicates the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error

	errs = append(errs, validatePoolConfig(&config.Pool)...)
	errs = append(errs, validateTreeConfig(&config.Tree)...)
	errs = append(errs, validateLogConfig(&config.Logging)...)

	return errs
}

// validatePoolConfig validates pool configuration.
func validatePoolConfig(config *PoolConfig) []error {
	var errs []error

	if config.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "pool.path",
			Message: "pool path is required",
		})
	}

	size, err := config.SizeBytes()
	switch {
	case err != nil:
		errs = append(errs, ValidationError{Field: "pool.size", Message: err.Error()})
	case size != 0 && size < minPoolSize:
		errs = append(errs, ValidationError{Field: "pool.size", Message: "must be at least 1MiB"})
	}

	undo, err := config.UndoLogSizeBytes()
	switch {
	case err != nil:
		errs = append(errs, ValidationError{Field: "pool.undoLogSize", Message: err.Error()})
	case size != 0 && undo >= size/2:
		errs = append(errs, ValidationError{Field: "pool.undoLogSize", Message: "must be less than half the pool size"})
	}

	return errs
}

// validateTreeConfig validates tree orders.
func validateTreeConfig(config *TreeConfig) []error {
	var errs []error

	orders := []struct {
		field string
		value int
	}{
		{"tree.ilogOrder", config.ILogOrder},
		{"tree.dtxOrder", config.DTXOrder},
		{"tree.objectOrder", config.ObjectOrder},
		{"tree.containerOrder", config.ContainerOrder},
	}
	for _, o := range orders {
		if o.value == 0 {
			continue
		}
		if o.value < minTreeOrder || o.value > maxTreeOrder {
			errs = append(errs, ValidationError{
				Field:   o.field,
				Message: fmt.Sprintf("must be between %d and %d", minTreeOrder, maxTreeOrder),
			})
		}
	}

	return errs
}

// validateLogConfig validates logging configuration.
func validateLogConfig(config *LogConfig) []error {
	var errs []error

	switch strings.ToLower(config.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be debug, info, warn, or error",
		})
	}

	switch strings.ToLower(config.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be text or json",
		})
	}

	return errs
}
