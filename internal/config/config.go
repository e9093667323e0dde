// Package config provides configuration parsing for the VOS engine and its tools.
package config

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Config holds the complete engine configuration.
type Config struct {
	Pool    PoolConfig `yaml:"pool"`
	Tree    TreeConfig `yaml:"tree"`
	Logging LogConfig  `yaml:"logging"`
}

// PoolConfig holds persistent pool configuration.
type PoolConfig struct {
	Path         string `yaml:"path"`
	Size         string `yaml:"size"`
	UndoLogSize  string `yaml:"undoLogSize"`
	SyncOnCommit bool   `yaml:"syncOnCommit"`
}

// TreeConfig holds the orders of the trees kept in a pool. Zero selects
// the built-in default for that tree.
type TreeConfig struct {
	ILogOrder      int `yaml:"ilogOrder"`
	DTXOrder       int `yaml:"dtxOrder"`
	ObjectOrder    int `yaml:"objectOrder"`
	ContainerOrder int `yaml:"containerOrder"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SizeBytes returns the pool size in bytes.
func (c PoolConfig) SizeBytes() (int64, error) {
	return parseSize(c.Size)
}

// UndoLogSizeBytes returns the undo log size in bytes.
func (c PoolConfig) UndoLogSizeBytes() (int64, error) {
	return parseSize(c.UndoLogSize)
}

// parseSize parses a human-readable byte size such as "64MB" or "1 MiB".
// An empty string is zero.
func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidSize, "%q", s)
	}
	if n > 1<<62 {
		return 0, errors.Wrapf(ErrInvalidSize, "%q is too large", s)
	}
	return int64(n), nil
}
