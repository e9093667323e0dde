package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	t.Run("pool defaults", func(t *testing.T) {
		assert.Equal(t, "/var/lib/vos/pool.vos", config.Pool.Path)
		size, err := config.Pool.SizeBytes()
		require.NoError(t, err)
		assert.Equal(t, int64(64<<20), size)
		undo, err := config.Pool.UndoLogSizeBytes()
		require.NoError(t, err)
		assert.Equal(t, int64(1<<20), undo)
		assert.True(t, config.Pool.SyncOnCommit)
	})

	t.Run("tree defaults", func(t *testing.T) {
		assert.Equal(t, 11, config.Tree.ILogOrder)
		assert.Equal(t, 16, config.Tree.DTXOrder)
	})

	t.Run("logging defaults", func(t *testing.T) {
		assert.Equal(t, "info", config.Logging.Level)
		assert.Equal(t, "text", config.Logging.Format)
		assert.Equal(t, "stderr", config.Logging.Output)
	})

	t.Run("defaults validate", func(t *testing.T) {
		assert.Empty(t, ValidateConfig(config))
	})
}

func TestParseConfig(t *testing.T) {
	t.Run("empty config uses defaults", func(t *testing.T) {
		config, err := ParseConfig([]byte(""))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), config)
	})

	t.Run("parse pool config", func(t *testing.T) {
		data := `
pool:
  path: "/data/vos/p0"
  size: "128 MiB"
  undoLogSize: 2MB
  syncOnCommit: false
`
		config, err := ParseConfig([]byte(data))
		require.NoError(t, err)
		assert.Equal(t, "/data/vos/p0", config.Pool.Path)
		assert.False(t, config.Pool.SyncOnCommit)

		size, err := config.Pool.SizeBytes()
		require.NoError(t, err)
		assert.Equal(t, int64(128<<20), size)
		undo, err := config.Pool.UndoLogSizeBytes()
		require.NoError(t, err)
		assert.Equal(t, int64(2000000), undo)
	})

	t.Run("partial section keeps other defaults", func(t *testing.T) {
		config, err := ParseConfig([]byte("tree:\n  dtxOrder: 32\n"))
		require.NoError(t, err)
		assert.Equal(t, 32, config.Tree.DTXOrder)
		assert.Equal(t, 11, config.Tree.ILogOrder)
		assert.Equal(t, "info", config.Logging.Level)
	})

	t.Run("unknown key is rejected", func(t *testing.T) {
		_, err := ParseConfig([]byte("pool:\n  pageSize: 4096\n"))
		assert.ErrorIs(t, err, ErrInvalidYAML)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseConfig([]byte("pool: [unterminated"))
		assert.ErrorIs(t, err, ErrInvalidYAML)
	})
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("VOS_TEST_POOL", "/tmp/from-env.vos")
	os.Unsetenv("VOS_TEST_UNSET")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "${VOS_TEST_POOL}", "/tmp/from-env.vos"},
		{"set variable with default", "${VOS_TEST_POOL:-/other}", "/tmp/from-env.vos"},
		{"unset variable with default", "${VOS_TEST_UNSET:-/fallback}", "/fallback"},
		{"unset variable", "x${VOS_TEST_UNSET}y", "xy"},
		{"no pattern", "plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(substituteEnvVars([]byte(tt.input))))
		})
	}

	config, err := ParseConfig([]byte("pool:\n  path: ${VOS_TEST_POOL}\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.vos", config.Pool.Path)
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		config := DefaultConfig()
		config.Pool.Path = "/srv/vos/pool"
		config.Logging.Format = "json"

		data, err := Marshal(config)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "vos.yaml")
		require.NoError(t, os.WriteFile(path, data, 0o600))

		loaded, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, config, loaded)
	})
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"missing path", func(c *Config) { c.Pool.Path = "" }, "pool.path"},
		{"bad size", func(c *Config) { c.Pool.Size = "lots" }, "pool.size"},
		{"small pool", func(c *Config) { c.Pool.Size = "512KiB"; c.Pool.UndoLogSize = "64KiB" }, "pool.size"},
		{"undo too large", func(c *Config) { c.Pool.UndoLogSize = "40MiB" }, "pool.undoLogSize"},
		{"tree order too small", func(c *Config) { c.Tree.ILogOrder = 2 }, "tree.ilogOrder"},
		{"tree order too large", func(c *Config) { c.Tree.ObjectOrder = 4096 }, "tree.objectOrder"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)

			errs := ValidateConfig(config)
			require.Len(t, errs, 1)
			var verr ValidationError
			require.ErrorAs(t, errs[0], &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	t.Run("zero tree order selects default", func(t *testing.T) {
		config := DefaultConfig()
		config.Tree = TreeConfig{}
		assert.Empty(t, ValidateConfig(config))
	})
}
