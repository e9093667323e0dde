package config

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			Path:         "/var/lib/vos/pool.vos",
			Size:         "64MiB",
			UndoLogSize:  "1MiB",
			SyncOnCommit: true,
		},
		Tree: TreeConfig{
			ILogOrder:      11,
			DTXOrder:       16,
			ObjectOrder:    16,
			ContainerOrder: 16,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
