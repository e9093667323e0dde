package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/KilimcininKorOglu/vos/internal/config"
	"github.com/KilimcininKorOglu/vos/internal/logging"
	"github.com/KilimcininKorOglu/vos/internal/vos"
)

// globals holds the flags shared by every command.
type globals struct {
	configFile *string
	poolPath   *string
	logLevel   *string
}

func addGlobals(app *kingpin.Application) *globals {
	return &globals{
		configFile: app.Flag("config", "Configuration file.").Short('c').Envar("VOS_CONFIG").String(),
		poolPath:   app.Flag("pool", "Pool file, overrides pool.path.").Short('p').Envar("VOS_POOL").String(),
		logLevel:   app.Flag("log-level", "Log level, overrides logging.level.").Enum("debug", "info", "warn", "error"),
	}
}

// cmdEnv is what a handler runs with.
type cmdEnv struct {
	*globals
	stdout io.Writer
	stderr io.Writer
}

func (e *cmdEnv) printf(format string, args ...interface{}) {
	fmt.Fprintf(e.stdout, format, args...)
}

// fail reports err and returns the exit code for a failed command.
func (e *cmdEnv) fail(err error) int {
	fmt.Fprintf(e.stderr, "Error: %v\n", err)
	return 1
}

// loadConfig reads the configuration file, if any, and applies the global
// overrides.
func (e *cmdEnv) loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *e.configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(*e.configFile); err != nil {
			return nil, err
		}
	}
	if *e.poolPath != "" {
		cfg.Pool.Path = *e.poolPath
	}
	if *e.logLevel != "" {
		cfg.Logging.Level = *e.logLevel
	}
	return cfg, nil
}

func (e *cmdEnv) logger(cfg *config.Config) logging.Logger {
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stderr" {
		return logging.NewWithWriter(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		}, e.stderr)
	}
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

func (e *cmdEnv) openPool() (*vos.Pool, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return vos.OpenPool(cfg, e.logger(cfg))
}

// withContainer opens the pool and the container named by id and runs fn.
func (e *cmdEnv) withContainer(id string, fn func(c *vos.Container) int) int {
	cid, err := uuid.Parse(id)
	if err != nil {
		return e.fail(errors.Wrapf(err, "container %q", id))
	}
	pool, err := e.openPool()
	if err != nil {
		return e.fail(err)
	}
	defer pool.Close()

	c, err := pool.OpenContainer(cid)
	if err != nil {
		return e.fail(err)
	}
	defer c.Close()
	return fn(c)
}
