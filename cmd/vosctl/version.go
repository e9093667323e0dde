package main

import (
	"runtime"

	"gopkg.in/alecthomas/kingpin.v2"
)

// Version information - these can be set at build time using ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version   = "0.3.0"
	commit    = "unknown"
	buildDate = "unknown"
)

func versionCommands(app *kingpin.Application, _ *globals) map[string]handler {
	cmd := app.Command("version", "Show version information.")
	short := cmd.Flag("short", "Show only the version number.").Bool()

	return map[string]handler{
		cmd.FullCommand(): func(env *cmdEnv) int {
			if *short {
				env.printf("%s\n", version)
				return 0
			}
			env.printf("vosctl version %s\n", version)
			env.printf("  Commit:     %s\n", commit)
			env.printf("  Built:      %s\n", buildDate)
			env.printf("  Go version: %s\n", runtime.Version())
			env.printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return 0
		},
	}
}
