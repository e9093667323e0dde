// Package main provides vosctl, the operator CLI for VOS pools.
package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"
)

func main() {
	exitCode := run(os.Args, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// handler runs a parsed command and returns an exit code.
type handler func(env *cmdEnv) int

// command registers a command group on the application and returns the
// handlers of its subcommands keyed by full command name.
type command func(app *kingpin.Application, g *globals) map[string]handler

var commands = []command{
	poolCommands,
	contCommands,
	objCommands,
	dtxCommands,
	versionCommands,
}

// run executes the CLI and returns an exit code.
// This is separated from main() to facilitate testing.
func run(args []string, stdout, stderr io.Writer) int {
	app := kingpin.New("vosctl", "Inspect and modify VOS pools.")
	app.UsageWriter(stdout)
	app.ErrorWriter(stderr)
	app.HelpFlag.Short('h')

	exited := false
	app.Terminate(func(int) { exited = true })

	g := addGlobals(app)
	handlers := make(map[string]handler)
	for _, register := range commands {
		for name, h := range register(app, g) {
			handlers[name] = h
		}
	}

	if len(args) < 2 {
		app.Usage(nil)
		return 1
	}

	name, err := app.Parse(args[1:])
	if exited {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "vosctl: %v\n", err)
		fmt.Fprintln(stderr, "Run 'vosctl --help' for usage.")
		return 1
	}

	h, ok := handlers[name]
	if !ok {
		app.Usage(nil)
		return 1
	}
	return h(&cmdEnv{globals: g, stdout: stdout, stderr: stderr})
}
