package main

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"
)

func contCommands(app *kingpin.Application, _ *globals) map[string]handler {
	cont := app.Command("cont", "Manage containers.")

	create := cont.Command("create", "Create a container.")
	createID := create.Arg("uuid", "Container UUID; a random one if omitted.").String()

	list := cont.Command("list", "List containers.")

	destroy := cont.Command("destroy", "Destroy a container with all its objects.")
	destroyID := destroy.Arg("uuid", "Container UUID.").Required().String()

	return map[string]handler{
		create.FullCommand(): func(env *cmdEnv) int {
			id := uuid.New()
			if *createID != "" {
				var err error
				if id, err = uuid.Parse(*createID); err != nil {
					return env.fail(errors.Wrapf(err, "container %q", *createID))
				}
			}

			p, err := env.openPool()
			if err != nil {
				return env.fail(err)
			}
			defer p.Close()
			if err := p.CreateContainer(id); err != nil {
				return env.fail(err)
			}
			env.printf("%s\n", id)
			return 0
		},
		list.FullCommand(): func(env *cmdEnv) int {
			p, err := env.openPool()
			if err != nil {
				return env.fail(err)
			}
			defer p.Close()

			ids, err := p.Containers()
			if err != nil {
				return env.fail(err)
			}
			for _, id := range ids {
				env.printf("%s\n", id)
			}
			return 0
		},
		destroy.FullCommand(): func(env *cmdEnv) int {
			id, err := uuid.Parse(*destroyID)
			if err != nil {
				return env.fail(errors.Wrapf(err, "container %q", *destroyID))
			}
			p, err := env.openPool()
			if err != nil {
				return env.fail(err)
			}
			defer p.Close()
			if err := p.DestroyContainer(id); err != nil {
				return env.fail(err)
			}
			return 0
		},
	}
}
