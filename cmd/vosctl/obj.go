package main

import (
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/KilimcininKorOglu/vos/internal/storage"
	"github.com/KilimcininKorOglu/vos/internal/storage/dtx"
	"github.com/KilimcininKorOglu/vos/internal/vos"
)

// eventArgs are the arguments of obj update and obj punch.
type eventArgs struct {
	cont    *string
	oid     *string
	epoch   *uint64
	xid     *string
	version *uint32
}

func addEventArgs(cmd *kingpin.CmdClause) eventArgs {
	return eventArgs{
		cont:    cmd.Arg("container", "Container UUID.").Required().String(),
		oid:     cmd.Arg("oid", "Object ID as <hi>.<lo> or <lo>.").Required().String(),
		epoch:   cmd.Arg("epoch", "Epoch of the event.").Required().Uint64(),
		xid:     cmd.Flag("dtx", "Active transaction that produced the event.").String(),
		version: cmd.Flag("map-version", "Pool map version.").Default("1").Uint32(),
	}
}

func (a eventArgs) record(env *cmdEnv, punch bool) int {
	oid, err := dtx.ParseObjectID(*a.oid)
	if err != nil {
		return env.fail(err)
	}
	return env.withContainer(*a.cont, func(c *vos.Container) int {
		ref := storage.NullOffset
		if *a.xid != "" {
			xid, err := dtx.ParseID(*a.xid)
			if err != nil {
				return env.fail(err)
			}
			if _, ref, err = c.LookupDTX(xid); err != nil {
				return env.fail(err)
			}
		}
		if err := c.UpdateObject(oid, *a.version, *a.epoch, ref, punch); err != nil {
			return env.fail(err)
		}
		return 0
	})
}

func objCommands(app *kingpin.Application, _ *globals) map[string]handler {
	obj := app.Command("obj", "Record and inspect object incarnations.")

	update := obj.Command("update", "Record a create of an object.")
	updateArgs := addEventArgs(update)

	punch := obj.Command("punch", "Record a punch of an object.")
	punchArgs := addEventArgs(punch)

	logCmd := obj.Command("log", "Show the incarnation log of an object.")
	logCont := logCmd.Arg("container", "Container UUID.").Required().String()
	logOID := logCmd.Arg("oid", "Object ID.").Required().String()

	visible := obj.Command("visible", "Tell whether an object exists at an epoch.")
	visCont := visible.Arg("container", "Container UUID.").Required().String()
	visOID := visible.Arg("oid", "Object ID.").Required().String()
	visEpoch := visible.Arg("epoch", "Epoch.").Required().Uint64()

	list := obj.Command("list", "List the objects of a container.")
	listCont := list.Arg("container", "Container UUID.").Required().String()

	destroy := obj.Command("destroy", "Remove an object and its log.")
	destroyCont := destroy.Arg("container", "Container UUID.").Required().String()
	destroyOID := destroy.Arg("oid", "Object ID.").Required().String()

	return map[string]handler{
		update.FullCommand(): func(env *cmdEnv) int {
			return updateArgs.record(env, false)
		},
		punch.FullCommand(): func(env *cmdEnv) int {
			return punchArgs.record(env, true)
		},
		logCmd.FullCommand(): func(env *cmdEnv) int {
			oid, err := dtx.ParseObjectID(*logOID)
			if err != nil {
				return env.fail(err)
			}
			return env.withContainer(*logCont, func(c *vos.Container) int {
				entries, err := c.ObjectLog(oid)
				if err != nil {
					return env.fail(err)
				}
				for _, e := range entries {
					kind := "create"
					if e.Punch {
						kind = "punch"
					}
					env.printf("%d\t%s\tdtx=%s\tversion=%d\n", e.Epoch, kind, e.DTX, e.MapVersion)
				}
				return 0
			})
		},
		visible.FullCommand(): func(env *cmdEnv) int {
			oid, err := dtx.ParseObjectID(*visOID)
			if err != nil {
				return env.fail(err)
			}
			return env.withContainer(*visCont, func(c *vos.Container) int {
				ok, err := c.ObjectVisible(oid, *visEpoch)
				if err != nil {
					return env.fail(err)
				}
				env.printf("%t\n", ok)
				return 0
			})
		},
		list.FullCommand(): func(env *cmdEnv) int {
			return env.withContainer(*listCont, func(c *vos.Container) int {
				oids, err := c.Objects()
				if err != nil {
					return env.fail(err)
				}
				for _, oid := range oids {
					env.printf("%s\n", oid)
				}
				return 0
			})
		},
		destroy.FullCommand(): func(env *cmdEnv) int {
			oid, err := dtx.ParseObjectID(*destroyOID)
			if err != nil {
				return env.fail(err)
			}
			return env.withContainer(*destroyCont, func(c *vos.Container) int {
				if err := c.DestroyObject(oid); err != nil {
					return env.fail(err)
				}
				return 0
			})
		},
	}
}
