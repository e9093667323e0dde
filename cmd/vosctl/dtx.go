package main

import (
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/KilimcininKorOglu/vos/internal/storage"
	"github.com/KilimcininKorOglu/vos/internal/storage/btree"
	"github.com/KilimcininKorOglu/vos/internal/storage/dtx"
	"github.com/KilimcininKorOglu/vos/internal/vos"
)

func dtxCommands(app *kingpin.Application, _ *globals) map[string]handler {
	cmd := app.Command("dtx", "Manage active distributed transactions.")

	begin := cmd.Command("begin", "Register an active transaction.")
	beginCont := begin.Arg("container", "Container UUID.").Required().String()
	beginOID := begin.Flag("oid", "Object the transaction touches.").Default("0").String()
	beginIntent := begin.Flag("intent", "Access intent.").Default("update").
		Enum("default", "read", "update", "punch", "purge")
	beginHLC := begin.Flag("hlc", "Clock stamp; the current time if zero.").Uint64()
	beginDKey := begin.Flag("dkey-hash", "Hash of the dkey touched.").Uint64()

	commit := cmd.Command("commit", "Remove a committed transaction from the active table.")
	commitCont := commit.Arg("container", "Container UUID.").Required().String()
	commitXID := commit.Arg("xid", "Transaction ID as <uuid>.<hlc>.").Required().String()

	list := cmd.Command("list", "List active transactions.")
	listCont := list.Arg("container", "Container UUID.").Required().String()
	listAnchor := list.Flag("anchor", "Resume from an anchor printed by an earlier list.").String()
	listLimit := list.Flag("limit", "Stop after this many entries; 0 for all.").Int()

	purge := cmd.Command("purge", "Delete every active transaction.")
	purgeCont := purge.Arg("container", "Container UUID.").Required().String()

	return map[string]handler{
		begin.FullCommand(): func(env *cmdEnv) int {
			oid, err := dtx.ParseObjectID(*beginOID)
			if err != nil {
				return env.fail(err)
			}
			intent, err := dtx.ParseIntent(*beginIntent)
			if err != nil {
				return env.fail(err)
			}
			hlc := *beginHLC
			if hlc == 0 {
				hlc = uint64(time.Now().UnixNano())
			}
			e := dtx.Entry{XID: dtx.NewID(hlc), OID: oid, Intent: intent, DKeyHash: *beginDKey}

			return env.withContainer(*beginCont, func(c *vos.Container) int {
				ref, err := c.BeginDTX(e)
				if err != nil {
					return env.fail(err)
				}
				env.printf("%s\t%s\n", e.XID, ref)
				return 0
			})
		},
		commit.FullCommand(): func(env *cmdEnv) int {
			xid, err := dtx.ParseID(*commitXID)
			if err != nil {
				return env.fail(err)
			}
			return env.withContainer(*commitCont, func(c *vos.Container) int {
				if err := c.CommitDTX(xid); err != nil {
					return env.fail(err)
				}
				return 0
			})
		},
		list.FullCommand(): func(env *cmdEnv) int {
			var anchor *btree.Anchor
			if *listAnchor != "" {
				b, err := hex.DecodeString(*listAnchor)
				if err != nil {
					return env.fail(errors.Wrap(storage.ErrInvalidArgument, "anchor is not hex"))
				}
				a := btree.AnchorFromBytes(b)
				anchor = &a
			}
			return env.withContainer(*listCont, func(c *vos.Container) int {
				return listDTX(env, c, anchor, *listLimit)
			})
		},
		purge.FullCommand(): func(env *cmdEnv) int {
			return env.withContainer(*purgeCont, func(c *vos.Container) int {
				n, err := vos.PurgeDTX(c)
				if err != nil {
					return env.fail(err)
				}
				env.printf("purged %d\n", n)
				return 0
			})
		},
	}
}

// listDTX prints up to limit entries starting at anchor. When it stops
// early it prints the anchor to continue from.
func listDTX(env *cmdEnv, c *vos.Container, anchor *btree.Anchor, limit int) int {
	it, err := vos.PrepareDTXIter(c)
	if err != nil {
		return env.fail(err)
	}
	defer it.Finish()

	n := 0
	for err = it.Probe(anchor); err == nil; err = it.Next() {
		e, a, ferr := it.Fetch()
		if ferr != nil {
			return env.fail(ferr)
		}
		if limit > 0 && n == limit {
			env.printf("next-anchor %s\n", hex.EncodeToString(a.Bytes()))
			return 0
		}
		env.printf("%s\t%s\t%s\tsec=%d\tdkey=%#x\n", e.XID, e.OID, e.Intent, e.Security, e.DKeyHash)
		n++
	}
	if !storage.IsNotFound(err) {
		return env.fail(err)
	}
	return 0
}
