package main

import (
	"github.com/dustin/go-humanize"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/KilimcininKorOglu/vos/internal/storage"
	"github.com/KilimcininKorOglu/vos/internal/vos"
)

func poolCommands(app *kingpin.Application, _ *globals) map[string]handler {
	pool := app.Command("pool", "Create and inspect pools.")

	create := pool.Command("create", "Create a pool file.")
	size := create.Flag("size", "Pool size, e.g. 64MiB. Defaults to pool.size.").String()
	undo := create.Flag("undo-size", "Undo log size. Defaults to pool.undoLogSize.").String()
	noSync := create.Flag("no-sync", "Do not flush on commit.").Bool()

	info := pool.Command("info", "Show pool geometry and space usage.")

	return map[string]handler{
		create.FullCommand(): func(env *cmdEnv) int {
			cfg, err := env.loadConfig()
			if err != nil {
				return env.fail(err)
			}
			if *size != "" {
				cfg.Pool.Size = *size
			}
			if *undo != "" {
				cfg.Pool.UndoLogSize = *undo
			}
			if *noSync {
				cfg.Pool.SyncOnCommit = false
			}

			p, err := vos.CreatePool(cfg, env.logger(cfg))
			if err != nil {
				return env.fail(err)
			}
			defer p.Close()
			env.printf("%s\n", p.UUID())
			return 0
		},
		info.FullCommand(): func(env *cmdEnv) int {
			p, err := env.openPool()
			if err != nil {
				return env.fail(err)
			}
			defer p.Close()

			st, err := p.Stats()
			if err != nil {
				return env.fail(err)
			}
			conts, err := p.Containers()
			if err != nil {
				return env.fail(err)
			}

			var free uint64
			for c, n := range st.FreeBlocks {
				free += uint64(n) * (uint64(storage.MinBlockSize) << c)
			}
			env.printf("UUID:        %s\n", st.UUID)
			env.printf("Size:        %s\n", humanize.IBytes(st.Size))
			env.printf("Undo log:    %s\n", humanize.IBytes(st.UndoLogSize))
			env.printf("Heap:        %s\n", humanize.IBytes(st.HeapSize))
			env.printf("Heap used:   %s (%s on free lists)\n", humanize.IBytes(st.HeapUsed), humanize.IBytes(free))
			env.printf("Containers:  %s\n", humanize.Comma(int64(len(conts))))
			return 0
		},
	}
}
