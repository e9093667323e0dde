// Package vos provides containers of versioned objects over a VOS pool.
package vos

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/config"
	"github.com/KilimcininKorOglu/vos/internal/logging"
	"github.com/KilimcininKorOglu/vos/internal/storage"
	"github.com/KilimcininKorOglu/vos/internal/storage/btree"
	"github.com/KilimcininKorOglu/vos/internal/storage/dtx"
	"github.com/KilimcininKorOglu/vos/internal/storage/ilog"
)

// Pool root object layout:
//   - Bytes 0-7:  Container index tree root
//   - Bytes 8-15: Reserved
const poolRootSize = 16

// Pool is an open VOS pool: a storage pool plus the index of the
// containers it holds.
type Pool struct {
	store  *storage.Pool
	trees  config.TreeConfig
	logger logging.Logger
	index  *btree.Tree

	mu     sync.Mutex
	conts  map[uuid.UUID]*Container
	closed bool
}

// CreatePool creates the pool file described by cfg and initializes an
// empty container index.
func CreatePool(cfg *config.Config, logger logging.Logger) (*Pool, error) {
	opts, err := storageOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := storage.Create(cfg.Pool.Path, opts)
	if err != nil {
		return nil, err
	}
	p, err := attach(store, cfg, opts.Logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	p.logger.Info("pool created", "path", cfg.Pool.Path, "uuid", store.UUID().String())
	return p, nil
}

// OpenPool opens the pool file described by cfg. Pool geometry comes from
// the file; the size settings in cfg are ignored.
func OpenPool(cfg *config.Config, logger logging.Logger) (*Pool, error) {
	opts, err := storageOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.Pool.Path, opts)
	if err != nil {
		return nil, err
	}
	p, err := attach(store, cfg, opts.Logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	p.logger.Debug("pool opened", "path", cfg.Pool.Path)
	return p, nil
}

func storageOptions(cfg *config.Config, logger logging.Logger) (storage.Options, error) {
	if cfg == nil {
		return storage.Options{}, errors.Wrap(storage.ErrInvalidArgument, "vos: nil configuration")
	}
	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		return storage.Options{}, errors.Wrap(storage.ErrInvalidArgument, errs[0].Error())
	}
	size, err := cfg.Pool.SizeBytes()
	if err != nil {
		return storage.Options{}, err
	}
	undo, err := cfg.Pool.UndoLogSizeBytes()
	if err != nil {
		return storage.Options{}, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return storage.DefaultOptions().
		WithSize(size).
		WithUndoLogSize(undo).
		WithSyncOnCommit(cfg.Pool.SyncOnCommit).
		WithLogger(logger), nil
}

// attach finds or creates the container index under the pool root.
func attach(store *storage.Pool, cfg *config.Config, logger logging.Logger) (*Pool, error) {
	if err := ilog.Init(); err != nil {
		return nil, err
	}
	if err := dtx.Init(); err != nil {
		return nil, err
	}
	if err := registerObjectClass(); err != nil {
		return nil, err
	}

	root, err := store.Root(poolRootSize)
	if err != nil {
		return nil, err
	}
	buf, err := store.Resolve(root, poolRootSize)
	if err != nil {
		return nil, err
	}

	var index *btree.Tree
	if off := storage.Offset(binary.LittleEndian.Uint64(buf)); off.IsNull() {
		tx, err := store.Begin()
		if err != nil {
			return nil, err
		}
		index, err = createIndex(tx, root, cfg.Tree.ContainerOrder)
		if err := tx.End(err); err != nil {
			return nil, errors.Wrap(err, "vos: create container index")
		}
	} else {
		index, err = btree.OpenClass(store, off, btree.ClassUV)
		if err != nil {
			return nil, errors.Wrap(err, "vos: open container index")
		}
	}

	return &Pool{
		store:  store,
		trees:  cfg.Tree,
		logger: logger,
		index:  index,
		conts:  make(map[uuid.UUID]*Container),
	}, nil
}

func createIndex(tx *storage.Tx, root storage.Offset, order int) (*btree.Tree, error) {
	index, err := btree.Create(tx, btree.ClassUV, order)
	if err != nil {
		return nil, err
	}
	if err := tx.WriteU64(root, uint64(index.Root())); err != nil {
		return nil, err
	}
	return index, nil
}

// Close closes the pool. Containers still open are closed with it.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	for id, c := range p.conts {
		p.logger.Warn("closing pool with open container", "container", id.String(), "refs", c.refs)
		c.release()
	}
	p.conts = nil
	p.closed = true
	p.index.Close()
	return p.store.Close()
}

// Storage returns the underlying storage pool.
func (p *Pool) Storage() *storage.Pool {
	return p.store
}

// UUID returns the pool UUID.
func (p *Pool) UUID() uuid.UUID {
	return p.store.UUID()
}

// Stats returns the space usage of the pool.
func (p *Pool) Stats() (storage.PoolStats, error) {
	return p.store.Stats()
}

// Containers returns the UUIDs of all containers in key order.
func (p *Pool) Containers() ([]uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	it, err := p.index.IterPrepare()
	if err != nil {
		return nil, err
	}
	defer it.Finish()

	var ids []uuid.UUID
	err = it.Probe(btree.ProbeFirst, nil, nil)
	for err == nil {
		var key []byte
		if key, _, _, err = it.Fetch(); err != nil {
			break
		}
		id, perr := uuid.FromBytes(key)
		if perr != nil {
			return nil, errors.Wrap(ErrBadRecord, perr.Error())
		}
		ids = append(ids, id)
		err = it.Next()
	}
	if !storage.IsNotFound(err) {
		return nil, err
	}
	return ids, nil
}
