// Package storage provides the persistent-memory pool for the VOS engine.
package storage

import (
	"github.com/pkg/errors"
)

// recover rolls back a transaction that was running when the pool was last
// closed without committing. A pool whose undo log is empty is untouched.
func (p *Pool) recover() error {
	if p.u64(hdrUndoTail) == 0 {
		return nil
	}

	p.logger.Warn("pool was not closed cleanly, rolling back interrupted transaction",
		"undo_bytes", p.u64(hdrUndoTail),
	)

	n, err := p.rollback()
	if err != nil {
		p.logger.Error("undo replay failed", "error", err)
		return errors.Wrap(err, "recover")
	}

	p.logger.Info("undo replay complete", "records", n)
	return nil
}
