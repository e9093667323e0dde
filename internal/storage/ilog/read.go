// Package ilog implements the incarnation log of the VOS pool.
package ilog

import (
	"math"

	"github.com/KilimcininKorOglu/vos/internal/storage"
	"github.com/KilimcininKorOglu/vos/internal/storage/btree"
)

// Entries returns every event of the log ordered by epoch, then by DTX
// offset.
func (h *Handle) Entries() ([]Entry, error) {
	r, err := h.load()
	if err != nil {
		return nil, err
	}

	switch r.State() {
	case StateEmpty:
		return nil, nil
	case StateInline:
		return []Entry{r.Inline()}, nil
	}

	tree, err := btree.OpenClass(h.pool, r.EntryRef, btree.ClassILog)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	it, err := tree.IterPrepare()
	if err != nil {
		return nil, err
	}
	defer it.Finish()

	var entries []Entry
	for err = it.Probe(btree.ProbeFirst, nil, nil); err == nil; err = it.Next() {
		key, val, _, err := it.Fetch()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entryFromRecord(key, val))
	}
	if !storage.IsNotFound(err) {
		return nil, err
	}
	return entries, nil
}

// Latest returns the event with the greatest epoch not after epoch. When
// several events share that epoch a punch wins. The boolean is false if no
// event qualifies.
func (h *Handle) Latest(epoch uint64) (Entry, bool, error) {
	r, err := h.load()
	if err != nil {
		return Entry{}, false, err
	}

	switch r.State() {
	case StateEmpty:
		return Entry{}, false, nil
	case StateInline:
		if r.Timestamp > epoch {
			return Entry{}, false, nil
		}
		return r.Inline(), true, nil
	}

	tree, err := btree.OpenClass(h.pool, r.EntryRef, btree.ClassILog)
	if err != nil {
		return Entry{}, false, err
	}
	defer tree.Close()

	it, err := tree.IterPrepare()
	if err != nil {
		return Entry{}, false, err
	}
	defer it.Finish()

	err = it.Probe(btree.ProbeLE, encodeKey(epoch, storage.Offset(math.MaxUint64)), nil)
	if storage.IsNotFound(err) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	key, val, _, err := it.Fetch()
	if err != nil {
		return Entry{}, false, err
	}
	latest := entryFromRecord(key, val)

	for !latest.Punch {
		if err = it.Prev(); err != nil {
			break
		}
		key, val, _, err = it.Fetch()
		if err != nil {
			return Entry{}, false, err
		}
		e := entryFromRecord(key, val)
		if e.Epoch != latest.Epoch {
			break
		}
		if e.Punch {
			latest = e
		}
	}
	if err != nil && !storage.IsNotFound(err) {
		return Entry{}, false, err
	}
	return latest, true, nil
}

// Visible reports whether the key owning the log exists at epoch: the
// latest event not after epoch exists and is not a punch.
func (h *Handle) Visible(epoch uint64) (bool, error) {
	e, ok, err := h.Latest(epoch)
	if err != nil || !ok {
		return false, err
	}
	return !e.Punch, nil
}

// State returns the current representation of the log.
func (h *Handle) State() (State, error) {
	r, err := h.load()
	if err != nil {
		return StateEmpty, err
	}
	return r.State(), nil
}
