// Package storage provides the persistent-memory pool for the VOS engine.
package storage

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"
)

// Undo record layout, 8-byte aligned:
//   - Bytes 0-7:   Offset of the saved range
//   - Bytes 8-11:  Length of the saved range
//   - Bytes 12-15: CRC32 of bytes 0-11 and the data
//   - Bytes 16-:   Pre-image, padded to 8 bytes
const undoRecordHeaderSize = 16

// undoRecord is one saved pre-image.
type undoRecord struct {
	off  uint64
	data []byte
}

func undoRecordSize(n int) uint64 {
	return uint64(undoRecordHeaderSize + alignUp(int64(n), 8))
}

func undoChecksum(rec []byte, data []byte) uint32 {
	c := crc32.NewIEEE()
	c.Write(rec[:12])
	c.Write(data)
	return c.Sum32()
}

// appendUndo saves the current contents of [off, off+n) at the end of the
// undo log. The record is made durable before the tail that covers it, and
// the tail before the caller overwrites the range.
func (p *Pool) appendUndo(off uint64, n int) error {
	tail := p.u64(hdrUndoTail)
	size := undoRecordSize(n)
	if tail+size > p.hdr.UndoSize {
		return errors.Wrapf(ErrUndoLogFull, "%d bytes in use, %d needed", tail, size)
	}

	pos := p.hdr.UndoStart + tail
	rec := p.data[pos : pos+size]
	binary.LittleEndian.PutUint64(rec[0:], off)
	binary.LittleEndian.PutUint32(rec[8:], uint32(n))
	data := rec[undoRecordHeaderSize : undoRecordHeaderSize+n]
	copy(data, p.data[off:off+uint64(n)])
	binary.LittleEndian.PutUint32(rec[12:], undoChecksum(rec, data))

	if p.opts.SyncOnCommit {
		if err := p.m.flush(); err != nil {
			return err
		}
	}

	p.putU64(hdrUndoTail, tail+size)
	if p.opts.SyncOnCommit {
		return p.m.flush()
	}
	return nil
}

// readUndo decodes the records covered by the current undo tail.
func (p *Pool) readUndo() ([]undoRecord, error) {
	tail := p.u64(hdrUndoTail)
	if tail > p.hdr.UndoSize {
		return nil, errors.Wrapf(ErrUndoCorrupted, "tail %d beyond undo region", tail)
	}

	var recs []undoRecord
	for pos := uint64(0); pos < tail; {
		if tail-pos < undoRecordHeaderSize {
			return nil, errors.Wrapf(ErrUndoCorrupted, "truncated record at %d", pos)
		}
		base := p.hdr.UndoStart + pos
		rec := p.data[base:]
		off := binary.LittleEndian.Uint64(rec[0:])
		n := int(binary.LittleEndian.Uint32(rec[8:]))
		size := undoRecordSize(n)
		if pos+size > tail {
			return nil, errors.Wrapf(ErrUndoCorrupted, "record at %d overruns tail", pos)
		}
		if off < hdrImmutableEnd || off+uint64(n) > p.hdr.Size {
			return nil, errors.Wrapf(ErrUndoCorrupted, "record at %d targets 0x%x", pos, off)
		}
		data := rec[undoRecordHeaderSize : undoRecordHeaderSize+n]
		if binary.LittleEndian.Uint32(rec[12:]) != undoChecksum(rec, data) {
			return nil, errors.Wrapf(ErrUndoCorrupted, "checksum mismatch at %d", pos)
		}
		recs = append(recs, undoRecord{off: off, data: data})
		pos += size
	}
	return recs, nil
}

// rollback restores every saved pre-image, newest first, then empties the
// undo log. It returns the number of records applied.
func (p *Pool) rollback() (int, error) {
	recs, err := p.readUndo()
	if err != nil {
		return 0, err
	}

	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		copy(p.data[r.off:r.off+uint64(len(r.data))], r.data)
	}

	if p.opts.SyncOnCommit {
		if err := p.m.flush(); err != nil {
			return 0, err
		}
	}
	p.putU64(hdrUndoTail, 0)
	if p.opts.SyncOnCommit {
		if err := p.m.flush(); err != nil {
			return 0, err
		}
	}
	return len(recs), nil
}

// truncateUndo discards the undo log after the transaction's writes are
// durable. Clearing the tail is the commit point.
func (p *Pool) truncateUndo() error {
	if p.opts.SyncOnCommit {
		if err := p.m.flush(); err != nil {
			return err
		}
	}
	p.putU64(hdrUndoTail, 0)
	if p.opts.SyncOnCommit {
		return p.m.flush()
	}
	return nil
}
