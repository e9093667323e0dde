package ilog

import (
	"testing"

	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// BenchmarkUpsertInline benchmarks the compaction path, which never leaves
// the inline descriptor.
func BenchmarkUpsertInline(b *testing.B) {
	h := newLog(b, newTestPool(b))
	if err := h.Upsert(1, 1, dtxA, false); err != nil {
		b.Fatalf("Failed to seed log: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = h.Upsert(1, uint64(i+2), dtxA, false)
	}
}

// BenchmarkUpsertTree benchmarks upserts into a log already promoted to a
// tree.
func BenchmarkUpsertTree(b *testing.B) {
	h := newLog(b, newTestPool(b))
	if err := h.Upsert(1, 1, dtxA, false); err != nil {
		b.Fatalf("Failed to seed log: %v", err)
	}
	if err := h.Upsert(1, 2, dtxA, true); err != nil {
		b.Fatalf("Failed to promote log: %v", err)
	}

	const distinct = 4096
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		epoch := uint64(i%distinct) + 3
		_ = h.Upsert(1, epoch, storage.Offset(epoch<<4), i%3 == 0)
	}
}

// BenchmarkVisible benchmarks visibility checks against a tree-backed log.
func BenchmarkVisible(b *testing.B) {
	h := newLog(b, newTestPool(b))
	const events = 1000
	for i := 1; i <= events; i++ {
		if err := h.Upsert(1, uint64(i), dtxA, i%2 == 0); err != nil {
			b.Fatalf("Failed to upsert: %v", err)
		}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = h.Visible(uint64(i%events) + 1)
	}
}
