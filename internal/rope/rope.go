// SPDX-License-Identifier: MPL-2.0

// Package rope implements the content-addressed interned string table.
//
// Interning deduplicates at two levels: identical (encoding, bytes) pairs
// share one Rope, and identical byte contents share one backing array even
// across encodings.
package rope

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
)

type (
	// Rope is an immutable interned string. Callers must not modify Bytes.
	Rope struct {
		bytes    []byte
		encoding string
		hash     uint64
	}

	// Stats are the table's interning counters.
	Stats struct {
		RopesReused      int64
		ByteArraysReused int64
		BytesSaved       int64
		RopesInterned    int64
	}

	// Table is safe for concurrent use.
	Table struct {
		mu     sync.Mutex
		ropes  map[uint64][]*Rope
		arrays map[uint64][][]byte
		stats  Stats
	}
)

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		ropes:  make(map[uint64][]*Rope),
		arrays: make(map[uint64][][]byte),
	}
}

func (r *Rope) Bytes() []byte { return r.bytes }
func (r *Rope) Encoding() string { return r.encoding }
func (r *Rope) String() string { return string(r.bytes) }
func (r *Rope) Len() int { return len(r.bytes) }
func (r *Rope) Hash() uint64 { return r.hash }

// Intern returns the unique rope for (b, encoding). b is copied when a new
// backing array is needed.
func (t *Table) Intern(b []byte, encoding string) *Rope {
	contentHash := xxhash.Sum64(b)
	ropeHash := ropeKey(contentHash, encoding)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range t.ropes[ropeHash] {
		if r.encoding == encoding && bytes.Equal(r.bytes, b) {
			t.stats.RopesReused++
			return r
		}
	}

	backing := t.internArray(contentHash, b)
	r := &Rope{bytes: backing, encoding: encoding, hash: ropeHash}
	t.ropes[ropeHash] = append(t.ropes[ropeHash], r)
	t.stats.RopesInterned++
	return r
}

// InternString is Intern for Go strings.
func (t *Table) InternString(s, encoding string) *Rope {
	return t.Intern([]byte(s), encoding)
}

// internArray must be called with t.mu held.
func (t *Table) internArray(contentHash uint64, b []byte) []byte {
	for _, arr := range t.arrays[contentHash] {
		if bytes.Equal(arr, b) {
			t.stats.ByteArraysReused++
			t.stats.BytesSaved += int64(len(b))
			return arr
		}
	}
	arr := bytes.Clone(b)
	if arr == nil {
		arr = []byte{}
	}
	t.arrays[contentHash] = append(t.arrays[contentHash], arr)
	return arr
}

// Stats returns a snapshot of the counters.
func (t *Table) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Len returns the number of distinct ropes.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.stats.RopesInterned)
}

// WriteTo prints the interning statistics, one counter per line.
func (s Stats) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w,
		"Ropes re-used: %d\nRope byte arrays re-used: %d\nRope bytes saved: %d\nTotal ropes interned: %d\n",
		s.RopesReused, s.ByteArraysReused, s.BytesSaved, s.RopesInterned)
	return int64(n), err
}

func ropeKey(contentHash uint64, encoding string) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(contentHash >> (8 * i))
	}
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(encoding)
	return d.Sum64()
}
