// SPDX-License-Identifier: MPL-2.0

package rope

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestTable_Intern(t *testing.T) {
	t.Parallel()

	table := NewTable()
	a := table.InternString("hello", "UTF-8")
	b := table.Intern([]byte("hello"), "UTF-8")
	if a != b {
		t.Error("identical content and encoding should intern to the same rope")
	}

	c := table.InternString("hello", "US-ASCII")
	if c == a {
		t.Error("a different encoding must yield a different rope")
	}
	if &c.Bytes()[0] != &a.Bytes()[0] {
		t.Error("ropes with identical bytes should share the backing array")
	}

	stats := table.Stats()
	want := Stats{RopesReused: 1, ByteArraysReused: 1, BytesSaved: 5, RopesInterned: 2}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
}

func TestTable_InternCopiesInput(t *testing.T) {
	t.Parallel()

	table := NewTable()
	buf := []byte("mutable")
	r := table.Intern(buf, "UTF-8")
	buf[0] = 'M'
	if r.String() != "mutable" {
		t.Errorf("rope changed with its input: %q", r.String())
	}
}

func TestTable_EmptyRope(t *testing.T) {
	t.Parallel()

	table := NewTable()
	r := table.Intern(nil, "UTF-8")
	if r.Len() != 0 || r.Bytes() == nil {
		t.Errorf("empty rope = %q (nil=%v)", r.String(), r.Bytes() == nil)
	}
	if table.Intern([]byte{}, "UTF-8") != r {
		t.Error("nil and empty input should intern to the same rope")
	}
}

func TestTable_Concurrent(t *testing.T) {
	t.Parallel()

	table := NewTable()
	var wg sync.WaitGroup
	results := make([]*Rope, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = table.InternString("shared", "UTF-8")
		}()
	}
	wg.Wait()

	for _, r := range results {
		if r != results[0] {
			t.Fatal("concurrent interning produced distinct ropes")
		}
	}
	if got := table.Stats().RopesInterned; got != 1 {
		t.Errorf("RopesInterned = %d, want 1", got)
	}
}

func TestStats_WriteTo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := Stats{RopesReused: 3, ByteArraysReused: 2, BytesSaved: 40, RopesInterned: 9}
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"Ropes re-used: 3",
		"Rope byte arrays re-used: 2",
		"Rope bytes saved: 40",
		"Total ropes interned: 9",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
