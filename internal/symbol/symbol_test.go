// SPDX-License-Identifier: MPL-2.0

package symbol

import (
	"sync"
	"testing"

	"github.com/corvidvm/corvid/internal/object"
)

func TestTable_Symbol(t *testing.T) {
	t.Parallel()

	symbolClass := object.NewClass(nil, "Symbol", nil, nil)
	created := 0
	table := New(func(name string) *object.Symbol {
		created++
		return object.NewSymbol(symbolClass, name)
	})

	a := table.Symbol("each")
	if table.Symbol("each") != a {
		t.Error("Symbol() must return the same object for the same name")
	}
	if a.Class() != symbolClass || a.Name() != "each" || a.String() != ":each" {
		t.Errorf("unexpected symbol %v of class %v", a, a.Class())
	}
	table.Symbol("map")

	if created != 2 || table.Len() != 2 {
		t.Errorf("created %d symbols, table has %d; want 2", created, table.Len())
	}
	all := table.All()
	if all[0].Name() != "each" || all[1].Name() != "map" {
		t.Errorf("All() not ordered: %v", all)
	}
	if _, ok := table.Lookup("select"); ok {
		t.Error("Lookup() must not create symbols")
	}
}

func TestTable_Concurrent(t *testing.T) {
	t.Parallel()

	table := New(func(name string) *object.Symbol { return object.NewSymbol(nil, name) })
	var wg sync.WaitGroup
	got := make([]*object.Symbol, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = table.Symbol("shared")
		}()
	}
	wg.Wait()
	for _, s := range got {
		if s != got[0] {
			t.Fatal("concurrent Symbol() calls returned different objects")
		}
	}
}
