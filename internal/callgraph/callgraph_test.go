// SPDX-License-Identifier: MPL-2.0

package callgraph

import (
	"errors"
	"strings"
	"testing"
)

func TestGraph_Resolve(t *testing.T) {
	t.Parallel()

	g := New()
	site := Site{Source: "main.cv", Line: 3}
	calls := []struct{ caller, callee string }{
		{"main", "Kernel#puts"},
		{"main", "Kernel#puts"},
		{"main", "String#encoding"},
		{"helper", "Kernel#puts"},
	}
	for _, c := range calls {
		if err := g.RecordCall(c.caller, c.callee, site); err != nil {
			t.Fatal(err)
		}
	}

	r := g.Resolve()
	if len(r.Methods) != 4 {
		t.Errorf("methods = %d, want 4", len(r.Methods))
	}
	if r.Edges != 3 {
		t.Errorf("edges = %d, want 3", r.Edges)
	}
	if len(r.CallSites) != 2 {
		t.Errorf("callsites = %d, want 2", len(r.CallSites))
	}
	if r.Methods[1].Name != "Kernel#puts" || strings.Join(r.Methods[1].Callers, ",") != "helper,main" {
		t.Errorf("Kernel#puts = %+v", r.Methods[1])
	}
	if g.Resolve() != r {
		t.Error("second Resolve() returned a different result")
	}
	if err := g.RecordCall("x", "y", site); !errors.Is(err, ErrResolved) {
		t.Errorf("RecordCall after Resolve error = %v", err)
	}
}

func TestSimpleWriter_Header(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		record func(*Graph)
		header string
	}{
		{"empty", func(*Graph) {}, "graph methods=0 callsites=0 edges=0"},
		{"one call", func(g *Graph) { _ = g.RecordCall("a", "b", Site{Source: "x.cv", Line: 1}) }, "graph methods=2 callsites=1 edges=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New()
			tt.record(g)
			var out strings.Builder
			if err := NewSimpleWriter(&out).Write(g.Resolve()); err != nil {
				t.Fatal(err)
			}
			first, _, _ := strings.Cut(out.String(), "\n")
			if first != tt.header {
				t.Errorf("header = %q, want %q", first, tt.header)
			}
		})
	}
}
