// SPDX-License-Identifier: MPL-2.0

// Package callgraph records caller/callee relationships observed during
// execution and serializes the resolved graph.
package callgraph

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ErrResolved is returned when recording into a graph that was already resolved.
var ErrResolved = errors.New("call graph already resolved")

type (
	// Site is a call site: a source location inside a calling method.
	Site struct {
		Source string
		Line   int
	}

	// Graph accumulates calls. It is safe for concurrent use.
	Graph struct {
		mu       sync.Mutex
		order    []string
		methods  map[string]struct{}
		calls    map[callKey]uint64
		resolved *Resolved
	}

	callKey struct {
		caller string
		site   Site
		callee string
	}

	// Method is one node of a resolved graph.
	Method struct {
		Name    string
		Callers []string
		Callees []string
	}

	// CallSite is a resolved site together with every callee observed there.
	CallSite struct {
		Caller  string
		Site    Site
		Callees []string
		Count   uint64
	}

	// Resolved is the frozen graph.
	Resolved struct {
		Methods   []Method
		CallSites []CallSite
		Edges     int
	}
)

func New() *Graph {
	return &Graph{methods: make(map[string]struct{}), calls: make(map[callKey]uint64)}
}

func (s Site) String() string { return fmt.Sprintf("%s:%d", s.Source, s.Line) }

func (g *Graph) addMethodLocked(name string) {
	if _, ok := g.methods[name]; !ok {
		g.methods[name] = struct{}{}
		g.order = append(g.order, name)
	}
}

// RecordCall records that caller invoked callee at site.
func (g *Graph) RecordCall(caller, callee string, site Site) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resolved != nil {
		return ErrResolved
	}
	g.addMethodLocked(caller)
	g.addMethodLocked(callee)
	g.calls[callKey{caller: caller, site: site, callee: callee}]++
	return nil
}

// Resolve freezes the graph. Subsequent calls return the same result.
func (g *Graph) Resolve() *Resolved {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resolved != nil {
		return g.resolved
	}

	callers := make(map[string]map[string]struct{})
	callees := make(map[string]map[string]struct{})
	sites := make(map[string]*CallSite)
	var siteKeys []string

	keys := make([]callKey, 0, len(g.calls))
	for k := range g.calls {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.caller != b.caller {
			return a.caller < b.caller
		}
		if a.site != b.site {
			if a.site.Source != b.site.Source {
				return a.site.Source < b.site.Source
			}
			return a.site.Line < b.site.Line
		}
		return a.callee < b.callee
	})

	edges := 0
	for _, k := range keys {
		if addTo(callees, k.caller, k.callee) {
			edges++
		}
		addTo(callers, k.callee, k.caller)

		id := k.caller + "@" + k.site.String()
		cs, ok := sites[id]
		if !ok {
			cs = &CallSite{Caller: k.caller, Site: k.site}
			sites[id] = cs
			siteKeys = append(siteKeys, id)
		}
		cs.Callees = append(cs.Callees, k.callee)
		cs.Count += g.calls[k]
	}

	r := &Resolved{Edges: edges}
	for _, name := range g.order {
		r.Methods = append(r.Methods, Method{
			Name:    name,
			Callers: sortedKeys(callers[name]),
			Callees: sortedKeys(callees[name]),
		})
	}
	for _, id := range siteKeys {
		r.CallSites = append(r.CallSites, *sites[id])
	}
	g.resolved = r
	return r
}

// IsResolved reports whether Resolve has been called.
func (g *Graph) IsResolved() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolved != nil
}

func addTo(m map[string]map[string]struct{}, key, v string) bool {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	if _, dup := set[v]; dup {
		return false
	}
	set[v] = struct{}{}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SimpleWriter writes a resolved graph as line-based text:
//
//	graph methods=<n> callsites=<m> edges=<k>
//	method <name> callers=<a,b> callees=<c,d>
//	callsite <caller> <source:line> count=<n> callees=<c,d>
type SimpleWriter struct {
	w io.Writer
}

func NewSimpleWriter(w io.Writer) *SimpleWriter { return &SimpleWriter{w: w} }

func (sw *SimpleWriter) Write(r *Resolved) error {
	if _, err := fmt.Fprintf(sw.w, "graph methods=%d callsites=%d edges=%d\n", len(r.Methods), len(r.CallSites), r.Edges); err != nil {
		return err
	}
	for _, m := range r.Methods {
		if _, err := fmt.Fprintf(sw.w, "method %s callers=%s callees=%s\n", m.Name, join(m.Callers), join(m.Callees)); err != nil {
			return err
		}
	}
	for _, cs := range r.CallSites {
		if _, err := fmt.Fprintf(sw.w, "callsite %s %s count=%d callees=%s\n", cs.Caller, cs.Site, cs.Count, join(cs.Callees)); err != nil {
			return err
		}
	}
	return nil
}

func join(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += "," + n
	}
	return out
}
