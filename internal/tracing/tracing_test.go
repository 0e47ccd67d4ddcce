// SPDX-License-Identifier: MPL-2.0

package tracing

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/corvidvm/corvid/internal/testutil"
	"github.com/corvidvm/corvid/pkg/embed"
)

func TestManager_SetTraceFunc(t *testing.T) {
	t.Parallel()

	inst := testutil.NewInstrumenter()
	m := New(log.New(io.Discard), inst)
	if !m.Available() {
		t.Fatal("Available() = false with an instrumenter")
	}

	var got []embed.Event
	m.SetTraceFunc(func(ev embed.Event) { got = append(got, ev) })
	inst.Emit(embed.Event{Kind: embed.EventCall, Method: "Kernel#puts"})
	inst.Emit(embed.Event{Kind: embed.EventLine, Source: "main.cv", Line: 3})

	if len(got) != 2 || got[0].Method != "Kernel#puts" {
		t.Errorf("trace received %v", got)
	}

	m.SetTraceFunc(func(embed.Event) {})
	if inst.Bindings() != 1 {
		t.Errorf("replacing the trace function left %d bindings", inst.Bindings())
	}

	m.Close()
	if m.Enabled() || inst.Bindings() != 0 {
		t.Error("Close() should dispose the binding")
	}
}

func TestManager_NoInstrumenter(t *testing.T) {
	t.Parallel()

	m := New(log.New(io.Discard), nil)
	m.SetTraceFunc(func(embed.Event) {})
	if m.Available() {
		t.Error("Available() = true without an instrumenter")
	}
	if !m.Enabled() {
		t.Error("trace function should still be recorded")
	}
	m.Close()
}
