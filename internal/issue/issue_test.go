// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	t.Parallel()

	for _, id := range []Id{
		ConfigLoadFailedId,
		InvalidOptionId,
		HomeNotFoundId,
		ContextConstructionFailedId,
		CoreLibraryNotFoundId,
		InstrumentationServerFailedId,
		CallGraphWriteFailedId,
	} {
		got := Get(id)
		if got == nil {
			t.Fatalf("Get(%d) = nil", id)
		}
		if got.Id() != id {
			t.Errorf("Get(%d).Id() = %d", id, got.Id())
		}
		if strings.TrimSpace(string(got.MarkdownMsg())) == "" {
			t.Errorf("issue %d has an empty message", id)
		}
	}

	if Get(Id(999)) != nil {
		t.Error("unknown IDs should return nil")
	}
}

func TestValues_Ordered(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != 7 {
		t.Fatalf("Values() returned %d issues, want 7", len(values))
	}
	for i := 1; i < len(values); i++ {
		if values[i-1].Id() >= values[i].Id() {
			t.Errorf("Values() not ordered at %d", i)
		}
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	out, err := Get(HomeNotFoundId).Render("notty")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(out, "CORVID_HOME") {
		t.Errorf("rendered issue missing content:\n%s", out)
	}
}
