// SPDX-License-Identifier: MPL-2.0

package object

import (
	"context"
	"fmt"

	"github.com/corvidvm/corvid/internal/primitive"
)

// Method is an entry in a module's method table.
type Method struct {
	Name  string
	Owner *Module
	// Builtin marks methods installed by the core library rather than guest code.
	Builtin bool
	Fn      primitive.Func
}

// Call invokes the method on self.
func (m *Method) Call(ctx context.Context, self any, args ...any) (any, error) {
	if m.Fn == nil {
		return nil, fmt.Errorf("method %s#%s has no implementation", m.ownerName(), m.Name)
	}
	return m.Fn(ctx, self, args...)
}

func (m *Method) ownerName() string {
	if m.Owner == nil {
		return "?"
	}
	return m.Owner.Name()
}
