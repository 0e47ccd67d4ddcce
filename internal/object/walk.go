// SPDX-License-Identifier: MPL-2.0

package object

// Walk visits every value reachable from roots exactly once, in depth-first
// order. When visit returns false the value's references are not followed.
func Walk(roots []Value, visit func(Value) bool) {
	seen := make(map[*Object]struct{})
	stack := make([]Value, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		if roots[i] != nil {
			stack = append(stack, roots[i])
		}
	}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		base := v.Base()
		if _, ok := seen[base]; ok {
			continue
		}
		seen[base] = struct{}{}

		if !visit(v) {
			continue
		}
		v.references(func(ref Value) {
			if _, ok := seen[ref.Base()]; !ok {
				stack = append(stack, ref)
			}
		})
	}
}

// ShareValue marks v and everything reachable from it as shared. Already
// shared values are not descended into. Non-heap values are ignored.
func ShareValue(v any) {
	ref, ok := v.(Value)
	if !ok || ref == nil {
		return
	}
	Walk([]Value{ref}, func(val Value) bool {
		return val.Base().MarkShared()
	})
}
