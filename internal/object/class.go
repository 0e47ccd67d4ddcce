// SPDX-License-Identifier: MPL-2.0

package object

type (
	// Class is a module that can be instantiated and has a superclass.
	Class struct {
		Module

		superclass *Class
	}

	// Symbol is an interned name. Symbols are created only through the
	// symbol table so each name maps to exactly one Symbol.
	Symbol struct {
		Object

		name string
	}
)

// NewClass creates a class. classClass is the class of classes and may be
// nil while bootstrapping; superclass is nil only for the root class.
func NewClass(classClass *Class, name string, lexical *Module, superclass *Class) *Class {
	c := &Class{superclass: superclass}
	c.initModule(classClass, name, lexical)
	return c
}

// PatchClass sets the class of a bootstrap value allocated before its class
// existed. It must not be used after bootstrap.
func PatchClass(v Value, class *Class) {
	v.Base().setClass(class)
}

func (c *Class) Superclass() *Class { return c.superclass }

// AsModule returns the module view of c.
func (c *Class) AsModule() *Module { return &c.Module }

// Ancestors returns the method resolution order: c, its included modules,
// then the ancestors of its superclass.
func (c *Class) Ancestors() []*Module {
	out := c.Module.Ancestors()
	if c.superclass != nil {
		out = append(out, c.superclass.Ancestors()...)
	}
	return out
}

// IsSubclassOf reports whether other appears in c's superclass chain
// (including c itself).
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.superclass {
		if k == other {
			return true
		}
	}
	return false
}

func (c *Class) references(visit func(Value)) {
	c.Module.references(visit)
	if c.superclass != nil {
		visit(c.superclass)
	}
}

// NewSymbol allocates a symbol; use the symbol table instead.
func NewSymbol(class *Class, name string) *Symbol {
	return &Symbol{Object: Object{class: class}, name: name}
}

func (s *Symbol) Name() string { return s.name }

func (s *Symbol) String() string { return ":" + s.name }
