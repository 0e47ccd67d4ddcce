// SPDX-License-Identifier: MPL-2.0

package corelib

import (
	"context"
	"reflect"

	"github.com/corvidvm/corvid/internal/object"
	"github.com/corvidvm/corvid/internal/rope"
	"github.com/corvidvm/corvid/internal/thread"
)

// ClassOf returns the class of any runtime value. Go values used as
// immediates map onto their core classes.
func (l *Library) ClassOf(v any) *object.Class {
	name := ""
	switch v := v.(type) {
	case nil:
		name = "NilClass"
	case bool:
		if v {
			name = "TrueClass"
		} else {
			name = "FalseClass"
		}
	case int, int32, int64, uint64:
		name = "Integer"
	case float32, float64:
		name = "Float"
	case string, *rope.Rope:
		name = "String"
	case []any:
		name = "Array"
	case map[any]any, map[string]any:
		name = "Hash"
	case *thread.Thread:
		name = "Thread"
	case func(context.Context) error:
		name = "Proc"
	case object.Value:
		if c := v.Base().Class(); c != nil {
			return c
		}
		return l.objectClass
	default:
		if reflect.TypeOf(v).Kind() == reflect.Func {
			name = "Proc"
		} else {
			return l.objectClass
		}
	}
	c, _ := l.Class(name)
	return c
}

// MetaClass returns the class whose singleton methods apply to v: the
// class or module itself for namespaces, otherwise nil.
func (l *Library) MetaClass(v any) *object.Module {
	switch v := v.(type) {
	case *object.Class:
		return v.AsModule()
	case *object.Module:
		return v
	}
	return nil
}

// LookupMethod searches class's ancestors for an instance method.
func (l *Library) LookupMethod(class *object.Class, name string) (*object.Method, bool) {
	if class == nil {
		return nil, false
	}
	for _, m := range class.Ancestors() {
		if method, ok := m.Method(name); ok {
			return method, true
		}
	}
	return nil, false
}

// FindMethod resolves name for receiver: singleton methods of a class and
// its superclasses (or of a module) first, then instance methods of the
// receiver's class.
func (l *Library) FindMethod(receiver any, name string) (*object.Method, error) {
	switch r := receiver.(type) {
	case *object.Class:
		for k := r; k != nil; k = k.Superclass() {
			if m, ok := k.SingletonMethod(name); ok {
				return m, nil
			}
		}
	case *object.Module:
		if m, ok := r.SingletonMethod(name); ok {
			return m, nil
		}
	}

	class := l.ClassOf(receiver)
	if m, ok := l.LookupMethod(class, name); ok {
		return m, nil
	}
	receiverName := "nil"
	if class != nil {
		receiverName = "an instance of " + class.Name()
	}
	if mc := l.MetaClass(receiver); mc != nil {
		receiverName = mc.Name()
	}
	return nil, &NoMethodError{Receiver: receiverName, Name: name}
}
