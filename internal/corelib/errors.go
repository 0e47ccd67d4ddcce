// SPDX-License-Identifier: MPL-2.0

package corelib

import (
	"errors"
	"fmt"
)

var (
	// ErrStageOrder is the sentinel behind StageOrderError.
	ErrStageOrder = errors.New("core library step out of order")
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("core library already initialized")
	// ErrNoMethod is the sentinel behind NoMethodError.
	ErrNoMethod = errors.New("undefined method")
	// ErrThreadsRequired is returned by AddCoreMethods without thread services.
	ErrThreadsRequired = errors.New("built-in methods require the thread manager")
	// ErrStringTablesRequired is returned by AddCoreMethods without the rope
	// and symbol tables.
	ErrStringTablesRequired = errors.New("built-in methods require the rope and symbol tables")
	// ErrInvalidArgument is returned by built-ins given arguments of the wrong type.
	ErrInvalidArgument = errors.New("invalid argument")
)

type (
	// StageOrderError reports a step invoked before the step it depends on.
	StageOrderError struct {
		Step     string
		Requires string
	}

	// NoMethodError reports a failed method lookup.
	NoMethodError struct {
		Receiver string
		Name     string
	}
)

func (e *StageOrderError) Error() string {
	return fmt.Sprintf("core library: %s requires %s to run first", e.Step, e.Requires)
}

func (e *StageOrderError) Unwrap() error { return ErrStageOrder }

func (e *NoMethodError) Error() string {
	return fmt.Sprintf("undefined method '%s' for %s", e.Name, e.Receiver)
}

func (e *NoMethodError) Unwrap() error { return ErrNoMethod }
