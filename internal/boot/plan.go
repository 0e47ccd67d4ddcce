// SPDX-License-Identifier: MPL-2.0

// Package boot orders and runs the stages of runtime construction. Each
// stage names the stages it must follow; the plan runs them in a
// topological order that is deterministic for a given sequence of Add calls.
package boot

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateStage is returned when two stages share a name.
	ErrDuplicateStage = errors.New("duplicate stage")
	// ErrUnknownStage is the sentinel behind UnknownStageError.
	ErrUnknownStage = errors.New("unknown stage")
)

type (
	// Stage is one step of construction.
	Stage struct {
		Name string
		// After lists stages that must complete before this one starts.
		After []string
		Run   func(ctx context.Context) error
	}

	// Observer is notified before each stage runs; an error aborts the plan
	// as if the stage itself had failed.
	Observer func(ctx context.Context, stage string) error

	// Plan is a set of stages. It is not safe for concurrent use.
	Plan struct {
		stages []Stage
		index  map[string]int
	}

	// CycleError reports stages whose ordering constraints form a cycle.
	CycleError struct {
		Stages []string
	}

	// UnknownStageError reports an ordering constraint naming a stage that
	// was never added.
	UnknownStageError struct {
		Stage string
		After string
	}

	// StageError wraps the failure of one stage.
	StageError struct {
		Stage string
		Err   error
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("stage ordering cycle: %s", strings.Join(e.Stages, " -> "))
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("stage %q runs after unknown stage %q", e.Stage, e.After)
}

func (e *UnknownStageError) Unwrap() error { return ErrUnknownStage }

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func NewPlan() *Plan {
	return &Plan{index: make(map[string]int)}
}

// Add appends a stage.
func (p *Plan) Add(s Stage) error {
	if _, ok := p.index[s.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStage, s.Name)
	}
	p.index[s.Name] = len(p.stages)
	p.stages = append(p.stages, s)
	return nil
}

// MustAdd is Add for statically known plans.
func (p *Plan) MustAdd(stages ...Stage) *Plan {
	for _, s := range stages {
		if err := p.Add(s); err != nil {
			panic(err)
		}
	}
	return p
}

// Order returns the stage names in execution order using Kahn's algorithm.
// Stages that become ready at the same time keep their insertion order.
func (p *Plan) Order() ([]string, error) {
	if len(p.stages) == 0 {
		return nil, nil
	}

	inDegree := make([]int, len(p.stages))
	dependents := make([][]int, len(p.stages))
	for i, s := range p.stages {
		for _, after := range s.After {
			j, ok := p.index[after]
			if !ok {
				return nil, &UnknownStageError{Stage: s.Name, After: after}
			}
			dependents[j] = append(dependents[j], i)
			inDegree[i]++
		}
	}

	ready := make([]int, 0, len(p.stages))
	for i := range p.stages {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(p.stages))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, p.stages[i].Name)
		for _, d := range dependents[i] {
			inDegree[d]--
			if inDegree[d] == 0 {
				ready = insertSorted(ready, d)
			}
		}
	}

	if len(order) != len(p.stages) {
		var cycle []string
		for i, s := range p.stages {
			if inDegree[i] > 0 {
				cycle = append(cycle, s.Name)
			}
		}
		return nil, &CycleError{Stages: cycle}
	}
	return order, nil
}

// insertSorted keeps the ready queue in insertion order of the stages.
func insertSorted(queue []int, v int) []int {
	i := len(queue)
	for i > 0 && queue[i-1] > v {
		i--
	}
	queue = append(queue, 0)
	copy(queue[i+1:], queue[i:])
	queue[i] = v
	return queue
}

// Run executes the stages in order and stops at the first failure, which
// is returned as a *StageError. Stages after the failing one never run.
func (p *Plan) Run(ctx context.Context, observe Observer) error {
	order, err := p.Order()
	if err != nil {
		return err
	}
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: name, Err: err}
		}
		if observe != nil {
			if err := observe(ctx, name); err != nil {
				return &StageError{Stage: name, Err: err}
			}
		}
		s := p.stages[p.index[name]]
		if s.Run == nil {
			continue
		}
		if err := s.Run(ctx); err != nil {
			return &StageError{Stage: name, Err: err}
		}
	}
	return nil
}
