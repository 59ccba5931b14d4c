// Package plan models a follow-up plan as an ordered, validated sequence of
// steps and answers "what follows step N".
package plan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/phleudt/mailscheduler/internal/types"
)

// ErrBrokenSequence marks a step list whose numbers do not form a contiguous
// 1..N sequence. A broken plan fails fast at construction rather than
// silently truncating.
var ErrBrokenSequence = errors.New("plan step numbers must be contiguous from 1")

// Engine holds one plan's steps sorted by step number.
type Engine struct {
	plan  *types.FollowUpPlan
	steps []*types.FollowUpStep
}

// New validates the step sequence and returns an engine over it. Steps may
// arrive in any order; they are sorted by step number. Step numbers must be
// unique and form exactly 1..N, and wait periods must be non-negative.
func New(p *types.FollowUpPlan, steps []*types.FollowUpStep) (*Engine, error) {
	sorted := make([]*types.FollowUpStep, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StepNumber < sorted[j].StepNumber
	})

	for i, s := range sorted {
		if s.StepNumber != i+1 {
			return nil, fmt.Errorf("step %d at position %d: %w", s.StepNumber, i+1, ErrBrokenSequence)
		}
		if s.WaitDays < 0 {
			return nil, fmt.Errorf("step %d: wait period must be non-negative, got %d", s.StepNumber, s.WaitDays)
		}
	}

	return &Engine{plan: p, steps: sorted}, nil
}

// Plan returns the plan record this engine was built from.
func (e *Engine) Plan() *types.FollowUpPlan {
	return e.plan
}

// Steps returns the validated steps in order.
func (e *Engine) Steps() []*types.FollowUpStep {
	return e.steps
}

// FollowUpCount returns the number of follow-up steps, excluding the
// conceptual "step 0" initial email.
func (e *Engine) FollowUpCount() int {
	return len(e.steps)
}

// NextStep returns the first step with a number greater than after, or nil
// when the sequence is exhausted.
func (e *Engine) NextStep(after int) *types.FollowUpStep {
	for _, s := range e.steps {
		if s.StepNumber > after {
			return s
		}
	}
	return nil
}

// Step returns the step with the exact number, or nil.
func (e *Engine) Step(number int) *types.FollowUpStep {
	if number < 1 || number > len(e.steps) {
		return nil
	}
	return e.steps[number-1]
}
