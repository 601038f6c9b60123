// Package saga runs multi-step write workflows that cannot rely on a multi-document
// transaction. Each step has a forward action and an optional compensating action; when a
// forward action fails, the compensations of the completed steps run in reverse order.
package saga

import (
	"context"
	"errors"
	"fmt"
)

var errEmptyStepName = errors.New("saga: step name required")

// Action is a forward or compensating unit of work.
type Action func(ctx context.Context) error

// Step pairs a forward action with the action that undoes it.
type Step struct {
	Name       string
	Forward    Action
	Compensate Action
}

// CompensationFailure describes a compensating action that could not be applied.
type CompensationFailure struct {
	Step string
	Err  error
}

// FailurePolicy is invoked once for every failed compensation. Compensations are never
// retried; the policy decides how the leak is reported.
type FailurePolicy func(ctx context.Context, failure CompensationFailure)

// StepError reports the forward step that failed. It unwraps to the step's error so
// callers can match domain errors directly.
type StepError struct {
	Step                 string
	Err                  error
	CompensationFailures []CompensationFailure
}

func (e *StepError) Error() string {
	return fmt.Sprintf("saga step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Saga is an ordered list of steps. A Saga is not safe for concurrent Run calls; build one
// per invocation.
type Saga struct {
	steps    []Step
	onFailed FailurePolicy
}

// Option configures a Saga.
type Option func(*Saga)

// WithFailurePolicy sets the policy applied to failed compensations.
func WithFailurePolicy(policy FailurePolicy) Option {
	return func(s *Saga) {
		s.onFailed = policy
	}
}

// New constructs an empty saga.
func New(options ...Option) *Saga {
	s := &Saga{steps: make([]Step, 0, 2)}
	for _, option := range options {
		option(s)
	}
	return s
}

// AddStep appends a step. A nil compensation marks the step as not reversible.
func (s *Saga) AddStep(name string, forward Action, compensate Action) *Saga {
	s.steps = append(s.steps, Step{Name: name, Forward: forward, Compensate: compensate})
	return s
}

// Run executes the steps in order. It returns nil when every step succeeds, otherwise a
// *StepError for the first failing step after compensations have run.
func (s *Saga) Run(ctx context.Context) error {
	completed := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		if step.Name == "" {
			return errEmptyStepName
		}
		if step.Forward == nil {
			return fmt.Errorf("saga: step %s has no forward action", step.Name)
		}
		if err := step.Forward(ctx); err != nil {
			failures := s.compensate(ctx, completed)
			return &StepError{Step: step.Name, Err: err, CompensationFailures: failures}
		}
		completed = append(completed, step)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, completed []Step) []CompensationFailure {
	var failures []CompensationFailure
	for index := len(completed) - 1; index >= 0; index-- {
		step := completed[index]
		if step.Compensate == nil {
			continue
		}
		// Compensation must run even when the request context is already cancelled.
		if err := step.Compensate(context.WithoutCancel(ctx)); err != nil {
			failure := CompensationFailure{Step: step.Name, Err: err}
			failures = append(failures, failure)
			if s.onFailed != nil {
				s.onFailed(ctx, failure)
			}
		}
	}
	return failures
}
