package wizard

import (
	"errors"
	"fmt"
)

// ErrStepOutOfRange indicates a navigation target outside 0..7.
var ErrStepOutOfRange = errors.New("wizard: step index out of range")

// ErrStepNotReachable indicates a jump into untouched territory.
var ErrStepNotReachable = errors.New("wizard: step not reachable yet")

// CurrentStep returns the index of the step the operator is on.
func (s *Session) CurrentStep() int { return s.State.CurrentStep }

// CurrentStepKey returns the key of the current step.
func (s *Session) CurrentStepKey() StepKey { return StepAt(s.State.CurrentStep) }

// Next advances one step. Validity of the current step is advisory for
// the UI and deliberately not enforced here.
func (s *Session) Next() int {
	if s.State.CurrentStep < StepCount-1 {
		s.State.CurrentStep++
	}
	return s.State.CurrentStep
}

// Previous moves back one step.
func (s *Session) Previous() int {
	if s.State.CurrentStep > 0 {
		s.State.CurrentStep--
	}
	return s.State.CurrentStep
}

// JumpTo moves directly to a step. The operator may always revisit a
// step already touched (completed or invalid) and may advance one step
// ahead speculatively, but may not skip ahead into untouched territory.
func (s *Session) JumpTo(index int) error {
	if index < 0 || index >= StepCount {
		return fmt.Errorf("%w: %d", ErrStepOutOfRange, index)
	}
	switch {
	case index <= s.State.CurrentStep+1:
	case s.State.CompletedSteps.Has(index):
	case s.State.InvalidSteps.Has(index):
	default:
		return fmt.Errorf("%w: %d", ErrStepNotReachable, index)
	}
	s.State.CurrentStep = index
	return nil
}

// ReadyToSubmit reports whether submission is reachable: the operator
// acknowledged the review and no step currently fails its schema.
func (s *Session) ReadyToSubmit() bool {
	return s.Draft.Review.Acknowledge && len(s.State.InvalidSteps) == 0
}
