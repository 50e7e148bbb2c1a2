package checkout

import (
	"fmt"
	"sync"
)

// StepID identifies one step of the checkout sequence.
type StepID string

const (
	StepCustomerInfo    StepID = "customer-info"
	StepShippingAddress StepID = "shipping-address"
	StepPaymentMethod   StepID = "payment-method"
	StepOrderReview     StepID = "order-review"
)

// Sequence is the fixed linear step order. No skipping, no branching.
var Sequence = []StepID{StepCustomerInfo, StepShippingAddress, StepPaymentMethod, StepOrderReview}

func indexOf(step StepID) int {
	for i, s := range Sequence {
		if s == step {
			return i
		}
	}
	return -1
}

// StepValidator gates forward transitions. Validation covers only the
// fields belonging to the step being left.
type StepValidator interface {
	ValidateStep(step StepID, form Form) (bool, []FieldError)
}

// StepMachine tracks the current step and the monotonically growing set of
// completed steps for one checkout session.
type StepMachine struct {
	mu        sync.Mutex
	current   int
	completed map[StepID]bool
	validator StepValidator
}

// NewStepMachine creates a machine positioned on the first step.
func NewStepMachine(v StepValidator) *StepMachine {
	if v == nil {
		panic("checkout: step validator cannot be nil")
	}
	return &StepMachine{completed: make(map[StepID]bool), validator: v}
}

// Current returns the step the customer is on.
func (m *StepMachine) Current() StepID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Sequence[m.current]
}

// Completed returns the completed steps in sequence order.
func (m *StepMachine) Completed() []StepID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completedLocked()
}

func (m *StepMachine) completedLocked() []StepID {
	out := make([]StepID, 0, len(m.completed))
	for _, s := range Sequence {
		if m.completed[s] {
			out = append(out, s)
		}
	}
	return out
}

// IsComplete reports whether the step has ever been completed.
func (m *StepMachine) IsComplete(step StepID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed[step]
}

// Advance validates the current step against form and, on success, marks it
// complete and moves to the next step. On validation failure the position
// is unchanged and the field errors are returned. Advancing from the last
// step only marks it complete.
func (m *StepMachine) Advance(form Form) (bool, []FieldError) {
	m.mu.Lock()
	step := Sequence[m.current]
	m.mu.Unlock()

	ok, errs := m.validator.ValidateStep(step, form)
	if !ok {
		return false, errs
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Re-adding an already-completed step is a no-op.
	m.completed[step] = true
	if m.current < len(Sequence)-1 {
		m.current++
	}
	return true, nil
}

// Retreat moves back one step. Always permitted except on the first step.
// The step being left stays marked complete.
func (m *StepMachine) Retreat() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == 0 {
		return fmt.Errorf("checkout: already on first step %s", Sequence[0])
	}
	m.current--
	return nil
}

// JumpTo moves directly to an earlier (or the current) step, as used by
// edit actions from the review step. Jumping ahead past validated steps is
// rejected.
func (m *StepMachine) JumpTo(step StepID) error {
	idx := indexOf(step)
	if idx < 0 {
		return fmt.Errorf("checkout: unknown step %q", step)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx > m.current {
		return fmt.Errorf("checkout: cannot jump ahead from %s to %s", Sequence[m.current], step)
	}
	m.current = idx
	return nil
}

// Position is the persistable part of the machine's state.
type Position struct {
	Current   StepID
	Completed []StepID
}

// Snapshot returns the machine's position for persistence.
func (m *StepMachine) Snapshot() Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Position{Current: Sequence[m.current], Completed: m.completedLocked()}
}

// Restore rehydrates a persisted position. Unknown step IDs in the
// snapshot are rejected so a corrupt blob cannot leave the machine outside
// the declared sequence.
func (m *StepMachine) Restore(p Position) error {
	idx := indexOf(p.Current)
	if idx < 0 {
		return fmt.Errorf("checkout: cannot restore unknown step %q", p.Current)
	}
	completed := make(map[StepID]bool, len(p.Completed))
	for _, s := range p.Completed {
		if indexOf(s) < 0 {
			return fmt.Errorf("checkout: cannot restore unknown completed step %q", s)
		}
		completed[s] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = idx
	m.completed = completed
	return nil
}
