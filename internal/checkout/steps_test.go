package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubValidator lets tests force gate outcomes per step.
type stubValidator struct {
	failing map[StepID]bool
}

func (s *stubValidator) ValidateStep(step StepID, _ Form) (bool, []FieldError) {
	if s.failing[step] {
		return false, []FieldError{{Field: string(step), Message: "invalid"}}
	}
	return true, nil
}

func allowAll() *stubValidator {
	return &stubValidator{failing: map[StepID]bool{}}
}

func TestStepMachine_InitialState(t *testing.T) {
	m := NewStepMachine(allowAll())
	assert.Equal(t, StepCustomerInfo, m.Current())
	assert.Empty(t, m.Completed())
}

func TestStepMachine_AdvanceFailureKeepsPosition(t *testing.T) {
	v := &stubValidator{failing: map[StepID]bool{StepCustomerInfo: true}}
	m := NewStepMachine(v)

	ok, errs := m.Advance(Form{})
	assert.False(t, ok)
	assert.NotEmpty(t, errs)
	assert.Equal(t, StepCustomerInfo, m.Current())
	assert.Empty(t, m.Completed())
}

func TestStepMachine_AdvanceThroughSequence(t *testing.T) {
	m := NewStepMachine(allowAll())

	for i := 0; i < len(Sequence)-1; i++ {
		ok, errs := m.Advance(Form{})
		require.True(t, ok)
		require.Empty(t, errs)
		assert.Equal(t, Sequence[i+1], m.Current())
	}
	assert.Equal(t, Sequence[:3], m.Completed())

	// Advancing from the last step only marks it complete.
	ok, _ := m.Advance(Form{})
	require.True(t, ok)
	assert.Equal(t, StepOrderReview, m.Current())
	assert.Equal(t, Sequence, m.Completed())
}

func TestStepMachine_RetreatKeepsCompleted(t *testing.T) {
	m := NewStepMachine(allowAll())
	ok, _ := m.Advance(Form{})
	require.True(t, ok)

	require.NoError(t, m.Retreat())
	assert.Equal(t, StepCustomerInfo, m.Current())
	// The step stays complete even when revisited.
	assert.True(t, m.IsComplete(StepCustomerInfo))
}

func TestStepMachine_RetreatOnFirstStep(t *testing.T) {
	m := NewStepMachine(allowAll())
	assert.Error(t, m.Retreat())
}

func TestStepMachine_JumpTo(t *testing.T) {
	m := NewStepMachine(allowAll())
	for i := 0; i < 3; i++ {
		ok, _ := m.Advance(Form{})
		require.True(t, ok)
	}
	require.Equal(t, StepOrderReview, m.Current())

	t.Run("backwards is permitted", func(t *testing.T) {
		require.NoError(t, m.JumpTo(StepShippingAddress))
		assert.Equal(t, StepShippingAddress, m.Current())
	})

	t.Run("ahead is rejected", func(t *testing.T) {
		assert.Error(t, m.JumpTo(StepOrderReview))
		assert.Equal(t, StepShippingAddress, m.Current())
	})

	t.Run("unknown step is rejected", func(t *testing.T) {
		assert.Error(t, m.JumpTo(StepID("gift-wrap")))
	})
}

func TestStepMachine_CompletedIsMonotonic(t *testing.T) {
	m := NewStepMachine(allowAll())

	var sizes []int
	record := func() { sizes = append(sizes, len(m.Completed())) }

	record()
	m.Advance(Form{})
	record()
	m.Advance(Form{})
	record()
	m.Retreat()
	record()
	m.Advance(Form{}) // re-completing is a no-op
	record()

	for i := 1; i < len(sizes); i++ {
		assert.GreaterOrEqual(t, sizes[i], sizes[i-1])
	}
}

func TestStepMachine_SnapshotRestore(t *testing.T) {
	m := NewStepMachine(allowAll())
	m.Advance(Form{})
	m.Advance(Form{})
	snap := m.Snapshot()

	restored := NewStepMachine(allowAll())
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, m.Current(), restored.Current())
	assert.Equal(t, m.Completed(), restored.Completed())
}

func TestStepMachine_RestoreRejectsUnknownSteps(t *testing.T) {
	m := NewStepMachine(allowAll())
	assert.Error(t, m.Restore(Position{Current: "not-a-step"}))
	assert.Error(t, m.Restore(Position{Current: StepCustomerInfo, Completed: []StepID{"bogus"}}))
}
