package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFormStore(t *testing.T) *FormStore {
	t.Helper()
	gate, err := NewGate()
	require.NoError(t, err)
	return NewFormStore(gate)
}

func TestFormStore_RejectsInvalidSection(t *testing.T) {
	store := newTestFormStore(t)

	ok, errs := store.SetCustomerInfo(CustomerInfo{FirstName: "Ada"})
	assert.False(t, ok)
	assert.NotEmpty(t, errs)
	// The rejected write left the form untouched.
	assert.Empty(t, store.Form().CustomerInfo.FirstName)
}

func TestFormStore_AcceptsValidSectionAndNotifies(t *testing.T) {
	store := newTestFormStore(t)

	var notified int
	store.OnChange(func(Form) { notified++ })

	info := validForm().CustomerInfo
	ok, errs := store.SetCustomerInfo(info)
	require.True(t, ok, "unexpected errors: %v", errs)
	assert.Equal(t, info, store.Form().CustomerInfo)
	assert.Equal(t, 1, notified)

	ok, _ = store.SetShippingAddress(validForm().ShippingAddress)
	require.True(t, ok)
	ok, _ = store.SetPaymentMethod(validForm().Payment)
	require.True(t, ok)
	assert.Equal(t, 3, notified)
}

func TestFormStore_InstructionsSkipValidation(t *testing.T) {
	store := newTestFormStore(t)

	var notified int
	store.OnChange(func(Form) { notified++ })

	store.SetInstructions("leave at the door", true)
	form := store.Form()
	assert.Equal(t, "leave at the door", form.SpecialInstructions)
	assert.True(t, form.MarketingOptIn)
	assert.Equal(t, 1, notified)
}

func TestFormStore_RestoreBypassesValidation(t *testing.T) {
	store := newTestFormStore(t)

	// Restore accepts whatever was persisted, even a partial form.
	store.Restore(Form{CustomerInfo: CustomerInfo{FirstName: "Ada"}})
	assert.Equal(t, "Ada", store.Form().CustomerInfo.FirstName)
}
