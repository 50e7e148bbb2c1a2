// Package checkout holds the in-progress checkout form, the ordered step
// machine that gates progress through it, and the per-step validation
// schemas.
package checkout

import "sync"

// CustomerInfo is the first step's data.
type CustomerInfo struct {
	IsGuest       bool   `json:"isGuest"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	CreateAccount bool   `json:"createAccount"`
}

// ShippingAddress is the second step's data.
type ShippingAddress struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// PaymentSelection is the customer's chosen method and gateway.
type PaymentSelection struct {
	Type    string `json:"type"`    // card, bank_transfer, wallet, basepay
	Gateway string `json:"gateway"` // registry identifier
}

// Form is the aggregate checkout form. Mutated only through FormStore
// setters; read by every downstream component.
type Form struct {
	CustomerInfo        CustomerInfo     `json:"customerInfo"`
	ShippingAddress     ShippingAddress  `json:"shippingAddress"`
	Payment             PaymentSelection `json:"paymentMethod"`
	SpecialInstructions string           `json:"specialInstructions,omitempty"`
	MarketingOptIn      bool             `json:"marketingOptIn"`
}

// Section names accepted by FormStore.Set.
const (
	SectionCustomerInfo    = "customerInfo"
	SectionShippingAddress = "shippingAddress"
	SectionPaymentMethod   = "paymentMethod"
	SectionInstructions    = "specialInstructions"
)

// FormStore guards the aggregate form and validates each section write
// against that section's schema before accepting it. An onChange hook, when
// set, observes every accepted write (the session mirror hangs off it).
type FormStore struct {
	mu       sync.RWMutex
	form     Form
	gate     *Gate
	onChange func(Form)
}

// NewFormStore creates a store validating writes with gate.
func NewFormStore(gate *Gate) *FormStore {
	if gate == nil {
		panic("checkout: gate cannot be nil")
	}
	return &FormStore{gate: gate}
}

// OnChange registers the hook invoked after every accepted write.
func (s *FormStore) OnChange(fn func(Form)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Form returns a copy of the current aggregate.
func (s *FormStore) Form() Form {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.form
}

// Restore replaces the aggregate verbatim, bypassing validation. Used when
// rehydrating a persisted session; the persisted data already passed the
// gate when it was first written.
func (s *FormStore) Restore(f Form) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = f
}

// SetCustomerInfo validates and writes the customer-info section.
func (s *FormStore) SetCustomerInfo(info CustomerInfo) (bool, []FieldError) {
	next := s.Form()
	next.CustomerInfo = info
	if ok, errs := s.gate.ValidateStep(StepCustomerInfo, next); !ok {
		return false, errs
	}
	s.commit(func(f *Form) { f.CustomerInfo = info })
	return true, nil
}

// SetShippingAddress validates and writes the shipping-address section.
func (s *FormStore) SetShippingAddress(addr ShippingAddress) (bool, []FieldError) {
	next := s.Form()
	next.ShippingAddress = addr
	if ok, errs := s.gate.ValidateStep(StepShippingAddress, next); !ok {
		return false, errs
	}
	s.commit(func(f *Form) { f.ShippingAddress = addr })
	return true, nil
}

// SetPaymentMethod validates and writes the payment-method section.
func (s *FormStore) SetPaymentMethod(sel PaymentSelection) (bool, []FieldError) {
	next := s.Form()
	next.Payment = sel
	if ok, errs := s.gate.ValidateStep(StepPaymentMethod, next); !ok {
		return false, errs
	}
	s.commit(func(f *Form) { f.Payment = sel })
	return true, nil
}

// SetInstructions writes the free-text instructions and marketing opt-in.
// No schema applies to either field.
func (s *FormStore) SetInstructions(instructions string, optIn bool) {
	s.commit(func(f *Form) {
		f.SpecialInstructions = instructions
		f.MarketingOptIn = optIn
	})
}

func (s *FormStore) commit(mutate func(*Form)) {
	s.mu.Lock()
	mutate(&s.form)
	snapshot := s.form
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook(snapshot)
	}
}
