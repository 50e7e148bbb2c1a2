package checkout

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// FieldError is a validation failure attached to one offending field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatFieldErrors joins field errors into a single display string.
func FormatFieldErrors(errs []FieldError) string {
	if len(errs) == 0 {
		return ""
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return "Validation errors: " + strings.Join(parts, "; ")
}

const customerInfoSchema = `{
	"type": "object",
	"required": ["firstName", "lastName", "email"],
	"properties": {
		"isGuest": {"type": "boolean"},
		"firstName": {"type": "string", "minLength": 1},
		"lastName": {"type": "string", "minLength": 1},
		"email": {"type": "string", "format": "email", "minLength": 3},
		"phone": {"type": "string"},
		"createAccount": {"type": "boolean"}
	}
}`

const shippingAddressSchema = `{
	"type": "object",
	"required": ["firstName", "lastName", "address1", "city", "postalCode", "country"],
	"properties": {
		"firstName": {"type": "string", "minLength": 1},
		"lastName": {"type": "string", "minLength": 1},
		"address1": {"type": "string", "minLength": 1},
		"address2": {"type": "string"},
		"city": {"type": "string", "minLength": 1},
		"state": {"type": "string"},
		"postalCode": {"type": "string", "minLength": 1},
		"country": {"type": "string", "minLength": 2},
		"phone": {"type": "string"}
	}
}`

const paymentMethodSchema = `{
	"type": "object",
	"required": ["type", "gateway"],
	"properties": {
		"type": {"type": "string", "enum": ["card", "bank_transfer", "wallet", "basepay"]},
		"gateway": {"type": "string", "minLength": 1}
	}
}`

// Gate validates the fields belonging to one step before the machine may
// leave it. Validation is synchronous against the in-memory form; it never
// calls the network. The review step has no blocking schema.
type Gate struct {
	schemas map[StepID]*gojsonschema.Schema
}

// NewGate compiles the per-step schemas.
func NewGate() (*Gate, error) {
	sources := map[StepID]string{
		StepCustomerInfo:    customerInfoSchema,
		StepShippingAddress: shippingAddressSchema,
		StepPaymentMethod:   paymentMethodSchema,
	}
	schemas := make(map[StepID]*gojsonschema.Schema, len(sources))
	for step, src := range sources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("error compiling schema for step %s: %w", step, err)
		}
		schemas[step] = schema
	}
	return &Gate{schemas: schemas}, nil
}

// section extracts the step's own slice of the form for validation.
func section(step StepID, form Form) any {
	switch step {
	case StepCustomerInfo:
		return form.CustomerInfo
	case StepShippingAddress:
		return form.ShippingAddress
	case StepPaymentMethod:
		return form.Payment
	default:
		return nil
	}
}

// ValidateStep checks the step's fields and returns field-level errors on
// failure. Steps without a schema always pass.
func (g *Gate) ValidateStep(step StepID, form Form) (bool, []FieldError) {
	schema, ok := g.schemas[step]
	if !ok {
		return true, nil
	}

	doc := section(step, form)
	raw, err := json.Marshal(doc)
	if err != nil {
		return false, []FieldError{{Field: string(step), Message: err.Error()}}
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return false, []FieldError{{Field: string(step), Message: err.Error()}}
	}
	if result.Valid() {
		return true, nil
	}

	errs := make([]FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			}
		}
		errs = append(errs, FieldError{Field: field, Message: desc.Description()})
	}
	return false, errs
}
