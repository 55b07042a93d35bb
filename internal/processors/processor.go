package processors

import (
	"context"

	"github.com/google/uuid"
)

// Processor is a payment backend consulted during subscription approval.
// Implementations answer whether an account has usable billing details and
// describe the form needed to collect them. Processors hold no per-request
// state and must be safe for concurrent use.
type Processor interface {
	Name() string
	HasValidBillingDetails(ctx context.Context, accountID uuid.UUID) (bool, error)
	BillingDetailsForm(ctx context.Context, accountID uuid.UUID) (*Form, error)
}

// Form describes the billing details a processor collects. The billing core
// never interprets the fields; they are rendered by the client as-is.
type Form struct {
	Processor string      `json:"processor"`
	Fields    []FormField `json:"fields"`
}

// FormField is a single input in a billing details form.
type FormField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Required bool   `json:"required"`
}
