package payments

import (
	"context"
	"fmt"
)

// CheckoutLineItem describes a single display line to include in a checkout session.
// Amount is the reconciled line total in centavos.
type CheckoutLineItem struct {
	Name        string
	Description string
	Quantity    int64
	Amount      int64
	Currency    string
}

// BillingDetails carries the customer contact details attached to a session.
type BillingDetails struct {
	Name  string
	Email string
	Phone string
}

// CustomerRequest captures the payload required to register a PSP customer.
type CustomerRequest struct {
	Name  string
	Email string
	Phone string
}

// CheckoutSessionRequest captures the payload required to create a checkout session.
type CheckoutSessionRequest struct {
	Description     string
	ReferenceNumber string
	SuccessURL      string
	CancelURL       string
	CustomerID      string
	Billing         *BillingDetails
	Items           []CheckoutLineItem
}

// CheckoutSession represents the PSP session returned to the client.
type CheckoutSession struct {
	ID          string
	Provider    string
	CheckoutURL string
	Raw         map[string]any
}

// Provider defines the contract for PSP adapters to implement.
type Provider interface {
	// CreateCustomer registers the customer with the PSP and returns its id.
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	// CreateCheckoutSession opens a hosted checkout session for the given line items.
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
}

// ProviderError carries a non-2xx PSP response so callers can relay the
// upstream status and body.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: request failed with status %d", e.Provider, e.StatusCode)
}
