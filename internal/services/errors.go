package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bleu-oos/payments-api/internal/ordering"
	"github.com/bleu-oos/payments-api/internal/payments"
	"github.com/bleu-oos/payments-api/internal/pos"
)

// ValidationError reports client-supplied data that fails local checks before
// any downstream call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DownstreamError reports a failed call to a collaborating service. The
// upstream status code is preserved so handlers can relay it. OrderCreated
// marks failures that happened after the order already existed upstream, where
// no rollback is attempted.
type DownstreamError struct {
	Service      string
	StatusCode   int
	Body         string
	OrderCreated bool
}

func (e *DownstreamError) Error() string {
	if e.OrderCreated {
		return fmt.Sprintf("%s: request failed with status %d after order creation", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: request failed with status %d", e.Service, e.StatusCode)
}

// orderingError normalises ordering client failures. Upstream statuses pass
// through; transport failures become 503.
func orderingError(err error) error {
	if errors.Is(err, ordering.ErrNoPendingOrder) {
		return err
	}
	var statusErr *ordering.StatusError
	if errors.As(err, &statusErr) {
		return &DownstreamError{Service: "ordering", StatusCode: statusErr.StatusCode, Body: statusErr.Body}
	}
	return &DownstreamError{Service: "ordering", StatusCode: http.StatusServiceUnavailable, Body: err.Error()}
}

// providerError normalises PSP failures the same way.
func providerError(err error) error {
	var providerErr *payments.ProviderError
	if errors.As(err, &providerErr) {
		return &DownstreamError{Service: providerErr.Provider, StatusCode: providerErr.StatusCode, Body: providerErr.Body}
	}
	return &DownstreamError{Service: "paymongo", StatusCode: http.StatusServiceUnavailable, Body: err.Error()}
}

// posError normalises POS failures. By the time the POS is called the order
// already exists upstream, so these always surface as 500 with OrderCreated set.
func posError(err error) error {
	var statusErr *pos.StatusError
	if errors.As(err, &statusErr) {
		return &DownstreamError{Service: "pos", StatusCode: http.StatusInternalServerError, Body: statusErr.Body, OrderCreated: true}
	}
	return &DownstreamError{Service: "pos", StatusCode: http.StatusInternalServerError, Body: err.Error(), OrderCreated: true}
}
