package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bleu-oos/payments-api/internal/domain"
	"github.com/bleu-oos/payments-api/internal/payments"
	"github.com/bleu-oos/payments-api/internal/platform/auth"
)

type stubProvider struct {
	createCustomer        func(ctx context.Context, req payments.CustomerRequest) (string, error)
	createCheckoutSession func(ctx context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)

	customerCalls int
	sessionCalls  int
	lastSession   payments.CheckoutSessionRequest
}

func (s *stubProvider) CreateCustomer(ctx context.Context, req payments.CustomerRequest) (string, error) {
	s.customerCalls++
	if s.createCustomer != nil {
		return s.createCustomer(ctx, req)
	}
	return "cus_1", nil
}

func (s *stubProvider) CreateCheckoutSession(ctx context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	s.sessionCalls++
	s.lastSession = req
	if s.createCheckoutSession != nil {
		return s.createCheckoutSession(ctx, req)
	}
	return payments.CheckoutSession{ID: "cs_1", Provider: "paymongo", CheckoutURL: "https://checkout.example/cs_1"}, nil
}

func newCheckoutService(t *testing.T, provider payments.Provider) *CheckoutService {
	t.Helper()
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Engine:   NewReconcileEngine(ReconcileEngineDeps{}),
		Provider: provider,
	})
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}
	return svc
}

func profileIdentity() *auth.Identity {
	return auth.NewIdentity("jdoe", "user", "tok", func(ctx context.Context, token string) (auth.Profile, error) {
		return auth.Profile{
			FirstName:   "Juan",
			LastName:    "Dela Cruz",
			Email:       "juan@example.com",
			PhoneNumber: "0917",
		}, nil
	})
}

func TestCreateCheckoutSessionHappyPath(t *testing.T) {
	provider := &stubProvider{}
	svc := newCheckoutService(t, provider)

	result, err := svc.CreateCheckoutSession(context.Background(), profileIdentity(), CheckoutCommand{
		ReferenceNumber: "ORD-7",
		RedirectURL:     "https://shop.example.com/orders",
		Items: []domain.CartLine{
			{Name: "Ramen", Quantity: 2, UnitPrice: decimal.NewFromInt(290)},
		},
		DeliveryFee: decimal.NewFromInt(50),
		Discount:    decimal.NewFromInt(25),
	})
	if err != nil {
		t.Fatalf("create checkout session: %v", err)
	}

	if result.CheckoutURL != "https://checkout.example/cs_1" {
		t.Fatalf("unexpected checkout url: %s", result.CheckoutURL)
	}
	if result.ReferenceNumber != "ORD-7" {
		t.Fatalf("unexpected reference: %s", result.ReferenceNumber)
	}
	if provider.customerCalls != 1 {
		t.Fatalf("expected one customer call, got %d", provider.customerCalls)
	}

	req := provider.lastSession
	if req.CustomerID != "cus_1" {
		t.Fatalf("expected customer id forwarded, got %s", req.CustomerID)
	}
	if req.SuccessURL != "https://shop.example.com/orders?status=success" {
		t.Fatalf("unexpected success url: %s", req.SuccessURL)
	}
	if req.CancelURL != "https://shop.example.com/orders?status=cancel" {
		t.Fatalf("unexpected cancel url: %s", req.CancelURL)
	}
	if req.Description != "OOS Order - ORD-7 (Discount: ₱25.00)" {
		t.Fatalf("unexpected description: %s", req.Description)
	}
	if req.Billing == nil || req.Billing.Name != "Juan Dela Cruz" {
		t.Fatalf("unexpected billing: %+v", req.Billing)
	}
	// Cart line plus delivery fee line.
	if len(req.Items) != 2 {
		t.Fatalf("unexpected item count: %d", len(req.Items))
	}
	if req.Items[1].Name != "Delivery Fee" {
		t.Fatalf("unexpected fee line: %s", req.Items[1].Name)
	}
}

func TestCreateCheckoutSessionProfileFailureIsBestEffort(t *testing.T) {
	provider := &stubProvider{}
	svc := newCheckoutService(t, provider)

	identity := auth.NewIdentity("jdoe", "user", "tok", func(ctx context.Context, token string) (auth.Profile, error) {
		return auth.Profile{}, errors.New("identity service down")
	})

	result, err := svc.CreateCheckoutSession(context.Background(), identity, CheckoutCommand{
		ReferenceNumber: "ORD-8",
		RedirectURL:     "https://shop.example.com/orders",
		Items: []domain.CartLine{
			{Name: "Ramen", Quantity: 1, UnitPrice: decimal.NewFromInt(290)},
		},
	})
	if err != nil {
		t.Fatalf("create checkout session: %v", err)
	}
	if result.CheckoutURL == "" {
		t.Fatalf("expected session despite profile failure")
	}
	if provider.customerCalls != 0 {
		t.Fatalf("expected no customer call, got %d", provider.customerCalls)
	}
	if provider.lastSession.Billing.Name != "User" {
		t.Fatalf("expected fallback billing name, got %s", provider.lastSession.Billing.Name)
	}
}

func TestCreateCheckoutSessionCustomerFailureIsBestEffort(t *testing.T) {
	provider := &stubProvider{
		createCustomer: func(ctx context.Context, req payments.CustomerRequest) (string, error) {
			return "", &payments.ProviderError{Provider: "paymongo", StatusCode: http.StatusBadRequest}
		},
	}
	svc := newCheckoutService(t, provider)

	_, err := svc.CreateCheckoutSession(context.Background(), profileIdentity(), CheckoutCommand{
		ReferenceNumber: "ORD-9",
		RedirectURL:     "https://shop.example.com/orders",
		Items: []domain.CartLine{
			{Name: "Ramen", Quantity: 1, UnitPrice: decimal.NewFromInt(290)},
		},
	})
	if err != nil {
		t.Fatalf("create checkout session: %v", err)
	}
	if provider.lastSession.CustomerID != "" {
		t.Fatalf("expected no customer id, got %s", provider.lastSession.CustomerID)
	}
}

func TestCreateCheckoutSessionValidatesBeforeProviderCalls(t *testing.T) {
	provider := &stubProvider{}
	svc := newCheckoutService(t, provider)

	_, err := svc.CreateCheckoutSession(context.Background(), profileIdentity(), CheckoutCommand{
		ReferenceNumber: "ORD-10",
		RedirectURL:     "https://shop.example.com/orders",
		Items: []domain.CartLine{
			{Name: "Ramen", Quantity: 1, UnitPrice: decimal.NewFromInt(100)},
		},
		Discount: decimal.NewFromInt(200),
	})

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if provider.customerCalls != 0 || provider.sessionCalls != 0 {
		t.Fatalf("expected no provider calls, got %d customer / %d session", provider.customerCalls, provider.sessionCalls)
	}
}

func TestCreateCheckoutSessionMapsProviderError(t *testing.T) {
	provider := &stubProvider{
		createCheckoutSession: func(ctx context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
			return payments.CheckoutSession{}, &payments.ProviderError{Provider: "paymongo", StatusCode: http.StatusPaymentRequired, Body: "below minimum"}
		},
	}
	svc := newCheckoutService(t, provider)

	_, err := svc.CreateCheckoutSession(context.Background(), profileIdentity(), CheckoutCommand{
		ReferenceNumber: "ORD-11",
		RedirectURL:     "https://shop.example.com/orders",
		Items: []domain.CartLine{
			{Name: "Ramen", Quantity: 1, UnitPrice: decimal.NewFromInt(290)},
		},
	})

	var downstreamErr *DownstreamError
	if !errors.As(err, &downstreamErr) {
		t.Fatalf("expected DownstreamError, got %v", err)
	}
	if downstreamErr.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("unexpected status: %d", downstreamErr.StatusCode)
	}
	if downstreamErr.Service != "paymongo" {
		t.Fatalf("unexpected service: %s", downstreamErr.Service)
	}
}

func TestCreateCheckoutSessionGeneratesReferenceFallback(t *testing.T) {
	provider := &stubProvider{}
	svc := newCheckoutService(t, provider)

	result, err := svc.CreateCheckoutSession(context.Background(), profileIdentity(), CheckoutCommand{
		RedirectURL: "https://shop.example.com/orders",
		Items: []domain.CartLine{
			{Name: "Ramen", Quantity: 1, UnitPrice: decimal.NewFromInt(290)},
		},
	})
	if err != nil {
		t.Fatalf("create checkout session: %v", err)
	}
	if strings.TrimSpace(result.ReferenceNumber) == "" {
		t.Fatalf("expected generated reference number")
	}
	if !strings.HasPrefix(provider.lastSession.Description, "OOS Order - ") {
		t.Fatalf("unexpected description: %s", provider.lastSession.Description)
	}
}
