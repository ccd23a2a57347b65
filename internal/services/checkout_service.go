package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bleu-oos/payments-api/internal/domain"
	"github.com/bleu-oos/payments-api/internal/payments"
	"github.com/bleu-oos/payments-api/internal/platform/auth"
)

// CheckoutService builds a hosted checkout session for a priced cart. The
// customer's profile and PSP customer record are best effort; a checkout never
// fails because the profile could not be loaded.
type CheckoutService struct {
	engine   *ReconcileEngine
	provider payments.Provider
	logger   func(context.Context, string, map[string]any)
}

// CheckoutServiceDeps wires the checkout service.
type CheckoutServiceDeps struct {
	Engine   *ReconcileEngine
	Provider payments.Provider
	Logger   func(context.Context, string, map[string]any)
}

// NewCheckoutService validates dependencies and constructs a CheckoutService.
func NewCheckoutService(deps CheckoutServiceDeps) (*CheckoutService, error) {
	if deps.Engine == nil {
		return nil, errors.New("checkout service: reconcile engine is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("checkout service: payment provider is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CheckoutService{
		engine:   deps.Engine,
		provider: deps.Provider,
		logger:   logger,
	}, nil
}

// CheckoutCommand is the checkout input assembled from the client payload.
type CheckoutCommand struct {
	ReferenceNumber string
	RedirectURL     string
	OrderType       string
	Items           []domain.CartLine
	DeliveryFee     decimal.Decimal
	Discount        decimal.Decimal
}

// CheckoutResult carries the session handed back to the storefront.
type CheckoutResult struct {
	CheckoutURL     string
	SessionID       string
	ReferenceNumber string
	TotalMinor      int64
}

// CreateCheckoutSession validates amounts, loads the customer profile, and
// opens a PSP checkout session. Amount validation happens before any PSP call
// so invalid carts never leave half-created sessions behind.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, identity *auth.Identity, cmd CheckoutCommand) (CheckoutResult, error) {
	if s == nil {
		return CheckoutResult{}, errors.New("checkout service: service is nil")
	}

	reconciled, err := s.engine.Reconcile(ctx, ReconcileCommand{
		Items:       cmd.Items,
		DeliveryFee: cmd.DeliveryFee,
		Discount:    cmd.Discount,
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	reference := strings.TrimSpace(cmd.ReferenceNumber)
	if reference == "" {
		reference = uuid.NewString()
	}

	billing := payments.BillingDetails{Name: "User"}
	customerID := ""
	if identity != nil {
		if profile, err := identity.Profile(ctx); err == nil {
			billing = payments.BillingDetails{
				Name:  profile.DisplayName(),
				Email: profile.Email,
				Phone: profile.PhoneNumber,
			}
			if billing.Name != "" && billing.Email != "" {
				id, err := s.provider.CreateCustomer(ctx, payments.CustomerRequest{
					Name:  billing.Name,
					Email: billing.Email,
					Phone: billing.Phone,
				})
				if err != nil {
					s.logger(ctx, "checkout.customer.create_failed", map[string]any{
						"error": err.Error(),
					})
				} else {
					customerID = id
				}
			}
		} else {
			s.logger(ctx, "checkout.profile.load_failed", map[string]any{
				"error": err.Error(),
			})
		}
	}

	description := "OOS Order - " + reference
	if cmd.Discount.IsPositive() {
		description += " (Discount: ₱" + cmd.Discount.StringFixed(2) + ")"
	}

	items := make([]payments.CheckoutLineItem, 0, len(reconciled.Lines))
	for _, line := range reconciled.Lines {
		items = append(items, payments.CheckoutLineItem{
			Name:        line.DisplayName,
			Description: line.Description,
			Quantity:    line.Quantity,
			Amount:      line.AmountMinor,
			Currency:    line.Currency,
		})
	}

	session, err := s.provider.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		Description:     description,
		ReferenceNumber: reference,
		SuccessURL:      cmd.RedirectURL + "?status=success",
		CancelURL:       cmd.RedirectURL + "?status=cancel",
		CustomerID:      customerID,
		Billing:         &billing,
		Items:           items,
	})
	if err != nil {
		return CheckoutResult{}, providerError(err)
	}

	s.logger(ctx, "checkout.session.created", map[string]any{
		"sessionId":       session.ID,
		"referenceNumber": reference,
		"totalMinor":      reconciled.TotalMinor,
	})

	return CheckoutResult{
		CheckoutURL:     session.CheckoutURL,
		SessionID:       session.ID,
		ReferenceNumber: reference,
		TotalMinor:      reconciled.TotalMinor,
	}, nil
}
