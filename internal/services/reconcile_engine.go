package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bleu-oos/payments-api/internal/domain"
)

var one = decimal.NewFromInt(1)
var hundred = decimal.NewFromInt(100)

// ReconcileEngine distributes an aggregate discount across cart lines and
// converts everything to centavos for the payment processor. The processor
// does not accept negative line items, so the discount is folded into the
// per-line amounts proportionally; rounding drift is absorbed by the last
// line so the sum of line amounts always equals the charged total.
type ReconcileEngine struct {
	logger func(context.Context, string, map[string]any)
}

// ReconcileEngineDeps wires the engine.
type ReconcileEngineDeps struct {
	Logger func(context.Context, string, map[string]any)
}

// NewReconcileEngine constructs a ReconcileEngine.
func NewReconcileEngine(deps ReconcileEngineDeps) *ReconcileEngine {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &ReconcileEngine{logger: logger}
}

// ReconcileCommand is the engine input.
type ReconcileCommand struct {
	Items       []domain.CartLine
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
}

// ReconcileResult carries the processor-ready lines and the charged total.
type ReconcileResult struct {
	Lines      []domain.ReconciledLineItem
	TotalMinor int64
	Subtotal   decimal.Decimal
	Ratio      decimal.Decimal
}

// Reconcile validates the cart and produces discounted line items in centavos.
func (e *ReconcileEngine) Reconcile(ctx context.Context, cmd ReconcileCommand) (ReconcileResult, error) {
	if e == nil {
		return ReconcileResult{}, errors.New("reconcile engine: engine is nil")
	}
	if len(cmd.Items) == 0 {
		return ReconcileResult{}, &ValidationError{Message: "cart must contain at least one item"}
	}
	for _, item := range cmd.Items {
		if item.Quantity <= 0 {
			return ReconcileResult{}, &ValidationError{Message: fmt.Sprintf("item %q has invalid quantity %d", item.Name, item.Quantity)}
		}
		if item.UnitPrice.IsNegative() {
			return ReconcileResult{}, &ValidationError{Message: fmt.Sprintf("item %q has negative price", item.Name)}
		}
	}
	if cmd.DeliveryFee.IsNegative() {
		return ReconcileResult{}, &ValidationError{Message: "delivery fee cannot be negative"}
	}
	if cmd.Discount.IsNegative() {
		return ReconcileResult{}, &ValidationError{Message: "discount cannot be negative"}
	}

	subtotal := decimal.Zero
	for _, item := range cmd.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	if cmd.Discount.GreaterThan(subtotal) {
		return ReconcileResult{}, &ValidationError{
			Message: fmt.Sprintf(
				"Invalid discount amount (₱%s) exceeds order subtotal (₱%s). Please contact support.",
				cmd.Discount.StringFixed(2), subtotal.StringFixed(2),
			),
		}
	}

	ratio := one
	if cmd.Discount.IsPositive() && subtotal.IsPositive() {
		ratio = subtotal.Sub(cmd.Discount).Div(subtotal)
	}

	hasDiscount := cmd.Discount.IsPositive()
	lines := make([]domain.ReconciledLineItem, 0, len(cmd.Items)+1)
	drift := decimal.Zero

	for idx, item := range cmd.Items {
		discounted := item.LineTotal().Mul(ratio)
		quantity := decimal.NewFromInt(item.Quantity)

		perUnitMinor := discounted.Div(quantity).Mul(hundred).Round(0)
		amountMinor := perUnitMinor.Mul(quantity)
		drift = drift.Add(discounted.Mul(hundred).Sub(amountMinor))

		// The last line absorbs the accumulated rounding drift, including
		// its own, so the line sum matches the charged total exactly.
		if idx == len(cmd.Items)-1 {
			amountMinor = amountMinor.Add(drift.Round(0))
		}

		lines = append(lines, domain.ReconciledLineItem{
			DisplayName: displayName(item, hasDiscount),
			AmountMinor: amountMinor.IntPart(),
			Currency:    domain.Currency,
			Quantity:    item.Quantity,
			Description: fmt.Sprintf("Quantity: %d", item.Quantity),
		})
	}

	feeMinor := int64(0)
	if cmd.DeliveryFee.IsPositive() {
		feeMinor = cmd.DeliveryFee.Mul(hundred).Round(0).IntPart()
		lines = append(lines, domain.ReconciledLineItem{
			DisplayName: "Delivery Fee",
			AmountMinor: feeMinor,
			Currency:    domain.Currency,
			Quantity:    1,
			Description: "Delivery charges",
		})
	}

	totalMinor := subtotal.Mul(ratio).Mul(hundred).Round(0).IntPart() + feeMinor

	e.logger(ctx, "checkout.reconcile.completed", map[string]any{
		"items":      len(cmd.Items),
		"subtotal":   subtotal.StringFixed(2),
		"discount":   cmd.Discount.StringFixed(2),
		"totalMinor": totalMinor,
	})

	return ReconcileResult{
		Lines:      lines,
		TotalMinor: totalMinor,
		Subtotal:   subtotal,
		Ratio:      ratio,
	}, nil
}

// displayName renders the processor-facing line name. The processor shows only
// the name field, so addons ride along as embedded bullet lines.
func displayName(item domain.CartLine, hasDiscount bool) string {
	parts := make([]string, 0, 1+len(item.Addons))

	name := item.Name
	if hasDiscount {
		name += " 🎉"
	}
	parts = append(parts, name)

	for _, addon := range item.Addons {
		if addon.Price.IsPositive() {
			parts = append(parts, fmt.Sprintf("• + %s (₱%s)", addon.Name, addon.Price))
		} else {
			parts = append(parts, "• + "+addon.Name)
		}
	}

	return strings.Join(parts, "\n")
}
