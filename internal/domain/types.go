package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is the only currency the payment processor is configured for.
const Currency = "PHP"

// Addon is the canonical representation of a line-item addon. Client payloads
// historically shipped addons as bare strings or as maps with several key
// variants; UnmarshalJSON normalises all of them at the system boundary so the
// rest of the pipeline never sniffs shapes.
type Addon struct {
	Name  string          `json:"addon_name"`
	Price decimal.Decimal `json:"price"`
}

// UnmarshalJSON accepts a plain string, or an object carrying one of the
// legacy key spellings (addon_name / AddOnName / name, price / Price).
func (a *Addon) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		a.Name = strings.TrimSpace(name)
		a.Price = decimal.Zero
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("addon: unsupported shape: %w", err)
	}

	a.Name = firstString(raw, "addon_name", "AddOnName", "name")
	if a.Name == "" {
		a.Name = "Addon"
	}
	a.Price = firstDecimal(raw, "price", "Price")
	return nil
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		data, ok := raw[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			continue
		}
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func firstDecimal(raw map[string]json.RawMessage, keys ...string) decimal.Decimal {
	for _, key := range keys {
		data, ok := raw[key]
		if !ok {
			continue
		}
		var value decimal.Decimal
		if err := json.Unmarshal(data, &value); err != nil {
			continue
		}
		return value
	}
	return decimal.Zero
}

// CartLine is a single checkout line as submitted by the storefront.
// Immutable input to the reconciliation engine.
type CartLine struct {
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
	Addons    []Addon
}

// LineTotal returns UnitPrice x Quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// ReconciledLineItem is a processor-ready line item in minor currency units.
type ReconciledLineItem struct {
	DisplayName string
	AmountMinor int64
	Currency    string
	Quantity    int64
	Description string
}

// CartItem is a confirmed cart entry forwarded to the ordering and POS
// services. Price is the original, undiscounted unit price; Discount carries
// any per-item promo amount separately.
type CartItem struct {
	ProductID       int64
	ProductName     string
	ProductType     string
	ProductCategory string
	Quantity        int64
	Price           decimal.Decimal
	Addons          []Addon
	OrderNotes      string
	PromoName       string
	Discount        decimal.Decimal
}

// DeliveryInfo is the structured delivery address captured at checkout.
type DeliveryInfo struct {
	FirstName    string
	MiddleName   string
	LastName     string
	Address      string
	City         string
	Province     string
	Landmark     string
	EmailAddress string
	PhoneNumber  string
	Notes        string
}

// CustomerName renders the delivery recipient's display name.
func (d DeliveryInfo) CustomerName() string {
	return strings.TrimSpace(strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName))
}

// OrderConfirmation describes one confirm-payment pipeline run. Constructed
// from the client payload, read step by step by the orchestrator, never
// persisted locally.
type OrderConfirmation struct {
	Username        string
	OrderType       string
	PaymentMethod   string
	Subtotal        decimal.Decimal
	DeliveryFee     decimal.Decimal
	Total           decimal.Decimal
	TotalDiscount   decimal.Decimal
	Notes           string
	CartItems       []CartItem
	DeliveryInfo    *DeliveryInfo
	ReferenceNumber string
}

// DeliveryNotes resolves the note fallback chain used by the ordering service.
// Top-level notes win; the delivery address note is the fallback.
func (o OrderConfirmation) DeliveryNotes() string {
	if strings.TrimSpace(o.Notes) != "" {
		return o.Notes
	}
	if o.DeliveryInfo != nil {
		return o.DeliveryInfo.Notes
	}
	return ""
}

// OrderReceipt summarises a completed confirmation run.
type OrderReceipt struct {
	Message         string
	OnlineOrderID   int64
	POSSaleID       string
	ReferenceNumber string
}
