// Package pos mirrors confirmed online orders into the point-of-sale service.
package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bleu-oos/payments-api/internal/domain"
)

const (
	onlineOrderPath = "/auth/purchase_orders/online-order"

	maxPOSBody = 1 << 20
)

// StatusError carries a non-2xx POS service response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pos: request failed with status %d", e.StatusCode)
}

// OnlineOrderItem is one sale line mirrored to the POS. Price stays the
// original undiscounted unit price; the promo amount rides in Discount.
type OnlineOrderItem struct {
	Name      string
	Quantity  int64
	Price     decimal.Decimal
	Category  string
	PromoName string
	Discount  decimal.Decimal
	Addons    []domain.Addon
}

// OnlineOrder is the sale record the POS stores as pending until a cashier
// accepts it.
type OnlineOrder struct {
	CustomerName    string
	CashierName     string
	OrderType       string
	PaymentMethod   string
	Subtotal        decimal.Decimal
	TotalAmount     decimal.Decimal
	Status          string
	ReferenceNumber string
	Items           []OnlineOrderItem
}

func (o OnlineOrder) payload() map[string]any {
	items := make([]any, 0, len(o.Items))
	for _, item := range o.Items {
		addons := make([]any, 0, len(item.Addons))
		for _, addon := range item.Addons {
			addons = append(addons, map[string]any{
				"addon_name": addon.Name,
				"price":      addon.Price.InexactFloat64(),
			})
		}
		items = append(items, map[string]any{
			"name":       item.Name,
			"quantity":   item.Quantity,
			"price":      item.Price.InexactFloat64(),
			"category":   item.Category,
			"promo_name": item.PromoName,
			"discount":   item.Discount.InexactFloat64(),
			"addons":     addons,
		})
	}

	return map[string]any{
		"customer_name":    o.CustomerName,
		"cashier_name":     o.CashierName,
		"order_type":       o.OrderType,
		"payment_method":   o.PaymentMethod,
		"subtotal":         o.Subtotal.InexactFloat64(),
		"total_amount":     o.TotalAmount.InexactFloat64(),
		"status":           o.Status,
		"reference_number": o.ReferenceNumber,
		"items":            items,
	}
}

// Logger defines the logging contract for POS client operations.
type Logger func(ctx context.Context, event string, fields map[string]any)

// ClientConfig configures the POS service client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     Logger
}

// Client posts confirmed orders to the POS service.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  Logger
}

// NewClient validates configuration and constructs a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("pos: base url is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &Client{baseURL: baseURL, client: client, timeout: timeout, logger: logger}, nil
}

// SaveOnlineOrder mirrors the order into the POS and returns the new sale id.
func (c *Client) SaveOnlineOrder(ctx context.Context, token string, order OnlineOrder) (string, error) {
	encoded, err := json.Marshal(order.payload())
	if err != nil {
		return "", fmt.Errorf("pos: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+onlineOrderPath, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("pos: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pos: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPOSBody))
	if err != nil {
		return "", fmt.Errorf("pos: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		POSSaleID json.Number `json:"pos_sale_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("pos: decode response: %w", err)
	}

	c.logger(ctx, "pos.online_order.saved", map[string]any{
		"posSaleId":       payload.POSSaleID.String(),
		"referenceNumber": order.ReferenceNumber,
	})

	return payload.POSSaleID.String(), nil
}
