// Package ordering wraps the online ordering service REST API used during
// order confirmation.
package ordering

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bleu-oos/payments-api/internal/domain"
)

const maxOrderingBody = 1 << 20

// ErrNoPendingOrder indicates that the ordering service has no pending cart to finalize.
var ErrNoPendingOrder = errors.New("ordering: no pending order")

// StatusError carries a non-2xx ordering service response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ordering: request failed with status %d", e.StatusCode)
}

// Logger defines the logging contract for ordering client operations.
type Logger func(ctx context.Context, event string, fields map[string]any)

// ClientConfig configures the ordering service client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     Logger
}

// Client talks to the ordering service on behalf of the authenticated user.
// The caller's bearer token is forwarded on every request.
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
		return nil, errors.New("ordering: base url is required")
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

// AddCartItem posts one cart line to the ordering service.
func (c *Client) AddCartItem(ctx context.Context, token, username, orderType string, item domain.CartItem) error {
	payload := map[string]any{
		"username":         username,
		"product_id":       item.ProductID,
		"product_name":     item.ProductName,
		"product_type":     item.ProductType,
		"product_category": item.ProductCategory,
		"quantity":         item.Quantity,
		"price":            item.Price.InexactFloat64(),
		"order_type":       orderType,
		"addons":           addonPayload(item.Addons),
		"ordernotes":       item.OrderNotes,
	}

	_, err := c.do(ctx, http.MethodPost, "/cart/", token, payload)
	if err != nil {
		return err
	}

	c.logger(ctx, "ordering.cart.item_added", map[string]any{
		"username":  username,
		"productId": item.ProductID,
		"quantity":  item.Quantity,
	})
	return nil
}

// FinalizeOrder converts the user's pending cart into an order and returns the
// new order id. A 404 from the ordering service maps to ErrNoPendingOrder.
func (c *Client) FinalizeOrder(ctx context.Context, token, username string) (int64, error) {
	path := "/cart/finalize?username=" + url.QueryEscape(username)

	body, err := c.do(ctx, http.MethodPost, path, token, nil)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return 0, fmt.Errorf("%w for user %s", ErrNoPendingOrder, username)
		}
		return 0, err
	}

	var payload struct {
		OrderID int64 `json:"order_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("ordering: decode finalize response: %w", err)
	}

	c.logger(ctx, "ordering.cart.finalized", map[string]any{
		"username": username,
		"orderId":  payload.OrderID,
	})
	return payload.OrderID, nil
}

// SaveDeliveryInfo records the delivery address for the finalized order.
func (c *Client) SaveDeliveryInfo(ctx context.Context, token string, info domain.DeliveryInfo, fallbackNotes string) error {
	notes := strings.TrimSpace(info.Notes)
	if notes == "" {
		notes = fallbackNotes
	}

	payload := map[string]any{
		"FirstName":    info.FirstName,
		"MiddleName":   info.MiddleName,
		"LastName":     info.LastName,
		"Address":      info.Address,
		"City":         info.City,
		"Province":     info.Province,
		"Landmark":     info.Landmark,
		"EmailAddress": info.EmailAddress,
		"PhoneNumber":  info.PhoneNumber,
		"Notes":        notes,
	}

	if _, err := c.do(ctx, http.MethodPost, "/delivery/info", token, payload); err != nil {
		return err
	}

	c.logger(ctx, "ordering.delivery.saved", map[string]any{
		"city":     info.City,
		"province": info.Province,
	})
	return nil
}

// PaymentUpdate captures the order payment details written back after finalization.
type PaymentUpdate struct {
	Username        string
	PaymentMethod   string
	Subtotal        decimal.Decimal
	DeliveryFee     decimal.Decimal
	TotalAmount     decimal.Decimal
	DeliveryNotes   string
	ReferenceNumber string
	TotalDiscount   decimal.Decimal
	IncludeDiscount bool
}

// UpdatePayment writes the payment details onto the finalized order.
func (c *Client) UpdatePayment(ctx context.Context, token string, update PaymentUpdate) error {
	payload := map[string]any{
		"username":         update.Username,
		"payment_method":   update.PaymentMethod,
		"subtotal":         update.Subtotal.InexactFloat64(),
		"delivery_fee":     update.DeliveryFee.InexactFloat64(),
		"total_amount":     update.TotalAmount.InexactFloat64(),
		"delivery_notes":   update.DeliveryNotes,
		"reference_number": update.ReferenceNumber,
	}
	if update.IncludeDiscount {
		payload["total_discount"] = update.TotalDiscount.InexactFloat64()
	}

	if _, err := c.do(ctx, http.MethodPut, "/cart/update-payment", token, payload); err != nil {
		return err
	}

	c.logger(ctx, "ordering.payment.updated", map[string]any{
		"username":        update.Username,
		"referenceNumber": update.ReferenceNumber,
	})
	return nil
}

func addonPayload(addons []domain.Addon) []map[string]any {
	out := make([]map[string]any, 0, len(addons))
	for _, addon := range addons {
		out = append(out, map[string]any{
			"addon_name": addon.Name,
			"price":      addon.Price.InexactFloat64(),
		})
	}
	return out
}

func (c *Client) do(ctx context.Context, method, path, token string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("ordering: encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ordering: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ordering: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOrderingBody))
	if err != nil {
		return nil, fmt.Errorf("ordering: read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
