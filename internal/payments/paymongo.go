package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	paymongoProviderName = "paymongo"

	customersPath        = "/v1/customers"
	checkoutSessionsPath = "/v1/checkout_sessions"

	maxPaymongoBody = 1 << 20
)

// PaymongoLogger defines the logging contract for PayMongo provider operations.
type PaymongoLogger func(ctx context.Context, event string, fields map[string]any)

// PaymongoProviderConfig configures the PaymongoProvider.
type PaymongoProviderConfig struct {
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     PaymongoLogger
}

// PaymongoProvider implements the Provider interface against the PayMongo REST API.
type PaymongoProvider struct {
	authHeader string
	baseURL    string
	client     *http.Client
	timeout    time.Duration
	logger     PaymongoLogger
}

// NewPaymongoProvider constructs a PayMongo Provider using the given configuration.
func NewPaymongoProvider(cfg PaymongoProviderConfig) (*PaymongoProvider, error) {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errors.New("paymongo: secret key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.paymongo.com"
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

	// PayMongo uses HTTP basic auth with the secret key as username and no password.
	encoded := base64.StdEncoding.EncodeToString([]byte(secretKey + ":"))

	return &PaymongoProvider{
		authHeader: "Basic " + encoded,
		baseURL:    baseURL,
		client:     client,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// CreateCustomer registers the customer with PayMongo and returns the customer id.
func (p *PaymongoProvider) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	if p == nil {
		return "", errors.New("paymongo: provider is nil")
	}

	body := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"name":           req.Name,
				"email":          req.Email,
				"phone":          req.Phone,
				"default_device": "phone",
			},
		},
	}

	var payload struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := p.postJSON(ctx, customersPath, body, &payload); err != nil {
		return "", err
	}

	p.logger(ctx, "payments.paymongo.customer.created", map[string]any{
		"customerId": payload.Data.ID,
	})

	return payload.Data.ID, nil
}

// CreateCheckoutSession opens a PayMongo hosted checkout session.
func (p *PaymongoProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if p == nil {
		return CheckoutSession{}, errors.New("paymongo: provider is nil")
	}

	lineItems := make([]map[string]any, 0, len(req.Items))
	for _, item := range req.Items {
		lineItems = append(lineItems, map[string]any{
			"name":        item.Name,
			"amount":      item.Amount,
			"currency":    item.Currency,
			"description": item.Description,
			"quantity":    item.Quantity,
		})
	}

	attributes := map[string]any{
		"send_email_receipt":   false,
		"show_description":     true,
		"show_line_items":      true,
		"line_items":           lineItems,
		"description":          req.Description,
		"reference_number":     req.ReferenceNumber,
		"payment_method_types": []string{"gcash", "paymaya", "card"},
		"success_url":          req.SuccessURL,
		"cancel_url":           req.CancelURL,
	}
	if req.Billing != nil {
		attributes["billing"] = map[string]any{
			"name":  req.Billing.Name,
			"email": req.Billing.Email,
			"phone": req.Billing.Phone,
		}
	}
	if req.CustomerID != "" {
		attributes["customer"] = req.CustomerID
	}

	body := map[string]any{
		"data": map[string]any{
			"attributes": attributes,
		},
	}

	var payload struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				CheckoutURL string `json:"checkout_url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	raw, err := p.postJSONRaw(ctx, checkoutSessionsPath, body, &payload)
	if err != nil {
		return CheckoutSession{}, err
	}

	p.logger(ctx, "payments.paymongo.session.created", map[string]any{
		"sessionId":       payload.Data.ID,
		"referenceNumber": req.ReferenceNumber,
		"lineItems":       len(lineItems),
	})

	return CheckoutSession{
		ID:          payload.Data.ID,
		Provider:    paymongoProviderName,
		CheckoutURL: payload.Data.Attributes.CheckoutURL,
		Raw:         raw,
	}, nil
}

func (p *PaymongoProvider) postJSON(ctx context.Context, path string, body, out any) error {
	_, err := p.postJSONRaw(ctx, path, body, out)
	return err
}

func (p *PaymongoProvider) postJSONRaw(ctx context.Context, path string, body, out any) (map[string]any, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("paymongo: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("paymongo: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", p.authHeader)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paymongo: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPaymongoBody))
	if err != nil {
		return nil, fmt.Errorf("paymongo: read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &ProviderError{
			Provider:   paymongoProviderName,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("paymongo: decode response: %w", err)
		}
	}

	raw := map[string]any{}
	_ = json.Unmarshal(data, &raw)
	return raw, nil
}
