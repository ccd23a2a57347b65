package pos

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bleu-oos/payments-api/internal/domain"
)

func sampleOrder() OnlineOrder {
	return OnlineOrder{
		CustomerName:    "Juan Dela Cruz",
		CashierName:     "System",
		OrderType:       "delivery",
		PaymentMethod:   "gcash",
		Subtotal:        decimal.NewFromFloat(580),
		TotalAmount:     decimal.NewFromFloat(630),
		Status:          "pending",
		ReferenceNumber: "ORD-9",
		Items: []OnlineOrderItem{
			{
				Name:      "Ramen",
				Quantity:  2,
				Price:     decimal.NewFromFloat(290),
				Category:  "mains",
				PromoName: "weekday promo",
				Discount:  decimal.NewFromInt(25),
				Addons:    []domain.Addon{{Name: "Extra Egg", Price: decimal.NewFromInt(20)}},
			},
		},
	}
}

func TestValidateOnlineOrderAcceptsCompleteOrder(t *testing.T) {
	if err := ValidateOnlineOrder(sampleOrder()); err != nil {
		t.Fatalf("expected valid order, got %v", err)
	}
}

func TestValidateOnlineOrderRejectsMissingFields(t *testing.T) {
	order := sampleOrder()
	order.CustomerName = ""

	err := ValidateOnlineOrder(order)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestValidateOnlineOrderRejectsEmptyItems(t *testing.T) {
	order := sampleOrder()
	order.Items = nil

	if err := ValidateOnlineOrder(order); err == nil {
		t.Fatalf("expected error for empty items")
	}
}

func TestSaveOnlineOrderReturnsSaleID(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != onlineOrderPath {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Fatalf("unexpected authorization: %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"pos_sale_id": 4410})
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	saleID, err := client.SaveOnlineOrder(context.Background(), "tok", sampleOrder())
	if err != nil {
		t.Fatalf("save online order: %v", err)
	}
	if saleID != "4410" {
		t.Fatalf("unexpected sale id: %s", saleID)
	}

	if captured["cashier_name"] != "System" {
		t.Fatalf("unexpected cashier_name: %v", captured["cashier_name"])
	}
	if captured["status"] != "pending" {
		t.Fatalf("unexpected status: %v", captured["status"])
	}
	items := captured["items"].([]any)
	item := items[0].(map[string]any)
	if item["price"] != float64(290) {
		t.Fatalf("expected original price, got %v", item["price"])
	}
	if item["discount"] != float64(25) {
		t.Fatalf("unexpected discount: %v", item["discount"])
	}
}

func TestSaveOnlineOrderSurfacesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"duplicate reference"}`, http.StatusConflict)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.SaveOnlineOrder(context.Background(), "tok", sampleOrder())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected status: %d", statusErr.StatusCode)
	}
}
