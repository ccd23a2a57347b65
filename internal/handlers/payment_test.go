package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/bleu-oos/payments-api/internal/domain"
	"github.com/bleu-oos/payments-api/internal/ordering"
	"github.com/bleu-oos/payments-api/internal/platform/auth"
	"github.com/bleu-oos/payments-api/internal/repositories"
	"github.com/bleu-oos/payments-api/internal/services"
)

func paymentRouter(h *PaymentHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/payment", h.Routes)
	return router
}

func authedRequest(method, target, payload string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(payload))
	identity := auth.NewIdentity("juan", auth.RoleUser, "token-123", nil)
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func TestPaymentHandlersCreateCheckoutSuccess(t *testing.T) {
	var captured services.CheckoutCommand
	handler := NewPaymentHandlers(nil, &stubCheckoutCreator{
		createFunc: func(ctx context.Context, identity *auth.Identity, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			captured = cmd
			if identity == nil || identity.Username != "juan" {
				t.Fatalf("expected identity juan, got %#v", identity)
			}
			return services.CheckoutResult{
				CheckoutURL:     "https://pay.example/cs_1",
				SessionID:       "cs_1",
				ReferenceNumber: cmd.ReferenceNumber,
				TotalMinor:      32500,
			}, nil
		},
	}, nil, nil)
	router := paymentRouter(handler)

	payload := `{
		"reference_number": "ORD-7",
		"redirect_url": "https://shop.example/orders",
		"order_type": "Delivery",
		"items": [{"name": "Sisig Rice Bowl", "quantity": 2, "price": 150.0, "addons": [{"addon_name": "Extra Egg", "price": 20}]}],
		"delivery_fee": 50.0,
		"discount": 25.0
	}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payment/create-checkout", payload))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp checkoutResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CheckoutURL != "https://pay.example/cs_1" {
		t.Fatalf("unexpected checkout url %s", resp.CheckoutURL)
	}

	if captured.ReferenceNumber != "ORD-7" {
		t.Fatalf("unexpected reference %s", captured.ReferenceNumber)
	}
	if len(captured.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(captured.Items))
	}
	item := captured.Items[0]
	if item.Name != "Sisig Rice Bowl" || item.Quantity != 2 {
		t.Fatalf("unexpected item %#v", item)
	}
	if !item.UnitPrice.Equal(decimal.NewFromFloat(150)) {
		t.Fatalf("unexpected unit price %s", item.UnitPrice)
	}
	if len(item.Addons) != 1 || item.Addons[0].Name != "Extra Egg" {
		t.Fatalf("unexpected addons %#v", item.Addons)
	}
	if !captured.Discount.Equal(decimal.NewFromFloat(25)) {
		t.Fatalf("unexpected discount %s", captured.Discount)
	}
}

func TestPaymentHandlersCreateCheckoutUnauthenticated(t *testing.T) {
	handler := NewPaymentHandlers(nil, &stubCheckoutCreator{}, nil, nil)
	router := paymentRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/payment/create-checkout", bytes.NewBufferString(`{"redirect_url":"https://shop.example"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestPaymentHandlersCreateCheckoutRequiresRedirect(t *testing.T) {
	handler := NewPaymentHandlers(nil, &stubCheckoutCreator{
		createFunc: func(context.Context, *auth.Identity, services.CheckoutCommand) (services.CheckoutResult, error) {
			t.Fatal("service should not be called")
			return services.CheckoutResult{}, nil
		},
	}, nil, nil)
	router := paymentRouter(handler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payment/create-checkout", `{"items":[]}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPaymentHandlersCreateCheckoutMapsValidationError(t *testing.T) {
	handler := NewPaymentHandlers(nil, &stubCheckoutCreator{
		createFunc: func(context.Context, *auth.Identity, services.CheckoutCommand) (services.CheckoutResult, error) {
			return services.CheckoutResult{}, &services.ValidationError{Message: "cart must not be empty"}
		},
	}, nil, nil)
	router := paymentRouter(handler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payment/create-checkout", `{"redirect_url":"https://shop.example","items":[]}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var errResp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp["message"] != "cart must not be empty" {
		t.Fatalf("unexpected message %#v", errResp["message"])
	}
}

func TestPaymentHandlersCreateCheckoutMapsDownstreamStatus(t *testing.T) {
	handler := NewPaymentHandlers(nil, &stubCheckoutCreator{
		createFunc: func(context.Context, *auth.Identity, services.CheckoutCommand) (services.CheckoutResult, error) {
			return services.CheckoutResult{}, &services.DownstreamError{Service: "paymongo", StatusCode: http.StatusPaymentRequired}
		},
	}, nil, nil)
	router := paymentRouter(handler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payment/create-checkout", `{"redirect_url":"https://shop.example","items":[]}`))

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d", rr.Code)
	}
}

const confirmPayload = `{
	"username": "juan",
	"order_type": "Delivery",
	"payment_method": "gcash",
	"subtotal": 300.0,
	"delivery_fee": 50.0,
	"total": 325.0,
	"total_discount": 25.0,
	"reference_number": "ORD-7",
	"cart_items": [{"product_id": 11, "product_name": "Sisig Rice Bowl", "quantity": 2, "price": 150.0}],
	"delivery_info": {"FirstName": "Juan", "LastName": "Dela Cruz", "Address": "1 Mabini St", "Notes": "gate code 4"}
}`

func TestPaymentHandlersConfirmPaymentSuccess(t *testing.T) {
	var capturedToken string
	var captured domain.OrderConfirmation
	handler := NewPaymentHandlers(nil, nil, &stubConfirmer{
		confirmFunc: func(ctx context.Context, token string, order domain.OrderConfirmation) (domain.OrderReceipt, error) {
			capturedToken = token
			captured = order
			return domain.OrderReceipt{Message: "Payment confirmed and order placed successfully", OnlineOrderID: 917}, nil
		},
	}, nil)
	router := paymentRouter(handler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payment/confirm-payment", confirmPayload))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if capturedToken != "token-123" {
		t.Fatalf("expected bearer token forwarded, got %q", capturedToken)
	}
	if captured.Username != "juan" || captured.ReferenceNumber != "ORD-7" {
		t.Fatalf("unexpected confirmation %#v", captured)
	}
	if captured.DeliveryInfo == nil || captured.DeliveryInfo.LastName != "Dela Cruz" {
		t.Fatalf("expected delivery info mapped, got %#v", captured.DeliveryInfo)
	}
	if len(captured.CartItems) != 1 || captured.CartItems[0].ProductID != 11 {
		t.Fatalf("unexpected cart items %#v", captured.CartItems)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["message"] != "Payment confirmed and order placed successfully" {
		t.Fatalf("unexpected message %#v", resp["message"])
	}
}

func TestPaymentHandlersConfirmPaymentNoPendingOrder(t *testing.T) {
	handler := NewPaymentHandlers(nil, nil, &stubConfirmer{
		confirmFunc: func(context.Context, string, domain.OrderConfirmation) (domain.OrderReceipt, error) {
			return domain.OrderReceipt{}, ordering.ErrNoPendingOrder
		},
	}, nil)
	router := paymentRouter(handler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payment/confirm-payment", confirmPayload))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestPaymentHandlersConfirmPaymentRequiresUsername(t *testing.T) {
	handler := NewPaymentHandlers(nil, nil, &stubConfirmer{}, nil)
	router := paymentRouter(handler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payment/confirm-payment", `{"order_type":"Delivery"}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPaymentHandlersConfirmWithPOSSuccess(t *testing.T) {
	handler := NewPaymentHandlers(nil, nil, &stubConfirmer{
		confirmPOSFunc: func(ctx context.Context, token string, order domain.OrderConfirmation) (domain.OrderReceipt, error) {
			return domain.OrderReceipt{
				Message:         "Payment confirmed, order placed successfully, and saved to POS as PENDING",
				OnlineOrderID:   917,
				POSSaleID:       "4410",
				ReferenceNumber: "ORD-7",
			}, nil
		},
	}, nil)
	router := paymentRouter(handler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payment/confirm-payment-and-save-pos", confirmPayload))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["pos_sale_id"] != "4410" {
		t.Fatalf("unexpected pos sale id %#v", resp["pos_sale_id"])
	}
	if resp["online_order_id"] != float64(917) {
		t.Fatalf("unexpected order id %#v", resp["online_order_id"])
	}
}

func TestPaymentHandlersConfirmWithPOSMirrorFailure(t *testing.T) {
	handler := NewPaymentHandlers(nil, nil, &stubConfirmer{
		confirmPOSFunc: func(context.Context, string, domain.OrderConfirmation) (domain.OrderReceipt, error) {
			return domain.OrderReceipt{}, &services.DownstreamError{
				Service:      "pos",
				StatusCode:   http.StatusInternalServerError,
				OrderCreated: true,
			}
		},
	}, nil)
	router := paymentRouter(handler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payment/confirm-payment-and-save-pos", confirmPayload))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	var errResp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp["message"] != "Order created but pos mirror failed" {
		t.Fatalf("unexpected message %#v", errResp["message"])
	}
}

func TestPaymentHandlersUpdateStatusSuccess(t *testing.T) {
	var capturedID int64
	var capturedStatus string
	handler := NewPaymentHandlers(nil, nil, nil, &stubStatusUpdater{
		updateFunc: func(ctx context.Context, orderID int64, newStatus string) (string, error) {
			capturedID = orderID
			capturedStatus = newStatus
			return "POS order status successfully updated to completed", nil
		},
	})
	router := paymentRouter(handler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPatch, "/payment/auth/purchase_orders/online/917/status", `{"newStatus":"completed"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if capturedID != 917 || capturedStatus != "completed" {
		t.Fatalf("unexpected update call: id=%d status=%s", capturedID, capturedStatus)
	}
}

func TestPaymentHandlersUpdateStatusRejectsBadID(t *testing.T) {
	handler := NewPaymentHandlers(nil, nil, nil, &stubStatusUpdater{})
	router := paymentRouter(handler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPatch, "/payment/auth/purchase_orders/online/abc/status", `{"newStatus":"completed"}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPaymentHandlersUpdateStatusUnknownOrder(t *testing.T) {
	handler := NewPaymentHandlers(nil, nil, nil, &stubStatusUpdater{
		updateFunc: func(context.Context, int64, string) (string, error) {
			return "", repositories.ErrOrderNotFound
		},
	})
	router := paymentRouter(handler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPatch, "/payment/auth/purchase_orders/online/404/status", `{"newStatus":"completed"}`))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

type stubCheckoutCreator struct {
	createFunc func(ctx context.Context, identity *auth.Identity, cmd services.CheckoutCommand) (services.CheckoutResult, error)
}

func (s *stubCheckoutCreator) CreateCheckoutSession(ctx context.Context, identity *auth.Identity, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, identity, cmd)
	}
	return services.CheckoutResult{}, errors.New("not implemented")
}

type stubConfirmer struct {
	confirmFunc    func(ctx context.Context, token string, order domain.OrderConfirmation) (domain.OrderReceipt, error)
	confirmPOSFunc func(ctx context.Context, token string, order domain.OrderConfirmation) (domain.OrderReceipt, error)
}

func (s *stubConfirmer) ConfirmOrder(ctx context.Context, token string, order domain.OrderConfirmation) (domain.OrderReceipt, error) {
	if s.confirmFunc != nil {
		return s.confirmFunc(ctx, token, order)
	}
	return domain.OrderReceipt{}, errors.New("not implemented")
}

func (s *stubConfirmer) ConfirmOrderWithPOS(ctx context.Context, token string, order domain.OrderConfirmation) (domain.OrderReceipt, error) {
	if s.confirmPOSFunc != nil {
		return s.confirmPOSFunc(ctx, token, order)
	}
	return domain.OrderReceipt{}, errors.New("not implemented")
}

type stubStatusUpdater struct {
	updateFunc func(ctx context.Context, orderID int64, newStatus string) (string, error)
}

func (s *stubStatusUpdater) UpdateStatus(ctx context.Context, orderID int64, newStatus string) (string, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, orderID, newStatus)
	}
	return "", errors.New("not implemented")
}
