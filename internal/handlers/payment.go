package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/bleu-oos/payments-api/internal/domain"
	"github.com/bleu-oos/payments-api/internal/ordering"
	"github.com/bleu-oos/payments-api/internal/platform/auth"
	"github.com/bleu-oos/payments-api/internal/platform/httpx"
	"github.com/bleu-oos/payments-api/internal/pos"
	"github.com/bleu-oos/payments-api/internal/repositories"
	"github.com/bleu-oos/payments-api/internal/services"
)

const maxPaymentRequestBody = 256 * 1024

// CheckoutCreator produces hosted checkout sessions for an authenticated shopper.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, identity *auth.Identity, cmd services.CheckoutCommand) (services.CheckoutResult, error)
}

// OrderConfirmer runs the post-payment confirmation pipeline.
type OrderConfirmer interface {
	ConfirmOrder(ctx context.Context, token string, order domain.OrderConfirmation) (domain.OrderReceipt, error)
	ConfirmOrderWithPOS(ctx context.Context, token string, order domain.OrderConfirmation) (domain.OrderReceipt, error)
}

// StatusUpdater changes the status of a mirrored online order.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID int64, newStatus string) (string, error)
}

// PaymentHandlers exposes the payment endpoints mounted under /payment.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	checkout CheckoutCreator
	confirm  OrderConfirmer
	status   StatusUpdater
}

// NewPaymentHandlers constructs payment handlers guarded by identity-service authentication.
func NewPaymentHandlers(authn *auth.Authenticator, checkout CheckoutCreator, confirm OrderConfirmer, status StatusUpdater) *PaymentHandlers {
	return &PaymentHandlers{
		authn:    authn,
		checkout: checkout,
		confirm:  confirm,
		status:   status,
	}
}

// Routes registers the payment endpoints under the provided router.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	customers := r
	staff := r
	if h.authn != nil {
		customers = customers.With(h.authn.RequireRoles(auth.RoleUser, auth.RoleAdmin, auth.RoleStaff))
		staff = staff.With(h.authn.RequireRoles(auth.RoleRider, auth.RoleAdmin, auth.RoleStaff, auth.RoleCashier))
	}

	customers.Post("/create-checkout", h.createCheckout)
	customers.Post("/confirm-payment", h.confirmPayment)
	customers.Post("/confirm-payment-and-save-pos", h.confirmPaymentAndSavePOS)
	staff.Patch("/auth/purchase_orders/online/{orderID}/status", h.updateOrderStatus)
}

type checkoutItemRequest struct {
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Addons   []domain.Addon  `json:"addons"`
}

type checkoutRequest struct {
	ReferenceNumber string                `json:"reference_number"`
	RedirectURL     string                `json:"redirect_url"`
	Items           []checkoutItemRequest `json:"items"`
	DeliveryFee     decimal.Decimal       `json:"delivery_fee"`
	OrderType       string                `json:"order_type"`
	Discount        decimal.Decimal       `json:"discount"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

func (h *PaymentHandlers) createCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req checkoutRequest
	if !decodePaymentBody(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RedirectURL) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "redirect_url is required", http.StatusBadRequest))
		return
	}

	items := make([]domain.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.CartLine{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Addons:    item.Addons,
		})
	}

	result, err := h.checkout.CreateCheckoutSession(ctx, identity, services.CheckoutCommand{
		ReferenceNumber: req.ReferenceNumber,
		RedirectURL:     strings.TrimSpace(req.RedirectURL),
		OrderType:       req.OrderType,
		Items:           items,
		DeliveryFee:     req.DeliveryFee,
		Discount:        req.Discount,
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutResponse{CheckoutURL: result.CheckoutURL})
}

type confirmCartItemRequest struct {
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	ProductType     string          `json:"product_type"`
	ProductCategory string          `json:"product_category"`
	Quantity        int64           `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	Addons          []domain.Addon  `json:"addons"`
	OrderNotes      string          `json:"ordernotes"`
	PromoName       string          `json:"promo_name"`
	Discount        decimal.Decimal `json:"discount"`
}

type deliveryInfoRequest struct {
	FirstName    string `json:"FirstName"`
	MiddleName   string `json:"MiddleName"`
	LastName     string `json:"LastName"`
	Address      string `json:"Address"`
	City         string `json:"City"`
	Province     string `json:"Province"`
	Landmark     string `json:"Landmark"`
	EmailAddress string `json:"EmailAddress"`
	PhoneNumber  string `json:"PhoneNumber"`
	Notes        string `json:"Notes"`
}

type confirmPaymentRequest struct {
	Username        string                   `json:"username"`
	OrderType       string                   `json:"order_type"`
	PaymentMethod   string                   `json:"payment_method"`
	Subtotal        decimal.Decimal          `json:"subtotal"`
	DeliveryFee     decimal.Decimal          `json:"delivery_fee"`
	Total           decimal.Decimal          `json:"total"`
	Notes           string                   `json:"notes"`
	CartItems       []confirmCartItemRequest `json:"cart_items"`
	DeliveryInfo    *deliveryInfoRequest     `json:"delivery_info"`
	ReferenceNumber string                   `json:"reference_number"`
	TotalDiscount   decimal.Decimal          `json:"total_discount"`
}

func (r confirmPaymentRequest) toDomain() domain.OrderConfirmation {
	items := make([]domain.CartItem, 0, len(r.CartItems))
	for _, item := range r.CartItems {
		items = append(items, domain.CartItem{
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			ProductType:     item.ProductType,
			ProductCategory: item.ProductCategory,
			Quantity:        item.Quantity,
			Price:           item.Price,
			Addons:          item.Addons,
			OrderNotes:      item.OrderNotes,
			PromoName:       item.PromoName,
			Discount:        item.Discount,
		})
	}

	var delivery *domain.DeliveryInfo
	if r.DeliveryInfo != nil {
		delivery = &domain.DeliveryInfo{
			FirstName:    r.DeliveryInfo.FirstName,
			MiddleName:   r.DeliveryInfo.MiddleName,
			LastName:     r.DeliveryInfo.LastName,
			Address:      r.DeliveryInfo.Address,
			City:         r.DeliveryInfo.City,
			Province:     r.DeliveryInfo.Province,
			Landmark:     r.DeliveryInfo.Landmark,
			EmailAddress: r.DeliveryInfo.EmailAddress,
			PhoneNumber:  r.DeliveryInfo.PhoneNumber,
			Notes:        r.DeliveryInfo.Notes,
		}
	}

	return domain.OrderConfirmation{
		Username:        r.Username,
		OrderType:       r.OrderType,
		PaymentMethod:   r.PaymentMethod,
		Subtotal:        r.Subtotal,
		DeliveryFee:     r.DeliveryFee,
		Total:           r.Total,
		TotalDiscount:   r.TotalDiscount,
		Notes:           r.Notes,
		CartItems:       items,
		DeliveryInfo:    delivery,
		ReferenceNumber: r.ReferenceNumber,
	}
}

func (h *PaymentHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.confirm == nil {
		httpx.WriteError(ctx, w, httpx.NewError("confirmation_unavailable", "confirmation service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req confirmPaymentRequest
	if !decodePaymentBody(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "username is required", http.StatusBadRequest))
		return
	}

	receipt, err := h.confirm.ConfirmOrder(ctx, identity.Token, req.toDomain())
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"message": receipt.Message})
}

func (h *PaymentHandlers) confirmPaymentAndSavePOS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.confirm == nil {
		httpx.WriteError(ctx, w, httpx.NewError("confirmation_unavailable", "confirmation service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req confirmPaymentRequest
	if !decodePaymentBody(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "username is required", http.StatusBadRequest))
		return
	}

	receipt, err := h.confirm.ConfirmOrderWithPOS(ctx, identity.Token, req.toDomain())
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"message":          receipt.Message,
		"online_order_id":  receipt.OnlineOrderID,
		"pos_sale_id":      receipt.POSSaleID,
		"reference_number": receipt.ReferenceNumber,
	})
}

type updateStatusRequest struct {
	NewStatus string `json:"newStatus"`
}

func (h *PaymentHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.status == nil {
		httpx.WriteError(ctx, w, httpx.NewError("status_unavailable", "order status service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id must be an integer", http.StatusBadRequest))
		return
	}

	var req updateStatusRequest
	if !decodePaymentBody(ctx, w, r, &req) {
		return
	}

	message, err := h.status.UpdateStatus(ctx, orderID, req.NewStatus)
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"message": message})
}

func decodePaymentBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := readLimitedBody(r, maxPaymentRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

// writePaymentError maps service failures onto the wire taxonomy. Downstream
// statuses pass through untouched so clients see what the upstream said.
func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", validationErr.Message, http.StatusBadRequest))
		return
	}

	if errors.Is(err, ordering.ErrNoPendingOrder) {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", err.Error(), http.StatusNotFound))
		return
	}
	if errors.Is(err, repositories.ErrOrderNotFound) {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "Order not found", http.StatusNotFound))
		return
	}

	var schemaErr *pos.SchemaError
	if errors.As(err, &schemaErr) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_pos_payload", schemaErr.Error(), http.StatusInternalServerError))
		return
	}

	var downstreamErr *services.DownstreamError
	if errors.As(err, &downstreamErr) {
		message := downstreamErr.Service + " service error"
		if downstreamErr.OrderCreated {
			message = "Order created but " + downstreamErr.Service + " mirror failed"
		}
		status := downstreamErr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		httpx.WriteError(ctx, w, httpx.NewError("downstream_error", message, status))
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError("internal", "unexpected server error", http.StatusInternalServerError))
}
