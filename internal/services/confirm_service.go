package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/bleu-oos/payments-api/internal/domain"
	"github.com/bleu-oos/payments-api/internal/ordering"
	"github.com/bleu-oos/payments-api/internal/pos"
)

// OrderingGateway is the ordering-service surface the orchestrator needs.
type OrderingGateway interface {
	AddCartItem(ctx context.Context, token, username, orderType string, item domain.CartItem) error
	FinalizeOrder(ctx context.Context, token, username string) (int64, error)
	SaveDeliveryInfo(ctx context.Context, token string, info domain.DeliveryInfo, fallbackNotes string) error
	UpdatePayment(ctx context.Context, token string, update ordering.PaymentUpdate) error
}

// POSGateway mirrors confirmed orders into the POS.
type POSGateway interface {
	SaveOnlineOrder(ctx context.Context, token string, order pos.OnlineOrder) (string, error)
}

// ConfirmService drives the post-payment order placement pipeline. The steps
// run strictly in sequence and the first failure aborts the run; there is no
// compensation, earlier steps stay applied.
type ConfirmService struct {
	ordering OrderingGateway
	pos      POSGateway
	logger   func(context.Context, string, map[string]any)
}

// ConfirmServiceDeps wires the confirmation orchestrator.
type ConfirmServiceDeps struct {
	Ordering OrderingGateway
	POS      POSGateway
	Logger   func(context.Context, string, map[string]any)
}

// NewConfirmService validates dependencies and constructs a ConfirmService.
func NewConfirmService(deps ConfirmServiceDeps) (*ConfirmService, error) {
	if deps.Ordering == nil {
		return nil, errors.New("confirm service: ordering gateway is required")
	}
	if deps.POS == nil {
		return nil, errors.New("confirm service: pos gateway is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &ConfirmService{
		ordering: deps.Ordering,
		pos:      deps.POS,
		logger:   logger,
	}, nil
}

// ConfirmOrder places the paid order with the ordering service: cart lines,
// finalize, optional delivery info, then payment details.
func (s *ConfirmService) ConfirmOrder(ctx context.Context, token string, order domain.OrderConfirmation) (domain.OrderReceipt, error) {
	if s == nil {
		return domain.OrderReceipt{}, errors.New("confirm service: service is nil")
	}
	ensureReference(&order)

	orderID, err := s.placeOrder(ctx, token, order, false)
	if err != nil {
		return domain.OrderReceipt{}, err
	}

	s.logger(ctx, "confirm.order.placed", map[string]any{
		"username":        order.Username,
		"orderId":         orderID,
		"referenceNumber": order.ReferenceNumber,
	})

	return domain.OrderReceipt{
		Message:         "Payment confirmed and order placed successfully",
		OnlineOrderID:   orderID,
		ReferenceNumber: order.ReferenceNumber,
	}, nil
}

// ConfirmOrderWithPOS places the paid order and mirrors it into the POS as a
// pending sale. The POS payload is validated locally before the first network
// call, because once the ordering steps run the order exists upstream and a
// malformed mirror payload could no longer be rejected cleanly.
func (s *ConfirmService) ConfirmOrderWithPOS(ctx context.Context, token string, order domain.OrderConfirmation) (domain.OrderReceipt, error) {
	if s == nil {
		return domain.OrderReceipt{}, errors.New("confirm service: service is nil")
	}
	ensureReference(&order)

	posOrder := buildPOSOrder(order)
	if err := pos.ValidateOnlineOrder(posOrder); err != nil {
		return domain.OrderReceipt{}, err
	}

	orderID, err := s.placeOrder(ctx, token, order, true)
	if err != nil {
		return domain.OrderReceipt{}, err
	}

	saleID, err := s.pos.SaveOnlineOrder(ctx, token, posOrder)
	if err != nil {
		return domain.OrderReceipt{}, posError(err)
	}

	s.logger(ctx, "confirm.order.mirrored", map[string]any{
		"username":        order.Username,
		"orderId":         orderID,
		"posSaleId":       saleID,
		"referenceNumber": order.ReferenceNumber,
	})

	return domain.OrderReceipt{
		Message:         "Payment confirmed, order placed successfully, and saved to POS as PENDING",
		OnlineOrderID:   orderID,
		POSSaleID:       saleID,
		ReferenceNumber: order.ReferenceNumber,
	}, nil
}

// placeOrder runs the ordering-service sequence shared by both variants.
func (s *ConfirmService) placeOrder(ctx context.Context, token string, order domain.OrderConfirmation, includeDiscount bool) (int64, error) {
	for _, item := range order.CartItems {
		if err := s.ordering.AddCartItem(ctx, token, order.Username, order.OrderType, item); err != nil {
			return 0, orderingError(err)
		}
	}

	orderID, err := s.ordering.FinalizeOrder(ctx, token, order.Username)
	if err != nil {
		return 0, orderingError(err)
	}

	if order.DeliveryInfo != nil {
		if err := s.ordering.SaveDeliveryInfo(ctx, token, *order.DeliveryInfo, order.Notes); err != nil {
			return 0, orderingError(err)
		}
	}

	update := ordering.PaymentUpdate{
		Username:        order.Username,
		PaymentMethod:   order.PaymentMethod,
		Subtotal:        order.Subtotal,
		DeliveryFee:     order.DeliveryFee,
		TotalAmount:     order.Total,
		DeliveryNotes:   order.DeliveryNotes(),
		ReferenceNumber: order.ReferenceNumber,
		TotalDiscount:   order.TotalDiscount,
		IncludeDiscount: includeDiscount,
	}
	if err := s.ordering.UpdatePayment(ctx, token, update); err != nil {
		return 0, orderingError(err)
	}

	return orderID, nil
}

func ensureReference(order *domain.OrderConfirmation) {
	if strings.TrimSpace(order.ReferenceNumber) == "" {
		order.ReferenceNumber = uuid.NewString()
	}
}

// buildPOSOrder normalises the confirmation into the POS sale shape. Items
// keep their original price; per-item discounts ride separately.
func buildPOSOrder(order domain.OrderConfirmation) pos.OnlineOrder {
	customerName := order.Username
	if order.DeliveryInfo != nil {
		if name := order.DeliveryInfo.CustomerName(); name != "" {
			customerName = name
		}
	}

	items := make([]pos.OnlineOrderItem, 0, len(order.CartItems))
	for _, item := range order.CartItems {
		items = append(items, pos.OnlineOrderItem{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Category:  item.ProductCategory,
			PromoName: item.PromoName,
			Discount:  item.Discount,
			Addons:    item.Addons,
		})
	}

	return pos.OnlineOrder{
		CustomerName:    customerName,
		CashierName:     "System",
		OrderType:       order.OrderType,
		PaymentMethod:   order.PaymentMethod,
		Subtotal:        order.Subtotal,
		TotalAmount:     order.Total,
		Status:          "pending",
		ReferenceNumber: order.ReferenceNumber,
		Items:           items,
	}
}
