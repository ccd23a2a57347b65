package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// OrderStatusStore is the repository surface needed for status updates.
type OrderStatusStore interface {
	GetOrderID(ctx context.Context, orderID int64) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status string) error
}

// OrderStatusService updates online purchase orders directly in the shared
// database, used by riders and cashiers after handoff.
type OrderStatusService struct {
	store  OrderStatusStore
	logger func(context.Context, string, map[string]any)
}

// OrderStatusServiceDeps wires the status service.
type OrderStatusServiceDeps struct {
	Store  OrderStatusStore
	Logger func(context.Context, string, map[string]any)
}

// NewOrderStatusService validates dependencies and constructs the service.
func NewOrderStatusService(deps OrderStatusServiceDeps) (*OrderStatusService, error) {
	if deps.Store == nil {
		return nil, errors.New("order status service: store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &OrderStatusService{store: deps.Store, logger: logger}, nil
}

// UpdateStatus sets the order's status after confirming the row exists.
func (s *OrderStatusService) UpdateStatus(ctx context.Context, orderID int64, newStatus string) (string, error) {
	if s == nil {
		return "", errors.New("order status service: service is nil")
	}

	newStatus = strings.TrimSpace(newStatus)
	if newStatus == "" {
		return "", &ValidationError{Message: "newStatus is required"}
	}

	if _, err := s.store.GetOrderID(ctx, orderID); err != nil {
		return "", err
	}
	if err := s.store.UpdateStatus(ctx, orderID, newStatus); err != nil {
		return "", err
	}

	s.logger(ctx, "orders.status.updated", map[string]any{
		"orderId": orderID,
		"status":  newStatus,
	})

	return fmt.Sprintf("POS order status successfully updated to %s", newStatus), nil
}
