package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/coffee-order/api/internal/database"
	"github.com/coffee-order/api/internal/enum"
	"github.com/coffee-order/api/internal/events"
	"github.com/jackc/pgx/v5"
)

// allowedTransitions lists, for each status, the statuses it may move to.
// Terminal statuses have no entry.
var allowedTransitions = map[database.OrderStatus][]database.OrderStatus{
	database.OrderStatusPending:    {database.OrderStatusReceived, database.OrderStatusCancelled},
	database.OrderStatusReceived:   {database.OrderStatusInProgress, database.OrderStatusCancelled},
	database.OrderStatusInProgress: {database.OrderStatusCompleted},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to database.OrderStatus) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// UpdateStatus moves an order to the requested status. Cancelling puts the
// ordered quantities back into menu stock in the same transaction.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int32, requested database.OrderStatus) (*database.Order, error) {
	if orderID <= 0 {
		return nil, ErrInvalidOrderID
	}
	if !requested.Valid() {
		return nil, ErrInvalidStatus
	}

	order, previous, err := s.updateStatusTx(ctx, orderID, requested)
	if err != nil {
		return nil, classifyStoreErr(err)
	}

	s.publish(ctx, enum.EventOrderStatusChanged, events.OrderStatusChanged{
		OrderID:   order.OrderID,
		From:      string(previous),
		To:        string(order.Status),
		UpdatedAt: order.UpdatedAt,
	})
	return order, nil
}

func (s *OrderService) updateStatusTx(ctx context.Context, orderID int32, requested database.OrderStatus) (*database.Order, database.OrderStatus, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if err := s.applyLockTimeout(ctx, store); err != nil {
		return nil, "", err
	}

	// --- Lock order row ---
	current, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", &NotFoundError{Entity: "order", ID: orderID}
		}
		return nil, "", fmt.Errorf("get order: %w", err)
	}

	if !CanTransition(current.Status, requested) {
		return nil, "", &InvalidTransitionError{Current: current.Status, Requested: requested}
	}

	// --- Restore stock on cancel ---
	if requested == database.OrderStatusCancelled {
		if err := restoreStock(ctx, store, orderID); err != nil {
			return nil, "", err
		}
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		Status:  requested,
		OrderID: orderID,
	})
	if err != nil {
		return nil, "", fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("commit tx: %w", err)
	}
	return &updated, current.Status, nil
}

// restoreStock adds every line quantity of the order back to its menu.
// Menus are incremented in ascending id order, one update per menu.
func restoreStock(ctx context.Context, store OrderStore, orderID int32) error {
	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}

	perMenu := make(map[int32]int32, len(items))
	for _, it := range items {
		perMenu[it.MenuID] += it.Quantity
	}
	menuIDs := make([]int32, 0, len(perMenu))
	for id := range perMenu {
		menuIDs = append(menuIDs, id)
	}
	slices.Sort(menuIDs)

	for _, id := range menuIDs {
		if _, err := store.IncrementMenuStock(ctx, database.IncrementMenuStockParams{
			Quantity: perMenu[id],
			MenuID:   id,
		}); err != nil {
			return fmt.Errorf("restore stock for menu %d: %w", id, err)
		}
	}
	return nil
}
