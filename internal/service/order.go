package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/coffee-order/api/internal/database"
	"github.com/coffee-order/api/internal/enum"
	"github.com/coffee-order/api/internal/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to place orders and change their status.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	SetLockTimeout(ctx context.Context, timeout string) error
	LockMenusForOrder(ctx context.Context, menuIds []int32) ([]database.LockMenusForOrderRow, error)
	GetOptionsForOrder(ctx context.Context, optionIds []int32) ([]database.Option, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemOption(ctx context.Context, arg database.CreateOrderItemOptionParams) (database.OrderItemOption, error)
	DecrementMenuStock(ctx context.Context, arg database.DecrementMenuStockParams) (int32, error)
	GetOrderForUpdate(ctx context.Context, orderID int32) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID int32) ([]database.ListOrderItemsByOrderRow, error)
	IncrementMenuStock(ctx context.Context, arg database.IncrementMenuStockParams) (int32, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// PlaceOrderRequest is the validated input for placing an order.
// Prices are never accepted from the caller.
type PlaceOrderRequest struct {
	Items []PlaceOrderItem
}

// PlaceOrderItem is a single line of the order.
type PlaceOrderItem struct {
	MenuID    int32
	Quantity  int32
	OptionIDs []int32
}

// PlaceOrderResult is the committed order with its lines.
type PlaceOrderResult struct {
	Order database.Order
	Items []PlacedItem
}

// PlacedItem is a line item with its option snapshots.
type PlacedItem struct {
	Item     database.OrderItem
	MenuName string
	Options  []database.OrderItemOption
	Subtotal int64
}

// OrderService places orders and drives their status.
type OrderService struct {
	pool        TxBeginner
	newStore    NewOrderStore
	lockTimeout time.Duration
	publisher   events.Publisher
	dispatcher  *events.Dispatcher
	log         *slog.Logger
}

// Option configures an OrderService.
type Option func(*OrderService)

// WithLockTimeout bounds how long a transaction waits for row locks.
// Zero leaves the server default in place.
func WithLockTimeout(d time.Duration) Option {
	return func(s *OrderService) { s.lockTimeout = d }
}

// WithPublisher sets where committed order events are sent. Delivery runs
// in the background; callers never wait on p.
func WithPublisher(p events.Publisher) Option {
	return func(s *OrderService) { s.publisher = p }
}

// WithLogger sets the logger used for publish failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *OrderService) { s.log = l }
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, opts ...Option) *OrderService {
	s := &OrderService{
		pool:      pool,
		newStore:  newStore,
		publisher: events.Nop,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dispatcher = events.NewDispatcher(s.publisher, events.DefaultDispatchBuffer, events.DefaultDispatchTimeout, s.log)
	return s
}

// Close flushes queued events, waiting at most until ctx is done.
func (s *OrderService) Close(ctx context.Context) error {
	return s.dispatcher.Close(ctx)
}

// pricedItem holds a fully validated line waiting to be written.
type pricedItem struct {
	menu     database.LockMenusForOrderRow
	quantity int32
	options  []database.Option
	subtotal int64
}

// PlaceOrder validates stock and options, prices the order from current
// catalog data, and writes the order, its lines and option snapshots while
// decrementing stock, all in one transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if err := validatePlaceOrder(req); err != nil {
		return nil, err
	}

	result, err := s.placeOrderTx(ctx, req)
	if err != nil {
		return nil, classifyStoreErr(err)
	}

	s.publishOrderCreated(ctx, result)
	return result, nil
}

func validatePlaceOrder(req PlaceOrderRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	for i, item := range req.Items {
		if item.MenuID <= 0 {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuID)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		seen := make(map[int32]bool, len(item.OptionIDs))
		for j, oid := range item.OptionIDs {
			if oid <= 0 {
				return fmt.Errorf("item[%d].options[%d]: %w", i, j, ErrInvalidOptionID)
			}
			if seen[oid] {
				return fmt.Errorf("item[%d].options[%d]: %w", i, j, ErrDuplicateOption)
			}
			seen[oid] = true
		}
	}
	return nil
}

// placeOrderTx executes the full placement in a single transaction.
func (s *OrderService) placeOrderTx(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	// --- Begin transaction ---
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if err := s.applyLockTimeout(ctx, store); err != nil {
		return nil, err
	}

	// --- Lock every touched menu row and load the requested options ---
	menuIDs, optionIDs := collectIDs(req.Items)

	lockedMenus, err := store.LockMenusForOrder(ctx, menuIDs)
	if err != nil {
		return nil, fmt.Errorf("lock menus: %w", err)
	}
	menus := make(map[int32]database.LockMenusForOrderRow, len(lockedMenus))
	for _, m := range lockedMenus {
		menus[m.MenuID] = m
	}

	options := map[int32]database.Option{}
	if len(optionIDs) > 0 {
		rows, err := store.GetOptionsForOrder(ctx, optionIDs)
		if err != nil {
			return nil, fmt.Errorf("get options: %w", err)
		}
		for _, o := range rows {
			options[o.OptionID] = o
		}
	}

	// --- Validate + price every item before writing anything ---
	requested := make(map[int32]int64, len(menus))
	var total int64
	items := make([]pricedItem, 0, len(req.Items))

	for i, item := range req.Items {
		menu, ok := menus[item.MenuID]
		if !ok {
			return nil, fmt.Errorf("item[%d]: %w", i, &NotFoundError{Entity: "menu", ID: item.MenuID})
		}

		// Stock is checked against the running total for this menu so a
		// request that lists the same menu twice cannot oversell it.
		requested[menu.MenuID] += int64(item.Quantity)
		if requested[menu.MenuID] > int64(menu.Stock) {
			return nil, fmt.Errorf("item[%d]: %w", i, &InsufficientStockError{
				MenuID:    menu.MenuID,
				MenuName:  menu.Name,
				Requested: clampInt32(requested[menu.MenuID]),
				Available: menu.Stock,
			})
		}

		unitPrice := menu.Price
		selected := make([]database.Option, 0, len(item.OptionIDs))
		for j, oid := range item.OptionIDs {
			opt, ok := options[oid]
			if !ok {
				return nil, fmt.Errorf("item[%d].options[%d]: %w", i, j, &NotFoundError{Entity: "option", ID: oid})
			}
			if opt.MenuID != menu.MenuID {
				return nil, fmt.Errorf("item[%d].options[%d]: %w", i, j, &InvalidOptionError{OptionID: oid, MenuID: menu.MenuID})
			}
			if unitPrice, ok = addAmount(unitPrice, opt.Price); !ok {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrAmountOverflow)
			}
			selected = append(selected, opt)
		}

		// subtotal = (menu price + option prices) * quantity
		subtotal, ok := mulAmount(unitPrice, int64(item.Quantity))
		if !ok {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrAmountOverflow)
		}
		if total, ok = addAmount(total, subtotal); !ok {
			return nil, ErrAmountOverflow
		}

		items = append(items, pricedItem{
			menu:     menu,
			quantity: item.Quantity,
			options:  selected,
			subtotal: subtotal,
		})
	}

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TotalAmount: total,
		Status:      database.OrderStatusReceived,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items, option snapshots, decrement stock ---
	placed := make([]PlacedItem, 0, len(items))
	for _, pi := range items {
		// The line keeps the bare menu price; option prices live on the snapshots.
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:  order.OrderID,
			MenuID:   pi.menu.MenuID,
			Quantity: pi.quantity,
			Price:    pi.menu.Price,
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}

		snapshots := make([]database.OrderItemOption, 0, len(pi.options))
		for _, opt := range pi.options {
			snap, err := store.CreateOrderItemOption(ctx, database.CreateOrderItemOptionParams{
				ItemID:      item.ItemID,
				OptionID:    pgtype.Int4{Int32: opt.OptionID, Valid: true},
				OptionName:  opt.Name,
				OptionPrice: opt.Price,
			})
			if isForeignKeyViolation(err) {
				return nil, &NotFoundError{Entity: "option", ID: opt.OptionID}
			}
			if err != nil {
				return nil, fmt.Errorf("create order item option: %w", err)
			}
			snapshots = append(snapshots, snap)
		}

		if _, err := store.DecrementMenuStock(ctx, database.DecrementMenuStockParams{
			Quantity: pi.quantity,
			MenuID:   pi.menu.MenuID,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Unreachable while the row lock is held; kept so stock can
				// never go negative even if locking is bypassed.
				return nil, &InsufficientStockError{
					MenuID:    pi.menu.MenuID,
					MenuName:  pi.menu.Name,
					Requested: pi.quantity,
					Available: pi.menu.Stock,
				}
			}
			return nil, fmt.Errorf("decrement stock for menu %d: %w", pi.menu.MenuID, err)
		}

		placed = append(placed, PlacedItem{
			Item:     item,
			MenuName: pi.menu.Name,
			Options:  snapshots,
			Subtotal: pi.subtotal,
		})
	}

	// --- Commit ---
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &PlaceOrderResult{
		Order: order,
		Items: placed,
	}, nil
}

func (s *OrderService) publishOrderCreated(ctx context.Context, result *PlaceOrderResult) {
	payload := events.OrderCreated{
		OrderID:     result.Order.OrderID,
		TotalAmount: result.Order.TotalAmount,
		Status:      string(result.Order.Status),
		Items:       make([]events.OrderItem, len(result.Items)),
		CreatedAt:   result.Order.CreatedAt,
	}
	for i, it := range result.Items {
		payload.Items[i] = events.OrderItem{
			MenuID:   it.Item.MenuID,
			MenuName: it.MenuName,
			Quantity: it.Item.Quantity,
		}
	}
	s.publish(ctx, enum.EventOrderCreated, payload)
}

func (s *OrderService) publish(ctx context.Context, eventType string, payload any) {
	evt, err := events.New(eventType, payload)
	if err == nil {
		err = s.dispatcher.Publish(ctx, evt)
	}
	if err != nil {
		s.log.Warn("publish event", "type", eventType, "err", err)
	}
}

// applyLockTimeout scopes lock_timeout to the current transaction.
func (s *OrderService) applyLockTimeout(ctx context.Context, store OrderStore) error {
	if s.lockTimeout <= 0 {
		return nil
	}
	ms := s.lockTimeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if err := store.SetLockTimeout(ctx, fmt.Sprintf("%dms", ms)); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	return nil
}

// --- Helpers ---

// collectIDs returns the distinct menu and option IDs in first-seen order.
func collectIDs(items []PlaceOrderItem) (menuIDs, optionIDs []int32) {
	seenMenu := make(map[int32]bool, len(items))
	seenOpt := make(map[int32]bool)
	for _, item := range items {
		if !seenMenu[item.MenuID] {
			seenMenu[item.MenuID] = true
			menuIDs = append(menuIDs, item.MenuID)
		}
		for _, oid := range item.OptionIDs {
			if !seenOpt[oid] {
				seenOpt[oid] = true
				optionIDs = append(optionIDs, oid)
			}
		}
	}
	return menuIDs, optionIDs
}

func addAmount(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

func mulAmount(a, qty int64) (int64, bool) {
	if qty != 0 && a > math.MaxInt64/qty {
		return 0, false
	}
	return a * qty, true
}

func clampInt32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}
