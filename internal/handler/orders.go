package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coffee-order/api/internal/database"
	"github.com/coffee-order/api/internal/idempotency"
	"github.com/coffee-order/api/internal/middleware"
	"github.com/coffee-order/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*service.PlaceOrderResult, error)
	UpdateStatus(ctx context.Context, orderID int32, requested database.OrderStatus) (*database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, orderID int32) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID int32) ([]database.ListOrderItemsByOrderRow, error)
	ListOrderItemOptionsByOrder(ctx context.Context, orderID int32) ([]database.OrderItemOption, error)
}

// IdempotencyStore reserves Idempotency-Key values for order creation.
// Satisfied by *idempotency.Store.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (idempotency.Reservation, error)
	Complete(ctx context.Context, key string, orderID int32) error
	Release(ctx context.Context, key string) error
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
	idem  IdempotencyStore
}

// NewOrderHandler creates a new OrderHandler. idem may be nil, in which case
// Idempotency-Key headers are ignored.
func NewOrderHandler(svc OrderServicer, store OrderStore, idem IdempotencyStore) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, idem: idem}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /api/orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.IdempotencyKey).Post("/", h.Create)
	r.Get("/{orderId}", h.Get)
	r.Patch("/{orderId}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Items []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	MenuID   int32                      `json:"menuId"`
	Quantity int32                      `json:"quantity"`
	Options  []createOrderOptionRequest `json:"options"`
}

type createOrderOptionRequest struct {
	OptionID int32 `json:"optionId"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderOptionResponse struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type orderItemResponse struct {
	MenuName string                `json:"menuName"`
	Quantity int32                 `json:"quantity"`
	Price    int64                 `json:"price"`
	Options  []orderOptionResponse `json:"options"`
	Subtotal int64                 `json:"subtotal"`
}

type createdOrderResponse struct {
	OrderID     int32               `json:"orderId"`
	TotalAmount int64               `json:"totalAmount"`
	Status      string              `json:"status"`
	Items       []orderItemResponse `json:"items"`
	CreatedAt   time.Time           `json:"createdAt"`
}

type orderDetailResponse struct {
	OrderID     int32               `json:"orderId"`
	TotalAmount int64               `json:"totalAmount"`
	Status      string              `json:"status"`
	Items       []orderItemResponse `json:"items"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

type statusResponse struct {
	OrderID   int32     `json:"orderId"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// --- Handlers ---

// Create handles POST /api/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svcReq := service.PlaceOrderRequest{Items: make([]service.PlaceOrderItem, len(req.Items))}
	for i, item := range req.Items {
		optionIDs := make([]int32, len(item.Options))
		for j, opt := range item.Options {
			optionIDs[j] = opt.OptionID
		}
		svcReq.Items[i] = service.PlaceOrderItem{
			MenuID:    item.MenuID,
			Quantity:  item.Quantity,
			OptionIDs: optionIDs,
		}
	}

	key := middleware.IdempotencyKeyFromContext(r.Context())
	if h.idem == nil || key == "" {
		h.place(w, r, svcReq)
		return
	}

	res, err := h.idem.Reserve(r.Context(), key)
	if err != nil {
		writeInternalError(w, r, "reserve idempotency key", err)
		return
	}
	switch res.State {
	case idempotency.Done:
		h.writeOrderDetail(w, r, res.OrderID)
		return
	case idempotency.InFlight:
		writeError(w, http.StatusConflict, "a request with this idempotency key is in progress")
		return
	}

	orderID, ok := h.place(w, r, svcReq)
	// The key outlives the request, so bookkeeping must not be cut short by
	// a client disconnect.
	ctx := context.WithoutCancel(r.Context())
	if !ok {
		if err := h.idem.Release(ctx, key); err != nil {
			slog.Warn("release idempotency key", "key", key, "err", err)
		}
		return
	}
	if err := h.idem.Complete(ctx, key, orderID); err != nil {
		slog.Warn("complete idempotency key", "key", key, "order_id", orderID, "err", err)
	}
}

// place runs the placement and writes the response. It reports the new
// order ID and whether the order was created.
func (h *OrderHandler) place(w http.ResponseWriter, r *http.Request, req service.PlaceOrderRequest) (int32, bool) {
	result, err := h.svc.PlaceOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "create order", http.StatusBadRequest, err)
		return 0, false
	}
	writeData(w, http.StatusCreated, toCreatedOrderResponse(result))
	return result.Order.OrderID, true
}

// Get handles GET /api/orders/{orderId}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseID(r, "orderId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}
	h.writeOrderDetail(w, r, orderID)
}

func (h *OrderHandler) writeOrderDetail(w http.ResponseWriter, r *http.Request, orderID int32) {
	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		writeInternalError(w, r, "get order", err)
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		writeInternalError(w, r, "list order items", err)
		return
	}

	options, err := h.store.ListOrderItemOptionsByOrder(r.Context(), orderID)
	if err != nil {
		writeInternalError(w, r, "list order item options", err)
		return
	}

	byItem := make(map[int32][]orderOptionResponse, len(items))
	for _, o := range options {
		byItem[o.ItemID] = append(byItem[o.ItemID], orderOptionResponse{Name: o.OptionName, Price: o.OptionPrice})
	}

	resp := orderDetailResponse{
		OrderID:     order.OrderID,
		TotalAmount: order.TotalAmount,
		Status:      string(order.Status),
		Items:       make([]orderItemResponse, len(items)),
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	for i, it := range items {
		opts := byItem[it.ItemID]
		if opts == nil {
			opts = []orderOptionResponse{}
		}
		resp.Items[i] = orderItemResponse{
			MenuName: it.MenuName,
			Quantity: it.Quantity,
			Price:    it.Price,
			Options:  opts,
			Subtotal: lineSubtotal(it.Price, opts, it.Quantity),
		}
	}

	writeData(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /api/admin/orders/{orderId}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseID(r, "orderId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), orderID, database.OrderStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, fmt.Sprintf("update order %d status", orderID), http.StatusNotFound, err)
		return
	}

	writeData(w, http.StatusOK, statusResponse{
		OrderID:   order.OrderID,
		Status:    string(order.Status),
		UpdatedAt: order.UpdatedAt,
	})
}

// --- Helpers ---

func toCreatedOrderResponse(result *service.PlaceOrderResult) createdOrderResponse {
	resp := createdOrderResponse{
		OrderID:     result.Order.OrderID,
		TotalAmount: result.Order.TotalAmount,
		Status:      string(result.Order.Status),
		Items:       make([]orderItemResponse, len(result.Items)),
		CreatedAt:   result.Order.CreatedAt,
	}
	for i, it := range result.Items {
		opts := make([]orderOptionResponse, len(it.Options))
		for j, o := range it.Options {
			opts[j] = orderOptionResponse{Name: o.OptionName, Price: o.OptionPrice}
		}
		resp.Items[i] = orderItemResponse{
			MenuName: it.MenuName,
			Quantity: it.Item.Quantity,
			Price:    it.Item.Price,
			Options:  opts,
			Subtotal: it.Subtotal,
		}
	}
	return resp
}

// lineSubtotal recomputes a stored line's subtotal from its frozen prices.
func lineSubtotal(price int64, opts []orderOptionResponse, qty int32) int64 {
	unit := price
	for _, o := range opts {
		unit += o.Price
	}
	return unit * int64(qty)
}
