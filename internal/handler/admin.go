package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coffee-order/api/internal/database"
	"github.com/coffee-order/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// AdminStore defines the database methods needed by the admin dashboard.
// Satisfied by *database.Queries; narrow interface for testability.
type AdminStore interface {
	ListInventory(ctx context.Context) ([]database.ListInventoryRow, error)
	SetMenuStock(ctx context.Context, arg database.SetMenuStockParams) (database.SetMenuStockRow, error)
	GetOrderStatistics(ctx context.Context) (database.GetOrderStatisticsRow, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrders(ctx context.Context, orderIds []int32) ([]database.ListOrderItemsByOrdersRow, error)
}

// AdminHandler handles inventory, statistics and order board endpoints.
type AdminHandler struct {
	store AdminStore
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store AdminStore) *AdminHandler {
	return &AdminHandler{store: store}
}

// RegisterRoutes registers admin endpoints. Mounted at /api/admin.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/inventory", h.Inventory)
	r.Patch("/inventory/{menuId}", h.SetStock)
	r.Get("/statistics", h.Statistics)
	r.Get("/orders", h.ListOrders)
}

const (
	defaultOrderLimit = 50
	maxOrderLimit     = 100
)

// --- Request / Response types ---

type setStockRequest struct {
	Stock *int32 `json:"stock"`
}

type inventoryResponse struct {
	MenuID     int32  `json:"menuId"`
	MenuName   string `json:"menuName"`
	Stock      int32  `json:"stock"`
	StockLevel string `json:"stockLevel"`
}

type statisticsResponse struct {
	Total       int64      `json:"total"`
	Pending     int64      `json:"pending"`
	Received    int64      `json:"received"`
	InProgress  int64      `json:"inProgress"`
	Completed   int64      `json:"completed"`
	Cancelled   int64      `json:"cancelled"`
	LastOrderAt *time.Time `json:"lastOrderAt"`
}

type orderSummaryItem struct {
	MenuName string `json:"menuName"`
	Quantity int32  `json:"quantity"`
}

type orderSummaryResponse struct {
	OrderID     int32              `json:"orderId"`
	TotalAmount int64              `json:"totalAmount"`
	Status      string             `json:"status"`
	Items       []orderSummaryItem `json:"items"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// --- Handlers ---

// Inventory handles GET /api/admin/inventory.
func (h *AdminHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListInventory(r.Context())
	if err != nil {
		writeInternalError(w, r, "list inventory", err)
		return
	}

	resp := make([]inventoryResponse, len(rows))
	for i, row := range rows {
		resp[i] = inventoryResponse{
			MenuID:     row.MenuID,
			MenuName:   row.Name,
			Stock:      row.Stock,
			StockLevel: enum.StockLevel(row.Stock),
		}
	}
	writeData(w, http.StatusOK, resp)
}

// SetStock handles PATCH /api/admin/inventory/{menuId}. The body sets an
// absolute stock level.
func (h *AdminHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	menuID, ok := parseID(r, "menuId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid menu ID")
		return
	}

	var req setStockRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Stock == nil {
		writeError(w, http.StatusBadRequest, "stock is required")
		return
	}
	if *req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "stock must be >= 0")
		return
	}

	row, err := h.store.SetMenuStock(r.Context(), database.SetMenuStockParams{
		Stock:  *req.Stock,
		MenuID: menuID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Menu not found")
			return
		}
		writeInternalError(w, r, "set menu stock", err)
		return
	}

	writeData(w, http.StatusOK, inventoryResponse{
		MenuID:     row.MenuID,
		MenuName:   row.Name,
		Stock:      row.Stock,
		StockLevel: enum.StockLevel(row.Stock),
	})
}

// Statistics handles GET /api/admin/statistics.
func (h *AdminHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetOrderStatistics(r.Context())
	if err != nil {
		writeInternalError(w, r, "order statistics", err)
		return
	}

	resp := statisticsResponse{
		Total:      stats.Total,
		Pending:    stats.Pending,
		Received:   stats.Received,
		InProgress: stats.InProgress,
		Completed:  stats.Completed,
		Cancelled:  stats.Cancelled,
	}
	if stats.LastOrderAt.Valid {
		resp.LastOrderAt = &stats.LastOrderAt.Time
	}
	writeData(w, http.StatusOK, resp)
}

// ListOrders handles GET /api/admin/orders?status=a,b&limit=&offset=.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var limit int64 = defaultOrderLimit
	if s := q.Get("limit"); s != "" {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(v, maxOrderLimit)
	}

	var offset int64
	if s := q.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "offset must be an integer between 0 and 2147483647")
			return
		}
		offset = v
	}

	var statuses []string
	if s := q.Get("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !database.OrderStatus(part).Valid() {
				writeError(w, http.StatusBadRequest, "invalid status: "+part)
				return
			}
			statuses = append(statuses, part)
		}
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		Statuses: statuses,
		Limit:    int32(limit),
		Offset:   int32(offset),
	})
	if err != nil {
		writeInternalError(w, r, "list orders", err)
		return
	}

	ids := make([]int32, len(orders))
	for i, o := range orders {
		ids[i] = o.OrderID
	}
	byOrder := map[int32][]orderSummaryItem{}
	if len(ids) > 0 {
		items, err := h.store.ListOrderItemsByOrders(r.Context(), ids)
		if err != nil {
			writeInternalError(w, r, "list order items", err)
			return
		}
		for _, it := range items {
			byOrder[it.OrderID] = append(byOrder[it.OrderID], orderSummaryItem{MenuName: it.MenuName, Quantity: it.Quantity})
		}
	}

	resp := make([]orderSummaryResponse, len(orders))
	for i, o := range orders {
		items := byOrder[o.OrderID]
		if items == nil {
			items = []orderSummaryItem{}
		}
		resp[i] = orderSummaryResponse{
			OrderID:     o.OrderID,
			TotalAmount: o.TotalAmount,
			Status:      string(o.Status),
			Items:       items,
			CreatedAt:   o.CreatedAt,
		}
	}
	writeData(w, http.StatusOK, resp)
}
