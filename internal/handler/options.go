package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coffee-order/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// OptionStore defines the database methods needed by option handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OptionStore interface {
	ListOptions(ctx context.Context) ([]database.Option, error)
	CreateOption(ctx context.Context, arg database.CreateOptionParams) (database.Option, error)
	UpdateOption(ctx context.Context, arg database.UpdateOptionParams) (database.Option, error)
	DeleteOption(ctx context.Context, optionID int32) (int32, error)
}

// OptionHandler handles menu option CRUD endpoints.
type OptionHandler struct {
	store OptionStore
}

// NewOptionHandler creates a new OptionHandler.
func NewOptionHandler(store OptionStore) *OptionHandler {
	return &OptionHandler{store: store}
}

// RegisterRoutes registers option endpoints. Mounted at /api/admin/options.
func (h *OptionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{optionId}", h.Update)
	r.Delete("/{optionId}", h.Delete)
}

// --- Request / Response types ---

type createOptionRequest struct {
	MenuID int32  `json:"menuId"`
	Name   string `json:"name"`
	Price  int64  `json:"price"`
}

type updateOptionRequest struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type optionResponse struct {
	OptionID  int32     `json:"optionId"`
	MenuID    int32     `json:"menuId"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
}

func toOptionResponse(o database.Option) optionResponse {
	return optionResponse{
		OptionID:  o.OptionID,
		MenuID:    o.MenuID,
		Name:      o.Name,
		Price:     o.Price,
		CreatedAt: o.CreatedAt,
	}
}

// --- Handlers ---

// List handles GET /api/admin/options.
func (h *OptionHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := h.store.ListOptions(r.Context())
	if err != nil {
		writeInternalError(w, r, "list options", err)
		return
	}

	resp := make([]optionResponse, len(opts))
	for i, o := range opts {
		resp[i] = toOptionResponse(o)
	}
	writeData(w, http.StatusOK, resp)
}

// Create handles POST /api/admin/options.
func (h *OptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOptionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.MenuID <= 0 {
		writeError(w, http.StatusBadRequest, "menuId is required")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Price < 0 {
		writeError(w, http.StatusBadRequest, "price must be >= 0")
		return
	}

	opt, err := h.store.CreateOption(r.Context(), database.CreateOptionParams{
		MenuID: req.MenuID,
		Name:   req.Name,
		Price:  req.Price,
	})
	if err != nil {
		if isPgCode(err, pgForeignKeyViolation) {
			writeError(w, http.StatusNotFound, "Menu not found")
			return
		}
		writeInternalError(w, r, "create option", err)
		return
	}

	writeData(w, http.StatusCreated, toOptionResponse(opt))
}

// Update handles PUT /api/admin/options/{optionId}.
func (h *OptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	optionID, ok := parseID(r, "optionId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid option ID")
		return
	}

	var req updateOptionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Price < 0 {
		writeError(w, http.StatusBadRequest, "price must be >= 0")
		return
	}

	opt, err := h.store.UpdateOption(r.Context(), database.UpdateOptionParams{
		Name:     req.Name,
		Price:    req.Price,
		OptionID: optionID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Option not found")
			return
		}
		writeInternalError(w, r, "update option", err)
		return
	}

	writeData(w, http.StatusOK, toOptionResponse(opt))
}

// Delete handles DELETE /api/admin/options/{optionId}. Order snapshots keep
// the option's name and price after deletion.
func (h *OptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	optionID, ok := parseID(r, "optionId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid option ID")
		return
	}

	if _, err := h.store.DeleteOption(r.Context(), optionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Option not found")
			return
		}
		writeInternalError(w, r, "delete option", err)
		return
	}

	writeData(w, http.StatusOK, map[string]int32{"optionId": optionID})
}
