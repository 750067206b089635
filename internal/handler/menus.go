package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coffee-order/api/internal/database"
	"github.com/coffee-order/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListMenus(ctx context.Context) ([]database.Menu, error)
	GetMenu(ctx context.Context, menuID int32) (database.Menu, error)
	ListOptionsByMenus(ctx context.Context, menuIds []int32) ([]database.Option, error)
	CreateMenu(ctx context.Context, arg database.CreateMenuParams) (database.Menu, error)
	UpdateMenu(ctx context.Context, arg database.UpdateMenuParams) (database.Menu, error)
	DeleteMenu(ctx context.Context, menuID int32) (int32, error)
}

// MenuHandler handles menu catalog endpoints.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers the public menu endpoints. Mounted at /api/menus.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{menuId}", h.Get)
}

// RegisterAdminRoutes registers menu management endpoints. Mounted at /api/admin/menus.
func (h *MenuHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{menuId}", h.Update)
	r.Delete("/{menuId}", h.Delete)
}

// --- Request / Response types ---

type menuRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       int32  `json:"stock"`
	ImageURL    string `json:"imageUrl"`
}

type menuOptionResponse struct {
	OptionID int32  `json:"optionId"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
}

type menuResponse struct {
	MenuID      int32                `json:"menuId"`
	Name        string               `json:"name"`
	Description *string              `json:"description"`
	Price       int64                `json:"price"`
	Stock       int32                `json:"stock"`
	StockLevel  string               `json:"stockLevel"`
	ImageURL    *string              `json:"imageUrl"`
	Options     []menuOptionResponse `json:"options"`
}

func toMenuResponse(m database.Menu, opts []database.Option) menuResponse {
	resp := menuResponse{
		MenuID:     m.MenuID,
		Name:       m.Name,
		Price:      m.Price,
		Stock:      m.Stock,
		StockLevel: enum.StockLevel(m.Stock),
		Options:    make([]menuOptionResponse, len(opts)),
	}
	if m.Description.Valid {
		resp.Description = &m.Description.String
	}
	if m.ImageUrl.Valid {
		resp.ImageURL = &m.ImageUrl.String
	}
	for i, o := range opts {
		resp.Options[i] = menuOptionResponse{OptionID: o.OptionID, Name: o.Name, Price: o.Price}
	}
	return resp
}

func optionalText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func validateMenuRequest(req *menuRequest) string {
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "":
		return "name is required"
	case req.Price < 0:
		return "price must be >= 0"
	case req.Stock < 0:
		return "stock must be >= 0"
	}
	return ""
}

// --- Handlers ---

// List handles GET /api/menus. Options for every menu are loaded in one query.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	menus, err := h.store.ListMenus(r.Context())
	if err != nil {
		writeInternalError(w, r, "list menus", err)
		return
	}

	ids := make([]int32, len(menus))
	for i, m := range menus {
		ids[i] = m.MenuID
	}

	byMenu := map[int32][]database.Option{}
	if len(ids) > 0 {
		opts, err := h.store.ListOptionsByMenus(r.Context(), ids)
		if err != nil {
			writeInternalError(w, r, "list menu options", err)
			return
		}
		for _, o := range opts {
			byMenu[o.MenuID] = append(byMenu[o.MenuID], o)
		}
	}

	resp := make([]menuResponse, len(menus))
	for i, m := range menus {
		resp[i] = toMenuResponse(m, byMenu[m.MenuID])
	}
	writeData(w, http.StatusOK, resp)
}

// Get handles GET /api/menus/{menuId}.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	menuID, ok := parseID(r, "menuId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid menu ID")
		return
	}

	menu, err := h.store.GetMenu(r.Context(), menuID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Menu not found")
			return
		}
		writeInternalError(w, r, "get menu", err)
		return
	}

	opts, err := h.store.ListOptionsByMenus(r.Context(), []int32{menuID})
	if err != nil {
		writeInternalError(w, r, "list menu options", err)
		return
	}

	writeData(w, http.StatusOK, toMenuResponse(menu, opts))
}

// Create handles POST /api/admin/menus.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req menuRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateMenuRequest(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	menu, err := h.store.CreateMenu(r.Context(), database.CreateMenuParams{
		Name:        req.Name,
		Description: optionalText(req.Description),
		Price:       req.Price,
		Stock:       req.Stock,
		ImageUrl:    optionalText(req.ImageURL),
	})
	if err != nil {
		writeInternalError(w, r, "create menu", err)
		return
	}

	writeData(w, http.StatusCreated, toMenuResponse(menu, nil))
}

// Update handles PUT /api/admin/menus/{menuId}. Stock is managed through
// the inventory endpoints and is ignored here.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	menuID, ok := parseID(r, "menuId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid menu ID")
		return
	}

	var req menuRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateMenuRequest(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	menu, err := h.store.UpdateMenu(r.Context(), database.UpdateMenuParams{
		Name:        req.Name,
		Description: optionalText(req.Description),
		Price:       req.Price,
		ImageUrl:    optionalText(req.ImageURL),
		MenuID:      menuID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Menu not found")
			return
		}
		writeInternalError(w, r, "update menu", err)
		return
	}

	opts, err := h.store.ListOptionsByMenus(r.Context(), []int32{menuID})
	if err != nil {
		writeInternalError(w, r, "list menu options", err)
		return
	}
	writeData(w, http.StatusOK, toMenuResponse(menu, opts))
}

// Delete handles DELETE /api/admin/menus/{menuId}. Menus referenced by
// existing orders cannot be deleted.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	menuID, ok := parseID(r, "menuId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid menu ID")
		return
	}

	if _, err := h.store.DeleteMenu(r.Context(), menuID); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			writeError(w, http.StatusNotFound, "Menu not found")
		case isPgCode(err, pgForeignKeyViolation):
			writeError(w, http.StatusConflict, "menu is referenced by existing orders")
		default:
			writeInternalError(w, r, "delete menu", err)
		}
		return
	}

	writeData(w, http.StatusOK, map[string]int32{"menuId": menuID})
}
