package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coffee-order/api/internal/database"
	"github.com/coffee-order/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// PresetServicer defines the transactional preset operations.
// Satisfied by *service.PresetService.
type PresetServicer interface {
	CreatePreset(ctx context.Context, in service.PresetInput) (*service.PresetWithOptions, error)
	UpdatePreset(ctx context.Context, presetID int32, in service.PresetInput) (*service.PresetWithOptions, error)
	ApplyPreset(ctx context.Context, menuID, presetID int32) ([]database.Option, error)
}

// PresetStore defines the database methods needed by preset read/delete handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PresetStore interface {
	ListOptionPresets(ctx context.Context) ([]database.OptionPreset, error)
	GetOptionPreset(ctx context.Context, presetID int32) (database.OptionPreset, error)
	ListPresetOptionsByPresets(ctx context.Context, presetIds []int32) ([]database.PresetOption, error)
	DeleteOptionPreset(ctx context.Context, presetID int32) (int32, error)
}

// PresetHandler handles option preset endpoints.
type PresetHandler struct {
	svc   PresetServicer
	store PresetStore
}

// NewPresetHandler creates a new PresetHandler.
func NewPresetHandler(svc PresetServicer, store PresetStore) *PresetHandler {
	return &PresetHandler{svc: svc, store: store}
}

// RegisterRoutes registers preset CRUD endpoints. Mounted at /api/admin/option-presets.
func (h *PresetHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{presetId}", h.Get)
	r.Put("/{presetId}", h.Update)
	r.Delete("/{presetId}", h.Delete)
}

// --- Request / Response types ---

type presetRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Options     []presetOptionRequest `json:"options"`
}

type presetOptionRequest struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type presetOptionResponse struct {
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	SortOrder int32  `json:"sortOrder"`
}

type presetResponse struct {
	PresetID    int32                  `json:"presetId"`
	Name        string                 `json:"name"`
	Description *string                `json:"description"`
	Options     []presetOptionResponse `json:"options"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

func toPresetResponse(p database.OptionPreset, opts []database.PresetOption) presetResponse {
	resp := presetResponse{
		PresetID:  p.PresetID,
		Name:      p.Name,
		Options:   make([]presetOptionResponse, len(opts)),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Description.Valid {
		resp.Description = &p.Description.String
	}
	for i, o := range opts {
		resp.Options[i] = presetOptionResponse{Name: o.Name, Price: o.Price, SortOrder: o.SortOrder}
	}
	return resp
}

func (req presetRequest) toInput() service.PresetInput {
	in := service.PresetInput{
		Name:        req.Name,
		Description: req.Description,
		Options:     make([]service.PresetOptionInput, len(req.Options)),
	}
	for i, o := range req.Options {
		in.Options[i] = service.PresetOptionInput{Name: o.Name, Price: o.Price}
	}
	return in
}

// --- Handlers ---

// List handles GET /api/admin/option-presets.
func (h *PresetHandler) List(w http.ResponseWriter, r *http.Request) {
	presets, err := h.store.ListOptionPresets(r.Context())
	if err != nil {
		writeInternalError(w, r, "list presets", err)
		return
	}

	ids := make([]int32, len(presets))
	for i, p := range presets {
		ids[i] = p.PresetID
	}
	byPreset := map[int32][]database.PresetOption{}
	if len(ids) > 0 {
		opts, err := h.store.ListPresetOptionsByPresets(r.Context(), ids)
		if err != nil {
			writeInternalError(w, r, "list preset options", err)
			return
		}
		for _, o := range opts {
			byPreset[o.PresetID] = append(byPreset[o.PresetID], o)
		}
	}

	resp := make([]presetResponse, len(presets))
	for i, p := range presets {
		resp[i] = toPresetResponse(p, byPreset[p.PresetID])
	}
	writeData(w, http.StatusOK, resp)
}

// Get handles GET /api/admin/option-presets/{presetId}.
func (h *PresetHandler) Get(w http.ResponseWriter, r *http.Request) {
	presetID, ok := parseID(r, "presetId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid preset ID")
		return
	}

	preset, err := h.store.GetOptionPreset(r.Context(), presetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeInternalError(w, r, "get preset", err)
		return
	}

	opts, err := h.store.ListPresetOptionsByPresets(r.Context(), []int32{presetID})
	if err != nil {
		writeInternalError(w, r, "list preset options", err)
		return
	}
	writeData(w, http.StatusOK, toPresetResponse(preset, opts))
}

// Create handles POST /api/admin/option-presets.
func (h *PresetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.CreatePreset(r.Context(), req.toInput())
	if err != nil {
		writeServiceError(w, r, "create preset", http.StatusNotFound, err)
		return
	}
	writeData(w, http.StatusCreated, toPresetResponse(res.Preset, res.Options))
}

// Update handles PUT /api/admin/option-presets/{presetId}.
func (h *PresetHandler) Update(w http.ResponseWriter, r *http.Request) {
	presetID, ok := parseID(r, "presetId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid preset ID")
		return
	}

	var req presetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.UpdatePreset(r.Context(), presetID, req.toInput())
	if err != nil {
		writeServiceError(w, r, "update preset", http.StatusNotFound, err)
		return
	}
	writeData(w, http.StatusOK, toPresetResponse(res.Preset, res.Options))
}

// Delete handles DELETE /api/admin/option-presets/{presetId}. Options already
// applied to menus are kept.
func (h *PresetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	presetID, ok := parseID(r, "presetId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid preset ID")
		return
	}

	if _, err := h.store.DeleteOptionPreset(r.Context(), presetID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeInternalError(w, r, "delete preset", err)
		return
	}
	writeData(w, http.StatusOK, map[string]int32{"presetId": presetID})
}

// Apply handles POST /api/admin/menus/{menuId}/option-presets/{presetId}.
func (h *PresetHandler) Apply(w http.ResponseWriter, r *http.Request) {
	menuID, ok := parseID(r, "menuId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid menu ID")
		return
	}
	presetID, ok := parseID(r, "presetId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid preset ID")
		return
	}

	created, err := h.svc.ApplyPreset(r.Context(), menuID, presetID)
	if err != nil {
		writeServiceError(w, r, "apply preset", http.StatusNotFound, err)
		return
	}

	resp := make([]optionResponse, len(created))
	for i, o := range created {
		resp[i] = toOptionResponse(o)
	}
	writeData(w, http.StatusCreated, resp)
}
