package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/coffee-order/api/internal/middleware"
	"github.com/coffee-order/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode JSON response", "err", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Error: msg})
}

func writeErrorDetails(w http.ResponseWriter, status int, msg string, details any) {
	writeJSON(w, status, envelope{Error: msg, Details: details})
}

// writeInternalError logs err and answers 500. The error text and a stack
// trace are only exposed when the Debug middleware is enabled.
func writeInternalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error(op, "err", err, "path", r.URL.Path)
	resp := envelope{Error: "internal server error"}
	if middleware.DebugFromContext(r.Context()) {
		resp.Error = err.Error()
		resp.Stack = string(debug.Stack())
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

// --- Service error mapping ---

type stockDetails struct {
	MenuID    int32  `json:"menuId"`
	MenuName  string `json:"menuName"`
	Requested int32  `json:"requested"`
	Available int32  `json:"available"`
}

type optionDetails struct {
	OptionID int32 `json:"optionId"`
	MenuID   int32 `json:"menuId"`
}

type transitionDetails struct {
	CurrentStatus   string `json:"currentStatus"`
	RequestedStatus string `json:"requestedStatus"`
}

// writeServiceError maps an OrderService error onto a response.
// notFound is the status used for NotFoundError: 404 when the path names the
// missing entity, 400 when the entity is only referenced from a request body.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, notFound int, err error) {
	var (
		stockErr      *service.InsufficientStockError
		optionErr     *service.InvalidOptionError
		transitionErr *service.InvalidTransitionError
		notFoundErr   *service.NotFoundError
	)

	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &stockErr):
		writeErrorDetails(w, http.StatusBadRequest, "Insufficient stock", stockDetails{
			MenuID:    stockErr.MenuID,
			MenuName:  stockErr.MenuName,
			Requested: stockErr.Requested,
			Available: stockErr.Available,
		})
	case errors.As(err, &optionErr):
		writeErrorDetails(w, http.StatusBadRequest, "Invalid option", optionDetails{
			OptionID: optionErr.OptionID,
			MenuID:   optionErr.MenuID,
		})
	case errors.As(err, &transitionErr):
		writeErrorDetails(w, http.StatusBadRequest, "Invalid status transition", transitionDetails{
			CurrentStatus:   string(transitionErr.Current),
			RequestedStatus: string(transitionErr.Requested),
		})
	case errors.As(err, &notFoundErr):
		writeError(w, notFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrBusy):
		slog.Warn(op, "err", err)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "server busy, please retry")
	default:
		writeInternalError(w, r, op, err)
	}
}

// --- Request helpers ---

// decodeBody decodes a JSON body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseID reads a positive int32 path parameter.
func parseID(r *http.Request, name string) (int32, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 32)
	if err != nil || v <= 0 {
		return 0, false
	}
	return int32(v), true
}

// PostgreSQL constraint violation codes.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
