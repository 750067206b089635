package router

import (
	"net/http"

	"github.com/coffee-order/api/internal/config"
	"github.com/coffee-order/api/internal/database"
	"github.com/coffee-order/api/internal/handler"
	mw "github.com/coffee-order/api/internal/middleware"
	"github.com/coffee-order/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps are the collaborators the router wires into handlers.
// Idempotency may be nil to disable Idempotency-Key support.
type Deps struct {
	Queries     *database.Queries
	Pool        service.TxBeginner
	Orders      *service.OrderService
	Idempotency handler.IdempotencyStore
	WebSocket   http.Handler
}

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, deps Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mw.Debug(cfg.Debug))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", mw.IdempotencyHeader},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.WebSocket != nil {
		r.Get("/ws/orders", deps.WebSocket.ServeHTTP)
	}

	q := deps.Queries
	presetService := service.NewPresetService(deps.Pool, func(db database.DBTX) service.PresetStore {
		return database.New(db)
	})

	orderHandler := handler.NewOrderHandler(deps.Orders, q, deps.Idempotency)
	menuHandler := handler.NewMenuHandler(q)
	optionHandler := handler.NewOptionHandler(q)
	presetHandler := handler.NewPresetHandler(presetService, q)
	adminHandler := handler.NewAdminHandler(q)

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", orderHandler.RegisterRoutes)
		r.Route("/menus", menuHandler.RegisterRoutes)

		r.Route("/admin", func(r chi.Router) {
			adminHandler.RegisterRoutes(r)
			r.Patch("/orders/{orderId}/status", orderHandler.UpdateStatus)

			r.Route("/menus", func(r chi.Router) {
				menuHandler.RegisterAdminRoutes(r)
				r.Post("/{menuId}/option-presets/{presetId}", presetHandler.Apply)
			})
			r.Route("/options", optionHandler.RegisterRoutes)
			r.Route("/option-presets", presetHandler.RegisterRoutes)
		})
	})

	return r
}
