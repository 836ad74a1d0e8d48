package router

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nvijayanand79/tracklite-sub001/internal/auth"
	"github.com/nvijayanand79/tracklite-sub001/internal/config"
	"github.com/nvijayanand79/tracklite-sub001/internal/enum"
	"github.com/nvijayanand79/tracklite-sub001/internal/handler"
	mw "github.com/nvijayanand79/tracklite-sub001/internal/middleware"
	"github.com/nvijayanand79/tracklite-sub001/internal/service"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
	"github.com/nvijayanand79/tracklite-sub001/internal/ws"
)

// New creates a Chi router with all application routes wired up under /api.
func New(cfg *config.Config, db *sql.DB, st *store.Store, otp *auth.OTPStore, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	invoiceService := service.NewInvoiceService(db, func(d store.DBTX) service.InvoiceStore {
		return store.New(d)
	})

	authHandler := handler.NewAuthHandler(st, otp, cfg.JWTSecret)
	receiptHandler := handler.NewReceiptHandler(st, hub)
	labTestHandler := handler.NewLabTestHandler(st, db, func(d store.DBTX) handler.LabTestStore {
		return store.New(d)
	}, hub)
	reportHandler := handler.NewReportHandler(st, hub)
	invoiceHandler := handler.NewInvoiceHandler(st, invoiceService, hub)
	ownerHandler := handler.NewOwnerHandler(st)
	adminHandler := handler.NewAdminHandler(st, db, func(d store.DBTX) handler.AdminStore {
		return store.New(d)
	}, db)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		adminHandler.RegisterPublicRoutes(r)
		r.Route("/auth", authHandler.RegisterRoutes)
		r.Route("/owner/auth", authHandler.RegisterOwnerAliases)

		// WebSocket route (handles auth internally via query param)
		r.Get("/ws/events", func(w http.ResponseWriter, r *http.Request) {
			ws.ServeWS(hub, cfg.JWTSecret, w, r)
		})

		// Staff routes (admin JWT)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole(enum.RoleAdmin))

			r.Route("/receipts", receiptHandler.RegisterRoutes)
			r.Route("/labtests", labTestHandler.RegisterRoutes)
			r.Route("/reports", reportHandler.RegisterRoutes)
			r.Route("/retest-requests", reportHandler.RegisterRetestRoutes)
			r.Route("/invoices", invoiceHandler.RegisterRoutes)
			adminHandler.RegisterAdminRoutes(r)
		})

		// Owner portal (owner OTP token or admin JWT)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole(enum.RoleOwner, enum.RoleAdmin))

			r.Route("/owner", ownerHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
