package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tableorder/api/internal/billing"
	"github.com/tableorder/api/internal/config"
	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/handler"
	mw "github.com/tableorder/api/internal/middleware"
	"github.com/tableorder/api/internal/qr"
	"github.com/tableorder/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Customer routes are public and scoped by table session; staff routes
// require a bearer token and, where noted, a role.
func New(cfg *config.Config, queries *database.Queries, hub *ws.Hub, svc Services) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Transfer-Amount"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	qrGen := qr.DefaultGenerator{BaseURL: cfg.PublicBaseURL}
	transfer := billing.TransferAccount{
		BankBIN:     cfg.TransferBankBIN,
		AccountNo:   cfg.TransferAccountNo,
		AccountName: cfg.TransferAccountName,
	}

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	categoryHandler := handler.NewCategoryHandler(queries)
	menuHandler := handler.NewMenuHandler(queries)
	tableHandler := handler.NewTableHandler(queries, svc.Sessions, qrGen)
	orderHandler := handler.NewOrderHandler(svc.Orders, queries)
	billingHandler := handler.NewBillingHandler(svc.Billing, transfer, qrGen)
	billRequestHandler := handler.NewBillRequestHandler(svc.BillRequests)
	couponHandler := handler.NewCouponHandler(svc.Coupons)
	reportsHandler := handler.NewReportsHandler(queries)

	staff := mw.Authenticate(cfg.JWTSecret)
	admin := mw.RequireRole(database.UserRoleAdmin)
	cashier := mw.RequireRole(database.UserRoleAdmin, database.UserRoleWaiter)

	authHandler.RegisterRoutes(r)
	r.With(staff).Group(authHandler.RegisterStaffRoutes)

	// WebSocket routes (staff authenticate via ?token=, customers via session)
	r.Get("/ws/staff", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeStaff(hub, cfg.JWTSecret, w, r)
	})
	r.Get("/ws/tables/{tableId}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeTable(hub, queries, w, r)
	})

	r.Route("/categories", func(r chi.Router) {
		categoryHandler.RegisterRoutes(r)
		r.With(staff, admin).Group(categoryHandler.RegisterAdminRoutes)
	})

	r.Route("/menu/items", func(r chi.Router) {
		menuHandler.RegisterRoutes(r)
		r.With(staff, admin).Group(menuHandler.RegisterAdminRoutes)
	})

	r.Route("/tables", func(r chi.Router) {
		tableHandler.RegisterRoutes(r)
		r.With(staff).Group(tableHandler.RegisterStaffRoutes)
		r.With(staff, admin).Group(tableHandler.RegisterAdminRoutes)
	})

	r.Route("/orders", func(r chi.Router) {
		orderHandler.RegisterRoutes(r)
		r.With(staff).Group(orderHandler.RegisterStaffRoutes)
	})

	r.Route("/bill-requests", func(r chi.Router) {
		billRequestHandler.RegisterRoutes(r)
		r.With(staff).Group(billRequestHandler.RegisterStaffRoutes)
	})

	r.With(staff, cashier).Route("/billing", billingHandler.RegisterRoutes)
	r.With(staff, cashier).Route("/coupons", couponHandler.RegisterRoutes)
	r.With(staff, admin).Route("/reports", reportsHandler.RegisterRoutes)

	log.Println("Router initialized with all handlers")
	return r
}
