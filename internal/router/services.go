package router

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/service"
)

// Services bundles the domain services the HTTP layer calls.
type Services struct {
	Orders       *service.OrderService
	Billing      *service.BillingService
	BillRequests *service.BillRequestService
	Coupons      *service.CouponService
	Sessions     *service.SessionService
}

// NewServices wires every service to the pool. Transactional services get
// a store factory so they can rebind queries to a pgx.Tx.
func NewServices(pool *pgxpool.Pool, queries *database.Queries, notifier service.Notifier) Services {
	return Services{
		Orders: service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
			return database.New(db)
		}, notifier),
		Billing: service.NewBillingService(pool, func(db database.DBTX) service.BillingStore {
			return database.New(db)
		}, notifier),
		BillRequests: service.NewBillRequestService(pool, func(db database.DBTX) service.BillRequestStore {
			return database.New(db)
		}, notifier),
		Coupons:  service.NewCouponService(queries),
		Sessions: service.NewSessionService(queries, notifier),
	}
}
