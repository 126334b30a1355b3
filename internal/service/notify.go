package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/tableorder/api/internal/database"
)

// Notifier receives domain changes after they are committed. Delivery is
// fire-and-forget; clients reconcile with a fetch on (re)connect.
type Notifier interface {
	OrderCreated(ctx context.Context, order OrderDetail)
	OrderUpdated(ctx context.Context, order OrderDetail)
	BillRequested(ctx context.Context, req BillRequestView)
	BillRequestUpdated(ctx context.Context, req BillRequestView)
	TableSessionUpdated(ctx context.Context, session TableSessionView)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) OrderCreated(context.Context, OrderDetail)             {}
func (NopNotifier) OrderUpdated(context.Context, OrderDetail)             {}
func (NopNotifier) BillRequested(context.Context, BillRequestView)        {}
func (NopNotifier) BillRequestUpdated(context.Context, BillRequestView)   {}
func (NopNotifier) TableSessionUpdated(context.Context, TableSessionView) {}

// Actor is the authenticated staff member performing an operation.
type Actor struct {
	UserID uuid.UUID
	Role   database.UserRole
}
