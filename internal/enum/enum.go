package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusReceived  = "received"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusRejected  = "rejected"
	OrderStatusCancelled = "cancelled"
)

const (
	OrderItemStatusPending  = "pending"
	OrderItemStatusAccepted = "accepted"
	OrderItemStatusRejected = "rejected"
	OrderItemStatusReady    = "ready"
	OrderItemStatusServed   = "served"
)

const (
	BillRequestStatusPending      = "pending"
	BillRequestStatusAcknowledged = "acknowledged"
	BillRequestStatusCancelled    = "cancelled"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "admin"
	UserRoleWaiter  = "waiter"
	UserRoleKitchen = "kitchen"
)

const (
	PaymentMethodCash     = "cash"
	PaymentMethodTransfer = "transfer"
	PaymentMethodStripe   = "stripe"
)

const (
	DiscountTypePercent = "percent"
	DiscountTypeFixed   = "fixed"
)

// ── Group B: Labels (no DB constraint) ──

// Bill request close reasons.
const (
	CloseReasonCheckout  = "checkout"
	CloseReasonDismissed = "dismissed"
	CloseReasonExpired   = "expired"
)

// Item presentation labels shown on customer and kitchen screens.
const (
	PresentationQueued   = "Queued"
	PresentationCooking  = "Cooking"
	PresentationReady    = "Ready"
	PresentationServed   = "Served"
	PresentationRejected = "Rejected"
)

func IsPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodStripe:
		return true
	}
	return false
}

func IsDiscountType(s string) bool {
	return s == DiscountTypePercent || s == DiscountTypeFixed
}

func IsUserRole(s string) bool {
	switch s {
	case UserRoleAdmin, UserRoleWaiter, UserRoleKitchen:
		return true
	}
	return false
}
