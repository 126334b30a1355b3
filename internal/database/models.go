package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleWaiter  UserRole = "waiter"
	UserRoleKitchen UserRole = "kitchen"
)

type MenuItemStatus string

const (
	MenuItemStatusAvailable   MenuItemStatus = "available"
	MenuItemStatusUnavailable MenuItemStatus = "unavailable"
	MenuItemStatusSoldOut     MenuItemStatus = "sold_out"
)

type OrderStatus string

const (
	OrderStatusReceived  OrderStatus = "received"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type OrderItemStatus string

const (
	OrderItemStatusPending  OrderItemStatus = "pending"
	OrderItemStatusAccepted OrderItemStatus = "accepted"
	OrderItemStatusRejected OrderItemStatus = "rejected"
	OrderItemStatusReady    OrderItemStatus = "ready"
	OrderItemStatusServed   OrderItemStatus = "served"
)

type DiscountType string

const (
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeFixed   DiscountType = "fixed"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodStripe   PaymentMethod = "stripe"
)

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusClosed SessionStatus = "closed"
)

type BillRequestStatus string

const (
	BillRequestStatusPending      BillRequestStatus = "pending"
	BillRequestStatusAcknowledged BillRequestStatus = "acknowledged"
	BillRequestStatusCancelled    BillRequestStatus = "cancelled"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           UserRole  `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type MenuItem struct {
	ID                uuid.UUID          `json:"id"`
	CategoryID        uuid.UUID          `json:"category_id"`
	Name              string             `json:"name"`
	Description       pgtype.Text        `json:"description"`
	Status            MenuItemStatus     `json:"status"`
	Price             pgtype.Numeric     `json:"price"`
	PrepTimeMinutes   int32              `json:"prep_time_minutes"`
	ImageUrl          pgtype.Text        `json:"image_url"`
	IsChefRecommended bool               `json:"is_chef_recommended"`
	DeletedAt         pgtype.Timestamptz `json:"deleted_at"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type MenuItemModifier struct {
	ID         uuid.UUID      `json:"id"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
	IsActive   bool           `json:"is_active"`
}

type DiningTable struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Capacity  int32     `json:"capacity"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type TableSession struct {
	ID        uuid.UUID          `json:"id"`
	TableID   uuid.UUID          `json:"table_id"`
	Status    SessionStatus      `json:"status"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   pgtype.Timestamptz `json:"ended_at"`
}

type Coupon struct {
	ID             uuid.UUID          `json:"id"`
	Code           string             `json:"code"`
	DiscountType   DiscountType       `json:"discount_type"`
	DiscountValue  pgtype.Numeric     `json:"discount_value"`
	MinOrderAmount pgtype.Numeric     `json:"min_order_amount"`
	UsageLimit     pgtype.Int4        `json:"usage_limit"`
	UsedCount      int32              `json:"used_count"`
	StartsAt       pgtype.Timestamptz `json:"starts_at"`
	ExpiresAt      pgtype.Timestamptz `json:"expires_at"`
	IsActive       bool               `json:"is_active"`
	CreatedAt      time.Time          `json:"created_at"`
}

type Bill struct {
	ID               uuid.UUID          `json:"id"`
	TableID          pgtype.UUID        `json:"table_id"`
	SessionID        pgtype.UUID        `json:"session_id"`
	Subtotal         pgtype.Numeric     `json:"subtotal"`
	DiscountType     pgtype.Text        `json:"discount_type"`
	DiscountValue    pgtype.Numeric     `json:"discount_value"`
	CouponID         pgtype.UUID        `json:"coupon_id"`
	DiscountAmount   pgtype.Numeric     `json:"discount_amount"`
	TaxRate          pgtype.Numeric     `json:"tax_rate"`
	TaxAmount        pgtype.Numeric     `json:"tax_amount"`
	FinalAmount      pgtype.Numeric     `json:"final_amount"`
	PaymentMethod    PaymentMethod      `json:"payment_method"`
	Digest           string             `json:"digest"`
	ProcessedBy      uuid.UUID          `json:"processed_by"`
	SessionStartedAt pgtype.Timestamptz `json:"session_started_at"`
	SessionEndedAt   pgtype.Timestamptz `json:"session_ended_at"`
	CreatedAt        time.Time          `json:"created_at"`
}

type Order struct {
	ID            uuid.UUID      `json:"id"`
	TableID       pgtype.UUID    `json:"table_id"`
	SessionID     pgtype.UUID    `json:"session_id"`
	Status        OrderStatus    `json:"status"`
	PaymentMethod pgtype.Text    `json:"payment_method"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
	Note          pgtype.Text    `json:"note"`
	BillID        pgtype.UUID    `json:"bill_id"`
	CreatedBy     pgtype.UUID    `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type OrderItem struct {
	ID             uuid.UUID       `json:"id"`
	OrderID        uuid.UUID       `json:"order_id"`
	MenuItemID     uuid.UUID       `json:"menu_item_id"`
	Name           string          `json:"name"`
	Quantity       int32           `json:"quantity"`
	UnitPrice      pgtype.Numeric  `json:"unit_price"`
	ModifiersTotal pgtype.Numeric  `json:"modifiers_total"`
	Subtotal       pgtype.Numeric  `json:"subtotal"`
	Status         OrderItemStatus `json:"status"`
	Note           pgtype.Text     `json:"note"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type OrderItemModifier struct {
	ID          uuid.UUID      `json:"id"`
	OrderItemID uuid.UUID      `json:"order_item_id"`
	ModifierID  uuid.UUID      `json:"modifier_id"`
	Name        string         `json:"name"`
	Price       pgtype.Numeric `json:"price"`
}

type BillRequest struct {
	ID             uuid.UUID          `json:"id"`
	TableID        uuid.UUID          `json:"table_id"`
	SessionID      uuid.UUID          `json:"session_id"`
	Status         BillRequestStatus  `json:"status"`
	Note           pgtype.Text        `json:"note"`
	CloseReason    pgtype.Text        `json:"close_reason"`
	CreatedAt      time.Time          `json:"created_at"`
	AcknowledgedAt pgtype.Timestamptz `json:"acknowledged_at"`
	AcknowledgedBy pgtype.UUID        `json:"acknowledged_by"`
	CancelledAt    pgtype.Timestamptz `json:"cancelled_at"`
}
