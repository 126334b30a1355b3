package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/orderflow"
)

// Views are the JSON shapes shared by HTTP responses and realtime events.

type OrderItemModifierView struct {
	ID         uuid.UUID `json:"id"`
	ModifierID uuid.UUID `json:"modifier_id"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
}

type OrderItemView struct {
	ID             uuid.UUID               `json:"id"`
	OrderID        uuid.UUID               `json:"order_id"`
	MenuItemID     uuid.UUID               `json:"menu_item_id"`
	Name           string                  `json:"name"`
	Quantity       int32                   `json:"quantity"`
	UnitPrice      string                  `json:"unit_price"`
	ModifiersTotal string                  `json:"modifiers_total"`
	Subtotal       string                  `json:"subtotal"`
	Status         string                  `json:"status"`
	DisplayStatus  string                  `json:"display_status"`
	Note           *string                 `json:"note"`
	Modifiers      []OrderItemModifierView `json:"modifiers"`
	CreatedAt      time.Time               `json:"created_at"`
}

type OrderDetail struct {
	ID            uuid.UUID       `json:"id"`
	TableID       *uuid.UUID      `json:"table_id"`
	SessionID     *uuid.UUID      `json:"session_id"`
	Status        string          `json:"status"`
	PaymentMethod *string         `json:"payment_method"`
	TotalAmount   string          `json:"total_amount"`
	Note          *string         `json:"note"`
	BillID        *uuid.UUID      `json:"bill_id"`
	AllItemsDone  bool            `json:"all_items_done"`
	Items         []OrderItemView `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type BillRequestView struct {
	ID             uuid.UUID  `json:"id"`
	TableID        uuid.UUID  `json:"table_id"`
	SessionID      uuid.UUID  `json:"session_id"`
	Status         string     `json:"status"`
	Note           *string    `json:"note"`
	CloseReason    *string    `json:"close_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy *uuid.UUID `json:"acknowledged_by,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
}

type TableSessionView struct {
	TableID   uuid.UUID  `json:"table_id"`
	SessionID uuid.UUID  `json:"session_id"`
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

func NewOrderDetail(o database.Order, items []database.OrderItem, mods []database.OrderItemModifier) OrderDetail {
	modsByItem := make(map[uuid.UUID][]OrderItemModifierView)
	for _, m := range mods {
		modsByItem[m.OrderItemID] = append(modsByItem[m.OrderItemID], OrderItemModifierView{
			ID:         m.ID,
			ModifierID: m.ModifierID,
			Name:       m.Name,
			Price:      database.NumericString(m.Price),
		})
	}

	detail := OrderDetail{
		ID:            o.ID,
		TableID:       uuidPtr(o.TableID),
		SessionID:     uuidPtr(o.SessionID),
		Status:        string(o.Status),
		PaymentMethod: textPtr(o.PaymentMethod),
		TotalAmount:   database.NumericString(o.TotalAmount),
		Note:          textPtr(o.Note),
		BillID:        uuidPtr(o.BillID),
		Items:         make([]OrderItemView, 0, len(items)),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	statuses := make([]orderflow.ItemStatus, 0, len(items))
	for _, it := range items {
		if it.OrderID != o.ID {
			continue
		}
		statuses = append(statuses, it.Status)
		itemMods := modsByItem[it.ID]
		if itemMods == nil {
			itemMods = []OrderItemModifierView{}
		}
		detail.Items = append(detail.Items, OrderItemView{
			ID:             it.ID,
			OrderID:        it.OrderID,
			MenuItemID:     it.MenuItemID,
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPrice:      database.NumericString(it.UnitPrice),
			ModifiersTotal: database.NumericString(it.ModifiersTotal),
			Subtotal:       database.NumericString(it.Subtotal),
			Status:         string(it.Status),
			DisplayStatus:  orderflow.Presentation(it.Status),
			Note:           textPtr(it.Note),
			Modifiers:      itemMods,
			CreatedAt:      it.CreatedAt,
		})
	}
	detail.AllItemsDone = orderflow.AllItemsDone(statuses)
	return detail
}

func NewBillRequestView(r database.BillRequest) BillRequestView {
	return BillRequestView{
		ID:             r.ID,
		TableID:        r.TableID,
		SessionID:      r.SessionID,
		Status:         string(r.Status),
		Note:           textPtr(r.Note),
		CloseReason:    textPtr(r.CloseReason),
		CreatedAt:      r.CreatedAt,
		AcknowledgedAt: timePtr(r.AcknowledgedAt),
		AcknowledgedBy: uuidPtr(r.AcknowledgedBy),
		CancelledAt:    timePtr(r.CancelledAt),
	}
}

func NewTableSessionView(s database.TableSession) TableSessionView {
	return TableSessionView{
		TableID:   s.TableID,
		SessionID: s.ID,
		Status:    string(s.Status),
		StartedAt: s.StartedAt,
		EndedAt:   timePtr(s.EndedAt),
	}
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
