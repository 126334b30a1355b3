// Package events turns committed domain changes into realtime events. Each
// event goes to the websocket rooms that care about it and, when a sink is
// configured, onto the order event stream.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tableorder/api/internal/service"
	"github.com/tableorder/api/internal/ws"
)

// Event types pushed to clients.
const (
	TypeAdminNewOrder      = "admin_new_order"
	TypeNewOrder           = "new_order"
	TypeAdminOrderUpdate   = "admin_order_update"
	TypeUpdateOrder        = "update_order"
	TypeBillRequest        = "bill_request"
	TypeBillRequestUpdate  = "bill_request_update"
	TypeTableSessionUpdate = "table_session_update"
)

// Event is the wire shape of every realtime message.
type Event struct {
	Type      string                    `json:"type"`
	Order     *service.OrderDetail      `json:"order,omitempty"`
	Table     *service.TableSessionView `json:"table,omitempty"`
	Request   *service.BillRequestView  `json:"request,omitempty"`
	Message   string                    `json:"message,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
}

// Broadcaster delivers a message to every client in a room.
type Broadcaster interface {
	Broadcast(room string, message []byte)
}

// Sink receives every event after it has been broadcast.
type Sink interface {
	Publish(ctx context.Context, key string, ev Event)
}

// Dispatcher implements service.Notifier.
type Dispatcher struct {
	hub  Broadcaster
	sink Sink
	now  func() time.Time
}

var _ service.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher. sink may be nil.
func NewDispatcher(hub Broadcaster, sink Sink) *Dispatcher {
	return &Dispatcher{hub: hub, sink: sink, now: time.Now}
}

func (d *Dispatcher) OrderCreated(ctx context.Context, order service.OrderDetail) {
	d.emit(ctx, order.ID, Event{Type: TypeAdminNewOrder, Order: &order, Message: "Có đơn hàng mới"}, ws.StaffRoom)
	if order.SessionID != nil {
		d.emit(ctx, order.ID, Event{Type: TypeNewOrder, Order: &order}, ws.SessionRoom(*order.SessionID))
	}
}

func (d *Dispatcher) OrderUpdated(ctx context.Context, order service.OrderDetail) {
	d.emit(ctx, order.ID, Event{Type: TypeAdminOrderUpdate, Order: &order}, ws.StaffRoom)
	if order.SessionID != nil {
		d.emit(ctx, order.ID, Event{Type: TypeUpdateOrder, Order: &order}, ws.SessionRoom(*order.SessionID))
	}
}

func (d *Dispatcher) BillRequested(ctx context.Context, req service.BillRequestView) {
	d.emit(ctx, req.ID, Event{Type: TypeBillRequest, Request: &req, Message: "Khách yêu cầu thanh toán"},
		ws.StaffRoom, ws.SessionRoom(req.SessionID))
}

func (d *Dispatcher) BillRequestUpdated(ctx context.Context, req service.BillRequestView) {
	ev := Event{Type: TypeBillRequestUpdate, Request: &req}
	if req.Status == "acknowledged" {
		ev.Message = "Nhân viên đang đến bàn"
	}
	d.emit(ctx, req.ID, ev, ws.StaffRoom, ws.SessionRoom(req.SessionID))
}

func (d *Dispatcher) TableSessionUpdated(ctx context.Context, session service.TableSessionView) {
	d.emit(ctx, session.TableID, Event{Type: TypeTableSessionUpdate, Table: &session},
		ws.StaffRoom, ws.SessionRoom(session.SessionID))
}

func (d *Dispatcher) emit(ctx context.Context, key uuid.UUID, ev Event, rooms ...string) {
	ev.Timestamp = d.now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", ev.Type, err)
		return
	}
	for _, room := range rooms {
		d.hub.Broadcast(room, payload)
	}
	if d.sink != nil {
		d.sink.Publish(ctx, key.String(), ev)
	}
}
