package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tableorder/api/internal/service"
	"github.com/tableorder/api/internal/ws"
)

type sent struct {
	room    string
	message []byte
}

type fakeHub struct{ sent []sent }

func (h *fakeHub) Broadcast(room string, message []byte) {
	h.sent = append(h.sent, sent{room: room, message: message})
}

func (h *fakeHub) rooms() []string {
	out := make([]string, len(h.sent))
	for i, s := range h.sent {
		out[i] = s.room
	}
	return out
}

type fakeSink struct {
	keys   []string
	events []Event
}

func (s *fakeSink) Publish(_ context.Context, key string, ev Event) {
	s.keys = append(s.keys, key)
	s.events = append(s.events, ev)
}

func newTestDispatcher() (*Dispatcher, *fakeHub, *fakeSink) {
	hub := &fakeHub{}
	sink := &fakeSink{}
	d := NewDispatcher(hub, sink)
	d.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return d, hub, sink
}

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestOrderCreated_StaffAndSession(t *testing.T) {
	d, hub, sink := newTestDispatcher()
	sessionID := uuid.New()
	order := service.OrderDetail{ID: uuid.New(), SessionID: &sessionID, Status: "received"}

	d.OrderCreated(context.Background(), order)

	assert.Equal(t, []string{ws.StaffRoom, ws.SessionRoom(sessionID)}, hub.rooms())
	staff := decode(t, hub.sent[0].message)
	assert.Equal(t, TypeAdminNewOrder, staff["type"])
	assert.Equal(t, "2026-03-01T12:00:00Z", staff["timestamp"])
	assert.NotNil(t, staff["order"])
	customer := decode(t, hub.sent[1].message)
	assert.Equal(t, TypeNewOrder, customer["type"])

	require.Len(t, sink.keys, 2)
	assert.Equal(t, order.ID.String(), sink.keys[0])
}

func TestOrderUpdated_TakeawayOnlyStaff(t *testing.T) {
	d, hub, _ := newTestDispatcher()

	d.OrderUpdated(context.Background(), service.OrderDetail{ID: uuid.New(), Status: "ready"})

	assert.Equal(t, []string{ws.StaffRoom}, hub.rooms())
	assert.Equal(t, TypeAdminOrderUpdate, decode(t, hub.sent[0].message)["type"])
}

func TestBillRequestEvents(t *testing.T) {
	d, hub, _ := newTestDispatcher()
	req := service.BillRequestView{ID: uuid.New(), SessionID: uuid.New(), Status: "pending"}

	d.BillRequested(context.Background(), req)
	req.Status = "acknowledged"
	d.BillRequestUpdated(context.Background(), req)

	require.Len(t, hub.sent, 4)
	assert.Equal(t, TypeBillRequest, decode(t, hub.sent[0].message)["type"])
	update := decode(t, hub.sent[3].message)
	assert.Equal(t, TypeBillRequestUpdate, update["type"])
	assert.Equal(t, ws.SessionRoom(req.SessionID), hub.sent[3].room)
	assert.NotEmpty(t, update["message"])
	request, ok := update["request"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "acknowledged", request["status"])
}

func TestTableSessionUpdated(t *testing.T) {
	d, hub, sink := newTestDispatcher()
	s := service.TableSessionView{TableID: uuid.New(), SessionID: uuid.New(), Status: "closed"}

	d.TableSessionUpdated(context.Background(), s)

	assert.Equal(t, []string{ws.StaffRoom, ws.SessionRoom(s.SessionID)}, hub.rooms())
	m := decode(t, hub.sent[0].message)
	assert.Equal(t, TypeTableSessionUpdate, m["type"])
	assert.NotNil(t, m["table"])
	assert.Nil(t, m["order"])
	assert.Equal(t, []string{s.TableID.String()}, sink.keys)
}

func TestDispatcherWithoutSink(t *testing.T) {
	hub := &fakeHub{}
	d := NewDispatcher(hub, nil)
	d.OrderUpdated(context.Background(), service.OrderDetail{ID: uuid.New()})
	assert.Len(t, hub.sent, 1)
}
