package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/orderflow"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	committed   bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr == nil {
		m.committed = true
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	created         []OrderDetail
	updated         []OrderDetail
	requested       []BillRequestView
	requestsUpdated []BillRequestView
	sessions        []TableSessionView
}

func (n *recordingNotifier) OrderCreated(_ context.Context, o OrderDetail) {
	n.created = append(n.created, o)
}
func (n *recordingNotifier) OrderUpdated(_ context.Context, o OrderDetail) {
	n.updated = append(n.updated, o)
}
func (n *recordingNotifier) BillRequested(_ context.Context, r BillRequestView) {
	n.requested = append(n.requested, r)
}
func (n *recordingNotifier) BillRequestUpdated(_ context.Context, r BillRequestView) {
	n.requestsUpdated = append(n.requestsUpdated, r)
}
func (n *recordingNotifier) TableSessionUpdated(_ context.Context, s TableSessionView) {
	n.sessions = append(n.sessions, s)
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	getSessionForUpdateFn            func(ctx context.Context, id uuid.UUID) (database.TableSession, error)
	getMenuItemFn                    func(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	getModifierForOrderFn            func(ctx context.Context, id uuid.UUID) (database.MenuItemModifier, error)
	createOrderFn                    func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn                func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	createOrderItemModFn             func(ctx context.Context, arg database.CreateOrderItemModifierParams) (database.OrderItemModifier, error)
	getOrderForUpdateFn              func(ctx context.Context, id uuid.UUID) (database.Order, error)
	getOrderItemFn                   func(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	listOrderItemsByOrderFn          func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	listOrderItemModifiersByOrdersFn func(ctx context.Context, ids []uuid.UUID) ([]database.OrderItemModifier, error)
	updateOrderItemStatusFn          func(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	updateOrderStatusFn              func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	recalculateOrderTotalFn          func(ctx context.Context, id uuid.UUID) (database.Order, error)
	rejectOpenItemsFn                func(ctx context.Context, orderID uuid.UUID) error
}

func (m *mockOrderStore) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (database.TableSession, error) {
	return m.getSessionForUpdateFn(ctx, id)
}
func (m *mockOrderStore) GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
	return m.getMenuItemFn(ctx, id)
}
func (m *mockOrderStore) GetModifierForOrder(ctx context.Context, id uuid.UUID) (database.MenuItemModifier, error) {
	return m.getModifierForOrderFn(ctx, id)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItemModifier(ctx context.Context, arg database.CreateOrderItemModifierParams) (database.OrderItemModifier, error) {
	return m.createOrderItemModFn(ctx, arg)
}
func (m *mockOrderStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderForUpdateFn(ctx, id)
}
func (m *mockOrderStore) GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error) {
	return m.getOrderItemFn(ctx, id)
}
func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.listOrderItemsByOrderFn(ctx, orderID)
}
func (m *mockOrderStore) ListOrderItemModifiersByOrders(ctx context.Context, ids []uuid.UUID) ([]database.OrderItemModifier, error) {
	return m.listOrderItemModifiersByOrdersFn(ctx, ids)
}
func (m *mockOrderStore) UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error) {
	return m.updateOrderItemStatusFn(ctx, arg)
}
func (m *mockOrderStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	return m.updateOrderStatusFn(ctx, arg)
}
func (m *mockOrderStore) RecalculateOrderTotal(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.recalculateOrderTotalFn(ctx, id)
}
func (m *mockOrderStore) RejectOpenItems(ctx context.Context, orderID uuid.UUID) error {
	return m.rejectOpenItemsFn(ctx, orderID)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	exp, _ := decimal.NewFromString(expected)
	return database.NumericToDecimal(n).Equal(exp)
}

// newTestService creates an OrderService with mocked dependencies.
func newTestService(store *mockOrderStore) (*OrderService, *mockTx, *recordingNotifier) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	notifier := &recordingNotifier{}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, newStore, notifier), tx, notifier
}

var (
	waiter  = Actor{UserID: uuid.New(), Role: database.UserRoleWaiter}
	kitchen = Actor{UserID: uuid.New(), Role: database.UserRoleKitchen}
	admin   = Actor{UserID: uuid.New(), Role: database.UserRoleAdmin}
)

// createStore returns a mockOrderStore wired for order creation against one
// active session and one menu item priced 50000 with a 5000 modifier.
func createStore(tableID, sessionID, menuItemID, modifierID uuid.UUID) *mockOrderStore {
	return &mockOrderStore{
		getSessionForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.TableSession, error) {
			if id != sessionID {
				return database.TableSession{}, pgx.ErrNoRows
			}
			return database.TableSession{ID: sessionID, TableID: tableID, Status: database.SessionStatusActive}, nil
		},
		getMenuItemFn: func(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
			if id != menuItemID {
				return database.MenuItem{}, pgx.ErrNoRows
			}
			return database.MenuItem{
				ID:     menuItemID,
				Name:   "Phở bò",
				Status: database.MenuItemStatusAvailable,
				Price:  makeNumeric("50000.00"),
			}, nil
		},
		getModifierForOrderFn: func(ctx context.Context, id uuid.UUID) (database.MenuItemModifier, error) {
			if id != modifierID {
				return database.MenuItemModifier{}, pgx.ErrNoRows
			}
			return database.MenuItemModifier{ID: modifierID, MenuItemID: menuItemID, Name: "Thêm trứng", Price: makeNumeric("5000.00")}, nil
		},
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:          uuid.New(),
				TableID:     arg.TableID,
				SessionID:   arg.SessionID,
				Status:      database.OrderStatusReceived,
				TotalAmount: makeNumeric("0"),
				Note:        arg.Note,
				CreatedBy:   arg.CreatedBy,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{
				ID:             uuid.New(),
				OrderID:        arg.OrderID,
				MenuItemID:     arg.MenuItemID,
				Name:           arg.Name,
				Quantity:       arg.Quantity,
				UnitPrice:      arg.UnitPrice,
				ModifiersTotal: arg.ModifiersTotal,
				Subtotal:       arg.Subtotal,
				Status:         database.OrderItemStatusPending,
				Note:           arg.Note,
			}, nil
		},
		createOrderItemModFn: func(ctx context.Context, arg database.CreateOrderItemModifierParams) (database.OrderItemModifier, error) {
			return database.OrderItemModifier{
				ID:          uuid.New(),
				OrderItemID: arg.OrderItemID,
				ModifierID:  arg.ModifierID,
				Name:        arg.Name,
				Price:       arg.Price,
			}, nil
		},
	}
}

// orderFixture is an in-memory order whose store methods honour the
// conditional updates the real queries perform.
type orderFixture struct {
	order database.Order
	items []*database.OrderItem
}

func newOrderFixture(status database.OrderStatus, itemStatuses ...database.OrderItemStatus) *orderFixture {
	f := &orderFixture{order: database.Order{
		ID:          uuid.New(),
		Status:      status,
		TotalAmount: makeNumeric("0"),
	}}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, s := range itemStatuses {
		f.items = append(f.items, &database.OrderItem{
			ID:        uuid.New(),
			OrderID:   f.order.ID,
			Name:      "Cơm tấm",
			Quantity:  2,
			UnitPrice: makeNumeric("50000.00"),
			Subtotal:  makeNumeric("100000.00"),
			Status:    s,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return f
}

func (f *orderFixture) find(id uuid.UUID) *database.OrderItem {
	for _, it := range f.items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func (f *orderFixture) store() *mockOrderStore {
	return &mockOrderStore{
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			if id != f.order.ID {
				return database.Order{}, pgx.ErrNoRows
			}
			return f.order, nil
		},
		getOrderItemFn: func(ctx context.Context, id uuid.UUID) (database.OrderItem, error) {
			if it := f.find(id); it != nil {
				return *it, nil
			}
			return database.OrderItem{}, pgx.ErrNoRows
		},
		listOrderItemsByOrderFn: func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
			out := make([]database.OrderItem, len(f.items))
			for i, it := range f.items {
				out[i] = *it
			}
			return out, nil
		},
		listOrderItemModifiersByOrdersFn: func(ctx context.Context, ids []uuid.UUID) ([]database.OrderItemModifier, error) {
			return nil, nil
		},
		updateOrderItemStatusFn: func(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error) {
			it := f.find(arg.ID)
			if it == nil || it.Status != arg.ExpectedStatus {
				return database.OrderItem{}, pgx.ErrNoRows
			}
			it.Status = arg.Status
			return *it, nil
		},
		updateOrderStatusFn: func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
			if arg.ID != f.order.ID || f.order.Status != arg.ExpectedStatus {
				return database.Order{}, pgx.ErrNoRows
			}
			f.order.Status = arg.Status
			return f.order, nil
		},
		recalculateOrderTotalFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			total := decimal.Zero
			closed := f.order.Status == database.OrderStatusRejected || f.order.Status == database.OrderStatusCancelled
			for _, it := range f.items {
				if !closed && orderflow.Billable(it.Status) {
					total = total.Add(database.NumericToDecimal(it.Subtotal))
				}
			}
			f.order.TotalAmount = database.DecimalToNumeric(total)
			return f.order, nil
		},
		rejectOpenItemsFn: func(ctx context.Context, orderID uuid.UUID) error {
			for _, it := range f.items {
				if it.Status == database.OrderItemStatusPending || it.Status == database.OrderItemStatusAccepted {
					it.Status = database.OrderItemStatusRejected
				}
			}
			return nil
		},
	}
}

// --- CreateOrder ---

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc, _, _ := newTestService(&mockOrderStore{})
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{})
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got %v", err)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	tableID, sessionID, menuItemID, modifierID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name    string
		item    CreateOrderItemRequest
		mutate  func(*mockOrderStore)
		wantErr error
	}{
		{
			name:    "zero quantity",
			item:    CreateOrderItemRequest{MenuItemID: menuItemID.String(), Quantity: 0},
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "quantity above cap",
			item:    CreateOrderItemRequest{MenuItemID: menuItemID.String(), Quantity: MaxItemQuantity + 1},
			wantErr: ErrInvalidQuantity,
		},
		{
			name: "total beyond money column",
			item: CreateOrderItemRequest{MenuItemID: menuItemID.String(), Quantity: MaxItemQuantity},
			mutate: func(s *mockOrderStore) {
				s.getMenuItemFn = func(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
					return database.MenuItem{ID: id, Status: database.MenuItemStatusAvailable, Price: makeNumeric("9999999999.99")}, nil
				}
			},
			wantErr: ErrOrderTooLarge,
		},
		{
			name:    "bad menu item id",
			item:    CreateOrderItemRequest{MenuItemID: "nope", Quantity: 1},
			wantErr: ErrInvalidMenuItemID,
		},
		{
			name:    "menu item missing",
			item:    CreateOrderItemRequest{MenuItemID: uuid.NewString(), Quantity: 1},
			wantErr: ErrMenuItemNotFound,
		},
		{
			name: "menu item sold out",
			item: CreateOrderItemRequest{MenuItemID: menuItemID.String(), Quantity: 1},
			mutate: func(s *mockOrderStore) {
				s.getMenuItemFn = func(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
					return database.MenuItem{ID: id, Status: database.MenuItemStatusSoldOut, Price: makeNumeric("1000")}, nil
				}
			},
			wantErr: ErrMenuItemUnavailable,
		},
		{
			name:    "modifier missing",
			item:    CreateOrderItemRequest{MenuItemID: menuItemID.String(), Quantity: 1, ModifierIDs: []string{uuid.NewString()}},
			wantErr: ErrModifierNotFound,
		},
		{
			name: "modifier of another item",
			item: CreateOrderItemRequest{MenuItemID: menuItemID.String(), Quantity: 1, ModifierIDs: []string{modifierID.String()}},
			mutate: func(s *mockOrderStore) {
				s.getModifierForOrderFn = func(ctx context.Context, id uuid.UUID) (database.MenuItemModifier, error) {
					return database.MenuItemModifier{ID: id, MenuItemID: uuid.New(), Price: makeNumeric("1000")}, nil
				}
			},
			wantErr: ErrModifierMismatch,
		},
		{
			name:    "modifier twice",
			item:    CreateOrderItemRequest{MenuItemID: menuItemID.String(), Quantity: 1, ModifierIDs: []string{modifierID.String(), modifierID.String()}},
			wantErr: ErrDuplicateModifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := createStore(tableID, sessionID, menuItemID, modifierID)
			if tt.mutate != nil {
				tt.mutate(store)
			}
			svc, tx, notifier := newTestService(store)
			_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
				TableID:   &tableID,
				SessionID: &sessionID,
				Items:     []CreateOrderItemRequest{tt.item},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tx.committed {
				t.Error("transaction must not commit on validation failure")
			}
			if len(notifier.created) != 0 {
				t.Error("no notification expected on failure")
			}
		})
	}
}

func TestCreateOrder_SessionOfAnotherTable(t *testing.T) {
	tableID, sessionID, menuItemID, modifierID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	svc, _, _ := newTestService(createStore(tableID, sessionID, menuItemID, modifierID))

	other := uuid.New()
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TableID:   &other,
		SessionID: &sessionID,
		Items:     []CreateOrderItemRequest{{MenuItemID: menuItemID.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}
}

func TestCreateOrder_ClosedSession(t *testing.T) {
	tableID, sessionID, menuItemID, modifierID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	store := createStore(tableID, sessionID, menuItemID, modifierID)
	store.getSessionForUpdateFn = func(ctx context.Context, id uuid.UUID) (database.TableSession, error) {
		return database.TableSession{ID: id, TableID: tableID, Status: database.SessionStatusClosed}, nil
	}
	svc, _, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TableID:   &tableID,
		SessionID: &sessionID,
		Items:     []CreateOrderItemRequest{{MenuItemID: menuItemID.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}
}

func TestCreateOrder_UnknownSession(t *testing.T) {
	tableID, sessionID, menuItemID, modifierID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	svc, _, _ := newTestService(createStore(tableID, sessionID, menuItemID, modifierID))

	unknown := uuid.New()
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TableID:   &tableID,
		SessionID: &unknown,
		Items:     []CreateOrderItemRequest{{MenuItemID: menuItemID.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCreateOrder_SnapshotsPrices(t *testing.T) {
	tableID, sessionID, menuItemID, modifierID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	svc, tx, notifier := newTestService(createStore(tableID, sessionID, menuItemID, modifierID))

	detail, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TableID:   &tableID,
		SessionID: &sessionID,
		Note:      "ít cay",
		Items: []CreateOrderItemRequest{{
			MenuItemID:  menuItemID.String(),
			Quantity:    2,
			ModifierIDs: []string{modifierID.String()},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed {
		t.Error("expected commit")
	}
	if detail.Status != string(database.OrderStatusReceived) {
		t.Errorf("status = %s, want received", detail.Status)
	}
	if detail.TotalAmount != "0.00" {
		t.Errorf("total = %s, want 0.00 until items are accepted", detail.TotalAmount)
	}
	if len(detail.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(detail.Items))
	}
	item := detail.Items[0]
	// 2 × 50000 + 5000
	if item.Subtotal != "105000.00" {
		t.Errorf("subtotal = %s, want 105000.00", item.Subtotal)
	}
	if item.ModifiersTotal != "5000.00" {
		t.Errorf("modifiers total = %s, want 5000.00", item.ModifiersTotal)
	}
	if item.Status != "pending" || item.DisplayStatus != "Queued" {
		t.Errorf("item status = %s/%s, want pending/Queued", item.Status, item.DisplayStatus)
	}
	if len(item.Modifiers) != 1 || item.Modifiers[0].Name != "Thêm trứng" {
		t.Errorf("modifier snapshot missing: %+v", item.Modifiers)
	}
	if detail.SessionID == nil || *detail.SessionID != sessionID {
		t.Errorf("session id not recorded")
	}
	if len(notifier.created) != 1 {
		t.Errorf("expected one OrderCreated, got %d", len(notifier.created))
	}
}

func TestCreateOrder_Takeaway(t *testing.T) {
	menuItemID := uuid.New()
	store := createStore(uuid.New(), uuid.New(), menuItemID, uuid.New())
	store.getSessionForUpdateFn = nil // takeaway orders never touch a session
	var gotParams database.CreateOrderParams
	create := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		gotParams = arg
		return create(ctx, arg)
	}
	svc, _, _ := newTestService(store)

	staff := uuid.New()
	detail, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CreatedBy: &staff,
		Items:     []CreateOrderItemRequest{{MenuItemID: menuItemID.String(), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotParams.TableID.Valid || gotParams.SessionID.Valid {
		t.Error("takeaway order must have no table or session")
	}
	if !gotParams.CreatedBy.Valid || uuid.UUID(gotParams.CreatedBy.Bytes) != staff {
		t.Error("created_by not recorded")
	}
	if detail.TableID != nil {
		t.Error("detail should have nil table_id")
	}
}

func TestCreateOrder_CommitError(t *testing.T) {
	tableID, sessionID, menuItemID, modifierID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	svc, tx, notifier := newTestService(createStore(tableID, sessionID, menuItemID, modifierID))
	tx.commitErr = errors.New("connection reset")

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TableID:   &tableID,
		SessionID: &sessionID,
		Items:     []CreateOrderItemRequest{{MenuItemID: menuItemID.String(), Quantity: 1}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(notifier.created) != 0 {
		t.Error("must not notify when commit fails")
	}
}

// --- TransitionItem ---

func TestTransitionItem_AcceptAddsToTotal(t *testing.T) {
	f := newOrderFixture(database.OrderStatusReceived, database.OrderItemStatusPending, database.OrderItemStatusPending)
	svc, tx, notifier := newTestService(f.store())

	detail, err := svc.TransitionItem(context.Background(), f.items[0].ID, "accepted", waiter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed {
		t.Error("expected commit")
	}
	if !numericEquals(f.order.TotalAmount, "100000") {
		t.Errorf("total = %s, want 100000", database.NumericString(f.order.TotalAmount))
	}
	if detail.Status != "received" {
		t.Errorf("order status = %s, want received", detail.Status)
	}
	if detail.Items[0].DisplayStatus != "Cooking" {
		t.Errorf("display status = %s, want Cooking", detail.Items[0].DisplayStatus)
	}
	if len(notifier.updated) != 1 {
		t.Errorf("expected one OrderUpdated, got %d", len(notifier.updated))
	}
}

func TestTransitionItem_RejectLeavesTotal(t *testing.T) {
	f := newOrderFixture(database.OrderStatusPreparing, database.OrderItemStatusAccepted, database.OrderItemStatusPending)
	svc, _, _ := newTestService(f.store())

	if _, err := svc.TransitionItem(context.Background(), f.items[1].ID, "rejected", kitchen); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !numericEquals(f.order.TotalAmount, "100000") {
		t.Errorf("total = %s, want 100000 (rejected item contributes 0)", database.NumericString(f.order.TotalAmount))
	}
}

func TestTransitionItem_LastReadyDerivesOrderReady(t *testing.T) {
	f := newOrderFixture(database.OrderStatusPreparing,
		database.OrderItemStatusReady, database.OrderItemStatusRejected, database.OrderItemStatusAccepted)
	svc, _, _ := newTestService(f.store())

	detail, err := svc.TransitionItem(context.Background(), f.items[2].ID, "ready", kitchen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.order.Status != database.OrderStatusReady {
		t.Errorf("order status = %s, want ready", f.order.Status)
	}
	if !detail.AllItemsDone {
		t.Error("expected all_items_done")
	}
}

func TestTransitionItem_RejectingEveryItemRejectsOrder(t *testing.T) {
	f := newOrderFixture(database.OrderStatusReceived, database.OrderItemStatusRejected, database.OrderItemStatusPending)
	svc, _, _ := newTestService(f.store())

	if _, err := svc.TransitionItem(context.Background(), f.items[1].ID, "rejected", waiter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.order.Status != database.OrderStatusRejected {
		t.Errorf("order status = %s, want rejected", f.order.Status)
	}
}

func TestTransitionItem_Refusals(t *testing.T) {
	tests := []struct {
		name    string
		order   database.OrderStatus
		item    database.OrderItemStatus
		target  string
		actor   Actor
		wantErr error
	}{
		{"rejected is terminal", database.OrderStatusPreparing, database.OrderItemStatusRejected, "accepted", waiter, orderflow.ErrInvalidTransition},
		{"ready cannot be rejected", database.OrderStatusPreparing, database.OrderItemStatusReady, "rejected", admin, orderflow.ErrInvalidTransition},
		{"ready needs preparing order", database.OrderStatusReceived, database.OrderItemStatusAccepted, "ready", kitchen, orderflow.ErrInvalidTransition},
		{"waiter cannot mark ready", database.OrderStatusPreparing, database.OrderItemStatusAccepted, "ready", waiter, orderflow.ErrRoleNotAllowed},
		{"kitchen cannot serve", database.OrderStatusReady, database.OrderItemStatusReady, "served", kitchen, orderflow.ErrRoleNotAllowed},
		{"unknown status", database.OrderStatusPreparing, database.OrderItemStatusPending, "cooking", admin, orderflow.ErrUnknownStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(tt.order, tt.item)
			svc, tx, notifier := newTestService(f.store())

			_, err := svc.TransitionItem(context.Background(), f.items[0].ID, tt.target, tt.actor)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if f.items[0].Status != tt.item {
				t.Errorf("item status changed to %s", f.items[0].Status)
			}
			if tx.committed || len(notifier.updated) != 0 {
				t.Error("refused transition must not commit or notify")
			}
		})
	}
}

func TestTransitionItem_ConcurrentChange(t *testing.T) {
	f := newOrderFixture(database.OrderStatusReceived, database.OrderItemStatusPending)
	store := f.store()
	store.updateOrderItemStatusFn = func(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error) {
		return database.OrderItem{}, pgx.ErrNoRows
	}
	svc, _, _ := newTestService(store)

	_, err := svc.TransitionItem(context.Background(), f.items[0].ID, "accepted", waiter)
	if !errors.Is(err, ErrStateChanged) {
		t.Fatalf("expected ErrStateChanged, got %v", err)
	}
}

func TestTransitionItem_NotFound(t *testing.T) {
	f := newOrderFixture(database.OrderStatusReceived, database.OrderItemStatusPending)
	svc, _, _ := newTestService(f.store())

	_, err := svc.TransitionItem(context.Background(), uuid.New(), "accepted", waiter)
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

// --- TransitionOrder ---

func TestTransitionOrder_AcceptOrder(t *testing.T) {
	f := newOrderFixture(database.OrderStatusReceived, database.OrderItemStatusAccepted)
	svc, _, notifier := newTestService(f.store())

	detail, err := svc.TransitionOrder(context.Background(), f.order.ID, "preparing", waiter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Status != "preparing" {
		t.Errorf("status = %s, want preparing", detail.Status)
	}
	if len(notifier.updated) != 1 {
		t.Errorf("expected one OrderUpdated, got %d", len(notifier.updated))
	}
}

func TestTransitionOrder_RejectCascadesToPendingItems(t *testing.T) {
	f := newOrderFixture(database.OrderStatusReceived, database.OrderItemStatusPending, database.OrderItemStatusPending)
	svc, _, _ := newTestService(f.store())

	if _, err := svc.TransitionOrder(context.Background(), f.order.ID, "rejected", waiter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, it := range f.items {
		if it.Status != database.OrderItemStatusRejected {
			t.Errorf("item[%d] status = %s, want rejected", i, it.Status)
		}
	}
	if f.order.Status != database.OrderStatusRejected {
		t.Errorf("order status = %s, want rejected", f.order.Status)
	}
	if !numericEquals(f.order.TotalAmount, "0") {
		t.Errorf("total = %s, want 0", database.NumericString(f.order.TotalAmount))
	}
}

func TestTransitionOrder_CancelClosesAcceptedItems(t *testing.T) {
	f := newOrderFixture(database.OrderStatusPreparing,
		database.OrderItemStatusAccepted, database.OrderItemStatusPending, database.OrderItemStatusReady)
	f.order.TotalAmount = makeNumeric("200000")
	svc, _, notifier := newTestService(f.store())

	detail, err := svc.TransitionOrder(context.Background(), f.order.ID, "cancelled", admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []database.OrderItemStatus{
		database.OrderItemStatusRejected, database.OrderItemStatusRejected, database.OrderItemStatusReady,
	}
	for i, it := range f.items {
		if it.Status != want[i] {
			t.Errorf("item[%d] status = %s, want %s", i, it.Status, want[i])
		}
	}
	if detail.Status != "cancelled" {
		t.Errorf("status = %s, want cancelled", detail.Status)
	}
	if !numericEquals(f.order.TotalAmount, "0") {
		t.Errorf("total = %s, want 0 on a cancelled order", database.NumericString(f.order.TotalAmount))
	}
	if len(notifier.updated) != 1 {
		t.Errorf("expected one OrderUpdated, got %d", len(notifier.updated))
	}
}

func TestTransitionOrder_Refusals(t *testing.T) {
	tests := []struct {
		name    string
		current database.OrderStatus
		target  string
		actor   Actor
		wantErr error
	}{
		{"ready is derived", database.OrderStatusPreparing, "ready", admin, orderflow.ErrDerivedStatus},
		{"completed only via checkout", database.OrderStatusReady, "completed", admin, orderflow.ErrCheckoutOnly},
		{"kitchen cannot cancel", database.OrderStatusPreparing, "cancelled", kitchen, orderflow.ErrRoleNotAllowed},
		{"terminal order", database.OrderStatusCompleted, "cancelled", admin, orderflow.ErrInvalidTransition},
		{"unknown", database.OrderStatusReceived, "paid", admin, orderflow.ErrUnknownStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(tt.current, database.OrderItemStatusAccepted)
			svc, _, _ := newTestService(f.store())

			_, err := svc.TransitionOrder(context.Background(), f.order.ID, tt.target, tt.actor)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if f.order.Status != tt.current {
				t.Errorf("status changed to %s", f.order.Status)
			}
		})
	}
}

func TestTransitionOrder_NotFound(t *testing.T) {
	f := newOrderFixture(database.OrderStatusReceived)
	svc, _, _ := newTestService(f.store())

	_, err := svc.TransitionOrder(context.Background(), uuid.New(), "preparing", waiter)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

// --- LoadOrderDetails ---

type stubOrderReader struct {
	items []database.OrderItem
	mods  []database.OrderItemModifier
}

func (s stubOrderReader) ListOrderItemsByOrders(context.Context, []uuid.UUID) ([]database.OrderItem, error) {
	return s.items, nil
}
func (s stubOrderReader) ListOrderItemModifiersByOrders(context.Context, []uuid.UUID) ([]database.OrderItemModifier, error) {
	return s.mods, nil
}

func TestLoadOrderDetails_GroupsByOrder(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	itemA := database.OrderItem{ID: uuid.New(), OrderID: a, Status: database.OrderItemStatusReady}
	itemB := database.OrderItem{ID: uuid.New(), OrderID: b, Status: database.OrderItemStatusPending}
	reader := stubOrderReader{
		items: []database.OrderItem{itemA, itemB},
		mods:  []database.OrderItemModifier{{ID: uuid.New(), OrderItemID: itemB.ID, Name: "Size L", Price: makeNumeric("10000")}},
	}

	details, err := LoadOrderDetails(context.Background(), reader, []database.Order{
		{ID: a, Status: database.OrderStatusPreparing},
		{ID: b, Status: database.OrderStatusReceived},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(details) != 2 || len(details[0].Items) != 1 || len(details[1].Items) != 1 {
		t.Fatalf("unexpected grouping: %+v", details)
	}
	if !details[0].AllItemsDone || details[1].AllItemsDone {
		t.Error("all_items_done computed per order")
	}
	if len(details[1].Items[0].Modifiers) != 1 || len(details[0].Items[0].Modifiers) != 0 {
		t.Error("modifiers attached to the wrong item")
	}
}

func TestLoadOrderDetails_Empty(t *testing.T) {
	details, err := LoadOrderDetails(context.Background(), stubOrderReader{}, nil)
	if err != nil || len(details) != 0 {
		t.Fatalf("expected empty result, got %v %v", details, err)
	}
}
