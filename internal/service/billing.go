package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tableorder/api/internal/billing"
	"github.com/tableorder/api/internal/coupon"
	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/enum"
	"github.com/tableorder/api/internal/orderflow"
)

// Errors returned by the billing service.
var (
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrNoActiveSession      = errors.New("table has no active session")
	ErrNothingToBill        = errors.New("nothing to bill")
	ErrBillChanged          = errors.New("bill changed since preview")
)

// BillingStore defines the DB methods needed to preview and settle bills.
type BillingStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	GetActiveSession(ctx context.Context, tableID uuid.UUID) (database.TableSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (database.TableSession, error)
	GetSessionForUpdate(ctx context.Context, id uuid.UUID) (database.TableSession, error)
	CloseSession(ctx context.Context, id uuid.UUID) (database.TableSession, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOpenOrdersBySession(ctx context.Context, sessionID uuid.UUID) ([]database.Order, error)
	ListOpenOrdersBySessionForUpdate(ctx context.Context, sessionID uuid.UUID) ([]database.Order, error)
	CountUnpaidOrdersBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
	ListOrderItemsByOrders(ctx context.Context, orderIds []uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemModifiersByOrders(ctx context.Context, orderIds []uuid.UUID) ([]database.OrderItemModifier, error)
	GetCoupon(ctx context.Context, id uuid.UUID) (database.Coupon, error)
	GetCouponForUpdate(ctx context.Context, id uuid.UUID) (database.Coupon, error)
	RedeemCoupon(ctx context.Context, id uuid.UUID) (database.Coupon, error)
	CreateBill(ctx context.Context, arg database.CreateBillParams) (database.Bill, error)
	CompleteOrder(ctx context.Context, arg database.CompleteOrderParams) (database.Order, error)
	CancelOpenBillRequestsBySession(ctx context.Context, arg database.CancelOpenBillRequestsBySessionParams) ([]database.BillRequest, error)
}

// NewBillingStore creates a BillingStore from a DBTX (pool or tx).
type NewBillingStore func(db database.DBTX) BillingStore

// Scope selects what a bill covers: every open order of a table's active
// session, or a single order.
type Scope struct {
	TableID uuid.UUID
	OrderID uuid.UUID
}

func TableScope(tableID uuid.UUID) Scope { return Scope{TableID: tableID} }
func OrderScope(orderID uuid.UUID) Scope { return Scope{OrderID: orderID} }

func (s Scope) isTable() bool { return s.TableID != uuid.Nil }

// BillInput is the discount a caller asks for. A coupon replaces the
// manual discount.
type BillInput struct {
	DiscountType  string
	DiscountValue decimal.Decimal
	CouponID      *uuid.UUID
}

// CheckoutRequest settles a scope. ExpectedDigest, when set, must match
// the bill re-derived at commit time.
type CheckoutRequest struct {
	BillInput
	PaymentMethod  string
	ExpectedDigest string
	ProcessedBy    uuid.UUID
}

// BillPreview is a computed bill plus the context it was computed in.
type BillPreview struct {
	billing.Bill
	TableID          *uuid.UUID  `json:"table_id"`
	SessionID        *uuid.UUID  `json:"session_id"`
	OrderIDs         []uuid.UUID `json:"order_ids"`
	SessionStartedAt *time.Time  `json:"session_started_at"`
	SessionEndedAt   *time.Time  `json:"session_ended_at"`
	CanCheckout      bool        `json:"can_checkout"`
	BlockedReason    string      `json:"blocked_reason,omitempty"`
}

// CheckoutResult is the committed bill.
type CheckoutResult struct {
	BillPreview
	BillID        uuid.UUID     `json:"bill_id"`
	PaymentMethod string        `json:"payment_method"`
	Orders        []OrderDetail `json:"orders"`
	CreatedAt     time.Time     `json:"created_at"`
}

// BillingService previews and settles bills. Checkout re-derives the bill
// from persisted state under row locks; client totals are never trusted.
type BillingService struct {
	pool     TxBeginner
	newStore NewBillingStore
	notifier Notifier
	now      func() time.Time
}

// NewBillingService creates a new BillingService.
func NewBillingService(pool TxBeginner, newStore NewBillingStore, notifier Notifier) *BillingService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &BillingService{pool: pool, newStore: newStore, notifier: notifier, now: time.Now}
}

// snapshot is the persisted state a bill is computed from.
type snapshot struct {
	table   *database.DiningTable
	session *database.TableSession
	orders  []database.Order
	items   []database.OrderItem
	mods    []database.OrderItemModifier
	coupon  *database.Coupon
	bill    billing.Bill
	blocked error
}

// Preview computes the bill for scope without changing anything.
func (s *BillingService) Preview(ctx context.Context, scope Scope, in BillInput) (BillPreview, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return BillPreview{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	snap, err := s.load(ctx, s.newStore(tx), scope, in, false)
	if err != nil {
		return BillPreview{}, err
	}
	return snap.preview(), nil
}

// Checkout settles scope: it redeems the coupon, inserts the bill,
// completes the orders, clears open bill requests and, for a table,
// closes the session. Everything commits together or not at all.
func (s *BillingService) Checkout(ctx context.Context, scope Scope, req CheckoutRequest) (CheckoutResult, error) {
	if !enum.IsPaymentMethod(req.PaymentMethod) {
		return CheckoutResult{}, ErrInvalidPaymentMethod
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	snap, err := s.load(ctx, store, scope, req.BillInput, true)
	if err != nil {
		return CheckoutResult{}, err
	}
	if snap.blocked != nil {
		return CheckoutResult{}, snap.blocked
	}
	if req.ExpectedDigest != "" && req.ExpectedDigest != snap.bill.Digest {
		return CheckoutResult{}, ErrBillChanged
	}

	// --- Redeem coupon ---
	if snap.coupon != nil {
		if _, err := store.RedeemCoupon(ctx, snap.coupon.ID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return CheckoutResult{}, ErrStateChanged
			}
			return CheckoutResult{}, fmt.Errorf("redeem coupon: %w", err)
		}
	}

	// --- Close session (table scope) ---
	if scope.isTable() {
		closed, err := store.CloseSession(ctx, snap.session.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return CheckoutResult{}, ErrStateChanged
			}
			return CheckoutResult{}, fmt.Errorf("close session: %w", err)
		}
		snap.session = &closed
	}

	// --- Insert bill ---
	b := snap.bill
	params := database.CreateBillParams{
		Subtotal:       database.DecimalToNumeric(b.Subtotal),
		DiscountAmount: database.DecimalToNumeric(b.DiscountAmount),
		TaxRate:        database.DecimalToNumeric(b.TaxRate),
		TaxAmount:      database.DecimalToNumeric(b.TaxAmount),
		FinalAmount:    database.DecimalToNumeric(b.FinalAmount),
		PaymentMethod:  database.PaymentMethod(req.PaymentMethod),
		Digest:         b.Digest,
		ProcessedBy:    req.ProcessedBy,
		CouponID:       optionalUUID(b.CouponID),
	}
	if b.DiscountType != "" {
		params.DiscountType = pgText(b.DiscountType)
		params.DiscountValue = database.DecimalToNumeric(b.DiscountValue)
	}
	if snap.table != nil {
		params.TableID = pgUUID(snap.table.ID)
	}
	if snap.session != nil {
		params.SessionID = pgUUID(snap.session.ID)
		params.SessionStartedAt = pgtype.Timestamptz{Time: snap.session.StartedAt, Valid: true}
		params.SessionEndedAt = snap.session.EndedAt
	}
	bill, err := store.CreateBill(ctx, params)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("create bill: %w", err)
	}

	// --- Complete orders ---
	completed := make([]database.Order, 0, len(snap.orders))
	for _, o := range snap.orders {
		done, err := store.CompleteOrder(ctx, database.CompleteOrderParams{
			ID:            o.ID,
			BillID:        bill.ID,
			PaymentMethod: bill.PaymentMethod,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return CheckoutResult{}, fmt.Errorf("order %s: %w", o.ID, ErrStateChanged)
			}
			return CheckoutResult{}, fmt.Errorf("complete order: %w", err)
		}
		completed = append(completed, done)
	}

	// --- Clear bill requests once nothing is left to pay ---
	var cancelled []database.BillRequest
	if snap.session != nil {
		clearRequests := scope.isTable()
		if !clearRequests {
			unpaid, err := store.CountUnpaidOrdersBySession(ctx, snap.session.ID)
			if err != nil {
				return CheckoutResult{}, fmt.Errorf("count unpaid orders: %w", err)
			}
			clearRequests = unpaid == 0
		}
		if clearRequests {
			cancelled, err = store.CancelOpenBillRequestsBySession(ctx, database.CancelOpenBillRequestsBySessionParams{
				SessionID:   snap.session.ID,
				CloseReason: enum.CloseReasonCheckout,
			})
			if err != nil {
				return CheckoutResult{}, fmt.Errorf("cancel bill requests: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return CheckoutResult{}, fmt.Errorf("commit tx: %w", err)
	}

	snap.orders = completed
	result := CheckoutResult{
		BillPreview:   snap.preview(),
		BillID:        bill.ID,
		PaymentMethod: string(bill.PaymentMethod),
		Orders:        make([]OrderDetail, 0, len(completed)),
		CreatedAt:     bill.CreatedAt,
	}
	result.CanCheckout = false
	for _, o := range completed {
		detail := NewOrderDetail(o, snap.items, snap.mods)
		result.Orders = append(result.Orders, detail)
		s.notifier.OrderUpdated(ctx, detail)
	}
	for _, r := range cancelled {
		s.notifier.BillRequestUpdated(ctx, NewBillRequestView(r))
	}
	if scope.isTable() {
		s.notifier.TableSessionUpdated(ctx, NewTableSessionView(*snap.session))
	}
	return result, nil
}

// load gathers the persisted state for scope and computes its bill. With
// lock set, the session row is locked before any order row so checkout
// and bill-request handling serialise per session.
func (s *BillingService) load(ctx context.Context, store BillingStore, scope Scope, in BillInput, lock bool) (*snapshot, error) {
	manual := billing.Discount{Type: in.DiscountType, Value: in.DiscountValue}
	if in.CouponID == nil {
		if err := manual.Validate(); err != nil {
			return nil, err
		}
	}

	snap := &snapshot{}
	var err error
	if scope.isTable() {
		err = s.loadTable(ctx, store, snap, scope.TableID, lock)
	} else {
		err = s.loadOrder(ctx, store, snap, scope.OrderID, lock)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(snap.orders))
	for i, o := range snap.orders {
		ids[i] = o.ID
	}
	if len(ids) > 0 {
		if snap.items, err = store.ListOrderItemsByOrders(ctx, ids); err != nil {
			return nil, fmt.Errorf("list order items: %w", err)
		}
		if snap.mods, err = store.ListOrderItemModifiersByOrders(ctx, ids); err != nil {
			return nil, fmt.Errorf("list modifiers: %w", err)
		}
	}
	lines := buildLines(snap.items, snap.mods)

	// --- Gate: every order must be settleable ---
	statuses := make(map[uuid.UUID][]orderflow.ItemStatus, len(snap.orders))
	for _, it := range snap.items {
		statuses[it.OrderID] = append(statuses[it.OrderID], it.Status)
	}
	for _, o := range snap.orders {
		if err := orderflow.CheckCheckout(o.Status, statuses[o.ID]); err != nil {
			snap.blocked = fmt.Errorf("order %s: %w", o.ID, err)
			break
		}
	}

	// --- Resolve discount ---
	d := manual
	if in.CouponID != nil {
		c, err := s.loadCoupon(ctx, store, *in.CouponID, lock)
		if err != nil {
			return nil, err
		}
		subtotal := billing.Compute(lines, billing.Discount{}).Subtotal
		if _, err := coupon.Evaluate(c, subtotal, s.now()); err != nil {
			return nil, err
		}
		snap.coupon = &c
		cd := coupon.AsDiscount(c)
		d = billing.Resolve(manual, &cd)
	}

	snap.bill = billing.Compute(lines, d)
	if snap.blocked == nil && len(snap.bill.Items) == 0 {
		snap.blocked = ErrNothingToBill
	}
	return snap, nil
}

func (s *BillingService) loadTable(ctx context.Context, store BillingStore, snap *snapshot, tableID uuid.UUID, lock bool) error {
	table, err := store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTableNotFound
		}
		return fmt.Errorf("get table: %w", err)
	}
	snap.table = &table

	session, err := store.GetActiveSession(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoActiveSession
		}
		return fmt.Errorf("get active session: %w", err)
	}
	if lock {
		session, err = store.GetSessionForUpdate(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		if session.Status != database.SessionStatusActive {
			return ErrNoActiveSession
		}
		snap.orders, err = store.ListOpenOrdersBySessionForUpdate(ctx, session.ID)
	} else {
		snap.orders, err = store.ListOpenOrdersBySession(ctx, session.ID)
	}
	if err != nil {
		return fmt.Errorf("list open orders: %w", err)
	}
	snap.session = &session
	return nil
}

func (s *BillingService) loadOrder(ctx context.Context, store BillingStore, snap *snapshot, orderID uuid.UUID, lock bool) error {
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order: %w", err)
	}
	if order.SessionID.Valid {
		var session database.TableSession
		sessionID := uuid.UUID(order.SessionID.Bytes)
		if lock {
			session, err = store.GetSessionForUpdate(ctx, sessionID)
		} else {
			session, err = store.GetSession(ctx, sessionID)
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		snap.session = &session
	}
	if lock {
		if order, err = store.GetOrderForUpdate(ctx, orderID); err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
	}
	snap.orders = []database.Order{order}
	return nil
}

func (s *BillingService) loadCoupon(ctx context.Context, store BillingStore, id uuid.UUID, lock bool) (database.Coupon, error) {
	var (
		c   database.Coupon
		err error
	)
	if lock {
		c, err = store.GetCouponForUpdate(ctx, id)
	} else {
		c, err = store.GetCoupon(ctx, id)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Coupon{}, coupon.NotFound()
		}
		return database.Coupon{}, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

func (snap *snapshot) preview() BillPreview {
	p := BillPreview{
		Bill:        snap.bill,
		OrderIDs:    make([]uuid.UUID, 0, len(snap.orders)),
		CanCheckout: snap.blocked == nil,
	}
	if snap.blocked != nil {
		p.BlockedReason = snap.blocked.Error()
	}
	for _, o := range snap.orders {
		p.OrderIDs = append(p.OrderIDs, o.ID)
	}
	if snap.table != nil {
		id := snap.table.ID
		p.TableID = &id
	} else if len(snap.orders) == 1 {
		p.TableID = uuidPtr(snap.orders[0].TableID)
	}
	if snap.session != nil {
		id := snap.session.ID
		started := snap.session.StartedAt
		p.SessionID = &id
		p.SessionStartedAt = &started
		p.SessionEndedAt = timePtr(snap.session.EndedAt)
	}
	return p
}

// buildLines converts persisted items into billing lines.
func buildLines(items []database.OrderItem, mods []database.OrderItemModifier) []billing.Line {
	byItem := make(map[uuid.UUID][]billing.Modifier)
	for _, m := range mods {
		byItem[m.OrderItemID] = append(byItem[m.OrderItemID], billing.Modifier{
			Name:  m.Name,
			Price: database.NumericToDecimal(m.Price),
		})
	}
	lines := make([]billing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, billing.Line{
			ItemID:    it.ID,
			OrderID:   it.OrderID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: database.NumericToDecimal(it.UnitPrice),
			Modifiers: byItem[it.ID],
			Status:    it.Status,
			CreatedAt: it.CreatedAt,
		})
	}
	return lines
}
