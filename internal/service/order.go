package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/orderflow"
)

// MaxItemQuantity caps one order line.
const MaxItemQuantity = 999

// MaxOrderAmount bounds an order's total, leaving NUMERIC(14,2) headroom for
// VAT and for several orders settled on one bill.
var MaxOrderAmount = decimal.RequireFromString("99999999999.99")

// Errors returned by the order service.
var (
	ErrEmptyItems          = errors.New("items are required")
	ErrInvalidQuantity     = errors.New("quantity must be between 1 and 999")
	ErrOrderTooLarge       = errors.New("order total exceeds the allowed amount")
	ErrInvalidMenuItemID   = errors.New("invalid menu_item_id")
	ErrInvalidModifierID   = errors.New("invalid modifier_id")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrMenuItemUnavailable = errors.New("menu item is not available")
	ErrModifierNotFound    = errors.New("modifier not found")
	ErrModifierMismatch    = errors.New("modifier does not belong to menu item")
	ErrDuplicateModifier   = errors.New("modifier listed twice")
	ErrTableNotFound       = errors.New("table not found")
	ErrSessionNotFound     = errors.New("table session not found")
	ErrSessionInactive     = errors.New("table session is not active for this table")
	ErrOrderNotFound       = errors.New("order not found")
	ErrItemNotFound        = errors.New("order item not found")
	ErrStateChanged        = errors.New("state changed concurrently, reload and retry")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order lifecycle needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetSessionForUpdate(ctx context.Context, id uuid.UUID) (database.TableSession, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetModifierForOrder(ctx context.Context, id uuid.UUID) (database.MenuItemModifier, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemModifier(ctx context.Context, arg database.CreateOrderItemModifierParams) (database.OrderItemModifier, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemModifiersByOrders(ctx context.Context, orderIds []uuid.UUID) ([]database.OrderItemModifier, error)
	UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	RecalculateOrderTotal(ctx context.Context, id uuid.UUID) (database.Order, error)
	RejectOpenItems(ctx context.Context, orderID uuid.UUID) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the input for creating an order. A nil TableID
// makes a staff takeaway order; otherwise SessionID must be the table's
// active session.
type CreateOrderRequest struct {
	TableID   *uuid.UUID
	SessionID *uuid.UUID
	CreatedBy *uuid.UUID
	Note      string
	Items     []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single cart line.
type CreateOrderItemRequest struct {
	MenuItemID  string
	Quantity    int32
	Note        string
	ModifierIDs []string
}

// OrderService runs the order and item status machines against the
// database. Every transition locks the order row, applies a conditional
// update, recomputes the total and the derived status, then commits.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	notifier Notifier
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, notifier Notifier) *OrderService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &OrderService{pool: pool, newStore: newStore, notifier: notifier}
}

type processedModifier struct {
	modifierID uuid.UUID
	name       string
	price      decimal.Decimal
}

type processedItem struct {
	params    database.CreateOrderItemParams
	subtotal  decimal.Decimal
	modifiers []processedModifier
}

// CreateOrder validates the cart, snapshots prices and inserts the order in
// status received with every item pending. The total stays 0 until items
// are accepted.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderDetail, error) {
	if len(req.Items) == 0 {
		return OrderDetail{}, ErrEmptyItems
	}
	if req.TableID != nil && req.SessionID == nil {
		return OrderDetail{}, ErrSessionNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return OrderDetail{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Lock the session so checkout cannot close it underneath us ---
	if req.TableID != nil {
		session, err := store.GetSessionForUpdate(ctx, *req.SessionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return OrderDetail{}, ErrSessionNotFound
			}
			return OrderDetail{}, fmt.Errorf("lock session: %w", err)
		}
		if session.TableID != *req.TableID || session.Status != database.SessionStatusActive {
			return OrderDetail{}, ErrSessionInactive
		}
	}

	// --- Validate items and snapshot prices ---
	items := make([]processedItem, 0, len(req.Items))
	total := decimal.Zero
	for i, item := range req.Items {
		pi, err := s.processItem(ctx, store, item)
		if err != nil {
			return OrderDetail{}, fmt.Errorf("item[%d]: %w", i, err)
		}
		total = total.Add(pi.subtotal)
		if total.GreaterThan(MaxOrderAmount) {
			return OrderDetail{}, ErrOrderTooLarge
		}
		items = append(items, pi)
	}

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TableID:   optionalUUID(req.TableID),
		SessionID: optionalUUID(req.SessionID),
		Note:      pgText(req.Note),
		CreatedBy: optionalUUID(req.CreatedBy),
	})
	if err != nil {
		return OrderDetail{}, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items ---
	var (
		created []database.OrderItem
		mods    []database.OrderItemModifier
	)
	for _, pi := range items {
		pi.params.OrderID = order.ID
		row, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return OrderDetail{}, fmt.Errorf("create order item: %w", err)
		}
		created = append(created, row)
		for _, m := range pi.modifiers {
			oim, err := store.CreateOrderItemModifier(ctx, database.CreateOrderItemModifierParams{
				OrderItemID: row.ID,
				ModifierID:  m.modifierID,
				Name:        m.name,
				Price:       database.DecimalToNumeric(m.price),
			})
			if err != nil {
				return OrderDetail{}, fmt.Errorf("create order item modifier: %w", err)
			}
			mods = append(mods, oim)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return OrderDetail{}, fmt.Errorf("commit tx: %w", err)
	}

	detail := NewOrderDetail(order, created, mods)
	s.notifier.OrderCreated(ctx, detail)
	return detail, nil
}

func (s *OrderService) processItem(ctx context.Context, store OrderStore, item CreateOrderItemRequest) (processedItem, error) {
	if item.Quantity <= 0 || item.Quantity > MaxItemQuantity {
		return processedItem{}, ErrInvalidQuantity
	}
	menuItemID, err := uuid.Parse(item.MenuItemID)
	if err != nil {
		return processedItem{}, ErrInvalidMenuItemID
	}
	menuItem, err := store.GetMenuItem(ctx, menuItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return processedItem{}, ErrMenuItemNotFound
		}
		return processedItem{}, fmt.Errorf("get menu item: %w", err)
	}
	if menuItem.Status != database.MenuItemStatusAvailable {
		return processedItem{}, ErrMenuItemUnavailable
	}

	unitPrice := database.NumericToDecimal(menuItem.Price)
	modifiersTotal := decimal.Zero
	seen := make(map[uuid.UUID]bool, len(item.ModifierIDs))
	var mods []processedModifier
	for j, raw := range item.ModifierIDs {
		modID, err := uuid.Parse(raw)
		if err != nil {
			return processedItem{}, fmt.Errorf("modifiers[%d]: %w", j, ErrInvalidModifierID)
		}
		if seen[modID] {
			return processedItem{}, fmt.Errorf("modifiers[%d]: %w", j, ErrDuplicateModifier)
		}
		seen[modID] = true
		mod, err := store.GetModifierForOrder(ctx, modID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return processedItem{}, fmt.Errorf("modifiers[%d]: %w", j, ErrModifierNotFound)
			}
			return processedItem{}, fmt.Errorf("modifiers[%d]: get modifier: %w", j, err)
		}
		if mod.MenuItemID != menuItemID {
			return processedItem{}, fmt.Errorf("modifiers[%d]: %w", j, ErrModifierMismatch)
		}
		price := database.NumericToDecimal(mod.Price)
		modifiersTotal = modifiersTotal.Add(price)
		mods = append(mods, processedModifier{modifierID: modID, name: mod.Name, price: price})
	}

	// subtotal = quantity × unit price + Σ modifier price
	subtotal := unitPrice.Mul(decimal.NewFromInt32(item.Quantity)).Add(modifiersTotal)

	return processedItem{
		params: database.CreateOrderItemParams{
			MenuItemID:     menuItemID,
			Name:           menuItem.Name,
			Quantity:       item.Quantity,
			UnitPrice:      database.DecimalToNumeric(unitPrice),
			ModifiersTotal: database.DecimalToNumeric(modifiersTotal),
			Subtotal:       database.DecimalToNumeric(subtotal),
			Note:           pgText(item.Note),
		},
		subtotal:  subtotal,
		modifiers: mods,
	}, nil
}

// TransitionItem moves one order item to target on behalf of actor, then
// recomputes the order total and derived status in the same transaction.
func (s *OrderService) TransitionItem(ctx context.Context, itemID uuid.UUID, target string, actor Actor) (OrderDetail, error) {
	if !orderflow.IsItemStatus(target) {
		return OrderDetail{}, fmt.Errorf("%w: %q", orderflow.ErrUnknownStatus, target)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return OrderDetail{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, err := store.GetOrderItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderDetail{}, ErrItemNotFound
		}
		return OrderDetail{}, fmt.Errorf("get order item: %w", err)
	}
	order, err := store.GetOrderForUpdate(ctx, item.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderDetail{}, ErrOrderNotFound
		}
		return OrderDetail{}, fmt.Errorf("lock order: %w", err)
	}
	// Re-read under the order lock; another transition may have committed.
	item, err = store.GetOrderItem(ctx, itemID)
	if err != nil {
		return OrderDetail{}, fmt.Errorf("reload order item: %w", err)
	}

	next := database.OrderItemStatus(target)
	if err := orderflow.CheckItemTransition(item.Status, next, order.Status, actor.Role); err != nil {
		return OrderDetail{}, err
	}
	if _, err := store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
		ID:             item.ID,
		Status:         next,
		ExpectedStatus: item.Status,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderDetail{}, ErrStateChanged
		}
		return OrderDetail{}, fmt.Errorf("update item status: %w", err)
	}

	detail, err := s.settle(ctx, store, order)
	if err != nil {
		return OrderDetail{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return OrderDetail{}, fmt.Errorf("commit tx: %w", err)
	}

	s.notifier.OrderUpdated(ctx, detail)
	return detail, nil
}

// TransitionOrder applies an explicit order-level status change. Rejecting
// or cancelling an order also rejects its pending and accepted items, and
// its total drops to zero.
func (s *OrderService) TransitionOrder(ctx context.Context, orderID uuid.UUID, target string, actor Actor) (OrderDetail, error) {
	if !orderflow.IsOrderStatus(target) {
		return OrderDetail{}, fmt.Errorf("%w: %q", orderflow.ErrUnknownStatus, target)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return OrderDetail{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderDetail{}, ErrOrderNotFound
		}
		return OrderDetail{}, fmt.Errorf("lock order: %w", err)
	}

	next := database.OrderStatus(target)
	if err := orderflow.CheckOrderTransition(order.Status, next, actor.Role); err != nil {
		return OrderDetail{}, err
	}
	if next == database.OrderStatusRejected || next == database.OrderStatusCancelled {
		if err := store.RejectOpenItems(ctx, order.ID); err != nil {
			return OrderDetail{}, fmt.Errorf("reject open items: %w", err)
		}
	}
	order, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:             order.ID,
		Status:         next,
		ExpectedStatus: order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderDetail{}, ErrStateChanged
		}
		return OrderDetail{}, fmt.Errorf("update order status: %w", err)
	}

	detail, err := s.settle(ctx, store, order)
	if err != nil {
		return OrderDetail{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return OrderDetail{}, fmt.Errorf("commit tx: %w", err)
	}

	s.notifier.OrderUpdated(ctx, detail)
	return detail, nil
}

// settle recomputes total_amount from billable items and persists the
// status derived from the current item list.
func (s *OrderService) settle(ctx context.Context, store OrderStore, order database.Order) (OrderDetail, error) {
	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return OrderDetail{}, fmt.Errorf("list order items: %w", err)
	}
	statuses := make([]orderflow.ItemStatus, len(items))
	for i, it := range items {
		statuses[i] = it.Status
	}

	updated, err := store.RecalculateOrderTotal(ctx, order.ID)
	if err != nil {
		return OrderDetail{}, fmt.Errorf("recalculate total: %w", err)
	}
	if derived := orderflow.Derive(updated.Status, statuses); derived != updated.Status {
		updated, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:             updated.ID,
			Status:         derived,
			ExpectedStatus: updated.Status,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return OrderDetail{}, ErrStateChanged
			}
			return OrderDetail{}, fmt.Errorf("persist derived status: %w", err)
		}
	}

	mods, err := store.ListOrderItemModifiersByOrders(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return OrderDetail{}, fmt.Errorf("list modifiers: %w", err)
	}
	return NewOrderDetail(updated, items, mods), nil
}

// OrderReader is the read side used to assemble order details.
type OrderReader interface {
	ListOrderItemsByOrders(ctx context.Context, orderIds []uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemModifiersByOrders(ctx context.Context, orderIds []uuid.UUID) ([]database.OrderItemModifier, error)
}

// LoadOrderDetails attaches items and modifiers to orders with two queries.
func LoadOrderDetails(ctx context.Context, r OrderReader, orders []database.Order) ([]OrderDetail, error) {
	out := make([]OrderDetail, 0, len(orders))
	if len(orders) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := r.ListOrderItemsByOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	mods, err := r.ListOrderItemModifiersByOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list modifiers: %w", err)
	}
	for _, o := range orders {
		out = append(out, NewOrderDetail(o, items, mods))
	}
	return out, nil
}

func optionalUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgUUID(*id)
}
