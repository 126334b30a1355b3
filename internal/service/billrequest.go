package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/enum"
)

// Errors returned by the bill request service.
var (
	ErrBillRequestNotFound = errors.New("bill request not found")
	ErrBillRequestClosed   = errors.New("bill request already cancelled")
	ErrNoUnpaidOrders      = errors.New("no unpaid orders")
)

// BillRequestStore defines the DB methods the bill request handshake needs.
type BillRequestStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	GetActiveSession(ctx context.Context, tableID uuid.UUID) (database.TableSession, error)
	GetSessionForUpdate(ctx context.Context, id uuid.UUID) (database.TableSession, error)
	CountUnpaidOrdersBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
	InsertBillRequest(ctx context.Context, arg database.InsertBillRequestParams) (database.BillRequest, error)
	GetOpenBillRequest(ctx context.Context, arg database.GetOpenBillRequestParams) (database.BillRequest, error)
	GetBillRequest(ctx context.Context, id uuid.UUID) (database.BillRequest, error)
	AcknowledgeBillRequest(ctx context.Context, arg database.AcknowledgeBillRequestParams) (database.BillRequest, error)
	CancelBillRequest(ctx context.Context, arg database.CancelBillRequestParams) (database.BillRequest, error)
	ListOpenBillRequests(ctx context.Context) ([]database.BillRequest, error)
	ExpirePendingBillRequests(ctx context.Context, createdBefore time.Time) ([]database.BillRequest, error)
}

// NewBillRequestStore creates a BillRequestStore from a DBTX (pool or tx).
type NewBillRequestStore func(db database.DBTX) BillRequestStore

// RequestBillResult is the outcome of a customer bill request.
type RequestBillResult struct {
	Request          BillRequestView `json:"request"`
	AlreadyRequested bool            `json:"alreadyRequested"`
}

// BillRequestStatus is the initial state a reconnecting client fetches.
type BillRequestStatus struct {
	HasPendingRequest bool             `json:"hasPendingRequest"`
	Request           *BillRequestView `json:"request"`
}

// BillRequestService runs the request/acknowledge handshake. Mutations lock
// the table session row so they serialise with checkout.
type BillRequestService struct {
	pool     TxBeginner
	newStore NewBillRequestStore
	notifier Notifier
	now      func() time.Time
}

// NewBillRequestService creates a new BillRequestService.
func NewBillRequestService(pool TxBeginner, newStore NewBillRequestStore, notifier Notifier) *BillRequestService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &BillRequestService{pool: pool, newStore: newStore, notifier: notifier, now: time.Now}
}

// Request opens a bill request for the session. A second call while one is
// open returns the existing request with AlreadyRequested set.
func (s *BillRequestService) Request(ctx context.Context, tableID, sessionID uuid.UUID, note string) (RequestBillResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return RequestBillResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.GetSessionForUpdate(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RequestBillResult{}, ErrSessionNotFound
		}
		return RequestBillResult{}, fmt.Errorf("lock session: %w", err)
	}
	if session.TableID != tableID || session.Status != database.SessionStatusActive {
		return RequestBillResult{}, ErrSessionInactive
	}

	unpaid, err := store.CountUnpaidOrdersBySession(ctx, sessionID)
	if err != nil {
		return RequestBillResult{}, fmt.Errorf("count unpaid orders: %w", err)
	}
	if unpaid == 0 {
		return RequestBillResult{}, ErrNoUnpaidOrders
	}

	created := true
	req, err := store.InsertBillRequest(ctx, database.InsertBillRequestParams{
		TableID:   tableID,
		SessionID: sessionID,
		Note:      pgText(note),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		// The partial unique index already holds an open request.
		created = false
		req, err = store.GetOpenBillRequest(ctx, database.GetOpenBillRequestParams{
			TableID:   tableID,
			SessionID: sessionID,
		})
	}
	if err != nil {
		return RequestBillResult{}, fmt.Errorf("insert bill request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return RequestBillResult{}, fmt.Errorf("commit tx: %w", err)
	}

	view := NewBillRequestView(req)
	if created {
		s.notifier.BillRequested(ctx, view)
	}
	return RequestBillResult{Request: view, AlreadyRequested: !created}, nil
}

// Status reports the open request of the table's active session, if any.
func (s *BillRequestService) Status(ctx context.Context, tableID uuid.UUID) (BillRequestStatus, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return BillRequestStatus{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetTable(ctx, tableID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BillRequestStatus{}, ErrTableNotFound
		}
		return BillRequestStatus{}, fmt.Errorf("get table: %w", err)
	}
	session, err := store.GetActiveSession(ctx, tableID)
	if errors.Is(err, pgx.ErrNoRows) {
		return BillRequestStatus{}, nil
	}
	if err != nil {
		return BillRequestStatus{}, fmt.Errorf("get active session: %w", err)
	}
	req, err := store.GetOpenBillRequest(ctx, database.GetOpenBillRequestParams{
		TableID:   tableID,
		SessionID: session.ID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return BillRequestStatus{}, nil
	}
	if err != nil {
		return BillRequestStatus{}, fmt.Errorf("get open bill request: %w", err)
	}
	view := NewBillRequestView(req)
	return BillRequestStatus{HasPendingRequest: true, Request: &view}, nil
}

// Acknowledge marks a pending request as seen by staff. Acknowledging an
// acknowledged request returns it unchanged; a cancelled one is a conflict.
func (s *BillRequestService) Acknowledge(ctx context.Context, id uuid.UUID, actor Actor) (BillRequestView, error) {
	return s.mutate(ctx, id, func(store BillRequestStore, req database.BillRequest) (database.BillRequest, bool, error) {
		switch req.Status {
		case database.BillRequestStatusAcknowledged:
			return req, false, nil
		case database.BillRequestStatusCancelled:
			return req, false, ErrBillRequestClosed
		}
		updated, err := store.AcknowledgeBillRequest(ctx, database.AcknowledgeBillRequestParams{
			ID:             req.ID,
			AcknowledgedBy: actor.UserID,
		})
		return updated, true, err
	})
}

// Cancel dismisses an open request. Cancelling twice is a no-op.
func (s *BillRequestService) Cancel(ctx context.Context, id uuid.UUID) (BillRequestView, error) {
	return s.mutate(ctx, id, func(store BillRequestStore, req database.BillRequest) (database.BillRequest, bool, error) {
		if req.Status == database.BillRequestStatusCancelled {
			return req, false, nil
		}
		updated, err := store.CancelBillRequest(ctx, database.CancelBillRequestParams{
			ID:          req.ID,
			CloseReason: enum.CloseReasonDismissed,
		})
		return updated, true, err
	})
}

type billRequestChange func(store BillRequestStore, req database.BillRequest) (database.BillRequest, bool, error)

// mutate loads the request, locks its session, re-reads the request under
// the lock and applies change. Changed requests are broadcast after commit.
func (s *BillRequestService) mutate(ctx context.Context, id uuid.UUID, change billRequestChange) (BillRequestView, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return BillRequestView{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	req, err := store.GetBillRequest(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BillRequestView{}, ErrBillRequestNotFound
		}
		return BillRequestView{}, fmt.Errorf("get bill request: %w", err)
	}
	if _, err := store.GetSessionForUpdate(ctx, req.SessionID); err != nil {
		return BillRequestView{}, fmt.Errorf("lock session: %w", err)
	}
	if req, err = store.GetBillRequest(ctx, id); err != nil {
		return BillRequestView{}, fmt.Errorf("reload bill request: %w", err)
	}

	updated, changed, err := change(store, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BillRequestView{}, ErrStateChanged
		}
		return BillRequestView{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return BillRequestView{}, fmt.Errorf("commit tx: %w", err)
	}

	view := NewBillRequestView(updated)
	if changed {
		s.notifier.BillRequestUpdated(ctx, view)
	}
	return view, nil
}

// ListOpen returns every pending or acknowledged request, oldest first.
func (s *BillRequestService) ListOpen(ctx context.Context) ([]BillRequestView, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := s.newStore(tx).ListOpenBillRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open bill requests: %w", err)
	}
	out := make([]BillRequestView, len(rows))
	for i, r := range rows {
		out[i] = NewBillRequestView(r)
	}
	return out, nil
}

// ExpireStale cancels pending requests older than ttl and returns how many
// it closed. A non-positive ttl disables expiry.
func (s *BillRequestService) ExpireStale(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	expired, err := s.newStore(tx).ExpirePendingBillRequests(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("expire bill requests: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	for _, r := range expired {
		s.notifier.BillRequestUpdated(ctx, NewBillRequestView(r))
	}
	return len(expired), nil
}
