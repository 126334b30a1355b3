package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tableorder/api/internal/database"
)

// SessionStore defines the DB methods needed to open table sessions.
type SessionStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	GetActiveSession(ctx context.Context, tableID uuid.UUID) (database.TableSession, error)
	CreateSession(ctx context.Context, tableID uuid.UUID) (database.TableSession, error)
}

// SessionService hands out the active session of a table when a customer
// scans its QR code.
type SessionService struct {
	store    SessionStore
	notifier Notifier
}

// NewSessionService creates a new SessionService.
func NewSessionService(store SessionStore, notifier Notifier) *SessionService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &SessionService{store: store, notifier: notifier}
}

// Open returns the table's active session, starting one if there is none.
// created reports whether this call started it.
func (s *SessionService) Open(ctx context.Context, tableID uuid.UUID) (session database.TableSession, created bool, err error) {
	table, err := s.store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.TableSession{}, false, ErrTableNotFound
		}
		return database.TableSession{}, false, fmt.Errorf("get table: %w", err)
	}
	if !table.IsActive {
		return database.TableSession{}, false, ErrTableNotFound
	}

	// Two scans can race; the loser's insert hits the partial unique index
	// and reads the winner's session on the next pass.
	for attempt := 0; attempt < 2; attempt++ {
		session, err = s.store.GetActiveSession(ctx, tableID)
		if err == nil {
			return session, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return database.TableSession{}, false, fmt.Errorf("get active session: %w", err)
		}
		session, err = s.store.CreateSession(ctx, tableID)
		if err == nil {
			s.notifier.TableSessionUpdated(ctx, NewTableSessionView(session))
			return session, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return database.TableSession{}, false, fmt.Errorf("create session: %w", err)
		}
	}
	return database.TableSession{}, false, ErrStateChanged
}
