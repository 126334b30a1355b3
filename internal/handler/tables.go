package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/qr"
	"github.com/tableorder/api/internal/service"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	ListTables(ctx context.Context) ([]database.DiningTable, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	GetActiveSession(ctx context.Context, tableID uuid.UUID) (database.TableSession, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.DiningTable, error)
}

// SessionOpener starts or resumes a table session.
// Satisfied by *service.SessionService.
type SessionOpener interface {
	Open(ctx context.Context, tableID uuid.UUID) (database.TableSession, bool, error)
}

// TableHandler handles dining table, session and table QR endpoints.
type TableHandler struct {
	store    TableStore
	sessions SessionOpener
	qr       qr.Generator
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore, sessions SessionOpener, gen qr.Generator) *TableHandler {
	return &TableHandler{store: store, sessions: sessions, qr: gen}
}

// RegisterRoutes registers the customer-facing endpoints reached by
// scanning a table code. Expected to be mounted at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{tableId}", h.Get)
	r.Post("/{tableId}/sessions", h.OpenSession)
	r.Get("/{tableId}/session", h.ActiveSession)
}

// RegisterStaffRoutes registers endpoints that require a staff token.
func (h *TableHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// RegisterAdminRoutes registers table management. Mount behind RequireRole(database.UserRoleAdmin).
func (h *TableHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{tableId}/qr.png", h.QRCode)
}

// --- Request / Response types ---

type createTableRequest struct {
	Name     string `json:"name"`
	Capacity int32  `json:"capacity"`
}

type tableResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Capacity  int32     `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}

type tableSessionResponse struct {
	service.TableSessionView
	Created bool `json:"created"`
}

func toTableResponse(t database.DiningTable) tableResponse {
	return tableResponse{
		ID:        t.ID,
		Name:      t.Name,
		Capacity:  t.Capacity,
		CreatedAt: t.CreatedAt,
	}
}

// --- Handlers ---

// List returns all active tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns one table. Customers use it to show the table name.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	table, err := h.store.GetTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Create adds a dining table.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Capacity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "capacity must be > 0"})
		return
	}

	table, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		Name:     name,
		Capacity: req.Capacity,
	})
	if err != nil {
		log.Printf("ERROR: create table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

// OpenSession is called when a customer scans the table code. It returns
// the active session or starts one.
func (h *TableHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	session, created, err := h.sessions.Open(r.Context(), tableID)
	if err != nil {
		writeServiceError(w, "open table session", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, tableSessionResponse{
		TableSessionView: service.NewTableSessionView(session),
		Created:          created,
	})
}

// ActiveSession returns the table's active session, 404 when there is none.
func (h *TableHandler) ActiveSession(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	session, err := h.store.GetActiveSession(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
			return
		}
		log.Printf("ERROR: get active session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, service.NewTableSessionView(session))
}

// QRCode renders the PNG a table's stand displays.
func (h *TableHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	if _, err := h.store.GetTable(r.Context(), tableID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	png, err := h.qr.TableQR(tableID)
	if err != nil {
		log.Printf("ERROR: render table QR: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writePNG(w, png)
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.Printf("ERROR: write PNG: %v", err)
	}
}
