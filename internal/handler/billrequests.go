package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tableorder/api/internal/service"
)

// BillRequestServicer defines the service methods needed by bill request
// handlers. Satisfied by *service.BillRequestService.
type BillRequestServicer interface {
	Request(ctx context.Context, tableID, sessionID uuid.UUID, note string) (service.RequestBillResult, error)
	Status(ctx context.Context, tableID uuid.UUID) (service.BillRequestStatus, error)
	Acknowledge(ctx context.Context, id uuid.UUID, actor service.Actor) (service.BillRequestView, error)
	Cancel(ctx context.Context, id uuid.UUID) (service.BillRequestView, error)
	ListOpen(ctx context.Context) ([]service.BillRequestView, error)
}

// BillRequestHandler handles the customer "call for the bill" handshake.
type BillRequestHandler struct {
	svc BillRequestServicer
}

// NewBillRequestHandler creates a new BillRequestHandler.
func NewBillRequestHandler(svc BillRequestServicer) *BillRequestHandler {
	return &BillRequestHandler{svc: svc}
}

// RegisterRoutes registers the customer endpoints. Expected to be mounted
// at /bill-requests.
func (h *BillRequestHandler) RegisterRoutes(r chi.Router) {
	r.Post("/request", h.Request)
	r.Get("/status/{tableId}", h.Status)
}

// RegisterStaffRoutes registers endpoints that require a staff token.
func (h *BillRequestHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Patch("/{id}/acknowledge", h.Acknowledge)
	r.Delete("/{id}", h.Cancel)
}

// --- Request / Response types ---

type billRequestBody struct {
	TableID   string `json:"tableId"`
	SessionID string `json:"sessionId"`
	Note      string `json:"note"`
}

type noUnpaidResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const msgNoUnpaidOrders = "Bàn chưa có món nào cần thanh toán."

// --- Handlers ---

// Request handles POST /bill-requests/request. A repeat while one is open
// returns the open request with alreadyRequested=true.
func (h *BillRequestHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req billRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tableId"})
		return
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sessionId"})
		return
	}

	result, err := h.svc.Request(r.Context(), tableID, sessionID, req.Note)
	if err != nil {
		if errors.Is(err, service.ErrNoUnpaidOrders) {
			writeJSON(w, http.StatusOK, noUnpaidResponse{Success: false, Message: msgNoUnpaidOrders})
			return
		}
		writeServiceError(w, "request bill", err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyRequested {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// Status handles GET /bill-requests/status/{tableId}.
func (h *BillRequestHandler) Status(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	status, err := h.svc.Status(r.Context(), tableID)
	if err != nil {
		writeServiceError(w, "bill request status", err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// List handles GET /bill-requests: every pending or acknowledged request.
func (h *BillRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	requests, err := h.svc.ListOpen(r.Context())
	if err != nil {
		writeServiceError(w, "list bill requests", err)
		return
	}

	writeJSON(w, http.StatusOK, requests)
}

// Acknowledge handles PATCH /bill-requests/{id}/acknowledge.
func (h *BillRequestHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill request ID"})
		return
	}

	req, err := h.svc.Acknowledge(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, "acknowledge bill request", err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// Cancel handles DELETE /bill-requests/{id}. The row is kept with status
// cancelled.
func (h *BillRequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill request ID"})
		return
	}

	req, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, "cancel bill request", err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}
