package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/middleware"
	"github.com/tableorder/api/internal/orderflow"
	"github.com/tableorder/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (service.OrderDetail, error)
	TransitionOrder(ctx context.Context, orderID uuid.UUID, target string, actor service.Actor) (service.OrderDetail, error)
	TransitionItem(ctx context.Context, itemID uuid.UUID, target string, actor service.Actor) (service.OrderDetail, error)
}

// OrderStore defines the database reads needed by order handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	service.OrderReader
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrdersBySession(ctx context.Context, sessionID uuid.UUID) ([]database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore) *OrderHandler {
	return &OrderHandler{svc: svc, store: store}
}

// RegisterRoutes registers the customer-facing order endpoints.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/session/{sessionId}", h.ListBySession)
}

// RegisterStaffRoutes registers endpoints that require a staff token.
// Role checks for transitions happen in the status machines.
func (h *OrderHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.UpdateStatus)
	r.Patch("/items/{id}", h.UpdateItemStatus)
	r.With(middleware.RequireRole(database.UserRoleAdmin, database.UserRoleWaiter)).
		Post("/takeaway", h.CreateTakeaway)
}

// --- Request / Response types ---

type createOrderRequest struct {
	TableID   string                   `json:"table_id"`
	SessionID string                   `json:"session_id"`
	Note      string                   `json:"note"`
	Items     []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	MenuItemID  string   `json:"menu_item_id"`
	Quantity    int32    `json:"quantity"`
	Note        string   `json:"note"`
	ModifierIDs []string `json:"modifier_ids"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []service.OrderDetail `json:"orders"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

func toServiceItems(items []createOrderItemRequest) []service.CreateOrderItemRequest {
	out := make([]service.CreateOrderItemRequest, len(items))
	for i, item := range items {
		out[i] = service.CreateOrderItemRequest{
			MenuItemID:  item.MenuItemID,
			Quantity:    item.Quantity,
			Note:        item.Note,
			ModifierIDs: item.ModifierIDs,
		}
	}
	return out
}

func actorFromRequest(r *http.Request) (service.Actor, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, Role: database.UserRole(claims.Role)}, true
}

// --- Handlers ---

// Create handles POST /orders from a customer at a table.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
		return
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session_id"})
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		TableID:   &tableID,
		SessionID: &sessionID,
		Note:      req.Note,
		Items:     toServiceItems(req.Items),
	})
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// CreateTakeaway handles POST /orders/takeaway. The order has no table and
// is settled through order-scoped checkout.
func (h *OrderHandler) CreateTakeaway(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		CreatedBy: &actor.UserID,
		Note:      req.Note,
		Items:     toServiceItems(req.Items),
	})
	if err != nil {
		writeServiceError(w, "create takeaway order", err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// List handles GET /orders with optional ?status=, ?table_id=, ?limit=, ?offset=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if !orderflow.IsOrderStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("table_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
			return
		}
		params.TableID = pgtype.UUID{Bytes: id, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	details, err := service.LoadOrderDetails(r.Context(), h.store, orders)
	if err != nil {
		log.Printf("ERROR: load order details: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: details,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	details, err := service.LoadOrderDetails(r.Context(), h.store, []database.Order{order})
	if err != nil {
		log.Printf("ERROR: load order details: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, details[0])
}

// ListBySession handles GET /orders/session/{sessionId}, the customer's
// view of everything ordered at the table so far.
func (h *OrderHandler) ListBySession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	orders, err := h.store.ListOrdersBySession(r.Context(), sessionID)
	if err != nil {
		log.Printf("ERROR: list session orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	details, err := service.LoadOrderDetails(r.Context(), h.store, orders)
	if err != nil {
		log.Printf("ERROR: load order details: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// UpdateStatus handles PATCH /orders/{id} with body {status}.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "update order status", h.svc.TransitionOrder)
}

// UpdateItemStatus handles PATCH /orders/items/{id} with body {status}.
func (h *OrderHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "update item status", h.svc.TransitionItem)
}

type transitionFunc func(ctx context.Context, id uuid.UUID, target string, actor service.Actor) (service.OrderDetail, error)

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, op string, apply transitionFunc) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := apply(r.Context(), id, req.Status, actor)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}
