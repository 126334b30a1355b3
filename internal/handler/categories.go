package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/menu"
)

// CategoryStore defines the database methods needed by category handlers.
// Satisfied by *database.Queries.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]database.Category, error)
	CreateCategory(ctx context.Context, arg database.CreateCategoryParams) (database.Category, error)
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
}

// CategoryHandler serves menu sections to customers and lets admins add them.
type CategoryHandler struct {
	store CategoryStore
}

func NewCategoryHandler(store CategoryStore) *CategoryHandler {
	return &CategoryHandler{store: store}
}

// RegisterRoutes registers the public listings. Mount at /categories.
func (h *CategoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/board", h.Board)
}

// RegisterAdminRoutes registers category management. Mount behind RequireRole(database.UserRoleAdmin).
func (h *CategoryHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
}

// --- Request / Response types ---

type createCategoryRequest struct {
	Name      string `json:"name"`
	SortOrder int32  `json:"sort_order"`
}

type categoryResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type boardSection struct {
	categoryResponse
	Items []menuItemResponse `json:"items"`
}

func toCategoryResponse(c database.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, SortOrder: c.SortOrder, CreatedAt: c.CreatedAt}
}

// --- Handlers ---

// List returns active categories in display order.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		log.Printf("ERROR: list categories: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = toCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Board returns the customer menu: each category with its items. Sold-out
// items stay listed so the page can grey them out; unavailable ones and
// empty sections are left off.
func (h *CategoryHandler) Board(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		log.Printf("ERROR: menu board categories: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	items, err := h.store.ListMenuItems(r.Context(), database.ListMenuItemsParams{})
	if err != nil {
		log.Printf("ERROR: menu board items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	byCategory := make(map[uuid.UUID][]menuItemResponse)
	for _, it := range items {
		if it.Status == database.MenuItemStatusUnavailable {
			continue
		}
		byCategory[it.CategoryID] = append(byCategory[it.CategoryID], toMenuItemResponse(it))
	}

	board := make([]boardSection, 0, len(categories))
	for _, c := range categories {
		if section := byCategory[c.ID]; len(section) > 0 {
			board = append(board, boardSection{categoryResponse: toCategoryResponse(c), Items: section})
		}
	}
	writeJSON(w, http.StatusOK, board)
}

// Create handles POST /categories.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, err := menu.ValidateCategory(req.Name, req.SortOrder)
	if err != nil {
		writeServiceError(w, "create category", err)
		return
	}

	c, err := h.store.CreateCategory(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: create category: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}
