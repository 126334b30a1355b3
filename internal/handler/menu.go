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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/menu"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	SoftDeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	CategoryExists(ctx context.Context, id uuid.UUID) (bool, error)
	ListModifiersByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemModifier, error)
	CreateModifier(ctx context.Context, arg database.CreateModifierParams) (database.MenuItemModifier, error)
}

// MenuHandler handles menu item and modifier endpoints.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers the public menu endpoints.
// Expected to be mounted at /menu/items.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/modifiers", h.ListModifiers)
}

// RegisterAdminRoutes registers menu management. Mount behind RequireRole(database.UserRoleAdmin).
func (h *MenuHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
	r.Post("/{id}/delete", h.Delete)
	r.Post("/{id}/modifiers", h.CreateModifier)
}

// --- Request / Response types ---

type menuItemResponse struct {
	ID                uuid.UUID `json:"id"`
	CategoryID        uuid.UUID `json:"categoryId"`
	Name              string    `json:"name"`
	Description       *string   `json:"description"`
	Status            string    `json:"status"`
	Price             string    `json:"price"`
	PrepTimeMinutes   int32     `json:"prepTimeMinutes"`
	ImageURL          *string   `json:"imageUrl"`
	IsChefRecommended bool      `json:"isChefRecommended"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type createModifierRequest struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type modifierResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	resp := menuItemResponse{
		ID:                m.ID,
		CategoryID:        m.CategoryID,
		Name:              m.Name,
		Status:            string(m.Status),
		Price:             database.NumericString(m.Price),
		PrepTimeMinutes:   m.PrepTimeMinutes,
		IsChefRecommended: m.IsChefRecommended,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.Description.Valid {
		resp.Description = &m.Description.String
	}
	if m.ImageUrl.Valid {
		resp.ImageURL = &m.ImageUrl.String
	}
	return resp
}

func toModifierResponse(m database.MenuItemModifier) modifierResponse {
	return modifierResponse{
		ID:         m.ID,
		MenuItemID: m.MenuItemID,
		Name:       m.Name,
		Price:      database.NumericString(m.Price),
	}
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func optionalText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

// --- Handlers ---

// List returns non-deleted menu items, optionally filtered by
// ?category_id= and ?status=.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	var params database.ListMenuItemsParams
	if s := r.URL.Query().Get("category_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return
		}
		params.CategoryID = pgtype.UUID{Bytes: id, Valid: true}
	}
	if s := r.URL.Query().Get("status"); s != "" {
		params.Status = pgtype.Text{String: s, Valid: true}
	}

	items, err := h.store.ListMenuItems(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single menu item.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Create validates and stores a new menu item.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	payload, err := menu.DecodePayload(r.Body)
	if err != nil {
		writeServiceError(w, "create menu item", err)
		return
	}
	item, err := menu.ValidateCreate(payload)
	if err != nil {
		writeServiceError(w, "create menu item", err)
		return
	}

	exists, err := h.store.CategoryExists(r.Context(), item.CategoryID)
	if err != nil {
		log.Printf("ERROR: check category: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !exists {
		writeServiceError(w, "create menu item", menu.CategoryNotFound())
		return
	}

	created, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		CategoryID:        item.CategoryID,
		Name:              item.Name,
		Description:       optionalText(item.Description),
		Status:            item.Status,
		Price:             database.DecimalToNumeric(item.Price),
		PrepTimeMinutes:   item.PrepTimeMinutes,
		ImageUrl:          optionalText(item.ImageURL),
		IsChefRecommended: item.IsChefRecommended,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeServiceError(w, "create menu item", menu.CategoryNotFound())
			return
		}
		log.Printf("ERROR: create menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toMenuItemResponse(created))
}

// Update applies a partial update. Only keys present in the body change.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	payload, err := menu.DecodePayload(r.Body)
	if err != nil {
		writeServiceError(w, "update menu item", err)
		return
	}
	patch, err := menu.ValidateUpdate(payload)
	if err != nil {
		writeServiceError(w, "update menu item", err)
		return
	}

	params := database.UpdateMenuItemParams{
		ID:             id,
		SetDescription: patch.SetDescription,
		Description:    optionalText(patch.Description),
		SetImageUrl:    patch.SetImageURL,
		ImageUrl:       optionalText(patch.ImageURL),
	}
	if patch.CategoryID != nil {
		exists, err := h.store.CategoryExists(r.Context(), *patch.CategoryID)
		if err != nil {
			log.Printf("ERROR: check category: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if !exists {
			writeServiceError(w, "update menu item", menu.CategoryNotFound())
			return
		}
		params.CategoryID = pgtype.UUID{Bytes: *patch.CategoryID, Valid: true}
	}
	if patch.Name != nil {
		params.Name = pgtype.Text{String: *patch.Name, Valid: true}
	}
	if patch.Status != nil {
		params.Status = pgtype.Text{String: string(*patch.Status), Valid: true}
	}
	if patch.Price != nil {
		params.Price = database.DecimalToNumeric(*patch.Price)
	}
	if patch.PrepTimeMinutes != nil {
		params.PrepTimeMinutes = pgtype.Int4{Int32: *patch.PrepTimeMinutes, Valid: true}
	}
	if patch.IsChefRecommended != nil {
		params.IsChefRecommended = pgtype.Bool{Bool: *patch.IsChefRecommended, Valid: true}
	}

	updated, err := h.store.UpdateMenuItem(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		if isForeignKeyViolation(err) {
			writeServiceError(w, "update menu item", menu.CategoryNotFound())
			return
		}
		log.Printf("ERROR: update menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(updated))
}

// Delete soft-deletes a menu item. Past orders keep their snapshot.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	if _, err := h.store.SoftDeleteMenuItem(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: delete menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListModifiers returns the active modifiers of a menu item.
func (h *MenuHandler) ListModifiers(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	mods, err := h.store.ListModifiersByMenuItem(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list modifiers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]modifierResponse, len(mods))
	for i, m := range mods {
		resp[i] = toModifierResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateModifier adds a priced option to a menu item.
func (h *MenuHandler) CreateModifier(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req createModifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil || price.IsNegative() || price.GreaterThan(menu.MaxPrice) || !menu.WithinMoneyScale(price) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	mod, err := h.store.CreateModifier(r.Context(), database.CreateModifierParams{
		MenuItemID: id,
		Name:       name,
		Price:      database.DecimalToNumeric(price),
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: create modifier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toModifierResponse(mod))
}
