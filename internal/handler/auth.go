package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tableorder/api/internal/auth"
	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/middleware"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries. Both lookups skip deactivated staff.
type AuthStore interface {
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// AuthHandler signs staff in. Customers never authenticate.
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
}

func NewAuthHandler(store AuthStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret}
}

// RegisterRoutes registers the public sign-in endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
}

// RegisterStaffRoutes registers endpoints that need a staff token.
func (h *AuthHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/auth/me", h.Me)
}

// --- Request / Response types ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type staffResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
}

type sessionResponse struct {
	auth.TokenPair
	User staffResponse `json:"user"`
}

func toStaffResponse(u database.User) staffResponse {
	return staffResponse{ID: u.ID, FullName: u.FullName, Email: u.Email, Role: string(u.Role)}
}

// --- Handlers ---

// Login handles POST /auth/login. Unknown emails and wrong passwords get
// the same answer.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), email)
	if !staffFound(w, err, "invalid credentials") {
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	h.issue(w, user)
}

// Refresh handles POST /auth/refresh. The role is re-read from the store so
// a demoted or deactivated account stops receiving its old privileges.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "refresh_token is required"})
		return
	}

	userID, err := auth.ValidateRefreshToken(h.jwtSecret, req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}

	user, err := h.store.GetUserByID(r.Context(), userID)
	if !staffFound(w, err, "user not found") {
		return
	}
	h.issue(w, user)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if !staffFound(w, err, "user not found") {
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(user))
}

// --- Helpers ---

// staffFound writes the failure response for a user lookup and reports
// whether the caller may continue.
func staffFound(w http.ResponseWriter, err error, missing string) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, pgx.ErrNoRows):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": missing})
	default:
		log.Printf("ERROR: staff lookup: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
	return false
}

func (h *AuthHandler) issue(w http.ResponseWriter, user database.User) {
	pair, err := auth.IssuePair(h.jwtSecret, user.ID, string(user.Role))
	if err != nil {
		log.Printf("ERROR: issue tokens: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{TokenPair: pair, User: toStaffResponse(user)})
}
