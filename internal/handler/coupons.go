package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tableorder/api/internal/coupon"
	"github.com/tableorder/api/internal/service"
)

// CouponValidator is satisfied by *service.CouponService.
type CouponValidator interface {
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (service.CouponValidation, error)
}

// CouponHandler handles coupon endpoints.
type CouponHandler struct {
	svc CouponValidator
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(svc CouponValidator) *CouponHandler {
	return &CouponHandler{svc: svc}
}

// RegisterRoutes registers coupon endpoints. Expected to be mounted at /coupons.
func (h *CouponHandler) RegisterRoutes(r chi.Router) {
	r.Post("/validate", h.Validate)
}

type validateCouponRequest struct {
	Code        string          `json:"code"`
	OrderAmount decimal.Decimal `json:"order_amount"`
}

type couponRejectedResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Validate handles POST /coupons/validate. A rejected code is a 400 whose
// message says why.
func (h *CouponHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, couponRejectedResponse{Message: "invalid request body"})
		return
	}

	result, err := h.svc.Validate(r.Context(), req.Code, req.OrderAmount)
	if err != nil {
		var re *coupon.RejectionError
		if errors.As(err, &re) {
			writeJSON(w, http.StatusBadRequest, couponRejectedResponse{Valid: false, Message: re.Message})
			return
		}
		writeServiceError(w, "validate coupon", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
