package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tableorder/api/internal/billing"
	"github.com/tableorder/api/internal/qr"
	"github.com/tableorder/api/internal/service"
)

// BillingServicer defines the service methods needed by billing handlers.
// Satisfied by *service.BillingService; narrow interface for testability.
type BillingServicer interface {
	Preview(ctx context.Context, scope service.Scope, in service.BillInput) (service.BillPreview, error)
	Checkout(ctx context.Context, scope service.Scope, req service.CheckoutRequest) (service.CheckoutResult, error)
}

// BillingHandler handles bill preview, checkout and transfer QR endpoints.
type BillingHandler struct {
	svc      BillingServicer
	transfer billing.TransferAccount
	qr       qr.Generator
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(svc BillingServicer, transfer billing.TransferAccount, gen qr.Generator) *BillingHandler {
	return &BillingHandler{svc: svc, transfer: transfer, qr: gen}
}

// RegisterRoutes registers billing endpoints. Expected to be mounted at
// /billing behind Authenticate.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/preview/table/{tableId}", h.PreviewTable)
	r.Post("/checkout/table/{tableId}", h.CheckoutTable)
	r.Post("/preview/order/{orderId}", h.PreviewOrder)
	r.Post("/checkout/order/{orderId}", h.CheckoutOrder)
	r.Get("/transfer-qr/table/{tableId}", h.TransferQRTable)
	r.Get("/transfer-qr/order/{orderId}", h.TransferQROrder)
}

// --- Request types ---

var errInvalidCouponID = errors.New("invalid coupon_id")

type billRequest struct {
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	CouponID      string          `json:"coupon_id"`
}

type checkoutRequest struct {
	billRequest
	PaymentMethod string `json:"payment_method"`
	Digest        string `json:"digest"`
}

func (b billRequest) toInput() (service.BillInput, error) {
	in := service.BillInput{
		DiscountType:  strings.TrimSpace(b.DiscountType),
		DiscountValue: b.DiscountValue,
	}
	if s := strings.TrimSpace(b.CouponID); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return service.BillInput{}, errInvalidCouponID
		}
		in.CouponID = &id
	}
	return in, nil
}

// --- Handlers ---

// PreviewTable handles POST /billing/preview/table/{tableId}.
func (h *BillingHandler) PreviewTable(w http.ResponseWriter, r *http.Request) {
	h.preview(w, r, "tableId", service.TableScope)
}

// PreviewOrder handles POST /billing/preview/order/{orderId}.
func (h *BillingHandler) PreviewOrder(w http.ResponseWriter, r *http.Request) {
	h.preview(w, r, "orderId", service.OrderScope)
}

// CheckoutTable handles POST /billing/checkout/table/{tableId}.
func (h *BillingHandler) CheckoutTable(w http.ResponseWriter, r *http.Request) {
	h.checkout(w, r, "tableId", service.TableScope)
}

// CheckoutOrder handles POST /billing/checkout/order/{orderId}.
func (h *BillingHandler) CheckoutOrder(w http.ResponseWriter, r *http.Request) {
	h.checkout(w, r, "orderId", service.OrderScope)
}

// TransferQRTable handles GET /billing/transfer-qr/table/{tableId}.
func (h *BillingHandler) TransferQRTable(w http.ResponseWriter, r *http.Request) {
	h.transferQR(w, r, "tableId", service.TableScope)
}

// TransferQROrder handles GET /billing/transfer-qr/order/{orderId}.
func (h *BillingHandler) TransferQROrder(w http.ResponseWriter, r *http.Request) {
	h.transferQR(w, r, "orderId", service.OrderScope)
}

func (h *BillingHandler) preview(w http.ResponseWriter, r *http.Request, param string, scopeOf func(uuid.UUID) service.Scope) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + param})
		return
	}

	var req billRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	preview, err := h.svc.Preview(r.Context(), scopeOf(id), in)
	if err != nil {
		writeServiceError(w, "preview bill", err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

func (h *BillingHandler) checkout(w http.ResponseWriter, r *http.Request, param string, scopeOf func(uuid.UUID) service.Scope) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + param})
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.svc.Checkout(r.Context(), scopeOf(id), service.CheckoutRequest{
		BillInput:      in,
		PaymentMethod:  strings.TrimSpace(req.PaymentMethod),
		ExpectedDigest: strings.TrimSpace(req.Digest),
		ProcessedBy:    actor.UserID,
	})
	if err != nil {
		writeServiceError(w, "checkout", err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// transferQR renders a bank-transfer QR for the bill's transfer amount.
// The discount is read from the query string.
func (h *BillingHandler) transferQR(w http.ResponseWriter, r *http.Request, param string, scopeOf func(uuid.UUID) service.Scope) {
	if !h.transfer.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": billing.ErrTransferAccount.Error()})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + param})
		return
	}

	q := r.URL.Query()
	req := billRequest{DiscountType: q.Get("discount_type"), CouponID: q.Get("coupon_id")}
	if s := q.Get("discount_value"); s != "" {
		if req.DiscountValue, err = decimal.NewFromString(s); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": billing.ErrInvalidDiscountValue.Error()})
			return
		}
	}
	in, err := req.toInput()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	preview, err := h.svc.Preview(r.Context(), scopeOf(id), in)
	if err != nil {
		writeServiceError(w, "preview bill for transfer", err)
		return
	}
	if !preview.TransferAmount.IsPositive() {
		writeServiceError(w, "transfer QR", service.ErrNothingToBill)
		return
	}

	payload, err := billing.VietQRPayload(h.transfer, preview.TransferAmount, transferReference(preview))
	if err != nil {
		log.Printf("ERROR: build transfer payload: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	png, err := h.qr.PNG(payload)
	if err != nil {
		log.Printf("ERROR: render transfer QR: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("X-Transfer-Amount", preview.TransferAmount.String())
	writePNG(w, png)
}

// transferReference is the memo the customer's bank app pre-fills, short
// enough for the VietQR additional-data field.
func transferReference(p service.BillPreview) string {
	switch {
	case p.SessionID != nil:
		return "TT " + strings.ToUpper(p.SessionID.String()[:8])
	case len(p.OrderIDs) > 0:
		return "TT " + strings.ToUpper(p.OrderIDs[0].String()[:8])
	}
	return "TT"
}
