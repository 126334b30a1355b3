package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/tableorder/api/internal/billing"
	"github.com/tableorder/api/internal/coupon"
	"github.com/tableorder/api/internal/menu"
	"github.com/tableorder/api/internal/orderflow"
	"github.com/tableorder/api/internal/service"
)

// Service errors grouped by the HTTP status they map to.
var (
	badRequestErrors = []error{
		service.ErrEmptyItems,
		service.ErrInvalidQuantity,
		service.ErrOrderTooLarge,
		service.ErrInvalidMenuItemID,
		service.ErrInvalidModifierID,
		service.ErrMenuItemNotFound,
		service.ErrMenuItemUnavailable,
		service.ErrModifierNotFound,
		service.ErrModifierMismatch,
		service.ErrDuplicateModifier,
		service.ErrInvalidPaymentMethod,
		billing.ErrInvalidDiscountType,
		billing.ErrInvalidDiscountValue,
		orderflow.ErrUnknownStatus,
	}
	notFoundErrors = []error{
		service.ErrTableNotFound,
		service.ErrSessionNotFound,
		service.ErrOrderNotFound,
		service.ErrItemNotFound,
		service.ErrBillRequestNotFound,
	}
	conflictErrors = []error{
		service.ErrStateChanged,
		service.ErrSessionInactive,
		service.ErrNoActiveSession,
		service.ErrNothingToBill,
		service.ErrBillChanged,
		service.ErrBillRequestClosed,
		service.ErrNoUnpaidOrders,
		orderflow.ErrInvalidTransition,
		orderflow.ErrDerivedStatus,
		orderflow.ErrCheckoutOnly,
		orderflow.ErrAlreadyCompleted,
		orderflow.ErrOrderClosed,
		orderflow.ErrOrderNotAccepted,
		orderflow.ErrItemsPending,
	}
)

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeServiceError maps a service error to a status code. Anything
// unrecognised is logged under op and reported as a 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var ve *menu.ValidationError
	var re *coupon.RejectionError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, ve.Status, ve)
	case errors.As(err, &re):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": re.Message})
	case errors.Is(err, orderflow.ErrRoleNotAllowed):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case matchesAny(err, notFoundErrors):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case matchesAny(err, conflictErrors):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case matchesAny(err, badRequestErrors):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// decodeJSON decodes an optional JSON body. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
