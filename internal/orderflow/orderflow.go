// Package orderflow holds the order and order item state machines. Every
// function is pure: callers load the current state, check the transition
// here, and persist it with a conditional update.
package orderflow

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/enum"
)

type (
	OrderStatus = database.OrderStatus
	ItemStatus  = database.OrderItemStatus
	Role        = database.UserRole
)

var (
	ErrUnknownStatus     = errors.New("unknown status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRoleNotAllowed    = errors.New("role not allowed for this transition")
	ErrDerivedStatus     = errors.New("ready is derived from item statuses")
	ErrCheckoutOnly      = errors.New("orders are completed through checkout")
	ErrAlreadyCompleted  = errors.New("order already completed")
	ErrOrderClosed       = errors.New("order is rejected or cancelled")
	ErrOrderNotAccepted  = errors.New("order has not been accepted yet")
	ErrItemsPending      = errors.New("order still has pending items")
)

type itemRule struct {
	parents []OrderStatus
	roles   []Role
}

var (
	staffDecision = []Role{database.UserRoleWaiter, database.UserRoleKitchen, database.UserRoleAdmin}
	kitchenRoles  = []Role{database.UserRoleKitchen, database.UserRoleAdmin}
	floorRoles    = []Role{database.UserRoleWaiter, database.UserRoleAdmin}
	adminOnly     = []Role{database.UserRoleAdmin}
)

// itemTransitions lists every legal item move. A nil parents slice means the
// parent order status is not consulted.
var itemTransitions = map[ItemStatus]map[ItemStatus]itemRule{
	database.OrderItemStatusPending: {
		database.OrderItemStatusAccepted: {
			parents: []OrderStatus{database.OrderStatusReceived, database.OrderStatusPreparing},
			roles:   staffDecision,
		},
		database.OrderItemStatusRejected: {
			parents: []OrderStatus{database.OrderStatusReceived, database.OrderStatusPreparing},
			roles:   staffDecision,
		},
	},
	database.OrderItemStatusAccepted: {
		database.OrderItemStatusReady: {
			parents: []OrderStatus{database.OrderStatusPreparing},
			roles:   kitchenRoles,
		},
	},
	database.OrderItemStatusReady: {
		database.OrderItemStatusServed: {
			parents: []OrderStatus{database.OrderStatusPreparing, database.OrderStatusReady},
			roles:   floorRoles,
		},
	},
}

var orderTransitions = map[OrderStatus]map[OrderStatus][]Role{
	database.OrderStatusReceived: {
		database.OrderStatusPreparing: floorRoles,
		database.OrderStatusRejected:  floorRoles,
		database.OrderStatusCancelled: adminOnly,
	},
	database.OrderStatusPreparing: {
		database.OrderStatusCancelled: adminOnly,
	},
}

func IsItemStatus(s string) bool {
	switch ItemStatus(s) {
	case database.OrderItemStatusPending, database.OrderItemStatusAccepted, database.OrderItemStatusRejected,
		database.OrderItemStatusReady, database.OrderItemStatusServed:
		return true
	}
	return false
}

func IsOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case database.OrderStatusReceived, database.OrderStatusPreparing, database.OrderStatusReady,
		database.OrderStatusCompleted, database.OrderStatusRejected, database.OrderStatusCancelled:
		return true
	}
	return false
}

func IsTerminal(s OrderStatus) bool {
	return s == database.OrderStatusCompleted || s == database.OrderStatusRejected || s == database.OrderStatusCancelled
}

// CheckItemTransition validates moving an item from current to target while
// its order is in parent, on behalf of role.
func CheckItemTransition(current, target ItemStatus, parent OrderStatus, role Role) error {
	if !IsItemStatus(string(target)) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, target)
	}
	rule, ok := itemTransitions[current][target]
	if !ok {
		return fmt.Errorf("%w: item %s -> %s", ErrInvalidTransition, current, target)
	}
	if rule.parents != nil && !slices.Contains(rule.parents, parent) {
		return fmt.Errorf("%w: item %s -> %s while order is %s", ErrInvalidTransition, current, target, parent)
	}
	if !slices.Contains(rule.roles, role) {
		return fmt.Errorf("%w: %s cannot mark items %s", ErrRoleNotAllowed, role, target)
	}
	return nil
}

// CheckOrderTransition validates an explicit order-level status change.
// ready is derived and completed is reserved for checkout.
func CheckOrderTransition(current, target OrderStatus, role Role) error {
	if !IsOrderStatus(string(target)) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, target)
	}
	switch target {
	case database.OrderStatusReady:
		return ErrDerivedStatus
	case database.OrderStatusCompleted:
		return ErrCheckoutOnly
	}
	roles, ok := orderTransitions[current][target]
	if !ok {
		return fmt.Errorf("%w: order %s -> %s", ErrInvalidTransition, current, target)
	}
	if !slices.Contains(roles, role) {
		return fmt.Errorf("%w: %s cannot move orders to %s", ErrRoleNotAllowed, role, target)
	}
	return nil
}

// AllItemsDone reports whether no item still needs kitchen work.
func AllItemsDone(items []ItemStatus) bool {
	if len(items) == 0 {
		return false
	}
	for _, s := range items {
		switch s {
		case database.OrderItemStatusReady, database.OrderItemStatusServed, database.OrderItemStatusRejected:
		default:
			return false
		}
	}
	return true
}

// Derive returns the order status implied by its items. It is recomputed
// after every item transition and persisted in the same transaction.
func Derive(current OrderStatus, items []ItemStatus) OrderStatus {
	if current != database.OrderStatusReceived && current != database.OrderStatusPreparing {
		return current
	}
	if len(items) == 0 {
		return current
	}
	rejected := 0
	for _, s := range items {
		if s == database.OrderItemStatusRejected {
			rejected++
		}
	}
	if rejected == len(items) {
		return database.OrderStatusRejected
	}
	if current == database.OrderStatusPreparing && AllItemsDone(items) {
		return database.OrderStatusReady
	}
	return current
}

// Billable reports whether an item is charged on the bill.
func Billable(s ItemStatus) bool {
	return s == database.OrderItemStatusAccepted || s == database.OrderItemStatusReady || s == database.OrderItemStatusServed
}

// Presentation maps an item status to the label shown to customers and
// kitchen staff.
func Presentation(s ItemStatus) string {
	switch s {
	case database.OrderItemStatusPending:
		return enum.PresentationQueued
	case database.OrderItemStatusAccepted:
		return enum.PresentationCooking
	case database.OrderItemStatusReady:
		return enum.PresentationReady
	case database.OrderItemStatusServed:
		return enum.PresentationServed
	case database.OrderItemStatusRejected:
		return enum.PresentationRejected
	}
	return string(s)
}

// CheckCheckout validates that an order can be settled. Items must all be
// decided and the order must have been accepted.
func CheckCheckout(order OrderStatus, items []ItemStatus) error {
	switch order {
	case database.OrderStatusCompleted:
		return ErrAlreadyCompleted
	case database.OrderStatusRejected, database.OrderStatusCancelled:
		return ErrOrderClosed
	case database.OrderStatusReceived:
		return ErrOrderNotAccepted
	}
	for _, s := range items {
		if s == database.OrderItemStatusPending {
			return ErrItemsPending
		}
	}
	return nil
}
