package orders

import (
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
)

// forwardEdges is the single source of truth for the order lifecycle. Every
// entry point (admin status update, user cancel, payment verification, TTL
// job) consults this table instead of re-deriving legality. The
// payment_pending edge is reserved for payment verification; AdvanceStatus
// refuses unpaid orders before it reaches this table.
var forwardEdges = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPaymentPending: enums.OrderStatusPlaced,
	enums.OrderStatusPlaced:         enums.OrderStatusProcessing,
	enums.OrderStatusProcessing:     enums.OrderStatusShipped,
	enums.OrderStatusShipped:        enums.OrderStatusOutForDelivery,
	enums.OrderStatusOutForDelivery: enums.OrderStatusDelivered,
}

// CanAdvance reports whether to is the legal forward edge from from.
func CanAdvance(from, to enums.OrderStatus) bool {
	next, ok := forwardEdges[from]
	return ok && next == to
}

// NextStatus returns the forward edge from the given status, if any.
func NextStatus(from enums.OrderStatus) (enums.OrderStatus, bool) {
	next, ok := forwardEdges[from]
	return next, ok
}

// CanCancel reports whether an order in the given status may still be
// cancelled. Delivered and cancelled are terminal for both parties.
func CanCancel(current enums.OrderStatus) bool {
	return !current.IsTerminal()
}
