package returns

import "github.com/pratikdungano/vastrahub-backend/pkg/enums"

// forwardEdges is the single source of truth for the return workflow. Every
// step moves exactly one edge; rejection is only open while the request has
// not entered logistics.
var forwardEdges = map[enums.ReturnStatus]enums.ReturnStatus{
	enums.ReturnStatusRequested:       enums.ReturnStatusApproved,
	enums.ReturnStatusApproved:        enums.ReturnStatusPickupScheduled,
	enums.ReturnStatusPickupScheduled: enums.ReturnStatusPicked,
	enums.ReturnStatusPicked:          enums.ReturnStatusReceived,
	enums.ReturnStatusReceived:        enums.ReturnStatusRefunded,
}

// CanAdvance reports whether to is a legal next step from from.
func CanAdvance(from, to enums.ReturnStatus) bool {
	if to == enums.ReturnStatusRejected {
		return from == enums.ReturnStatusRequested || from == enums.ReturnStatusApproved
	}
	next, ok := forwardEdges[from]
	return ok && next == to
}

// NextStatus returns the forward step from the given status, if any.
func NextStatus(from enums.ReturnStatus) (enums.ReturnStatus, bool) {
	next, ok := forwardEdges[from]
	return next, ok
}
