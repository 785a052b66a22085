package reconcile

import (
	"paydibs/internal/gateway"
	"paydibs/internal/models"
)

// DuplicateReason explains why a notification is a no-op.
type DuplicateReason int

const (
	// ReasonTxnProcessed: the order's idempotency marker already carries
	// this gateway transaction id.
	ReasonTxnProcessed DuplicateReason = iota + 1
	// ReasonOrderProcessed: the order is already in the terminal success
	// state and the notification reports success.
	ReasonOrderProcessed
	// ReasonOrderCanceled: the order is already canceled and the
	// notification reports a failure.
	ReasonOrderCanceled
)

// AlreadyApplied reports whether the notification has already been applied
// to the order. The transaction-id marker is the primary check; the
// terminal-state short-circuits tolerate id discrepancies between channels
// describing the same event.
func AlreadyApplied(order *models.Order, n *gateway.Notification) (bool, DuplicateReason) {
	if n.PTxnID != "" && order.ProcessedTxnID != "" && order.ProcessedTxnID == n.PTxnID {
		return true, ReasonTxnProcessed
	}
	if order.State == models.OrderStateProcessing && n.PTxnStatus == gateway.StatusSuccess {
		return true, ReasonOrderProcessed
	}
	if order.State == models.OrderStateCanceled && gateway.IsFailure(n.PTxnStatus) {
		return true, ReasonOrderCanceled
	}
	return false, 0
}
