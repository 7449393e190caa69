// Package fulfillment holds the order fulfillment state machine: per-line
// quantity edits and the whole-order status derivation. All functions are
// pure over the line slice owned by the current edit session.
package fulfillment

import (
	"roza/backend/internal/domain"
)

// SetCancelledQty applies a manual cancelled-quantity edit to a line. The
// value is clamped to [0, ordered], confirmed is recomputed, and the line
// status is normalized: own-warehouse lines go straight to Fulfilled, other
// lines with any confirmed quantity to OrderedFromSupplier. Confirming a
// quantity always normalizes a non-warehouse line, even one previously set to
// Fulfilled; a manual re-select in the same edit session wins via ApplyStatus.
func SetCancelledQty(line *domain.OrderLine, newCancelled int) {
	if line == nil {
		return
	}

	if newCancelled < 0 {
		newCancelled = 0
	}
	if newCancelled > line.OrderedQty {
		newCancelled = line.OrderedQty
	}

	line.CancelledQty = newCancelled
	line.ConfirmedQty = line.OrderedQty - line.CancelledQty

	if line.Supplier == domain.SupplierOwnWarehouse {
		line.Status = domain.LineStatusFulfilled
		return
	}
	if line.ConfirmedQty > 0 {
		line.Status = domain.LineStatusOrderedFromSupplier
	}
}

// ApplyStatus sets a manual status override. Unknown statuses are ignored.
func ApplyStatus(line *domain.OrderLine, status string) {
	if line == nil || !domain.IsValidLineStatus(status) {
		return
	}
	line.Status = status
}

// DeriveOrderStatus recomputes the order-level status and cancellation flag
// from scratch, so it is idempotent and independent of line order: Completed
// when every line is Fulfilled, PartiallyFulfilled when any line has been
// ordered from a supplier, New otherwise.
func DeriveOrderStatus(lines []domain.OrderLine) (string, bool) {
	hasCancellations := false
	allFulfilled := len(lines) > 0
	anyOrdered := false

	for _, line := range lines {
		if line.CancelledQty > 0 {
			hasCancellations = true
		}
		if line.Status != domain.LineStatusFulfilled {
			allFulfilled = false
		}
		if line.Status == domain.LineStatusOrderedFromSupplier {
			anyOrdered = true
		}
	}

	switch {
	case allFulfilled:
		return domain.OrderStatusCompleted, hasCancellations
	case anyOrdered:
		return domain.OrderStatusPartiallyFulfilled, hasCancellations
	default:
		return domain.OrderStatusNew, hasCancellations
	}
}

// NewLine builds an order line in its initial state: nothing cancelled, the
// full ordered quantity awaiting confirmation.
func NewLine(line domain.OrderLine) domain.OrderLine {
	if line.OrderedQty < 0 {
		line.OrderedQty = 0
	}
	line.CancelledQty = 0
	line.ConfirmedQty = line.OrderedQty
	line.Status = domain.LineStatusAwaitingConfirmation
	return line
}
