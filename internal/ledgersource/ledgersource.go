// Package ledgersource pulls settlement data from the supplier's bookkeeping
// export, a Google Sheets document with one tab per (client, currency) ledger.
package ledgersource

import (
	"context"
	"errors"

	"roza/backend/internal/domain"
)

// ErrDisabled is returned by the no-op source so callers can distinguish
// "no source configured" from a fetch failure.
var ErrDisabled = errors.New("ledger source disabled")

// HistorySource fetches ledger rows from the external bookkeeping export.
// FetchRecent backs the scheduled window sync; FetchHistory backs the
// on-demand full statement.
type HistorySource interface {
	FetchRecent(ctx context.Context, clientID, currency string) ([]domain.LedgerEntry, error)
	FetchHistory(ctx context.Context, clientID, currency string) (*domain.HistoryPull, error)
}

type disabled struct{}

// NewDisabled returns a source that reports ErrDisabled for every fetch.
func NewDisabled() HistorySource { return disabled{} }

func (disabled) FetchRecent(context.Context, string, string) ([]domain.LedgerEntry, error) {
	return nil, ErrDisabled
}

func (disabled) FetchHistory(context.Context, string, string) (*domain.HistoryPull, error) {
	return nil, ErrDisabled
}
