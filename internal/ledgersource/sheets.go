package ledgersource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"roza/backend/internal/domain"
	"roza/backend/internal/settlement"
)

// Tab layout of the bookkeeping export: one tab per ledger named
// "<clientID>_<currency>"; cell B1 holds the starting balance and rows from 3
// down hold date, type code, doc id, doc number, income, expense.
const (
	balanceCell = "B1"
	dataRange   = "A3:F"
)

type sheetsSource struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheets builds a source over a Google Sheets spreadsheet using a service
// account credentials file.
func NewSheets(ctx context.Context, credentialsPath, spreadsheetID string) (HistorySource, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("init sheets client: %w", err)
	}
	return &sheetsSource{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func tabName(clientID, currency string) string {
	return clientID + "_" + strings.ToUpper(currency)
}

func (s *sheetsSource) FetchRecent(ctx context.Context, clientID, currency string) ([]domain.LedgerEntry, error) {
	entries, err := s.fetchEntries(ctx, clientID, currency)
	if err != nil {
		return nil, err
	}
	return settlement.RecentWindow(entries, time.Now().UTC()), nil
}

func (s *sheetsSource) FetchHistory(ctx context.Context, clientID, currency string) (*domain.HistoryPull, error) {
	tab := tabName(clientID, currency)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, tab+"!"+balanceCell).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch starting balance for %s: %w", tab, err)
	}
	pull := &domain.HistoryPull{}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		pull.StartingBalance = settlement.ParseAmount(fmt.Sprint(resp.Values[0][0]))
	}
	pull.Entries, err = s.fetchEntries(ctx, clientID, currency)
	if err != nil {
		return nil, err
	}
	return pull, nil
}

func (s *sheetsSource) fetchEntries(ctx context.Context, clientID, currency string) ([]domain.LedgerEntry, error) {
	tab := tabName(clientID, currency)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, tab+"!"+dataRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch ledger rows for %s: %w", tab, err)
	}
	var entries []domain.LedgerEntry
	for _, row := range resp.Values {
		src := settlement.SourceRow{
			DocumentDate:     cell(row, 0),
			DocumentTypeCode: cell(row, 1),
			DocumentID:       cell(row, 2),
			DocumentNumber:   cell(row, 3),
			Income:           cell(row, 4),
			Expense:          cell(row, 5),
		}
		if src.DocumentDate == "" && src.DocumentID == "" {
			continue
		}
		entry, err := settlement.ParseRow(src, clientID, currency)
		if err != nil {
			// Rows with unparseable dates are export artifacts; skip them
			// rather than failing the whole pull.
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func cell(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}
