// Package settlement reconciles accounts-receivable ledger entries: a short
// locally-synced window merged with an optionally fetched full history from
// the external spreadsheet source.
package settlement

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"roza/backend/internal/domain"
)

// WindowDays is how far back the locally cached ledger window reaches.
// Entries older than this are only visible after a full-history pull.
const WindowDays = 15

// sourceDateLayout is the DD-MM-YYYY format the external ledger source uses.
const sourceDateLayout = "02-01-2006"

// BuildKey derives the stable dedup key for a ledger entry:
// {date:YYYYMMDD}-{docTypeCode}-{docID}. Re-importing a source row with the
// same key overwrites instead of duplicating.
func BuildKey(date time.Time, docTypeCode string, docID string) string {
	return fmt.Sprintf("%s-%s-%s", date.Format("20060102"), docTypeCode, docID)
}

// SourceRow is one raw row as it arrives from the external ledger source
// (spreadsheet pull or CSV import), all fields still text.
type SourceRow struct {
	DocumentDate     string `json:"document_date"`
	DocumentTypeCode string `json:"document_type_code"`
	DocumentID       string `json:"document_id"`
	DocumentNumber   string `json:"document_number,omitempty"`
	Income           string `json:"income,omitempty"`
	Expense          string `json:"expense,omitempty"`
}

// ParseRow converts a source row into a ledger entry for (clientID, currency).
// Malformed numeric fields default to zero rather than erroring; a malformed
// or empty date makes the row unusable and returns an error.
func ParseRow(row SourceRow, clientID string, currency string) (domain.LedgerEntry, error) {
	date, err := time.Parse(sourceDateLayout, strings.TrimSpace(row.DocumentDate))
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("unusable document date %q: %w", row.DocumentDate, err)
	}

	income := ParseAmount(row.Income)
	expense := ParseAmount(row.Expense)

	entry := domain.LedgerEntry{
		ClientID:    clientID,
		Currency:    currency,
		Date:        date,
		DocTypeCode: strings.TrimSpace(row.DocumentTypeCode),
		DocID:       strings.TrimSpace(row.DocumentID),
		DocNumber:   strings.TrimSpace(row.DocumentNumber),
		Income:      income,
		Expense:     expense,
		Delta:       income.Sub(expense),
	}
	entry.Key = BuildKey(entry.Date, entry.DocTypeCode, entry.DocID)
	return entry, nil
}

// ParseAmount reads a source amount, accepting comma decimal separators.
// Empty or malformed values parse as zero.
func ParseAmount(raw string) decimal.Decimal {
	trimmed := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if trimmed == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// Dedupe collapses entries by key, later entries overwriting earlier ones.
// The surviving entries keep the position where their key first appeared.
func Dedupe(entries []domain.LedgerEntry) []domain.LedgerEntry {
	position := make(map[string]int, len(entries))
	deduped := make([]domain.LedgerEntry, 0, len(entries))

	for _, entry := range entries {
		if at, seen := position[entry.Key]; seen {
			deduped[at] = entry
			continue
		}
		position[entry.Key] = len(deduped)
		deduped = append(deduped, entry)
	}
	return deduped
}

// RecentWindow keeps entries dated within WindowDays of now.
func RecentWindow(entries []domain.LedgerEntry, now time.Time) []domain.LedgerEntry {
	cutoff := now.AddDate(0, 0, -WindowDays)
	kept := make([]domain.LedgerEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.Date.Before(cutoff) {
			kept = append(kept, entry)
		}
	}
	return kept
}

// MergeWindow prepares the window-only view: deduped, newest first, and no
// running balances because the balance before the window is unknown.
func MergeWindow(entries []domain.LedgerEntry) []domain.LedgerEntry {
	merged := Dedupe(entries)
	sortByDate(merged, false)
	for i := range merged {
		merged[i].Balance = nil
	}
	return merged
}

// MergeHistory prepares the full-history view: deduped, running balances
// accumulated in ascending date order from startingBalance, then reversed so
// the newest entry is first while each entry keeps the balance computed
// during the ascending pass.
func MergeHistory(entries []domain.LedgerEntry, startingBalance decimal.Decimal) []domain.LedgerEntry {
	merged := Dedupe(entries)
	sortByDate(merged, true)

	balance := startingBalance
	for i := range merged {
		balance = balance.Add(merged[i].Delta)
		running := balance
		merged[i].Balance = &running
	}

	for i, j := 0, len(merged)-1; i < j; i, j = i+1, j-1 {
		merged[i], merged[j] = merged[j], merged[i]
	}
	return merged
}

// sortByDate orders entries by date, breaking date ties by key so re-runs on
// identical input always produce the same sequence.
func sortByDate(entries []domain.LedgerEntry, ascending bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			if ascending {
				return entries[i].Date.Before(entries[j].Date)
			}
			return entries[i].Date.After(entries[j].Date)
		}
		if ascending {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].Key > entries[j].Key
	})
}
