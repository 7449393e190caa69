package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"roza/backend/internal/domain"
	"roza/backend/internal/settlement"
)

func TestSettlementWindowSwapIsAtomic(t *testing.T) {
	databaseURL := os.Getenv("ROZA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set ROZA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(s.Close)

	stamp := time.Now().UnixNano()
	clientID := fmt.Sprintf("cli-settle-it-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM ledger_entries WHERE client_id = $1`, clientID)
		_, _ = s.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, clientID)
	})

	if _, err := s.CreateClient(ctx, domain.Client{
		ID:          clientID,
		Name:        "Settlement IT",
		DefaultTier: domain.TierRetail,
		Currency:    "UAH",
		Active:      true,
	}); err != nil {
		t.Fatalf("create client: %v", err)
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	since := now.AddDate(0, 0, -settlement.WindowDays)
	entry := func(daysAgo int, docID, income string) domain.LedgerEntry {
		date := now.AddDate(0, 0, -daysAgo)
		return domain.LedgerEntry{
			ClientID:    clientID,
			Currency:    "UAH",
			Date:        date,
			DocTypeCode: "1",
			DocID:       docID,
			Income:      decimal.RequireFromString(income),
			Key:         settlement.BuildKey(date, "1", docID),
		}
	}

	// An old entry outside the window must survive the swap.
	oldEntry := entry(settlement.WindowDays+5, "old", "10")
	if err := s.ReplaceSettlementWindow(ctx, clientID, "UAH", oldEntry.Date.AddDate(0, 0, -1), []domain.LedgerEntry{oldEntry}); err != nil {
		t.Fatalf("seed old entry: %v", err)
	}

	first := []domain.LedgerEntry{entry(3, "a", "100"), entry(2, "b", "200")}
	if err := s.ReplaceSettlementWindow(ctx, clientID, "UAH", since, first); err != nil {
		t.Fatalf("first swap: %v", err)
	}
	second := []domain.LedgerEntry{entry(1, "c", "300")}
	if err := s.ReplaceSettlementWindow(ctx, clientID, "UAH", since, second); err != nil {
		t.Fatalf("second swap: %v", err)
	}

	entries, err := s.ListSettlementWindow(ctx, clientID, "UAH")
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected old entry plus swapped window, got %d entries", len(entries))
	}
	keys := map[string]bool{}
	for _, e := range entries {
		keys[e.DocID] = true
	}
	if !keys["old"] || !keys["c"] || keys["a"] || keys["b"] {
		t.Fatalf("unexpected window contents: %v", keys)
	}
}
