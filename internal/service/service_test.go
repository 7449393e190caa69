package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"roza/backend/internal/cache"
	"roza/backend/internal/domain"
	"roza/backend/internal/ledgersource"
	"roza/backend/internal/settlement"
	"roza/backend/internal/store/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// stubSource feeds canned ledger data instead of calling Google Sheets.
type stubSource struct {
	recent  []domain.LedgerEntry
	history *domain.HistoryPull
	err     error
}

func (s stubSource) FetchRecent(context.Context, string, string) ([]domain.LedgerEntry, error) {
	return s.recent, s.err
}

func (s stubSource) FetchHistory(context.Context, string, string) (*domain.HistoryPull, error) {
	return s.history, s.err
}

func newTestService(t *testing.T, source ledgersource.HistorySource) (*Service, *memory.Store, *domain.Client) {
	t.Helper()
	repo := memory.New()
	client, err := repo.CreateClient(context.Background(), domain.Client{
		Name:        "Test Client",
		DefaultTier: domain.TierTwo,
		Currency:    "UAH",
		Active:      true,
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if source == nil {
		source = ledgersource.NewDisabled()
	}
	svc := New(repo, cache.NewNoop(), source, Options{
		BaseCurrency: "UAH",
		AltCurrency:  "USD",
		DefaultRate:  dec("0.0243"),
	})
	return svc, repo, client
}

func seedCatalog(t *testing.T, repo *memory.Store) {
	t.Helper()
	_, _, err := repo.UpsertProducts(context.Background(), domain.SupplierOwnWarehouse, []domain.PriceListRecord{
		{
			Brand: "BOSCH", ArticleID: "0986452041", Name: "Oil filter",
			Categories: []string{"filters"},
			Stock:      5,
			TierPrices: map[string]decimal.Decimal{
				domain.TierRetail: dec("150"),
				domain.TierTwo:    dec("130"),
			},
		},
	})
	if err != nil {
		t.Fatalf("seed own warehouse: %v", err)
	}
	_, _, err = repo.UpsertProducts(context.Background(), "partner-east", []domain.PriceListRecord{
		{
			Brand: "BOSCH", ArticleID: "0986452041", Name: "Oil filter",
			Stock: 20,
			TierPrices: map[string]decimal.Decimal{
				domain.TierRetail: dec("140"),
				domain.TierTwo:    dec("120"),
			},
		},
	})
	if err != nil {
		t.Fatalf("seed partner: %v", err)
	}
}

func TestCatalogPricesWithClientRules(t *testing.T) {
	svc, repo, client := newTestService(t, nil)
	seedCatalog(t, repo)

	adj := dec("10")
	err := svc.SaveRuleSet(context.Background(), domain.PricingRuleSet{
		ClientID:         client.ID,
		GlobalAdjustment: &adj,
	})
	if err != nil {
		t.Fatalf("save rule set: %v", err)
	}

	resp, err := svc.Catalog(context.Background(), client.ID, domain.CatalogQuery{Brand: "bosch"})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(resp.Groups) != 1 || len(resp.Groups[0].Rows) != 2 {
		t.Fatalf("expected one group with two rows, got %+v", resp.Groups)
	}
	rows := resp.Groups[0].Rows
	if rows[0].Supplier != domain.SupplierOwnWarehouse {
		t.Fatalf("own warehouse should rank first, got %s", rows[0].Supplier)
	}
	// tier2 130 and 120 with +10% global adjustment.
	if !rows[0].Price.Equal(dec("143")) || !rows[1].Price.Equal(dec("132")) {
		t.Fatalf("unexpected prices %s / %s", rows[0].Price, rows[1].Price)
	}
	if resp.Currency != "UAH" {
		t.Fatalf("expected UAH, got %s", resp.Currency)
	}
}

func TestCatalogRequiresBrandOrArticle(t *testing.T) {
	svc, _, client := newTestService(t, nil)
	if _, err := svc.Catalog(context.Background(), client.ID, domain.CatalogQuery{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestCatalogAltCurrencyUsesStoredRate(t *testing.T) {
	svc, repo, client := newTestService(t, nil)
	seedCatalog(t, repo)
	err := repo.SetExchangeRate(context.Background(), domain.ExchangeRate{
		Base: "UAH", Quote: "USD", Rate: dec("0.025"),
	})
	if err != nil {
		t.Fatalf("set rate: %v", err)
	}

	resp, err := svc.Catalog(context.Background(), client.ID, domain.CatalogQuery{Brand: "BOSCH", Currency: "usd"})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if resp.Currency != "USD" {
		t.Fatalf("expected USD, got %s", resp.Currency)
	}
	// 130 * 0.025 = 3.25
	if got := resp.Groups[0].Rows[0].Price; !got.Equal(dec("3.25")) {
		t.Fatalf("expected 3.25, got %s", got)
	}
}

func TestSaveRuleSetRejectsDuplicateScope(t *testing.T) {
	svc, _, client := newTestService(t, nil)
	err := svc.SaveRuleSet(context.Background(), domain.PricingRuleSet{
		ClientID: client.ID,
		Rules: []domain.PricingRule{
			{Type: domain.RuleTypeBrand, Brand: "BOSCH", PriceTier: domain.TierOne},
			{Type: domain.RuleTypeBrand, Brand: "bosch", PriceTier: domain.TierThree},
		},
	})
	if err == nil {
		t.Fatal("expected duplicate scope rejection")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSaveRuleSetValidatesRuleShape(t *testing.T) {
	svc, _, client := newTestService(t, nil)
	err := svc.SaveRuleSet(context.Background(), domain.PricingRuleSet{
		ClientID: client.ID,
		Rules:    []domain.PricingRule{{Type: domain.RuleTypeProduct, Brand: "BOSCH"}},
	})
	if err == nil {
		t.Fatal("product rule without article should be rejected")
	}
}

func TestPlaceOrderPricesServerSide(t *testing.T) {
	svc, repo, client := newTestService(t, nil)
	seedCatalog(t, repo)

	order, err := svc.PlaceOrder(context.Background(), domain.OrderCreateRequest{
		ClientID: client.ID,
		Items: []domain.OrderItemRequest{
			{Brand: "BOSCH", ArticleID: "0986452041", Supplier: "partner-east", Qty: 3},
		},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.Status != domain.OrderStatusNew {
		t.Fatalf("expected New, got %s", order.Status)
	}
	line := order.Lines[0]
	if !line.UnitPrice.Equal(dec("120")) {
		t.Fatalf("expected tier2 price 120, got %s", line.UnitPrice)
	}
	if line.Status != domain.LineStatusAwaitingConfirmation {
		t.Fatalf("expected awaiting confirmation, got %s", line.Status)
	}
	if line.ConfirmedQty != 3 {
		t.Fatalf("expected confirmed 3, got %d", line.ConfirmedQty)
	}
}

func TestPlaceOrderRejectsUnknownOffer(t *testing.T) {
	svc, repo, client := newTestService(t, nil)
	seedCatalog(t, repo)
	_, err := svc.PlaceOrder(context.Background(), domain.OrderCreateRequest{
		ClientID: client.ID,
		Items:    []domain.OrderItemRequest{{Brand: "BOSCH", ArticleID: "0986452041", Supplier: "nobody", Qty: 1}},
	})
	if err == nil {
		t.Fatal("expected unknown supplier rejection")
	}
}

func TestUpdateFulfillmentDerivesOrderStatus(t *testing.T) {
	svc, repo, client := newTestService(t, nil)
	seedCatalog(t, repo)
	order, err := svc.PlaceOrder(context.Background(), domain.OrderCreateRequest{
		ClientID: client.ID,
		Items: []domain.OrderItemRequest{
			{Brand: "BOSCH", ArticleID: "0986452041", Supplier: "partner-east", Qty: 4},
			{Brand: "BOSCH", ArticleID: "0986452041", Supplier: domain.SupplierOwnWarehouse, Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	cancelled := 1
	status := domain.LineStatusFulfilled
	updated, err := svc.UpdateFulfillment(context.Background(), order.ID, domain.FulfillmentUpdateRequest{
		Lines: []domain.OrderLineEdit{
			{Index: 0, CancelledQty: &cancelled, Status: &status},
			{Index: 1, CancelledQty: new(int)},
		},
	})
	if err != nil {
		t.Fatalf("update fulfillment: %v", err)
	}
	if updated.Lines[0].ConfirmedQty != 3 {
		t.Fatalf("expected confirmed 3, got %d", updated.Lines[0].ConfirmedQty)
	}
	// Own-warehouse line fulfills automatically on the quantity edit.
	if updated.Lines[1].Status != domain.LineStatusFulfilled {
		t.Fatalf("expected own warehouse line fulfilled, got %s", updated.Lines[1].Status)
	}
	if updated.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected Completed, got %s", updated.Status)
	}
	if !updated.HasCancellations {
		t.Fatal("expected cancellation flag")
	}
}

func TestUpdateFulfillmentRejectsBadIndex(t *testing.T) {
	svc, repo, client := newTestService(t, nil)
	seedCatalog(t, repo)
	order, _ := svc.PlaceOrder(context.Background(), domain.OrderCreateRequest{
		ClientID: client.ID,
		Items:    []domain.OrderItemRequest{{Brand: "BOSCH", ArticleID: "0986452041", Supplier: "partner-east", Qty: 1}},
	})
	qty := 1
	_, err := svc.UpdateFulfillment(context.Background(), order.ID, domain.FulfillmentUpdateRequest{
		Lines: []domain.OrderLineEdit{{Index: 5, CancelledQty: &qty}},
	})
	if err == nil {
		t.Fatal("expected out-of-range rejection")
	}
}

func TestStatementWindowOnly(t *testing.T) {
	svc, repo, client := newTestService(t, nil)
	now := time.Now().UTC()
	entries := []domain.LedgerEntry{
		ledgerEntry(client.ID, now.AddDate(0, 0, -2), "1", "100", "50", "0"),
		ledgerEntry(client.ID, now.AddDate(0, 0, -1), "2", "101", "0", "30"),
	}
	since := now.AddDate(0, 0, -settlement.WindowDays)
	if err := repo.ReplaceSettlementWindow(context.Background(), client.ID, "UAH", since, entries); err != nil {
		t.Fatalf("seed window: %v", err)
	}

	stmt, err := svc.Statement(context.Background(), client.ID, "", false)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if stmt.FullHistory {
		t.Fatal("window statement must not claim full history")
	}
	if len(stmt.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(stmt.Entries))
	}
	if !stmt.Entries[0].Date.After(stmt.Entries[1].Date) {
		t.Fatal("window view must be newest first")
	}
	if stmt.Entries[0].Balance != nil {
		t.Fatal("window view must not carry balances")
	}
}

func TestStatementFullHistoryBalances(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	source := stubSource{history: &domain.HistoryPull{
		StartingBalance: dec("1000"),
		Entries: []domain.LedgerEntry{
			ledgerEntry("", base, "1", "1", "200", "0"),
			ledgerEntry("", base.AddDate(0, 0, 1), "2", "2", "0", "150"),
		},
	}}
	svc, _, client := newTestService(t, source)

	stmt, err := svc.Statement(context.Background(), client.ID, "UAH", true)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if !stmt.FullHistory {
		t.Fatal("expected full history statement")
	}
	// Newest first: balances 1050 then 1200.
	if stmt.Entries[0].Balance == nil || !stmt.Entries[0].Balance.Equal(dec("1050")) {
		t.Fatalf("unexpected top balance %v", stmt.Entries[0].Balance)
	}
	if stmt.ClosingBalance == nil || !stmt.ClosingBalance.Equal(dec("1050")) {
		t.Fatalf("unexpected closing balance %v", stmt.ClosingBalance)
	}
}

func TestStatementFullHistoryDisabledSource(t *testing.T) {
	svc, _, client := newTestService(t, nil)
	if _, err := svc.Statement(context.Background(), client.ID, "UAH", true); err == nil {
		t.Fatal("expected error from disabled source")
	}
}

func TestSyncSettlementWindowReplaces(t *testing.T) {
	now := time.Now().UTC()
	fresh := []domain.LedgerEntry{
		ledgerEntry("", now.AddDate(0, 0, -1), "1", "900", "75", "0"),
	}
	svc, repo, client := newTestService(t, stubSource{recent: fresh})

	stale := []domain.LedgerEntry{
		ledgerEntry(client.ID, now.AddDate(0, 0, -3), "1", "800", "10", "0"),
	}
	since := now.AddDate(0, 0, -settlement.WindowDays)
	if err := repo.ReplaceSettlementWindow(context.Background(), client.ID, "UAH", since, stale); err != nil {
		t.Fatalf("seed stale window: %v", err)
	}

	resp, err := svc.SyncSettlementWindow(context.Background(), client.ID, "")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if resp.Entries != 1 {
		t.Fatalf("expected 1 synced entry, got %d", resp.Entries)
	}
	entries, err := repo.ListSettlementWindow(context.Background(), client.ID, "UAH")
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(entries) != 1 || entries[0].DocID != "900" {
		t.Fatalf("stale entries should be replaced, got %+v", entries)
	}
}

func TestImportPriceListCountsSkippedRows(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	csvBody := strings.Join([]string{
		"brand,article,name,categories,stock,retail,tier1,tier2,tier3,wholesale",
		"BOSCH,0986452041,Oil filter,filters;engine,5,150,145,130,125,110",
		",missing-brand,Bad row,,1,10,,,,",
		"SKF,VKBA3644,Bearing kit,bearings,2,2100,,1990,,1820",
	}, "\n")

	resp, err := svc.ImportPriceList(context.Background(), "partner-east", strings.NewReader(csvBody))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if resp.Offers != 2 || resp.Skipped != 1 || resp.Products != 2 {
		t.Fatalf("unexpected counts %+v", resp)
	}
	product, err := repo.GetProduct(context.Background(), "BOSCH", "0986452041")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if len(product.Offers) != 1 || product.Offers[0].Stock != 5 {
		t.Fatalf("unexpected offers %+v", product.Offers)
	}
	if !product.Offers[0].TierPrices[domain.TierTwo].Equal(dec("130")) {
		t.Fatalf("unexpected tier2 price %s", product.Offers[0].TierPrices[domain.TierTwo])
	}
}

func TestCatalogCSVMatchesCatalogPrices(t *testing.T) {
	svc, repo, client := newTestService(t, nil)
	seedCatalog(t, repo)

	resp, err := svc.Catalog(context.Background(), client.ID, domain.CatalogQuery{Brand: "BOSCH"})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	var out strings.Builder
	if err := svc.WriteCatalogCSV(context.Background(), &out, client.ID, domain.CatalogQuery{Brand: "BOSCH"}); err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, group := range resp.Groups {
		for _, row := range group.Rows {
			if !strings.Contains(out.String(), row.Price.StringFixed(2)) {
				t.Fatalf("export missing displayed price %s:\n%s", row.Price.StringFixed(2), out.String())
			}
		}
	}
}

func TestExchangeRateFallsBackToDefault(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	rate, err := svc.ExchangeRate(context.Background())
	if err != nil {
		t.Fatalf("exchange rate: %v", err)
	}
	if !rate.Rate.Equal(dec("0.0243")) {
		t.Fatalf("expected default rate, got %s", rate.Rate)
	}
}

func TestSetExchangeRateRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	if _, err := svc.SetExchangeRate(context.Background(), dec("0.026")); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	rate, err := svc.ExchangeRate(context.Background())
	if err != nil {
		t.Fatalf("exchange rate: %v", err)
	}
	if !rate.Rate.Equal(dec("0.026")) {
		t.Fatalf("expected stored rate, got %s", rate.Rate)
	}
}

func TestCreateClientWithLoginAccount(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	client, err := svc.CreateClient(context.Background(), domain.ClientCreateRequest{
		Name:        "New Shop",
		DefaultTier: domain.TierOne,
		Username:    "newshop",
		Password:    "secret123",
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if client.Currency != "UAH" {
		t.Fatalf("expected base currency default, got %s", client.Currency)
	}
	user, err := repo.GetUser(context.Background(), "newshop")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Role != "client" || user.ClientID != client.ID {
		t.Fatalf("unexpected account %+v", user)
	}
}

func ledgerEntry(clientID string, date time.Time, typeCode, docID, income, expense string) domain.LedgerEntry {
	day := date.Truncate(24 * time.Hour)
	inc, exp := dec(income), dec(expense)
	return domain.LedgerEntry{
		ClientID:    clientID,
		Currency:    "UAH",
		Date:        day,
		DocTypeCode: typeCode,
		DocID:       docID,
		Income:      inc,
		Expense:     exp,
		Delta:       inc.Sub(exp),
		Key:         settlement.BuildKey(day, typeCode, docID),
	}
}
