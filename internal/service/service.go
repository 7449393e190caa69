// Package service orchestrates the portal's use cases over the repository,
// the cache and the external ledger source. HTTP handlers stay thin; every
// business decision lives here or in the pure packages it calls.
package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"roza/backend/internal/cache"
	"roza/backend/internal/catalog"
	"roza/backend/internal/domain"
	"roza/backend/internal/fulfillment"
	"roza/backend/internal/ledgersource"
	"roza/backend/internal/pricing"
	"roza/backend/internal/settlement"
	"roza/backend/internal/store"
)

type ctxKey int

const actorKey ctxKey = 0

// WithActor attaches the authenticated actor to the request context.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

type Options struct {
	BaseCurrency    string
	AltCurrency     string
	DefaultRate     decimal.Decimal
	RuleSetCacheTTL time.Duration
	RateCacheTTL    time.Duration
}

type Service struct {
	repo    store.Repository
	cache   cache.Cache
	history ledgersource.HistorySource
	opts    Options
	logger  *log.Logger
}

func New(repo store.Repository, c cache.Cache, history ledgersource.HistorySource, opts Options) *Service {
	if opts.BaseCurrency == "" {
		opts.BaseCurrency = "UAH"
	}
	if opts.AltCurrency == "" {
		opts.AltCurrency = "USD"
	}
	return &Service{
		repo:    repo,
		cache:   c,
		history: history,
		opts:    opts,
		logger:  log.New(log.Writer(), "[service] ", log.LstdFlags),
	}
}

// ruleSetFor reads the client's rule set through the cache. A client with no
// saved rules prices on defaults, so ErrNotFound comes back as nil.
func (s *Service) ruleSetFor(ctx context.Context, clientID string) (*domain.PricingRuleSet, error) {
	if cached, err := s.cache.GetRuleSet(ctx, clientID); err == nil && cached != nil {
		return cached, nil
	}
	rs, err := s.repo.GetRuleSet(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetRuleSet(ctx, rs, s.opts.RuleSetCacheTTL); err != nil {
		s.logger.Printf("cache rule set for %s: %v", clientID, err)
	}
	return rs, nil
}

func (s *Service) exchangeRate(ctx context.Context) (domain.ExchangeRate, error) {
	base, quote := s.opts.BaseCurrency, s.opts.AltCurrency
	if cached, err := s.cache.GetExchangeRate(ctx, base, quote); err == nil && cached != nil {
		return *cached, nil
	}
	rate, err := s.repo.GetExchangeRate(ctx, base, quote)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ExchangeRate{Base: base, Quote: quote, Rate: s.opts.DefaultRate}, nil
	}
	if err != nil {
		return domain.ExchangeRate{}, err
	}
	if err := s.cache.SetExchangeRate(ctx, rate, s.opts.RateCacheTTL); err != nil {
		s.logger.Printf("cache exchange rate: %v", err)
	}
	return *rate, nil
}

// pricingContextFor assembles the full per-client pricing context. currency
// selects the display currency; empty or unknown values fall back to the
// client's configured currency.
func (s *Service) pricingContextFor(ctx context.Context, client *domain.Client, currency string) (domain.PricingContext, error) {
	rs, err := s.ruleSetFor(ctx, client.ID)
	if err != nil {
		return domain.PricingContext{}, fmt.Errorf("load rule set: %w", err)
	}
	display := strings.ToUpper(strings.TrimSpace(currency))
	if display == "" {
		display = client.Currency
	}
	if display != s.opts.BaseCurrency && display != s.opts.AltCurrency {
		display = s.opts.BaseCurrency
	}
	pc := domain.PricingContext{
		RuleSet:      rs,
		DefaultTier:  client.DefaultTier,
		BaseCurrency: s.opts.BaseCurrency,
		Currency:     display,
	}
	if display != s.opts.BaseCurrency {
		rate, err := s.exchangeRate(ctx)
		if err != nil {
			return domain.PricingContext{}, fmt.Errorf("load exchange rate: %w", err)
		}
		pc.ExchangeRate = rate.Rate
	}
	return pc, nil
}

// Catalog returns the priced, filtered, ranked catalog page for a client.
func (s *Service) Catalog(ctx context.Context, clientID string, query domain.CatalogQuery) (*domain.CatalogResponse, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	var page store.ProductPage
	switch {
	case strings.TrimSpace(query.Article) != "":
		page, err = s.repo.SearchProductsByArticle(ctx, query.Article, query.Cursor, query.Limit)
	case strings.TrimSpace(query.Brand) != "":
		page, err = s.repo.ListProductsByBrand(ctx, query.Brand, query.Cursor, query.Limit)
	default:
		return nil, fmt.Errorf("%w: brand or article is required", store.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}

	pc, err := s.pricingContextFor(ctx, client, query.Currency)
	if err != nil {
		return nil, err
	}
	rows := catalog.ProjectRows(page.Products, pc, catalog.Filters{
		Category:          query.Category,
		HideZeroStock:     query.HideZeroStock,
		HidePartnerOffers: query.HidePartnerOffers,
	})
	return &domain.CatalogResponse{
		Groups:     catalog.GroupRows(rows),
		Currency:   pc.Currency,
		NextCursor: page.NextCursor,
	}, nil
}

// ProductQuote prices every offer of one product for a client, reporting the
// tier each quote resolved to. Backs the admin "what does this client see"
// page.
func (s *Service) ProductQuote(ctx context.Context, clientID, brand, articleID, currency string) (*domain.ProductQuoteResponse, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	product, err := s.repo.GetProduct(ctx, brand, articleID)
	if err != nil {
		return nil, err
	}
	pc, err := s.pricingContextFor(ctx, client, currency)
	if err != nil {
		return nil, err
	}
	ranked := pricing.RankOffers(*product, product.Offers, pc)
	quotes := make([]domain.OfferQuote, 0, len(ranked))
	for _, offer := range ranked {
		q := pricing.PriceQuote(*product, offer, pc)
		quotes = append(quotes, domain.OfferQuote{
			Supplier:  offer.Supplier,
			Stock:     offer.Stock,
			PriceTier: q.Tier,
			Price:     q.Price,
			Currency:  pc.Currency,
		})
	}
	return &domain.ProductQuoteResponse{Product: *product, Quotes: quotes}, nil
}

func (s *Service) GetRuleSet(ctx context.Context, clientID string) (*domain.PricingRuleSet, error) {
	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	rs, err := s.ruleSetFor(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		rs = &domain.PricingRuleSet{ClientID: clientID, Rules: []domain.PricingRule{}}
	}
	return rs, nil
}

// SaveRuleSet validates and persists a client's rule set, then drops the
// cached copy. Two rules with the identical scope are rejected instead of
// silently letting list order decide between them.
func (s *Service) SaveRuleSet(ctx context.Context, ruleSet domain.PricingRuleSet) error {
	if _, err := s.repo.GetClient(ctx, ruleSet.ClientID); err != nil {
		return err
	}
	seen := make(map[string]bool, len(ruleSet.Rules))
	for i, rule := range ruleSet.Rules {
		if err := validateRule(rule); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		key := scopeKey(rule)
		if seen[key] {
			return fmt.Errorf("%w: duplicate rule for scope %s", store.ErrInvalidInput, key)
		}
		seen[key] = true
	}
	ruleSet.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveRuleSet(ctx, ruleSet); err != nil {
		return err
	}
	if err := s.cache.InvalidateRuleSet(ctx, ruleSet.ClientID); err != nil {
		s.logger.Printf("invalidate rule set for %s: %v", ruleSet.ClientID, err)
	}
	if actor, ok := ActorFromContext(ctx); ok {
		s.logger.Printf("rule set for %s saved by %s (%d rules)", ruleSet.ClientID, actor.Username, len(ruleSet.Rules))
	}
	return nil
}

func validateRule(rule domain.PricingRule) error {
	switch rule.Type {
	case domain.RuleTypeProduct:
		if rule.Brand == "" || rule.ArticleID == "" {
			return fmt.Errorf("%w: product rule needs brand and article", store.ErrInvalidInput)
		}
	case domain.RuleTypeBrand:
		if rule.Brand == "" {
			return fmt.Errorf("%w: brand rule needs a brand", store.ErrInvalidInput)
		}
	case domain.RuleTypeSupplier:
		if rule.Supplier == "" {
			return fmt.Errorf("%w: supplier rule needs a supplier", store.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown rule type %q", store.ErrInvalidInput, rule.Type)
	}
	if rule.PriceTier != "" && !domain.IsValidTier(rule.PriceTier) {
		return fmt.Errorf("%w: unknown price tier %q", store.ErrInvalidInput, rule.PriceTier)
	}
	return nil
}

func scopeKey(rule domain.PricingRule) string {
	switch rule.Type {
	case domain.RuleTypeProduct:
		return "product:" + strings.ToUpper(rule.Brand) + ":" + strings.ToUpper(rule.ArticleID)
	case domain.RuleTypeBrand:
		return "brand:" + strings.ToUpper(rule.Brand)
	default:
		return "supplier:" + rule.Supplier
	}
}

// CreateClient creates the client record, its login account and an empty rule
// set in one call.
func (s *Service) CreateClient(ctx context.Context, req domain.ClientCreateRequest) (*domain.Client, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: client name is required", store.ErrInvalidInput)
	}
	tier := req.DefaultTier
	if tier == "" {
		tier = domain.TierRetail
	}
	if !domain.IsValidTier(tier) {
		return nil, fmt.Errorf("%w: unknown tier %q", store.ErrInvalidInput, tier)
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.opts.BaseCurrency
	}
	client, err := s.repo.CreateClient(ctx, domain.Client{
		Name:        strings.TrimSpace(req.Name),
		DefaultTier: tier,
		Currency:    currency,
		Active:      true,
	})
	if err != nil {
		return nil, err
	}
	if req.Username != "" {
		err := s.repo.CreateUser(ctx, domain.UserAccount{
			Username: req.Username,
			Password: req.Password,
			Role:     domain.RoleClient,
			ClientID: client.ID,
			Active:   true,
		})
		if err != nil {
			return nil, fmt.Errorf("create client account: %w", err)
		}
	}
	return client, nil
}

func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.repo.ListClients(ctx)
}

// PlaceOrder prices every requested line server side and stores the order in
// its initial state. Client-sent prices are never trusted.
func (s *Service) PlaceOrder(ctx context.Context, req domain.OrderCreateRequest) (*domain.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", store.ErrInvalidInput)
	}
	client, err := s.repo.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	pc, err := s.pricingContextFor(ctx, client, req.Currency)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.OrderLine, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Qty <= 0 {
			return nil, fmt.Errorf("%w: item %d has non-positive quantity", store.ErrInvalidInput, i)
		}
		product, err := s.repo.GetProduct(ctx, item.Brand, item.ArticleID)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		offer, ok := findOffer(product, item.Supplier)
		if !ok {
			return nil, fmt.Errorf("%w: item %d has no offer from %s", store.ErrInvalidInput, i, item.Supplier)
		}
		price := pricing.Price(*product, offer, pc)
		if !price.IsPositive() {
			return nil, fmt.Errorf("%w: item %d has no usable price", store.ErrInvalidInput, i)
		}
		lines = append(lines, fulfillment.NewLine(domain.OrderLine{
			Brand:      product.Brand,
			ArticleID:  product.ArticleID,
			Name:       product.Name,
			Supplier:   offer.Supplier,
			OrderedQty: item.Qty,
			UnitPrice:  price,
			Currency:   pc.Currency,
		}))
	}

	status, hasCancellations := fulfillment.DeriveOrderStatus(lines)
	order, err := s.repo.CreateOrder(ctx, domain.Order{
		ClientID:         client.ID,
		Status:           status,
		HasCancellations: hasCancellations,
		Lines:            lines,
	})
	if err != nil {
		return nil, err
	}
	if actor, ok := ActorFromContext(ctx); ok {
		s.logger.Printf("order %s placed by %s for client %s (%d lines)", order.ID, actor.Username, client.ID, len(lines))
	}
	return order, nil
}

func findOffer(product *domain.Product, supplier string) (domain.Offer, bool) {
	for _, offer := range product.Offers {
		if offer.Supplier == supplier {
			return offer, true
		}
	}
	return domain.Offer{}, false
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

func (s *Service) ListOrders(ctx context.Context, clientID string, includeArchived bool, limit int) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx, clientID, includeArchived, limit)
}

// UpdateFulfillment applies per-line edits, re-derives the order status from
// the resulting lines and stores the whole order back.
func (s *Service) UpdateFulfillment(ctx context.Context, orderID string, req domain.FulfillmentUpdateRequest) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, edit := range req.Lines {
		if edit.Index < 0 || edit.Index >= len(order.Lines) {
			return nil, fmt.Errorf("%w: line index %d out of range", store.ErrInvalidInput, edit.Index)
		}
		line := &order.Lines[edit.Index]
		if edit.CancelledQty != nil {
			fulfillment.SetCancelledQty(line, *edit.CancelledQty)
		}
		if edit.Status != nil {
			if !domain.IsValidLineStatus(*edit.Status) {
				return nil, fmt.Errorf("%w: unknown line status %q", store.ErrInvalidInput, *edit.Status)
			}
			fulfillment.ApplyStatus(line, *edit.Status)
		}
	}
	order.Status, order.HasCancellations = fulfillment.DeriveOrderStatus(order.Lines)
	return s.repo.ReplaceOrder(ctx, *order)
}

func (s *Service) ArchiveOrder(ctx context.Context, orderID string, archived bool) (*domain.Order, error) {
	return s.repo.SetOrderArchived(ctx, orderID, archived)
}

// Statement builds the settlement view for a client. With fullHistory false it
// serves the locally synced window, newest first, without balances. With it
// true it pulls the complete history from the external source and returns
// running balances.
func (s *Service) Statement(ctx context.Context, clientID, currency string, fullHistory bool) (*domain.SettlementStatement, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if currency == "" {
		currency = client.Currency
	}
	currency = strings.ToUpper(currency)

	if !fullHistory {
		entries, err := s.repo.ListSettlementWindow(ctx, clientID, currency)
		if err != nil {
			return nil, err
		}
		return &domain.SettlementStatement{
			ClientID: clientID,
			Currency: currency,
			Entries:  settlement.MergeWindow(entries),
		}, nil
	}

	pull, err := s.history.FetchHistory(ctx, clientID, currency)
	if err != nil {
		return nil, fmt.Errorf("fetch full history: %w", err)
	}
	entries := settlement.MergeHistory(pull.Entries, pull.StartingBalance)
	stmt := &domain.SettlementStatement{
		ClientID:        clientID,
		Currency:        currency,
		FullHistory:     true,
		StartingBalance: &pull.StartingBalance,
		Entries:         entries,
	}
	if len(entries) > 0 {
		stmt.ClosingBalance = entries[0].Balance
	}
	return stmt, nil
}

// SyncSettlementWindow refreshes the local window for one ledger from the
// external source. The repository swaps the window atomically.
func (s *Service) SyncSettlementWindow(ctx context.Context, clientID, currency string) (*domain.SettlementSyncResponse, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if currency == "" {
		currency = client.Currency
	}
	currency = strings.ToUpper(currency)

	entries, err := s.history.FetchRecent(ctx, clientID, currency)
	if err != nil {
		return nil, fmt.Errorf("fetch recent ledger: %w", err)
	}
	entries = settlement.Dedupe(entries)
	since := time.Now().UTC().AddDate(0, 0, -settlement.WindowDays)
	if err := s.repo.ReplaceSettlementWindow(ctx, clientID, currency, since, entries); err != nil {
		return nil, fmt.Errorf("replace window: %w", err)
	}
	s.logger.Printf("settlement window synced for %s/%s: %d entries", clientID, currency, len(entries))
	return &domain.SettlementSyncResponse{
		ClientID: clientID,
		Currency: currency,
		Entries:  len(entries),
		SyncedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *Service) ExchangeRate(ctx context.Context) (*domain.ExchangeRate, error) {
	rate, err := s.exchangeRate(ctx)
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (s *Service) SetExchangeRate(ctx context.Context, value decimal.Decimal) (*domain.ExchangeRate, error) {
	rate := domain.ExchangeRate{
		Base:      s.opts.BaseCurrency,
		Quote:     s.opts.AltCurrency,
		Rate:      value,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.repo.SetExchangeRate(ctx, rate); err != nil {
		return nil, err
	}
	if err := s.cache.InvalidateExchangeRate(ctx, rate.Base, rate.Quote); err != nil {
		s.logger.Printf("invalidate exchange rate: %v", err)
	}
	return &rate, nil
}

// priceListColumns is the expected CSV header for supplier price lists.
var priceListColumns = []string{"brand", "article", "name", "categories", "stock", "retail", "tier1", "tier2", "tier3", "wholesale"}

// ImportPriceList parses a supplier's CSV price list and upserts the catalog.
// Rows missing brand or article are counted as skipped, not fatal.
func (s *Service) ImportPriceList(ctx context.Context, supplier string, r io.Reader) (*domain.PriceListImportResponse, error) {
	if strings.TrimSpace(supplier) == "" {
		return nil, fmt.Errorf("%w: supplier is required", store.ErrInvalidInput)
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: empty price list", store.ErrInvalidInput)
	}
	if len(header) < len(priceListColumns) {
		return nil, fmt.Errorf("%w: expected columns %s", store.ErrInvalidInput, strings.Join(priceListColumns, ","))
	}

	var records []domain.PriceListRecord
	var skipped int
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read price list: %w", err)
		}
		rec, ok := parsePriceListRow(row, supplier)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	products, offers, err := s.repo.UpsertProducts(ctx, supplier, records)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("price list from %s imported: %d offers, %d new products, %d skipped", supplier, offers, products, skipped)
	return &domain.PriceListImportResponse{
		Products: products,
		Offers:   offers,
		Skipped:  skipped,
		Supplier: supplier,
	}, nil
}

func parsePriceListRow(row []string, supplier string) (domain.PriceListRecord, bool) {
	field := func(i int) string {
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	brand, article := field(0), field(1)
	if brand == "" || article == "" {
		return domain.PriceListRecord{}, false
	}
	stock, _ := strconv.Atoi(field(4))
	tierPrices := map[string]decimal.Decimal{}
	for i, tier := range []string{domain.TierRetail, domain.TierOne, domain.TierTwo, domain.TierThree, domain.TierWholesale} {
		price := settlement.ParseAmount(field(5 + i))
		if price.IsPositive() {
			tierPrices[tier] = price
		}
	}
	var categories []string
	for _, c := range strings.Split(field(3), ";") {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}
	return domain.PriceListRecord{
		Brand:      brand,
		ArticleID:  article,
		Name:       field(2),
		Categories: categories,
		Supplier:   supplier,
		Stock:      stock,
		TierPrices: tierPrices,
	}, true
}

// WriteCatalogCSV streams a client's priced catalog as CSV. It runs the same
// projection pipeline as the catalog endpoint, so exported prices can never
// drift from displayed ones.
func (s *Service) WriteCatalogCSV(ctx context.Context, w io.Writer, clientID string, query domain.CatalogQuery) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"brand", "article", "name", "supplier", "stock", "price", "currency"}); err != nil {
		return err
	}
	for {
		resp, err := s.Catalog(ctx, clientID, query)
		if err != nil {
			return err
		}
		for _, group := range resp.Groups {
			for _, row := range group.Rows {
				price := ""
				if row.Price.IsPositive() {
					price = row.Price.StringFixed(2)
				}
				rec := []string{row.Brand, row.ArticleID, row.Name, row.Supplier, strconv.Itoa(row.Stock), price, row.Currency}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
		if resp.NextCursor == "" {
			break
		}
		query.Cursor = resp.NextCursor
	}
	cw.Flush()
	return cw.Error()
}

// WriteOrdersCSV streams a client's orders as CSV, one row per line item.
func (s *Service) WriteOrdersCSV(ctx context.Context, w io.Writer, clientID string, includeArchived bool) error {
	orders, err := s.repo.ListOrders(ctx, clientID, includeArchived, 0)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"order_id", "created_at", "status", "brand", "article", "name", "supplier", "ordered", "cancelled", "confirmed", "unit_price", "currency", "line_status"}); err != nil {
		return err
	}
	for _, order := range orders {
		for _, line := range order.Lines {
			rec := []string{
				order.ID,
				order.CreatedAt.UTC().Format(time.RFC3339),
				order.Status,
				line.Brand,
				line.ArticleID,
				line.Name,
				line.Supplier,
				strconv.Itoa(line.OrderedQty),
				strconv.Itoa(line.CancelledQty),
				strconv.Itoa(line.ConfirmedQty),
				line.UnitPrice.StringFixed(2),
				line.Currency,
				line.Status,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSettlementCSV streams a settlement statement as CSV in the same order
// the statement view shows.
func (s *Service) WriteSettlementCSV(ctx context.Context, w io.Writer, clientID, currency string, fullHistory bool) error {
	stmt, err := s.Statement(ctx, clientID, currency, fullHistory)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "doc_type", "doc_id", "doc_number", "income", "expense", "delta", "balance"}); err != nil {
		return err
	}
	for _, e := range stmt.Entries {
		balance := ""
		if e.Balance != nil {
			balance = e.Balance.StringFixed(2)
		}
		rec := []string{
			e.Date.Format("02-01-2006"),
			e.DocTypeCode,
			e.DocID,
			e.DocNumber,
			e.Income.StringFixed(2),
			e.Expense.StringFixed(2),
			e.Delta.StringFixed(2),
			balance,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Brands lists distinct catalog brands for pickers.
func (s *Service) Brands(ctx context.Context) ([]string, error) {
	brands, err := s.repo.ListBrands(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(brands)
	return brands, nil
}
