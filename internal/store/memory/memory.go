// Package memory provides an in-memory Repository used by tests and by local
// development runs without Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"roza/backend/internal/domain"
	"roza/backend/internal/store"
	"roza/backend/internal/xid"
)

type Store struct {
	mu sync.RWMutex

	products map[string]*domain.Product // key: BRAND|ARTICLE
	clients  map[string]*domain.Client
	ruleSets map[string]*domain.PricingRuleSet
	orders   map[string]*domain.Order
	ledgers  map[string][]domain.LedgerEntry // key: clientID|currency
	rates    map[string]*domain.ExchangeRate // key: BASE|QUOTE
	users    map[string]*domain.UserAccount
}

func New() *Store {
	return &Store{
		products: map[string]*domain.Product{},
		clients:  map[string]*domain.Client{},
		ruleSets: map[string]*domain.PricingRuleSet{},
		orders:   map[string]*domain.Order{},
		ledgers:  map[string][]domain.LedgerEntry{},
		rates:    map[string]*domain.ExchangeRate{},
		users:    map[string]*domain.UserAccount{},
	}
}

// NewSeeded returns a store preloaded with an admin account, one demo client
// with a rule set, a small catalog and an exchange rate, so a fresh server is
// usable without any imports.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()

	admin := domain.UserAccount{
		Username:  "admin",
		Password:  "admin123",
		Role:      domain.RoleAdmin,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	_ = s.CreateUser(ctx, admin)

	client, _ := s.CreateClient(ctx, domain.Client{
		Name:        "Demo Auto Parts",
		DefaultTier: domain.TierTwo,
		Currency:    "UAH",
		Active:      true,
	})
	_ = s.CreateUser(ctx, domain.UserAccount{
		Username:  "demo",
		Password:  "demo123",
		Role:      domain.RoleClient,
		ClientID:  client.ID,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})

	adj := decimal.NewFromInt(5)
	_ = s.SaveRuleSet(ctx, domain.PricingRuleSet{
		ClientID:         client.ID,
		GlobalAdjustment: &adj,
		Rules: []domain.PricingRule{
			{Type: domain.RuleTypeBrand, Brand: "BOSCH", PriceTier: domain.TierThree},
		},
		UpdatedAt: time.Now().UTC(),
	})

	seedProducts := []domain.Product{
		{
			Brand: "BOSCH", ArticleID: "0986452041", Name: "Oil filter",
			Categories: []string{"filters"},
			Offers: []domain.Offer{
				{Supplier: domain.SupplierOwnWarehouse, Stock: 12, TierPrices: tiers("150", "140", "130", "120", "110")},
				{Supplier: "partner-east", Stock: 40, TierPrices: tiers("145", "138", "129", "119", "108")},
			},
		},
		{
			Brand: "SKF", ArticleID: "VKBA3644", Name: "Wheel bearing kit",
			Categories: []string{"bearings"},
			Offers: []domain.Offer{
				{Supplier: "partner-east", Stock: 6, TierPrices: tiers("2100", "2050", "1990", "1900", "1820")},
			},
		},
	}
	for _, p := range seedProducts {
		prod := p
		prod.DocID = xid.New("prd")
		s.products[productKey(prod.Brand, prod.ArticleID)] = &prod
	}

	_ = s.SetExchangeRate(ctx, domain.ExchangeRate{
		Base:      "UAH",
		Quote:     "USD",
		Rate:      decimal.RequireFromString("0.0243"),
		UpdatedAt: time.Now().UTC(),
	})
	return s
}

func tiers(retail, t1, t2, t3, wholesale string) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		domain.TierRetail:    decimal.RequireFromString(retail),
		domain.TierOne:       decimal.RequireFromString(t1),
		domain.TierTwo:       decimal.RequireFromString(t2),
		domain.TierThree:     decimal.RequireFromString(t3),
		domain.TierWholesale: decimal.RequireFromString(wholesale),
	}
}

func productKey(brand, articleID string) string {
	return normalize(brand) + "|" + normalize(articleID)
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func ledgerKey(clientID, currency string) string {
	return clientID + "|" + strings.ToUpper(currency)
}

func rateKey(base, quote string) string {
	return strings.ToUpper(base) + "|" + strings.ToUpper(quote)
}

func (s *Store) ListProductsByBrand(_ context.Context, brand, cursor string, limit int) (store.ProductPage, error) {
	if strings.TrimSpace(brand) == "" {
		return store.ProductPage{}, fmt.Errorf("%w: brand is required", store.ErrInvalidInput)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page(func(p *domain.Product) bool {
		return normalize(p.Brand) == normalize(brand)
	}, cursor, limit), nil
}

func (s *Store) SearchProductsByArticle(_ context.Context, article, cursor string, limit int) (store.ProductPage, error) {
	if strings.TrimSpace(article) == "" {
		return store.ProductPage{}, fmt.Errorf("%w: article is required", store.ErrInvalidInput)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page(func(p *domain.Product) bool {
		return strings.Contains(normalize(p.ArticleID), normalize(article))
	}, cursor, limit), nil
}

// page walks products in key order so cursors stay stable between calls.
func (s *Store) page(match func(*domain.Product) bool, cursor string, limit int) store.ProductPage {
	if limit <= 0 {
		limit = 50
	}
	keys := make([]string, 0, len(s.products))
	for k := range s.products {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out store.ProductPage
	for _, k := range keys {
		if cursor != "" && k <= cursor {
			continue
		}
		p := s.products[k]
		if !match(p) {
			continue
		}
		if len(out.Products) == limit {
			out.NextCursor = productKey(out.Products[limit-1].Brand, out.Products[limit-1].ArticleID)
			return out
		}
		out.Products = append(out.Products, cloneProduct(p))
	}
	return out
}

func (s *Store) GetProduct(_ context.Context, brand, articleID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productKey(brand, articleID)]
	if !ok {
		return nil, fmt.Errorf("%w: product %s %s", store.ErrNotFound, brand, articleID)
	}
	c := cloneProduct(p)
	return &c, nil
}

func (s *Store) UpsertProducts(_ context.Context, supplier string, records []domain.PriceListRecord) (int, int, error) {
	if strings.TrimSpace(supplier) == "" {
		return 0, 0, fmt.Errorf("%w: supplier is required", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var created, offers int
	for _, rec := range records {
		key := productKey(rec.Brand, rec.ArticleID)
		p, ok := s.products[key]
		if !ok {
			p = &domain.Product{
				DocID:      xid.New("prd"),
				Brand:      strings.TrimSpace(rec.Brand),
				ArticleID:  strings.TrimSpace(rec.ArticleID),
				Name:       rec.Name,
				Categories: rec.Categories,
			}
			s.products[key] = p
			created++
		} else if p.Name == "" && rec.Name != "" {
			p.Name = rec.Name
		}
		replaceOffer(p, domain.Offer{
			Supplier:   supplier,
			Stock:      rec.Stock,
			TierPrices: rec.TierPrices,
		})
		offers++
	}
	return created, offers, nil
}

func replaceOffer(p *domain.Product, offer domain.Offer) {
	for i := range p.Offers {
		if p.Offers[i].Supplier == offer.Supplier {
			p.Offers[i] = offer
			return
		}
	}
	p.Offers = append(p.Offers, offer)
}

func (s *Store) ListBrands(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	var brands []string
	for _, p := range s.products {
		if !seen[p.Brand] {
			seen[p.Brand] = true
			brands = append(brands, p.Brand)
		}
	}
	sort.Strings(brands)
	return brands, nil
}

func (s *Store) CreateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	if strings.TrimSpace(client.Name) == "" {
		return nil, fmt.Errorf("%w: client name is required", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	if _, exists := s.clients[client.ID]; exists {
		return nil, fmt.Errorf("%w: client %s", store.ErrConflict, client.ID)
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}
	c := client
	s.clients[client.ID] = &c
	out := c
	return &out, nil
}

func (s *Store) GetClient(_ context.Context, clientID string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: client %s", store.ErrNotFound, clientID)
	}
	out := *c
	return &out, nil
}

func (s *Store) ListClients(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetRuleSet(_ context.Context, clientID string) (*domain.PricingRuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.ruleSets[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: rule set for client %s", store.ErrNotFound, clientID)
	}
	out := *rs
	out.Rules = append([]domain.PricingRule(nil), rs.Rules...)
	return &out, nil
}

func (s *Store) SaveRuleSet(_ context.Context, ruleSet domain.PricingRuleSet) error {
	if ruleSet.ClientID == "" {
		return fmt.Errorf("%w: rule set needs a client id", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := ruleSet
	rs.Rules = append([]domain.PricingRule(nil), ruleSet.Rules...)
	s.ruleSets[ruleSet.ClientID] = &rs
	return nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if _, exists := s.orders[order.ID]; exists {
		return nil, fmt.Errorf("%w: order %s", store.ErrConflict, order.ID)
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	o := cloneOrder(order)
	s.orders[order.ID] = &o
	out := cloneOrder(o)
	return &out, nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, orderID)
	}
	out := cloneOrder(*o)
	return &out, nil
}

func (s *Store) ListOrders(_ context.Context, clientID string, includeArchived bool, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Order
	for _, o := range s.orders {
		if clientID != "" && o.ClientID != clientID {
			continue
		}
		if o.Archived && !includeArchived {
			continue
		}
		out = append(out, cloneOrder(*o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ReplaceOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.orders[order.ID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, order.ID)
	}
	order.CreatedAt = existing.CreatedAt
	order.UpdatedAt = time.Now().UTC()
	o := cloneOrder(order)
	s.orders[order.ID] = &o
	out := cloneOrder(o)
	return &out, nil
}

func (s *Store) SetOrderArchived(_ context.Context, orderID string, archived bool) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, orderID)
	}
	o.Archived = archived
	o.UpdatedAt = time.Now().UTC()
	out := cloneOrder(*o)
	return &out, nil
}

func (s *Store) ReplaceSettlementWindow(_ context.Context, clientID, currency string, since time.Time, entries []domain.LedgerEntry) error {
	if clientID == "" || currency == "" {
		return fmt.Errorf("%w: client and currency are required", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ledgerKey(clientID, currency)
	var kept []domain.LedgerEntry
	for _, e := range s.ledgers[key] {
		if e.Date.Before(since) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, entries...)
	s.ledgers[key] = kept
	return nil
}

func (s *Store) ListSettlementWindow(_ context.Context, clientID, currency string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.ledgers[ledgerKey(clientID, currency)]
	return append([]domain.LedgerEntry(nil), entries...), nil
}

func (s *Store) GetExchangeRate(_ context.Context, base, quote string) (*domain.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rates[rateKey(base, quote)]
	if !ok {
		return nil, fmt.Errorf("%w: rate %s/%s", store.ErrNotFound, base, quote)
	}
	out := *r
	return &out, nil
}

func (s *Store) SetExchangeRate(_ context.Context, rate domain.ExchangeRate) error {
	if !rate.Rate.IsPositive() {
		return fmt.Errorf("%w: rate must be positive", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := rate
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	s.rates[rateKey(rate.Base, rate.Quote)] = &r
	return nil
}

// CreateUser hashes the plaintext password before storing it.
func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Username]; exists {
		return fmt.Errorf("%w: user %s", store.ErrConflict, user.Username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Password = string(hash)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	u := user
	s.users[user.Username] = &u
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	out := *u
	return &out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		c := *u
		c.Password = ""
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Password = string(hash)
	return nil
}

func cloneProduct(p *domain.Product) domain.Product {
	out := *p
	out.Categories = append([]string(nil), p.Categories...)
	out.Offers = make([]domain.Offer, len(p.Offers))
	for i, o := range p.Offers {
		oc := o
		oc.TierPrices = make(map[string]decimal.Decimal, len(o.TierPrices))
		for k, v := range o.TierPrices {
			oc.TierPrices[k] = v
		}
		out.Offers[i] = oc
	}
	return out
}

func cloneOrder(o domain.Order) domain.Order {
	out := o
	out.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return out
}

var _ store.Repository = (*Store)(nil)
