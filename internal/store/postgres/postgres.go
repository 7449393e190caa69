// Package postgres implements the Repository on a PostgreSQL pool. Nested
// document data (offers, rules, order lines) lives in jsonb columns; the
// relational columns carry only what queries filter or sort on.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"roza/backend/internal/domain"
	"roza/backend/internal/store"
	"roza/backend/internal/xid"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			doc_id     TEXT PRIMARY KEY,
			brand      TEXT NOT NULL,
			article_id TEXT NOT NULL,
			brand_key  TEXT NOT NULL,
			article_key TEXT NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			categories JSONB NOT NULL DEFAULT '[]',
			min_stock  INT NOT NULL DEFAULT 0,
			offers     JSONB NOT NULL DEFAULT '[]',
			UNIQUE (brand_key, article_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_brand_key ON products (brand_key)`,
		`CREATE INDEX IF NOT EXISTS idx_products_article_key ON products (article_key)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			default_tier TEXT NOT NULL,
			currency     TEXT NOT NULL,
			active       BOOLEAN NOT NULL DEFAULT TRUE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS pricing_rule_sets (
			client_id         TEXT PRIMARY KEY REFERENCES clients(id),
			global_adjustment NUMERIC,
			global_discount   NUMERIC NOT NULL DEFAULT 0,
			global_markup     NUMERIC NOT NULL DEFAULT 0,
			rules             JSONB NOT NULL DEFAULT '[]',
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id                TEXT PRIMARY KEY,
			client_id         TEXT NOT NULL REFERENCES clients(id),
			status            TEXT NOT NULL,
			archived          BOOLEAN NOT NULL DEFAULT FALSE,
			has_cancellations BOOLEAN NOT NULL DEFAULT FALSE,
			lines             JSONB NOT NULL DEFAULT '[]',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_client ON orders (client_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			client_id     TEXT NOT NULL,
			currency      TEXT NOT NULL,
			entry_key     TEXT NOT NULL,
			entry_date    TIMESTAMPTZ NOT NULL,
			doc_type_code TEXT NOT NULL,
			doc_id        TEXT NOT NULL,
			doc_number    TEXT NOT NULL DEFAULT '',
			income        NUMERIC NOT NULL DEFAULT 0,
			expense       NUMERIC NOT NULL DEFAULT 0,
			PRIMARY KEY (client_id, currency, entry_key)
		)`,
		`CREATE TABLE IF NOT EXISTS exchange_rates (
			base       TEXT NOT NULL,
			quote      TEXT NOT NULL,
			rate       NUMERIC NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (base, quote)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username   TEXT PRIMARY KEY,
			password   TEXT NOT NULL,
			role       TEXT NOT NULL,
			client_id  TEXT NOT NULL DEFAULT '',
			active     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func normalize(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

const productColumns = `doc_id, brand, article_id, name, categories, min_stock, offers`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	var categories, offers []byte
	if err := row.Scan(&p.DocID, &p.Brand, &p.ArticleID, &p.Name, &categories, &p.MinStock, &offers); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(categories, &p.Categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	if err := json.Unmarshal(offers, &p.Offers); err != nil {
		return nil, fmt.Errorf("decode offers: %w", err)
	}
	return &p, nil
}

func (s *Store) queryProducts(ctx context.Context, where string, cursor string, limit int, args ...any) (store.ProductPage, error) {
	if limit <= 0 {
		limit = 50
	}
	// Page on (brand_key, article_key); the cursor is that pair joined with '|'.
	q := `SELECT ` + productColumns + `, brand_key || '|' || article_key AS page_key
		FROM products WHERE ` + where
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(" AND brand_key || '|' || article_key > $%d", len(args))
	}
	args = append(args, limit+1)
	q += fmt.Sprintf(" ORDER BY page_key LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return store.ProductPage{}, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var page store.ProductPage
	var lastKey string
	for rows.Next() {
		var p domain.Product
		var categories, offers []byte
		if err := rows.Scan(&p.DocID, &p.Brand, &p.ArticleID, &p.Name, &categories, &p.MinStock, &offers, &lastKey); err != nil {
			return store.ProductPage{}, fmt.Errorf("scan product: %w", err)
		}
		if err := json.Unmarshal(categories, &p.Categories); err != nil {
			return store.ProductPage{}, fmt.Errorf("decode categories: %w", err)
		}
		if err := json.Unmarshal(offers, &p.Offers); err != nil {
			return store.ProductPage{}, fmt.Errorf("decode offers: %w", err)
		}
		page.Products = append(page.Products, p)
	}
	if err := rows.Err(); err != nil {
		return store.ProductPage{}, fmt.Errorf("iterate products: %w", err)
	}
	if len(page.Products) > limit {
		page.Products = page.Products[:limit]
		last := page.Products[limit-1]
		page.NextCursor = normalize(last.Brand) + "|" + normalize(last.ArticleID)
	}
	return page, nil
}

func (s *Store) ListProductsByBrand(ctx context.Context, brand, cursor string, limit int) (store.ProductPage, error) {
	if strings.TrimSpace(brand) == "" {
		return store.ProductPage{}, fmt.Errorf("%w: brand is required", store.ErrInvalidInput)
	}
	return s.queryProducts(ctx, "brand_key = $1", cursor, limit, normalize(brand))
}

func (s *Store) SearchProductsByArticle(ctx context.Context, article, cursor string, limit int) (store.ProductPage, error) {
	if strings.TrimSpace(article) == "" {
		return store.ProductPage{}, fmt.Errorf("%w: article is required", store.ErrInvalidInput)
	}
	pattern := "%" + normalize(article) + "%"
	return s.queryProducts(ctx, "article_key LIKE $1", cursor, limit, pattern)
}

func (s *Store) GetProduct(ctx context.Context, brand, articleID string) (*domain.Product, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE brand_key = $1 AND article_key = $2`,
		normalize(brand), normalize(articleID))
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s %s", store.ErrNotFound, brand, articleID)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// UpsertProducts writes a whole price list in one transaction. New products are
// inserted, existing ones get the importing supplier's offer replaced inside
// the offers document. Statements go through a pgx.Batch to keep round trips
// down on multi-thousand-row imports.
func (s *Store) UpsertProducts(ctx context.Context, supplier string, records []domain.PriceListRecord) (int, int, error) {
	if strings.TrimSpace(supplier) == "" {
		return 0, 0, fmt.Errorf("%w: supplier is required", store.ErrInvalidInput)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range records {
		categories, err := json.Marshal(emptyIfNil(rec.Categories))
		if err != nil {
			return 0, 0, fmt.Errorf("encode categories: %w", err)
		}
		offer, err := json.Marshal(domain.Offer{
			Supplier:   supplier,
			Stock:      rec.Stock,
			TierPrices: rec.TierPrices,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("encode offer: %w", err)
		}
		batch.Queue(`
			INSERT INTO products (doc_id, brand, article_id, brand_key, article_key, name, categories, offers)
			VALUES ($1, $2, $3, $4, $5, $6, $7, jsonb_build_array($8::jsonb))
			ON CONFLICT (brand_key, article_key) DO UPDATE SET
				name   = CASE WHEN products.name = '' THEN EXCLUDED.name ELSE products.name END,
				offers = (
					SELECT COALESCE(jsonb_agg(o), '[]'::jsonb)
					FROM jsonb_array_elements(products.offers) AS o
					WHERE o->>'supplier' <> $9
				) || jsonb_build_array($8::jsonb)
			RETURNING (xmax = 0) AS inserted`,
			xid.New("prd"), strings.TrimSpace(rec.Brand), strings.TrimSpace(rec.ArticleID),
			normalize(rec.Brand), normalize(rec.ArticleID), rec.Name, categories, offer, supplier)
	}

	res := tx.SendBatch(ctx, batch)
	var created, offers int
	for range records {
		var inserted bool
		if err := res.QueryRow().Scan(&inserted); err != nil {
			res.Close()
			return 0, 0, fmt.Errorf("import row: %w", err)
		}
		if inserted {
			created++
		}
		offers++
	}
	if err := res.Close(); err != nil {
		return 0, 0, fmt.Errorf("close import batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit import: %w", err)
	}
	return created, offers, nil
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func (s *Store) ListBrands(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT brand FROM products ORDER BY brand`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()
	var brands []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

func (s *Store) CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	if strings.TrimSpace(client.Name) == "" {
		return nil, fmt.Errorf("%w: client name is required", store.ErrInvalidInput)
	}
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO clients (id, name, default_tier, currency, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		client.ID, client.Name, client.DefaultTier, client.Currency, client.Active, client.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &client, nil
}

func (s *Store) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	var c domain.Client
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, default_tier, currency, active, created_at FROM clients WHERE id = $1`,
		clientID).Scan(&c.ID, &c.Name, &c.DefaultTier, &c.Currency, &c.Active, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: client %s", store.ErrNotFound, clientID)
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, default_tier, currency, active, created_at FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()
	var out []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.DefaultTier, &c.Currency, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetRuleSet(ctx context.Context, clientID string) (*domain.PricingRuleSet, error) {
	var rs domain.PricingRuleSet
	var rules []byte
	err := s.pool.QueryRow(ctx,
		`SELECT client_id, global_adjustment, global_discount, global_markup, rules, updated_at
		 FROM pricing_rule_sets WHERE client_id = $1`, clientID).
		Scan(&rs.ClientID, &rs.GlobalAdjustment, &rs.GlobalDiscount, &rs.GlobalMarkup, &rules, &rs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: rule set for client %s", store.ErrNotFound, clientID)
	}
	if err != nil {
		return nil, fmt.Errorf("get rule set: %w", err)
	}
	if err := json.Unmarshal(rules, &rs.Rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return &rs, nil
}

func (s *Store) SaveRuleSet(ctx context.Context, ruleSet domain.PricingRuleSet) error {
	if ruleSet.ClientID == "" {
		return fmt.Errorf("%w: rule set needs a client id", store.ErrInvalidInput)
	}
	rules, err := json.Marshal(ruleSet.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO pricing_rule_sets (client_id, global_adjustment, global_discount, global_markup, rules, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (client_id) DO UPDATE SET
			global_adjustment = EXCLUDED.global_adjustment,
			global_discount   = EXCLUDED.global_discount,
			global_markup     = EXCLUDED.global_markup,
			rules             = EXCLUDED.rules,
			updated_at        = EXCLUDED.updated_at`,
		ruleSet.ClientID, ruleSet.GlobalAdjustment, ruleSet.GlobalDiscount, ruleSet.GlobalMarkup, rules, ruleSet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save rule set: %w", err)
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return nil, fmt.Errorf("encode lines: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO orders (id, client_id, status, archived, has_cancellations, lines, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		order.ID, order.ClientID, order.Status, order.Archived, order.HasCancellations, lines, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &order, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var lines []byte
	if err := row.Scan(&o.ID, &o.ClientID, &o.Status, &o.Archived, &o.HasCancellations, &lines, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("decode lines: %w", err)
	}
	return &o, nil
}

const orderColumns = `id, client_id, status, archived, has_cancellations, lines, created_at, updated_at`

func (s *Store) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, clientID string, includeArchived bool, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	var args []any
	if clientID != "" {
		args = append(args, clientID)
		q += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if !includeArchived {
		q += " AND archived = FALSE"
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		var lines []byte
		if err := rows.Scan(&o.ID, &o.ClientID, &o.Status, &o.Archived, &o.HasCancellations, &lines, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if err := json.Unmarshal(lines, &o.Lines); err != nil {
			return nil, fmt.Errorf("decode lines: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return nil, fmt.Errorf("encode lines: %w", err)
	}
	order.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET status = $2, has_cancellations = $3, lines = $4, updated_at = $5
		WHERE id = $1`,
		order.ID, order.Status, order.HasCancellations, lines, order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("replace order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, order.ID)
	}
	return s.GetOrder(ctx, order.ID)
}

func (s *Store) SetOrderArchived(ctx context.Context, orderID string, archived bool) (*domain.Order, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET archived = $2, updated_at = now() WHERE id = $1`, orderID, archived)
	if err != nil {
		return nil, fmt.Errorf("archive order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, orderID)
	}
	return s.GetOrder(ctx, orderID)
}

// ReplaceSettlementWindow swaps the window in a single transaction so readers
// never observe a half-replaced ledger.
func (s *Store) ReplaceSettlementWindow(ctx context.Context, clientID, currency string, since time.Time, entries []domain.LedgerEntry) error {
	if clientID == "" || currency == "" {
		return fmt.Errorf("%w: client and currency are required", store.ErrInvalidInput)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settlement swap: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM ledger_entries WHERE client_id = $1 AND currency = $2 AND entry_date >= $3`,
		clientID, currency, since); err != nil {
		return fmt.Errorf("clear settlement window: %w", err)
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO ledger_entries (client_id, currency, entry_key, entry_date, doc_type_code, doc_id, doc_number, income, expense)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (client_id, currency, entry_key) DO UPDATE SET
				entry_date = EXCLUDED.entry_date,
				doc_number = EXCLUDED.doc_number,
				income     = EXCLUDED.income,
				expense    = EXCLUDED.expense`,
			clientID, currency, e.Key, e.Date, e.DocTypeCode, e.DocID, e.DocNumber, e.Income, e.Expense)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write settlement window: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settlement swap: %w", err)
	}
	return nil
}

func (s *Store) ListSettlementWindow(ctx context.Context, clientID, currency string) ([]domain.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entry_key, entry_date, doc_type_code, doc_id, doc_number, income, expense
		FROM ledger_entries WHERE client_id = $1 AND currency = $2`,
		clientID, currency)
	if err != nil {
		return nil, fmt.Errorf("list settlement window: %w", err)
	}
	defer rows.Close()
	var out []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{ClientID: clientID, Currency: currency}
		if err := rows.Scan(&e.Key, &e.Date, &e.DocTypeCode, &e.DocID, &e.DocNumber, &e.Income, &e.Expense); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Delta = e.Income.Sub(e.Expense)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetExchangeRate(ctx context.Context, base, quote string) (*domain.ExchangeRate, error) {
	var r domain.ExchangeRate
	err := s.pool.QueryRow(ctx,
		`SELECT base, quote, rate, updated_at FROM exchange_rates WHERE base = $1 AND quote = $2`,
		normalize(base), normalize(quote)).Scan(&r.Base, &r.Quote, &r.Rate, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: rate %s/%s", store.ErrNotFound, base, quote)
	}
	if err != nil {
		return nil, fmt.Errorf("get exchange rate: %w", err)
	}
	return &r, nil
}

func (s *Store) SetExchangeRate(ctx context.Context, rate domain.ExchangeRate) error {
	if !rate.Rate.IsPositive() {
		return fmt.Errorf("%w: rate must be positive", store.ErrInvalidInput)
	}
	if rate.UpdatedAt.IsZero() {
		rate.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO exchange_rates (base, quote, rate, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (base, quote) DO UPDATE SET rate = EXCLUDED.rate, updated_at = EXCLUDED.updated_at`,
		normalize(rate.Base), normalize(rate.Quote), rate.Rate, rate.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set exchange rate: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (username, password, role, client_id, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		user.Username, string(hash), user.Role, user.ClientID, user.Active, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.pool.QueryRow(ctx,
		`SELECT username, password, role, client_id, active, created_at FROM users WHERE username = $1`,
		username).Scan(&u.Username, &u.Password, &u.Role, &u.ClientID, &u.Active, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT username, role, client_id, active, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []domain.UserAccount
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Role, &u.ClientID, &u.Active, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", store.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, string(hash))
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	return nil
}

var _ store.Repository = (*Store)(nil)
