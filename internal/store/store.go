package store

import (
	"context"
	"errors"
	"time"

	"roza/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// ProductPage is one page of a catalog query with an opaque continuation cursor.
type ProductPage struct {
	Products   []domain.Product
	NextCursor string
}

type Repository interface {
	// Products. Lookups are by normalized brand or article; UpsertProducts is
	// the batch write used by price-list ingestion: products are keyed by
	// (brand, article) and the importing supplier's offers are replaced.
	ListProductsByBrand(ctx context.Context, brand string, cursor string, limit int) (ProductPage, error)
	SearchProductsByArticle(ctx context.Context, article string, cursor string, limit int) (ProductPage, error)
	GetProduct(ctx context.Context, brand string, articleID string) (*domain.Product, error)
	UpsertProducts(ctx context.Context, supplier string, records []domain.PriceListRecord) (int, int, error)
	ListBrands(ctx context.Context) ([]string, error)

	// Clients and their pricing rule sets. A missing rule set is ErrNotFound;
	// callers treat it as "no rules" per the pricing defaults.
	CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	GetClient(ctx context.Context, clientID string) (*domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	GetRuleSet(ctx context.Context, clientID string) (*domain.PricingRuleSet, error)
	SaveRuleSet(ctx context.Context, ruleSet domain.PricingRuleSet) error

	// Orders use whole-order read/replace: fulfillment edits rewrite the full
	// line list plus the derived status fields.
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, clientID string, includeArchived bool, limit int) ([]domain.Order, error)
	ReplaceOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	SetOrderArchived(ctx context.Context, orderID string, archived bool) (*domain.Order, error)

	// Settlement window. ReplaceSettlementWindow swaps every entry of the
	// (client, currency) ledger dated on or after `since` for the fresh set,
	// atomically where the backend supports transactions.
	ReplaceSettlementWindow(ctx context.Context, clientID string, currency string, since time.Time, entries []domain.LedgerEntry) error
	ListSettlementWindow(ctx context.Context, clientID string, currency string) ([]domain.LedgerEntry, error)

	// Exchange rate: one scalar per (base, quote) pair.
	GetExchangeRate(ctx context.Context, base string, quote string) (*domain.ExchangeRate, error)
	SetExchangeRate(ctx context.Context, rate domain.ExchangeRate) error

	// Auth accounts.
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
