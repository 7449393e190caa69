package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ClientID    string `json:"client_id,omitempty"`
	ExpiresAt   string `json:"expires_at"`
}

// CatalogQuery selects and filters the product page a client is looking at.
// Brand and Article are alternative lookups; Cursor/Limit page through results.
type CatalogQuery struct {
	Brand             string `json:"brand,omitempty"`
	Article           string `json:"article,omitempty"`
	Category          string `json:"category,omitempty"`
	HideZeroStock     bool   `json:"hide_zero_stock"`
	HidePartnerOffers bool   `json:"hide_partner_offers"`
	Currency          string `json:"currency,omitempty"`
	Cursor            string `json:"cursor,omitempty"`
	Limit             int    `json:"limit,omitempty"`
}

// CatalogRow is one (product, offer) pair flattened for display. A zero Price
// means "no usable price" and renders as a dash, never as 0.00.
type CatalogRow struct {
	Brand      string          `json:"brand"`
	ArticleID  string          `json:"article_id"`
	Name       string          `json:"name"`
	Categories []string        `json:"categories,omitempty"`
	Supplier   string          `json:"supplier"`
	Stock      int             `json:"stock"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
}

// CatalogGroup carries the shared product fields once plus the ranked offer
// rows, for row-span rendering.
type CatalogGroup struct {
	Brand      string       `json:"brand"`
	ArticleID  string       `json:"article_id"`
	Name       string       `json:"name"`
	Categories []string     `json:"categories,omitempty"`
	Rows       []CatalogRow `json:"rows"`
}

type CatalogResponse struct {
	Groups     []CatalogGroup `json:"groups"`
	Currency   string         `json:"currency"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// OfferQuote is an admin-page view of one offer priced for a specific client.
type OfferQuote struct {
	Supplier  string          `json:"supplier"`
	Stock     int             `json:"stock"`
	PriceTier string          `json:"price_tier"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
}

type ProductQuoteResponse struct {
	Product Product      `json:"product"`
	Quotes  []OfferQuote `json:"quotes"`
}

type OrderItemRequest struct {
	Brand     string `json:"brand"`
	ArticleID string `json:"article_id"`
	Supplier  string `json:"supplier"`
	Qty       int    `json:"qty"`
}

type OrderCreateRequest struct {
	ClientID string             `json:"client_id,omitempty"`
	Currency string             `json:"currency,omitempty"`
	Items    []OrderItemRequest `json:"items"`
}

// OrderLineEdit is one manual fulfillment edit: a new cancelled quantity, a
// manual status override, or both. Index addresses the line within the order.
type OrderLineEdit struct {
	Index        int     `json:"index"`
	CancelledQty *int    `json:"cancelled_qty,omitempty"`
	Status       *string `json:"status,omitempty"`
}

type FulfillmentUpdateRequest struct {
	Lines []OrderLineEdit `json:"lines"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

// SettlementStatement is the reconciled view of a client's ledger. With only
// the local 15-day window available, FullHistory is false and no balances are
// present; after a history pull, entries carry running balances and
// ClosingBalance is the latest one.
type SettlementStatement struct {
	ClientID        string           `json:"client_id"`
	Currency        string           `json:"currency"`
	FullHistory     bool             `json:"full_history"`
	StartingBalance *decimal.Decimal `json:"starting_balance,omitempty"`
	ClosingBalance  *decimal.Decimal `json:"closing_balance,omitempty"`
	Entries         []LedgerEntry    `json:"entries"`
}

// HistoryPull is the result of an on-demand full-history fetch from the
// external spreadsheet-backed ledger source.
type HistoryPull struct {
	Entries         []LedgerEntry   `json:"items"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
}

// PriceListRecord is one parsed row of a supplier price-list upload.
type PriceListRecord struct {
	Brand      string                     `json:"brand"`
	ArticleID  string                     `json:"article_id"`
	Name       string                     `json:"name"`
	Categories []string                   `json:"categories"`
	Supplier   string                     `json:"supplier"`
	Stock      int                        `json:"stock"`
	TierPrices map[string]decimal.Decimal `json:"tier_prices"`
}

type PriceListImportResponse struct {
	Products int    `json:"products"`
	Offers   int    `json:"offers"`
	Skipped  int    `json:"skipped"`
	Supplier string `json:"supplier"`
}

type ExchangeRate struct {
	Rate      decimal.Decimal `json:"rate"`
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ClientCreateRequest struct {
	Name        string `json:"name"`
	DefaultTier string `json:"default_tier"`
	Currency    string `json:"currency"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

type ClientListResponse struct {
	Clients []Client `json:"clients"`
}

type SettlementSyncResponse struct {
	ClientID string `json:"client_id"`
	Currency string `json:"currency"`
	Entries  int    `json:"entries"`
	SyncedAt string `json:"synced_at"`
}
