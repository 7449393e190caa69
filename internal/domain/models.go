package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price tier names. Every offer carries a map keyed by these five tiers;
// a missing or non-positive entry means "no price set" and falls back to retail.
const (
	TierRetail    = "retail"
	TierOne       = "tier1"
	TierTwo       = "tier2"
	TierThree     = "tier3"
	TierWholesale = "wholesale"
)

// SupplierOwnWarehouse is the distinguished supplier name for the portal's own
// stock. Own-warehouse offers always rank first in the catalog.
const SupplierOwnWarehouse = "own-warehouse"

func IsValidTier(tier string) bool {
	switch tier {
	case TierRetail, TierOne, TierTwo, TierThree, TierWholesale:
		return true
	}
	return false
}

type Product struct {
	DocID      string   `json:"doc_id"`
	Brand      string   `json:"brand"`
	ArticleID  string   `json:"article_id"`
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
	MinStock   int      `json:"min_stock,omitempty"`
	Offers     []Offer  `json:"offers"`
}

// Offer is one supplier's stock+price listing for a product.
type Offer struct {
	Supplier   string                     `json:"supplier"`
	Stock      int                        `json:"stock"`
	TierPrices map[string]decimal.Decimal `json:"tier_prices"`
}

type Client struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DefaultTier string    `json:"default_tier"`
	Currency    string    `json:"currency"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Rule scope discriminants. Specificity across types is product > brand > supplier;
// within one type the first rule in list order wins.
const (
	RuleTypeProduct  = "product"
	RuleTypeBrand    = "brand"
	RuleTypeSupplier = "supplier"
)

// PricingRule is a client-specific tier/adjustment override scoped to a
// product, a brand, or a supplier. Older records carry separate Discount and
// Markup percentages instead of Adjustment; EffectiveAdjustment converts.
type PricingRule struct {
	Type       string           `json:"type"`
	Brand      string           `json:"brand,omitempty"`
	ArticleID  string           `json:"article_id,omitempty"`
	Supplier   string           `json:"supplier,omitempty"`
	PriceTier  string           `json:"price_tier"`
	Adjustment *decimal.Decimal `json:"adjustment,omitempty"`
	Discount   decimal.Decimal  `json:"discount"`
	Markup     decimal.Decimal  `json:"markup"`
}

// EffectiveAdjustment returns the signed percentage modifier for this rule,
// computing markup-discount for legacy records with no Adjustment field.
func (r PricingRule) EffectiveAdjustment() decimal.Decimal {
	if r.Adjustment != nil {
		return *r.Adjustment
	}
	return r.Markup.Sub(r.Discount)
}

// PricingRuleSet is the full per-client rule configuration: one global
// adjustment percentage plus an ordered rule list.
type PricingRuleSet struct {
	ClientID         string           `json:"client_id"`
	GlobalAdjustment *decimal.Decimal `json:"global_adjustment,omitempty"`
	GlobalDiscount   decimal.Decimal  `json:"global_discount"`
	GlobalMarkup     decimal.Decimal  `json:"global_markup"`
	Rules            []PricingRule    `json:"rules"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// EffectiveGlobalAdjustment applies the same legacy conversion as rules.
func (rs *PricingRuleSet) EffectiveGlobalAdjustment() decimal.Decimal {
	if rs == nil {
		return decimal.Zero
	}
	if rs.GlobalAdjustment != nil {
		return *rs.GlobalAdjustment
	}
	return rs.GlobalMarkup.Sub(rs.GlobalDiscount)
}

// PricingContext is the immutable value threaded into every price computation:
// the client's rule set, default tier, selected display currency and the
// scalar exchange rate from the base currency.
type PricingContext struct {
	RuleSet      *PricingRuleSet
	DefaultTier  string
	BaseCurrency string
	Currency     string
	ExchangeRate decimal.Decimal
}

// Order statuses.
const (
	OrderStatusNew                = "New"
	OrderStatusPartiallyFulfilled = "PartiallyFulfilled"
	OrderStatusCompleted          = "Completed"
)

// Order line statuses.
const (
	LineStatusAwaitingConfirmation = "AwaitingConfirmation"
	LineStatusOrderedFromSupplier  = "OrderedFromSupplier"
	LineStatusFulfilled            = "Fulfilled"
)

func IsValidLineStatus(status string) bool {
	switch status {
	case LineStatusAwaitingConfirmation, LineStatusOrderedFromSupplier, LineStatusFulfilled:
		return true
	}
	return false
}

type OrderLine struct {
	Brand        string          `json:"brand"`
	ArticleID    string          `json:"article_id"`
	Name         string          `json:"name"`
	Supplier     string          `json:"supplier"`
	OrderedQty   int             `json:"ordered_qty"`
	CancelledQty int             `json:"cancelled_qty"`
	ConfirmedQty int             `json:"confirmed_qty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
}

type Order struct {
	ID               string      `json:"id"`
	ClientID         string      `json:"client_id"`
	Status           string      `json:"status"`
	Archived         bool        `json:"archived"`
	HasCancellations bool        `json:"has_cancellations"`
	Lines            []OrderLine `json:"items"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// LedgerEntry is one dated financial movement in a (client, currency) ledger.
// Key is the stable dedup key {date:YYYYMMDD}-{docTypeCode}-{docID}; Balance is
// filled only when a full-history merge has run.
type LedgerEntry struct {
	ClientID    string           `json:"client_id"`
	Currency    string           `json:"currency"`
	Date        time.Time        `json:"date"`
	DocTypeCode string           `json:"doc_type_code"`
	DocID       string           `json:"doc_id"`
	DocNumber   string           `json:"doc_number,omitempty"`
	Income      decimal.Decimal  `json:"income"`
	Expense     decimal.Decimal  `json:"expense"`
	Delta       decimal.Decimal  `json:"delta"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	Key         string           `json:"key"`
}

// Account roles.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// UserAccount is an internal persistence model for auth credentials.
// Role is "admin" or "client"; client accounts carry the client id they act for.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	ClientID  string
	Active    bool
	CreatedAt time.Time
}

type Actor struct {
	Username string
	Role     string
	ClientID string
}
