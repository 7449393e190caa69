package pricing

import (
	"github.com/shopspring/decimal"

	"roza/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Quote is the result of pricing one offer for one client.
type Quote struct {
	Price decimal.Decimal
	Tier  string
	Rule  *domain.PricingRule
}

// Price computes the displayed price of an offer for a client. It returns
// exactly zero when the offer has no usable price; a positive base can never
// round down to zero because the final base-currency rounding is a ceiling.
//
// The step order is load-bearing: tier resolution, personal adjustment, global
// adjustment, ceiling rounding, then currency conversion with half-up
// rounding. Reordering any of these changes invoice totals.
func Price(product domain.Product, offer domain.Offer, ctx domain.PricingContext) decimal.Decimal {
	return PriceQuote(product, offer, ctx).Price
}

// PriceQuote is Price plus the resolved tier and matched rule, for the admin
// product page and exports that show where a price came from.
func PriceQuote(product domain.Product, offer domain.Offer, ctx domain.PricingContext) Quote {
	rule := ResolveRule(ctx.RuleSet, product.Brand, product.ArticleID, offer.Supplier)

	tier := effectiveTier(rule, ctx.DefaultTier)
	base, ok := basePrice(offer, tier)
	if !ok {
		return Quote{Price: decimal.Zero, Tier: tier, Rule: rule}
	}

	price := base
	if rule != nil {
		price = applyAdjustment(price, rule.EffectiveAdjustment())
	}
	// The global adjustment applies whenever a rule set exists, matched rule or not.
	price = applyAdjustment(price, ctx.RuleSet.EffectiveGlobalAdjustment())

	// Ceiling to 2 decimals: the seller never loses a fraction of a cent.
	price = price.RoundCeil(2)

	if ctx.Currency != "" && ctx.Currency != ctx.BaseCurrency && ctx.ExchangeRate.IsPositive() {
		// Conversion rounds half-up, not ceiling.
		price = price.Mul(ctx.ExchangeRate).Round(2)
	}

	return Quote{Price: price, Tier: tier, Rule: rule}
}

func effectiveTier(rule *domain.PricingRule, defaultTier string) string {
	if rule != nil && rule.PriceTier != "" {
		return rule.PriceTier
	}
	if defaultTier != "" {
		return defaultTier
	}
	return domain.TierRetail
}

// basePrice looks up the tier price with retail fallback. A missing or
// non-positive entry counts as "no price set".
func basePrice(offer domain.Offer, tier string) (decimal.Decimal, bool) {
	if price, exists := offer.TierPrices[tier]; exists && price.IsPositive() {
		return price, true
	}
	if price, exists := offer.TierPrices[domain.TierRetail]; exists && price.IsPositive() {
		return price, true
	}
	return decimal.Zero, false
}

func applyAdjustment(price decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	if percent.IsZero() {
		return price
	}
	return price.Mul(decimal.NewFromInt(1).Add(percent.Div(hundred)))
}
