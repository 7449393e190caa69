package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"roza/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func testProduct() domain.Product {
	return domain.Product{Brand: "BOSCH", ArticleID: "0986452041", Name: "Oil filter"}
}

func testOffer(tiers map[string]string) domain.Offer {
	prices := make(map[string]decimal.Decimal, len(tiers))
	for tier, value := range tiers {
		prices[tier] = dec(value)
	}
	return domain.Offer{Supplier: "PartnerA", Stock: 10, TierPrices: prices}
}

func uahContext(ruleSet *domain.PricingRuleSet, defaultTier string) domain.PricingContext {
	return domain.PricingContext{
		RuleSet:      ruleSet,
		DefaultTier:  defaultTier,
		BaseCurrency: "UAH",
		Currency:     "UAH",
	}
}

func TestFindRuleFirstMatchInListOrder(t *testing.T) {
	ruleSet := &domain.PricingRuleSet{Rules: []domain.PricingRule{
		{Type: domain.RuleTypeBrand, Brand: "BOSCH", PriceTier: domain.TierOne, Adjustment: decPtr("-3")},
		{Type: domain.RuleTypeBrand, Brand: "BOSCH", PriceTier: domain.TierTwo, Adjustment: decPtr("-7")},
	}}

	rule := FindRule(ruleSet, domain.RuleTypeBrand, "BOSCH", "", "")
	if rule == nil {
		t.Fatalf("expected a brand rule match")
	}
	if rule.PriceTier != domain.TierOne {
		t.Fatalf("expected first listed rule to win, got tier %s", rule.PriceTier)
	}
}

func TestFindRuleNilSafety(t *testing.T) {
	if rule := FindRule(nil, domain.RuleTypeBrand, "BOSCH", "", ""); rule != nil {
		t.Fatalf("expected nil for nil rule set")
	}
	if rule := FindRule(&domain.PricingRuleSet{}, domain.RuleTypeProduct, "BOSCH", "X", ""); rule != nil {
		t.Fatalf("expected nil for empty rule list")
	}
}

func TestProductRuleBeatsBrandRule(t *testing.T) {
	ruleSet := &domain.PricingRuleSet{Rules: []domain.PricingRule{
		{Type: domain.RuleTypeBrand, Brand: "BOSCH", PriceTier: domain.TierWholesale, Adjustment: decPtr("-10")},
		{Type: domain.RuleTypeProduct, Brand: "BOSCH", ArticleID: "0986452041", PriceTier: domain.TierTwo, Adjustment: decPtr("5")},
	}}
	offer := testOffer(map[string]string{
		domain.TierRetail:    "100",
		domain.TierTwo:       "80",
		domain.TierWholesale: "60",
	})

	got := Price(testProduct(), offer, uahContext(ruleSet, domain.TierRetail))

	// tier2 base 80 with +5% = 84, never the brand rule's wholesale 60 -10%.
	if !got.Equal(dec("84")) {
		t.Fatalf("expected 84 from the product rule, got %s", got)
	}
}

func TestBrandRuleBeatsSupplierRule(t *testing.T) {
	ruleSet := &domain.PricingRuleSet{Rules: []domain.PricingRule{
		{Type: domain.RuleTypeSupplier, Supplier: "PartnerA", PriceTier: domain.TierRetail, Adjustment: decPtr("20")},
		{Type: domain.RuleTypeBrand, Brand: "BOSCH", PriceTier: domain.TierRetail, Adjustment: decPtr("-2")},
	}}
	offer := testOffer(map[string]string{domain.TierRetail: "50"})

	got := Price(testProduct(), offer, uahContext(ruleSet, domain.TierRetail))
	if !got.Equal(dec("49")) {
		t.Fatalf("expected 49 from the brand rule, got %s", got)
	}
}

func TestNoRuleSetFallsBackToDefaultTier(t *testing.T) {
	offer := testOffer(map[string]string{
		domain.TierRetail: "120.50",
		domain.TierThree:  "99.99",
	})

	got := Price(testProduct(), offer, uahContext(nil, domain.TierThree))
	if !got.Equal(dec("99.99")) {
		t.Fatalf("expected plain tier3 price 99.99, got %s", got)
	}
}

func TestDefaultTierMissingFallsBackToRetail(t *testing.T) {
	offer := testOffer(map[string]string{domain.TierRetail: "120.50"})

	got := Price(testProduct(), offer, uahContext(nil, domain.TierWholesale))
	if !got.Equal(dec("120.50")) {
		t.Fatalf("expected retail fallback 120.50, got %s", got)
	}
}

func TestZeroTierPriceTreatedAsAbsent(t *testing.T) {
	offer := testOffer(map[string]string{
		domain.TierWholesale: "0",
		domain.TierRetail:    "35",
	})

	got := Price(testProduct(), offer, uahContext(nil, domain.TierWholesale))
	if !got.Equal(dec("35")) {
		t.Fatalf("expected retail fallback for zero wholesale price, got %s", got)
	}
}

func TestNoUsablePriceReturnsExactZero(t *testing.T) {
	offer := testOffer(map[string]string{domain.TierRetail: "0"})
	ruleSet := &domain.PricingRuleSet{GlobalAdjustment: decPtr("10")}

	got := Price(testProduct(), offer, uahContext(ruleSet, domain.TierRetail))
	if !got.IsZero() {
		t.Fatalf("expected exact zero for an unpriced offer, got %s", got)
	}
}

func TestCeilingRoundingNeverRoundsDown(t *testing.T) {
	// 33.33 * 1.03 = 34.3299 -> must ceil to 34.33, and any positive
	// fraction must produce a strictly positive price.
	ruleSet := &domain.PricingRuleSet{Rules: []domain.PricingRule{
		{Type: domain.RuleTypeBrand, Brand: "BOSCH", PriceTier: domain.TierRetail, Adjustment: decPtr("3")},
	}}
	offer := testOffer(map[string]string{domain.TierRetail: "33.33"})

	got := Price(testProduct(), offer, uahContext(ruleSet, domain.TierRetail))
	if !got.Equal(dec("34.33")) {
		t.Fatalf("expected ceiling 34.33, got %s", got)
	}

	raw := dec("33.33").Mul(dec("1.03"))
	if got.LessThan(raw) {
		t.Fatalf("ceiling rounded below the exact value: %s < %s", got, raw)
	}
}

func TestTinyPositivePriceCeilsUpNotToZero(t *testing.T) {
	ruleSet := &domain.PricingRuleSet{Rules: []domain.PricingRule{
		{Type: domain.RuleTypeBrand, Brand: "BOSCH", PriceTier: domain.TierRetail, Adjustment: decPtr("-99.9")},
	}}
	offer := testOffer(map[string]string{domain.TierRetail: "0.01"})

	got := Price(testProduct(), offer, uahContext(ruleSet, domain.TierRetail))
	if !got.IsPositive() {
		t.Fatalf("a positive base must never price to zero, got %s", got)
	}
}

func TestGlobalAdjustmentAppliesWithoutMatchedRule(t *testing.T) {
	ruleSet := &domain.PricingRuleSet{GlobalAdjustment: decPtr("-5")}
	offer := testOffer(map[string]string{domain.TierRetail: "200"})

	got := Price(testProduct(), offer, uahContext(ruleSet, domain.TierRetail))
	if !got.Equal(dec("190")) {
		t.Fatalf("expected 190 with the global discount alone, got %s", got)
	}
}

func TestPersonalThenGlobalAdjustmentOrder(t *testing.T) {
	ruleSet := &domain.PricingRuleSet{
		GlobalAdjustment: decPtr("10"),
		Rules: []domain.PricingRule{
			{Type: domain.RuleTypeBrand, Brand: "BOSCH", PriceTier: domain.TierRetail, Adjustment: decPtr("-10")},
		},
	}
	offer := testOffer(map[string]string{domain.TierRetail: "100"})

	// 100 * 0.90 * 1.10 = 99, not 100.
	got := Price(testProduct(), offer, uahContext(ruleSet, domain.TierRetail))
	if !got.Equal(dec("99")) {
		t.Fatalf("expected 99 from composed adjustments, got %s", got)
	}
}

func TestLegacyDiscountMarkupConversion(t *testing.T) {
	legacy := &domain.PricingRuleSet{Rules: []domain.PricingRule{
		{Type: domain.RuleTypeBrand, Brand: "BOSCH", PriceTier: domain.TierRetail, Discount: dec("5")},
	}}
	modern := &domain.PricingRuleSet{Rules: []domain.PricingRule{
		{Type: domain.RuleTypeBrand, Brand: "BOSCH", PriceTier: domain.TierRetail, Adjustment: decPtr("-5")},
	}}
	offer := testOffer(map[string]string{domain.TierRetail: "81"})

	legacyPrice := Price(testProduct(), offer, uahContext(legacy, domain.TierRetail))
	modernPrice := Price(testProduct(), offer, uahContext(modern, domain.TierRetail))
	if !legacyPrice.Equal(modernPrice) {
		t.Fatalf("legacy discount=5 must equal adjustment=-5: %s vs %s", legacyPrice, modernPrice)
	}
}

func TestLegacyGlobalDiscountMarkupConversion(t *testing.T) {
	legacy := &domain.PricingRuleSet{GlobalDiscount: dec("3"), GlobalMarkup: dec("8")}
	modern := &domain.PricingRuleSet{GlobalAdjustment: decPtr("5")}
	offer := testOffer(map[string]string{domain.TierRetail: "40"})

	legacyPrice := Price(testProduct(), offer, uahContext(legacy, domain.TierRetail))
	modernPrice := Price(testProduct(), offer, uahContext(modern, domain.TierRetail))
	if !legacyPrice.Equal(modernPrice) {
		t.Fatalf("legacy global markup-discount must equal adjustment: %s vs %s", legacyPrice, modernPrice)
	}
}

func TestCurrencyConversionAfterCeiling(t *testing.T) {
	ctx := domain.PricingContext{
		DefaultTier:  domain.TierRetail,
		BaseCurrency: "UAH",
		Currency:     "USD",
		ExchangeRate: dec("0.0243"),
	}
	offer := testOffer(map[string]string{domain.TierRetail: "100.001"})

	// Ceil first: 100.01. Then 100.01 * 0.0243 = 2.430243 -> 2.43 half-up.
	got := Price(testProduct(), offer, ctx)
	if !got.Equal(dec("2.43")) {
		t.Fatalf("expected 2.43 after conversion, got %s", got)
	}
}

func TestSameCurrencySkipsConversion(t *testing.T) {
	ctx := domain.PricingContext{
		DefaultTier:  domain.TierRetail,
		BaseCurrency: "UAH",
		Currency:     "UAH",
		ExchangeRate: dec("0.0243"),
	}
	offer := testOffer(map[string]string{domain.TierRetail: "100"})

	got := Price(testProduct(), offer, ctx)
	if !got.Equal(dec("100")) {
		t.Fatalf("expected unconverted 100, got %s", got)
	}
}

func TestPriceQuoteReportsTierAndRule(t *testing.T) {
	ruleSet := &domain.PricingRuleSet{Rules: []domain.PricingRule{
		{Type: domain.RuleTypeSupplier, Supplier: "PartnerA", PriceTier: domain.TierWholesale, Adjustment: decPtr("0")},
	}}
	offer := testOffer(map[string]string{
		domain.TierRetail:    "100",
		domain.TierWholesale: "70",
	})

	quote := PriceQuote(testProduct(), offer, uahContext(ruleSet, domain.TierRetail))
	if quote.Tier != domain.TierWholesale {
		t.Fatalf("expected wholesale tier from supplier rule, got %s", quote.Tier)
	}
	if quote.Rule == nil || quote.Rule.Type != domain.RuleTypeSupplier {
		t.Fatalf("expected the supplier rule to be reported")
	}
	if !quote.Price.Equal(dec("70")) {
		t.Fatalf("expected 70, got %s", quote.Price)
	}
}

func TestRankOffersOwnWarehouseFirst(t *testing.T) {
	product := testProduct()
	offers := []domain.Offer{
		{Supplier: "B", Stock: 5, TierPrices: map[string]decimal.Decimal{domain.TierRetail: dec("10")}},
		{Supplier: domain.SupplierOwnWarehouse, Stock: 2, TierPrices: map[string]decimal.Decimal{domain.TierRetail: dec("50")}},
		{Supplier: "A", Stock: 9, TierPrices: map[string]decimal.Decimal{domain.TierRetail: dec("5")}},
	}

	ranked := RankOffers(product, offers, uahContext(nil, domain.TierRetail))

	want := []string{domain.SupplierOwnWarehouse, "A", "B"}
	for i, supplier := range want {
		if ranked[i].Supplier != supplier {
			t.Fatalf("rank %d: expected %s, got %s", i, supplier, ranked[i].Supplier)
		}
	}
}

func TestRankOffersUnpricedLast(t *testing.T) {
	product := testProduct()
	offers := []domain.Offer{
		{Supplier: "NoPrice", Stock: 8, TierPrices: map[string]decimal.Decimal{}},
		{Supplier: "Priced", Stock: 3, TierPrices: map[string]decimal.Decimal{domain.TierRetail: dec("99")}},
	}

	ranked := RankOffers(product, offers, uahContext(nil, domain.TierRetail))
	if ranked[0].Supplier != "Priced" || ranked[1].Supplier != "NoPrice" {
		t.Fatalf("expected unpriced offer last, got %s then %s", ranked[0].Supplier, ranked[1].Supplier)
	}
}

func TestRankOffersStableForEqualPrices(t *testing.T) {
	product := testProduct()
	offers := []domain.Offer{
		{Supplier: "First", TierPrices: map[string]decimal.Decimal{domain.TierRetail: dec("10")}},
		{Supplier: "Second", TierPrices: map[string]decimal.Decimal{domain.TierRetail: dec("10")}},
	}

	ranked := RankOffers(product, offers, uahContext(nil, domain.TierRetail))
	if ranked[0].Supplier != "First" || ranked[1].Supplier != "Second" {
		t.Fatalf("equal prices must keep input order, got %s then %s", ranked[0].Supplier, ranked[1].Supplier)
	}
}
