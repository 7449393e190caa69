package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"roza/backend/internal/domain"
)

type rankedOffer struct {
	offer domain.Offer
	price decimal.Decimal
}

// RankOffers orders a product's offers for display: the own-warehouse offer
// always first, the rest ascending by computed price with zero/absent prices
// last. The sort is stable so equal-priced offers keep their input order, and
// the same Price function prices them, so displayed order and displayed price
// can never disagree.
func RankOffers(product domain.Product, offers []domain.Offer, ctx domain.PricingContext) []domain.Offer {
	pairs := make([]rankedOffer, len(offers))
	for i, offer := range offers {
		pairs[i] = rankedOffer{offer: offer, price: Price(product, offer, ctx)}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		iOwn := pairs[i].offer.Supplier == domain.SupplierOwnWarehouse
		jOwn := pairs[j].offer.Supplier == domain.SupplierOwnWarehouse
		if iOwn != jOwn {
			return iOwn
		}
		return lessByPrice(pairs[i].price, pairs[j].price)
	})

	ranked := make([]domain.Offer, len(pairs))
	for i, pair := range pairs {
		ranked[i] = pair.offer
	}
	return ranked
}

// lessByPrice treats a zero (= no usable) price as infinitely expensive.
func lessByPrice(a decimal.Decimal, b decimal.Decimal) bool {
	aMissing := !a.IsPositive()
	bMissing := !b.IsPositive()
	if aMissing || bMissing {
		return !aMissing && bMissing
	}
	return a.LessThan(b)
}
