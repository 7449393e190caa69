// Package catalog flattens products and their supplier offers into display
// rows and regroups them for row-span rendering. Projection is deterministic:
// row order is a pure function of input iteration order and the offer ranking.
package catalog

import (
	"roza/backend/internal/domain"
	"roza/backend/internal/pricing"
)

// Filters narrow the projected rows. They apply before ranking, in this
// order: category membership, zero-stock offers, partner offers.
type Filters struct {
	Category          string
	HideZeroStock     bool
	HidePartnerOffers bool
}

// ProjectRows flattens products into one row per (product, offer) pair. A
// product whose offers are all filtered out contributes no rows. Offers are
// ranked with the same pricing context the caller renders with.
func ProjectRows(products []domain.Product, ctx domain.PricingContext, filters Filters) []domain.CatalogRow {
	rows := make([]domain.CatalogRow, 0, len(products))

	for _, product := range products {
		if filters.Category != "" && !hasCategory(product.Categories, filters.Category) {
			continue
		}

		offers := filterOffers(product.Offers, filters)
		if len(offers) == 0 {
			continue
		}

		for _, offer := range pricing.RankOffers(product, offers, ctx) {
			rows = append(rows, domain.CatalogRow{
				Brand:      product.Brand,
				ArticleID:  product.ArticleID,
				Name:       product.Name,
				Categories: product.Categories,
				Supplier:   offer.Supplier,
				Stock:      offer.Stock,
				Price:      pricing.Price(product, offer, ctx),
				Currency:   ctx.Currency,
			})
		}
	}

	return rows
}

// GroupRows merges consecutive rows sharing the same product identity into
// one group. Grouping is positional: rows for one product are contiguous
// because ProjectRows preserves product iteration order.
func GroupRows(rows []domain.CatalogRow) []domain.CatalogGroup {
	groups := make([]domain.CatalogGroup, 0, len(rows))

	for _, row := range rows {
		last := len(groups) - 1
		if last >= 0 && groups[last].Brand == row.Brand && groups[last].ArticleID == row.ArticleID {
			groups[last].Rows = append(groups[last].Rows, row)
			continue
		}
		groups = append(groups, domain.CatalogGroup{
			Brand:      row.Brand,
			ArticleID:  row.ArticleID,
			Name:       row.Name,
			Categories: row.Categories,
			Rows:       []domain.CatalogRow{row},
		})
	}

	return groups
}

func filterOffers(offers []domain.Offer, filters Filters) []domain.Offer {
	kept := make([]domain.Offer, 0, len(offers))
	for _, offer := range offers {
		if filters.HideZeroStock && offer.Stock <= 0 {
			continue
		}
		if filters.HidePartnerOffers && offer.Supplier != domain.SupplierOwnWarehouse {
			continue
		}
		kept = append(kept, offer)
	}
	return kept
}

func hasCategory(categories []string, category string) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}
