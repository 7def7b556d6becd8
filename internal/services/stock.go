package services

import "github.com/storefront/catalog-service/internal/models"

// nonNegative coerces a stock column to a count. Null, unparseable and
// negative values are 0.
func nonNegative(n models.Number) int64 {
	if v := n.Int64(); v > 0 {
		return v
	}
	return 0
}

// aggregateStock is the stock of a product given its loaded variants: the sum
// of variant stocks when any exist, otherwise the product's own stock. Only
// the total is clamped, matching the listing query's SUM.
func aggregateStock(base models.Number, variants []models.VariantRow) (stock int64, hasVariants bool) {
	if len(variants) == 0 {
		return nonNegative(base), false
	}
	var total int64
	for _, v := range variants {
		total += v.Stock.Int64()
	}
	if total < 0 {
		total = 0
	}
	return total, true
}

// available drops products whose coerced stock is not positive. The store
// already filters on the raw value; fractional leftovers truncate to 0 here.
func available(products []models.Product) []models.Product {
	out := products[:0]
	for _, p := range products {
		if p.Stock > 0 {
			out = append(out, p)
		}
	}
	return out
}
