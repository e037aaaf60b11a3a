// Package stock holds the pure reconciliation rules: stock classification,
// reorder line planning and supplier grouping. Nothing here touches a store.
package stock

import (
	"grocerystock/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Classify evaluates the rules in order, first match wins: out of stock,
// low stock, overstock, in stock. When min >= max a level that is both at or
// below min and at or above max is low stock.
func Classify(current, minLevel, maxLevel int) domain.StockStatus {
	switch {
	case current <= 0:
		return domain.StockOutOfStock
	case current <= minLevel:
		return domain.StockLow
	case current >= maxLevel:
		return domain.StockOverstock
	default:
		return domain.StockInStock
	}
}

func StatusOf(p domain.Product) domain.StockStatus {
	return Classify(p.CurrentStock, p.MinStockLevel, p.MaxStockLevel)
}

// NeedsReorder is the qualifying condition shared by every sweep.
func NeedsReorder(p domain.Product) bool {
	return p.CurrentStock <= p.MinStockLevel
}

// ProfitMargin returns (selling - cost) / cost * 100 rounded to two places.
// ok is false when cost is zero and the margin is undefined.
func ProfitMargin(selling, cost decimal.Decimal) (margin decimal.Decimal, ok bool) {
	if cost.IsZero() {
		return decimal.Zero, false
	}
	return selling.Sub(cost).Div(cost).Mul(hundred).Round(2), true
}
