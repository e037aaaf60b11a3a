package stock

import (
	"strings"

	"grocerystock/internal/domain"
)

type GroupKey struct {
	SupplierEmail string
	TenantID      int64
}

type SupplierGroup struct {
	Key      GroupKey
	Supplier domain.Supplier
	Products []domain.Product
	Lines    []domain.OrderLine
}

// GroupBySupplier batches draft reorder lines by (supplier email, tenant).
// Groups come back in first-seen order and the first product seen supplies
// the group's supplier details. Emails compare case-insensitively.
func GroupBySupplier(products []domain.Product) []SupplierGroup {
	index := make(map[GroupKey]int)
	groups := make([]SupplierGroup, 0)
	for _, p := range products {
		key := GroupKey{
			SupplierEmail: strings.ToLower(strings.TrimSpace(p.Supplier.Email)),
			TenantID:      p.TenantID,
		}
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, SupplierGroup{Key: key, Supplier: p.Supplier})
		}
		groups[pos].Products = append(groups[pos].Products, p)
		groups[pos].Lines = append(groups[pos].Lines, DraftLine(p))
	}
	return groups
}
