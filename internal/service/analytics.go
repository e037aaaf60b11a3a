package service

import (
	"context"

	"grocerystock/internal/domain"
	"grocerystock/internal/stock"

	"github.com/shopspring/decimal"
)

type ReorderCandidate struct {
	domain.Product
	StockStatus              domain.StockStatus `json:"stock_status"`
	SuggestedReorderQuantity int                `json:"suggested_reorder_quantity"`
	EstimatedCost            decimal.Decimal    `json:"estimated_cost"`
}

func (s *Service) Analytics(ctx context.Context, actor domain.Actor) (domain.StockAnalytics, error) {
	return s.store.StockAnalytics(ctx, actor.TenantID)
}

// ReorderCandidates lists the caller's products at or below their minimum,
// lowest stock first, priced at the configured reorder quantity.
func (s *Service) ReorderCandidates(ctx context.Context, actor domain.Actor) ([]ReorderCandidate, error) {
	products, err := s.store.ListReorderCandidates(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	out := make([]ReorderCandidate, 0, len(products))
	for _, p := range products {
		line := stock.DraftLine(p)
		out = append(out, ReorderCandidate{
			Product:                  p,
			StockStatus:              stock.StatusOf(p),
			SuggestedReorderQuantity: line.Quantity,
			EstimatedCost:            line.TotalPrice,
		})
	}
	return out, nil
}
