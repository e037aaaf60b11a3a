package service

import (
	"context"
	"errors"
	"fmt"

	"grocerystock/internal/domain"
	"grocerystock/internal/events"
	"grocerystock/internal/stock"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ReorderResult struct {
	Product ProductView  `json:"product"`
	Order   domain.Order `json:"order"`
}

type BulkReorderItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Quantity    int    `json:"quantity"`
}

type BulkReorderError struct {
	ProductID          int64  `json:"product_id"`
	Error              string `json:"error"`
	CurrentStock       *int   `json:"current_stock,omitempty"`
	MaxStockLevel      *int   `json:"max_stock_level,omitempty"`
	RequestedQuantity  *int   `json:"requested_quantity,omitempty"`
	MaxAllowedQuantity *int   `json:"max_allowed_quantity,omitempty"`
}

type BulkReorderResult struct {
	Results []BulkReorderItem  `json:"results"`
	Errors  []BulkReorderError `json:"errors,omitempty"`
}

// Restock adds quantity units to a product, optionally updating its cost
// price. When the product is still at or below its minimum afterwards an
// auto-reorder sweep is scheduled.
func (s *Service) Restock(ctx context.Context, actor domain.Actor, id int64, quantity int, costPrice *decimal.Decimal) (ProductView, error) {
	if quantity < 1 {
		return ProductView{}, domain.Invalid("quantity must be a positive integer")
	}
	if costPrice != nil && costPrice.IsNegative() {
		return ProductView{}, domain.Invalid("cost price must be a non-negative number")
	}

	p, err := s.store.IncrementStock(ctx, actor.TenantID, id, quantity, costPrice)
	if err != nil {
		s.countCapacity(err, "restock")
		return ProductView{}, err
	}

	if stock.NeedsReorder(p) && s.trigger != nil {
		s.log.Info("product still low after restock",
			zap.Int64("product_id", p.ID),
			zap.Int("current_stock", p.CurrentStock),
			zap.Int("min_stock_level", p.MinStockLevel),
		)
		s.trigger.TriggerAutoReorder()
	}
	s.notifier.Broadcast(ctx, events.StockUpdated, p.TenantID, stockPayload(p))
	return NewProductView(p), nil
}

// Reorder orders reorderQuantity units of one product and applies them to
// stock immediately as a confirmed manual order.
func (s *Service) Reorder(ctx context.Context, actor domain.Actor, id int64) (ReorderResult, error) {
	p, err := s.store.GetProduct(ctx, actor.TenantID, id)
	if err != nil {
		return ReorderResult{}, err
	}
	if !p.IsActive {
		return ReorderResult{}, domain.ErrInactiveProduct
	}

	order, restocked, err := s.manualReorder(ctx, actor, p, fmt.Sprintf("Auto-reorder for %s - Low stock alert triggered", p.Name))
	if err != nil {
		return ReorderResult{}, err
	}

	s.notify(ctx, domain.Notification{
		TenantID:    p.TenantID,
		RecipientID: actor.UserID,
		Type:        domain.NotificationSystemAlert,
		Priority:    domain.PriorityMedium,
		Title:       "Product Reordered",
		Message:     fmt.Sprintf("%s has been automatically reordered and restocked with %d %s", p.Name, p.ReorderQuantity, p.Unit),
		Data: map[string]any{
			"productId":   p.ID,
			"productName": p.Name,
			"orderId":     order.ID,
			"quantity":    p.ReorderQuantity,
		},
	})
	return ReorderResult{Product: NewProductView(restocked), Order: order}, nil
}

// BulkReorder runs the manual reorder for each id independently. Failures are
// reported per item and never undo earlier successes.
func (s *Service) BulkReorder(ctx context.Context, actor domain.Actor, ids []int64) (BulkReorderResult, error) {
	if len(ids) == 0 {
		return BulkReorderResult{}, domain.Invalid("product IDs array is required")
	}

	out := BulkReorderResult{Results: make([]BulkReorderItem, 0, len(ids))}
	for _, id := range ids {
		p, err := s.store.GetProduct(ctx, actor.TenantID, id)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			out.Errors = append(out.Errors, BulkReorderError{ProductID: id, Error: err.Error()})
			continue
		}
		if err != nil || !p.IsActive {
			out.Errors = append(out.Errors, BulkReorderError{ProductID: id, Error: "Product not found or inactive"})
			continue
		}

		order, _, err := s.manualReorder(ctx, actor, p, fmt.Sprintf("Bulk reorder for %s - Low stock alert triggered", p.Name))
		if err != nil {
			s.log.Warn("bulk reorder item failed", zap.Int64("product_id", id), zap.Error(err))
			out.Errors = append(out.Errors, bulkError(id, err))
			continue
		}
		out.Results = append(out.Results, BulkReorderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Quantity:    p.ReorderQuantity,
		})
	}

	if len(out.Results) > 0 {
		s.notify(ctx, domain.Notification{
			TenantID:    actor.TenantID,
			RecipientID: actor.UserID,
			Type:        domain.NotificationSystemAlert,
			Priority:    domain.PriorityMedium,
			Title:       "Bulk Reorder Completed",
			Message:     fmt.Sprintf("%d products have been reordered and restocked", len(out.Results)),
			Data: map[string]any{
				"reorderedProducts": out.Results,
				"totalProducts":     len(out.Results),
			},
		})
	}
	return out, nil
}

func (s *Service) manualReorder(ctx context.Context, actor domain.Actor, p domain.Product, notes string) (domain.Order, domain.Product, error) {
	line, err := stock.PlanLine(p, p.ReorderQuantity)
	if err != nil {
		s.countCapacity(err, "manual_reorder")
		return domain.Order{}, domain.Product{}, err
	}

	order := domain.Order{
		TenantID:             p.TenantID,
		Lines:                []domain.OrderLine{line},
		Status:               domain.OrderConfirmed,
		OrderType:            domain.OrderManual,
		PaymentStatus:        domain.PaymentPending,
		Supplier:             domain.SupplierRef(p.Supplier),
		ExpectedDeliveryDate: s.expectedDelivery(),
		Notes:                notes,
		CreatedBy:            actor.UserID,
	}
	restocked, err := s.store.CreateOrderWithRestock(ctx, &order)
	if err != nil {
		s.countCapacity(err, "manual_reorder")
		return domain.Order{}, domain.Product{}, err
	}
	s.metrics.OrderCreated(string(domain.OrderManual))

	updated := p
	if len(restocked) > 0 {
		updated = restocked[0]
	}
	s.notifier.Broadcast(ctx, events.StockUpdated, updated.TenantID, stockPayload(updated))
	return order, updated, nil
}

func bulkError(id int64, err error) BulkReorderError {
	var capErr *stock.CapacityError
	if !errors.As(err, &capErr) {
		return BulkReorderError{ProductID: id, Error: err.Error()}
	}
	current, maxLevel, requested, allowed := capErr.CurrentStock, capErr.MaxStockLevel, capErr.RequestedQuantity, capErr.MaxAllowedQuantity()
	return BulkReorderError{
		ProductID:          id,
		Error:              capErr.Error(),
		CurrentStock:       &current,
		MaxStockLevel:      &maxLevel,
		RequestedQuantity:  &requested,
		MaxAllowedQuantity: &allowed,
	}
}

func (s *Service) countCapacity(err error, operation string) {
	var capErr *stock.CapacityError
	if errors.As(err, &capErr) {
		s.metrics.CapacityRejected(operation)
	}
}

// notify records a notification whose failure must not undo the operation
// that produced it.
func (s *Service) notify(ctx context.Context, n domain.Notification) {
	if _, err := s.notifier.Create(ctx, n); err != nil {
		s.log.Error("create notification",
			zap.String("type", string(n.Type)),
			zap.Int64("tenant_id", n.TenantID),
			zap.Error(err),
		)
	}
}
