package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"grocerystock/internal/domain"
	"grocerystock/internal/events"
	"grocerystock/internal/stock"

	"go.uber.org/zap"
)

type OrderLineInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderUpdate is an order edit. Lines replace the existing ones when non-empty.
type OrderUpdate struct {
	Lines                []OrderLineInput      `json:"products"`
	Supplier             *domain.OrderSupplier `json:"supplier"`
	ExpectedDeliveryDate *time.Time            `json:"expected_delivery_date"`
	Notes                *string               `json:"notes"`
}

// OrderInput is a manual purchase order placed by a user.
type OrderInput struct {
	Lines                []OrderLineInput      `json:"products"`
	Supplier             *domain.OrderSupplier `json:"supplier"`
	ExpectedDeliveryDate *time.Time            `json:"expected_delivery_date"`
	Notes                string                `json:"notes"`
}

// CreateOrder places a manual order priced at current cost. Stock is not
// touched until the order is delivered, and payment is left pending.
func (s *Service) CreateOrder(ctx context.Context, actor domain.Actor, in OrderInput) (domain.Order, error) {
	if len(in.Lines) == 0 {
		return domain.Order{}, domain.Invalid("at least one product is required")
	}
	if in.Supplier != nil {
		if in.Supplier.Name == "" {
			return domain.Order{}, domain.Invalid("supplier name is required if provided")
		}
		if _, err := mail.ParseAddress(in.Supplier.Email); err != nil {
			return domain.Order{}, domain.Invalid("supplier email must be valid")
		}
	}

	lines := make([]domain.OrderLine, 0, len(in.Lines))
	for _, item := range in.Lines {
		line, err := s.editLine(ctx, actor.TenantID, item)
		if err != nil {
			return domain.Order{}, err
		}
		lines = append(lines, line)
	}

	order := domain.Order{
		TenantID:             actor.TenantID,
		Lines:                lines,
		Status:               domain.OrderPending,
		OrderType:            domain.OrderManual,
		PaymentStatus:        domain.PaymentPending,
		ExpectedDeliveryDate: in.ExpectedDeliveryDate,
		Notes:                in.Notes,
		CreatedBy:            actor.UserID,
	}
	if in.Supplier != nil {
		order.Supplier = *in.Supplier
	}
	if err := s.store.CreateOrder(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	s.metrics.OrderCreated(string(domain.OrderManual))

	s.notify(ctx, domain.Notification{
		TenantID:    order.TenantID,
		RecipientID: actor.UserID,
		Type:        domain.NotificationOrderPlaced,
		Priority:    domain.PriorityMedium,
		Title:       "New Order Created",
		Message:     fmt.Sprintf("Order %s has been created with %d products", order.OrderNumber, len(order.Lines)),
		Data: map[string]any{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
		},
	})
	s.notifier.Broadcast(ctx, events.NewOrder, order.TenantID, map[string]any{
		"orderId":      order.ID,
		"orderNumber":  order.OrderNumber,
		"totalAmount":  order.TotalAmount.StringFixed(2),
		"productCount": len(order.Lines),
	})
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, actor domain.Actor, id int64) (domain.Order, error) {
	return s.store.GetOrder(ctx, actor.TenantID, id)
}

// UpdateOrder edits an open order. Line prices are re-read from the current
// cost price of each product.
func (s *Service) UpdateOrder(ctx context.Context, actor domain.Actor, id int64, in OrderUpdate) (domain.Order, error) {
	order, err := s.store.GetOrder(ctx, actor.TenantID, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status.Terminal() {
		return domain.Order{}, domain.ErrOrderLocked
	}

	if len(in.Lines) > 0 {
		lines := make([]domain.OrderLine, 0, len(in.Lines))
		for _, item := range in.Lines {
			line, err := s.editLine(ctx, actor.TenantID, item)
			if err != nil {
				return domain.Order{}, err
			}
			lines = append(lines, line)
		}
		order.Lines = lines
	}
	if in.Supplier != nil {
		order.Supplier = *in.Supplier
	}
	if in.ExpectedDeliveryDate != nil {
		order.ExpectedDeliveryDate = in.ExpectedDeliveryDate
	}
	if in.Notes != nil {
		order.Notes = *in.Notes
	}

	if err := s.store.UpdateOrder(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *Service) editLine(ctx context.Context, tenantID int64, item OrderLineInput) (domain.OrderLine, error) {
	p, err := s.store.GetProduct(ctx, tenantID, item.ProductID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.OrderLine{}, domain.Invalid("product %d not found", item.ProductID)
	}
	if err != nil {
		return domain.OrderLine{}, err
	}
	if item.Quantity < 1 {
		return domain.OrderLine{}, domain.Invalid("quantity for %s must be a positive integer", p.Name)
	}
	if item.Quantity > p.MaxOrderQuantity {
		return domain.OrderLine{}, &domain.OrderSizeError{
			ProductID:         p.ID,
			ProductName:       p.Name,
			RequestedQuantity: item.Quantity,
			MaxOrderQuantity:  p.MaxOrderQuantity,
		}
	}
	return stock.PricedLine(p, item.Quantity), nil
}

// UpdateOrderStatus moves an open order to status. Delivery applies every
// line to stock and fails as a whole when one line would breach its ceiling.
func (s *Service) UpdateOrderStatus(ctx context.Context, actor domain.Actor, id int64, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.Invalid("invalid status %q", status)
	}
	if status != domain.OrderDelivered {
		order, err := s.store.SetOrderStatus(ctx, actor.TenantID, id, status)
		if err != nil {
			return domain.Order{}, err
		}
		s.broadcastStatus(ctx, order)
		return order, nil
	}

	order, restocked, err := s.store.DeliverOrder(ctx, actor.TenantID, id)
	if err != nil {
		s.countCapacity(err, "delivery")
		return domain.Order{}, err
	}
	s.log.Info("order delivered",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("restocked_products", len(restocked)),
	)
	for _, p := range restocked {
		s.notifier.Broadcast(ctx, events.StockUpdated, p.TenantID, stockPayload(p))
	}
	s.notify(ctx, domain.Notification{
		TenantID:    order.TenantID,
		RecipientID: actor.UserID,
		Type:        domain.NotificationOrderDelivered,
		Priority:    domain.PriorityMedium,
		Title:       "Order Delivered",
		Message:     fmt.Sprintf("Order %s has been delivered and stock updated", order.OrderNumber),
		Data: map[string]any{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
		},
	})
	s.broadcastStatus(ctx, order)
	return order, nil
}

func (s *Service) CancelOrder(ctx context.Context, actor domain.Actor, id int64) (domain.Order, error) {
	return s.UpdateOrderStatus(ctx, actor, id, domain.OrderCancelled)
}

// RecordPayment stores the payment outcome reported by the payment workflow.
func (s *Service) RecordPayment(ctx context.Context, actor domain.Actor, id int64, status domain.PaymentStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.Invalid("invalid payment status %q", status)
	}
	order, err := s.store.RecordPayment(ctx, actor.TenantID, id, status, s.now())
	if err != nil {
		return domain.Order{}, err
	}
	if status == domain.PaymentCompleted {
		s.notifier.Broadcast(ctx, events.PaymentSuccess, order.TenantID, map[string]any{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
			"amount":      order.TotalAmount.StringFixed(2),
		})
	}
	return order, nil
}

func (s *Service) broadcastStatus(ctx context.Context, o domain.Order) {
	s.notifier.Broadcast(ctx, events.OrderStatusUpdated, o.TenantID, map[string]any{
		"orderId":     o.ID,
		"orderNumber": o.OrderNumber,
		"status":      o.Status,
	})
}
