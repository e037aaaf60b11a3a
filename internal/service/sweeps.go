package service

import (
	"context"
	"fmt"
	"time"

	"grocerystock/internal/domain"
	"grocerystock/internal/stock"

	"go.uber.org/zap"
)

const (
	SweepLowStock    = "low_stock"
	SweepAutoReorder = "auto_reorder"
	SweepAutoRenew   = "auto_renew"
)

// SweepReport summarises one sweep run. Item failures are counted here and
// logged; they never abort the run.
type SweepReport struct {
	Sweep         string        `json:"sweep"`
	Candidates    int           `json:"candidates"`
	Orders        int           `json:"orders_created"`
	Notifications int           `json:"notifications_created"`
	Skipped       int           `json:"skipped"`
	Failures      int           `json:"failures"`
	Duration      time.Duration `json:"duration_ns"`
}

// tenantUsers caches active users per tenant for the length of one sweep.
type tenantUsers struct {
	store Store
	users map[int64][]domain.User
}

func (c *tenantUsers) get(ctx context.Context, tenantID int64) ([]domain.User, error) {
	if users, ok := c.users[tenantID]; ok {
		return users, nil
	}
	users, err := c.store.ListActiveUsers(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	c.users[tenantID] = users
	return users, nil
}

// LowStockSweep alerts every active user of the owning tenant about each
// product at or below its minimum. It changes no stock or orders.
func (s *Service) LowStockSweep(ctx context.Context) (SweepReport, error) {
	return s.sweep(ctx, SweepLowStock, func(products []domain.Product, users *tenantUsers, report *SweepReport) {
		for _, p := range products {
			recipients, err := users.get(ctx, p.TenantID)
			if err != nil {
				s.itemFailed(report, p, "list tenant users", err)
				continue
			}
			if len(recipients) == 0 {
				s.skipTenant(report, p)
				continue
			}
			for _, u := range recipients {
				if _, err := s.notifier.StockAlert(ctx, p, u); err != nil {
					s.itemFailed(report, p, "stock alert", err)
					continue
				}
				report.Notifications++
			}
		}
	})
}

// AutoReorderSweep creates one pending automatic order per qualifying
// product. Stock is applied only when the order is delivered.
func (s *Service) AutoReorderSweep(ctx context.Context) (SweepReport, error) {
	return s.sweep(ctx, SweepAutoReorder, func(products []domain.Product, users *tenantUsers, report *SweepReport) {
		for _, p := range products {
			recipients, err := users.get(ctx, p.TenantID)
			if err != nil {
				s.itemFailed(report, p, "list tenant users", err)
				continue
			}
			if len(recipients) == 0 {
				s.skipTenant(report, p)
				continue
			}
			skip, err := s.hasOpenOrder(ctx, p)
			if err != nil {
				s.itemFailed(report, p, "check open automatic order", err)
				continue
			}
			if skip {
				report.Skipped++
				continue
			}

			owner := recipients[0]
			order := domain.Order{
				TenantID:             p.TenantID,
				Lines:                []domain.OrderLine{stock.DraftLine(p)},
				Status:               domain.OrderPending,
				OrderType:            domain.OrderAutomatic,
				PaymentStatus:        domain.PaymentPending,
				Supplier:             domain.SupplierRef(p.Supplier),
				ExpectedDeliveryDate: s.expectedDelivery(),
				Notes:                fmt.Sprintf("Auto-reorder for %s - Low stock alert triggered", p.Name),
				CreatedBy:            owner.ID,
			}
			if err := s.store.CreateOrder(ctx, &order); err != nil {
				s.itemFailed(report, p, "create automatic order", err)
				continue
			}
			report.Orders++
			s.metrics.OrderCreated(string(domain.OrderAutomatic))
			s.log.Info("automatic order created",
				zap.String("order_number", order.OrderNumber),
				zap.Int64("product_id", p.ID),
				zap.Int("quantity", p.ReorderQuantity),
			)

			if _, err := s.notifier.Create(ctx, domain.Notification{
				TenantID:    p.TenantID,
				RecipientID: owner.ID,
				Type:        domain.NotificationPaymentPending,
				Priority:    domain.PriorityHigh,
				Title:       "Payment Pending - Auto Order",
				Message: fmt.Sprintf("Auto order %s created for low stock %q. Payment of %s is pending.",
					order.OrderNumber, p.Name, order.TotalAmount.StringFixed(2)),
				Data: map[string]any{
					"productId":       p.ID,
					"productName":     p.Name,
					"orderId":         order.ID,
					"orderNumber":     order.OrderNumber,
					"quantity":        p.ReorderQuantity,
					"amount":          order.TotalAmount.StringFixed(2),
					"requiresPayment": true,
				},
			}); err != nil {
				s.itemFailed(report, p, "payment pending notification", err)
				continue
			}
			report.Notifications++
		}
	})
}

// SupplierRenewalSweep batches qualifying products into one pending
// automatic order per (supplier email, tenant).
func (s *Service) SupplierRenewalSweep(ctx context.Context) (SweepReport, error) {
	return s.sweep(ctx, SweepAutoRenew, func(products []domain.Product, users *tenantUsers, report *SweepReport) {
		for _, group := range stock.GroupBySupplier(products) {
			log := s.log.With(
				zap.String("supplier_email", group.Key.SupplierEmail),
				zap.Int64("tenant_id", group.Key.TenantID),
			)
			recipients, err := users.get(ctx, group.Key.TenantID)
			if err != nil {
				report.Failures++
				log.Error("list tenant users", zap.Error(err))
				continue
			}
			if len(recipients) == 0 {
				report.Skipped += len(group.Products)
				log.Info("no active users for tenant, skipping supplier group")
				continue
			}

			lines := make([]domain.OrderLine, 0, len(group.Lines))
			for i, p := range group.Products {
				skip, err := s.hasOpenOrder(ctx, p)
				if err != nil {
					s.itemFailed(report, p, "check open automatic order", err)
					continue
				}
				if skip {
					report.Skipped++
					continue
				}
				lines = append(lines, group.Lines[i])
			}
			if len(lines) == 0 {
				continue
			}

			owner := recipients[0]
			order := domain.Order{
				TenantID:             group.Key.TenantID,
				Lines:                lines,
				Status:               domain.OrderPending,
				OrderType:            domain.OrderAutomatic,
				PaymentStatus:        domain.PaymentPending,
				Supplier:             domain.SupplierRef(group.Supplier),
				ExpectedDeliveryDate: s.expectedDelivery(),
				Notes:                "Automatically generated order for low stock items - Payment pending",
				CreatedBy:            owner.ID,
			}
			if err := s.store.CreateOrder(ctx, &order); err != nil {
				report.Failures++
				log.Error("create supplier order", zap.Error(err))
				continue
			}
			report.Orders++
			s.metrics.OrderCreated(string(domain.OrderAutomatic))
			log.Info("supplier order created",
				zap.String("order_number", order.OrderNumber),
				zap.Int("lines", len(lines)),
			)

			if _, err := s.notifier.Create(ctx, domain.Notification{
				TenantID:    group.Key.TenantID,
				RecipientID: owner.ID,
				Type:        domain.NotificationPaymentPending,
				Priority:    domain.PriorityHigh,
				Title:       "Payment Pending - Auto Order",
				Message: fmt.Sprintf("Auto order %s created for %d low stock items. Total payment of %s is pending.",
					order.OrderNumber, len(lines), order.TotalAmount.StringFixed(2)),
				Data: map[string]any{
					"orderId":         order.ID,
					"orderNumber":     order.OrderNumber,
					"productCount":    len(lines),
					"amount":          order.TotalAmount.StringFixed(2),
					"requiresPayment": true,
				},
			}); err != nil {
				report.Failures++
				log.Error("payment pending notification", zap.Error(err))
				continue
			}
			report.Notifications++
		}
	})
}

// sweep loads the qualifying products and hands them to run. Only a failed
// candidate scan is returned as an error.
func (s *Service) sweep(ctx context.Context, name string, run func([]domain.Product, *tenantUsers, *SweepReport)) (SweepReport, error) {
	started := s.now()
	report := SweepReport{Sweep: name}
	s.log.Info("sweep started", zap.String("sweep", name))

	products, err := s.store.ListReorderCandidates(ctx, 0)
	if err != nil {
		report.Failures++
		report.Duration = s.now().Sub(started)
		s.metrics.ObserveSweep(name, report.Failures, report.Duration)
		s.log.Error("sweep aborted", zap.String("sweep", name), zap.Error(err))
		return report, fmt.Errorf("%s sweep: %w", name, err)
	}
	report.Candidates = len(products)

	if len(products) > 0 {
		run(products, &tenantUsers{store: s.store, users: make(map[int64][]domain.User)}, &report)
	}

	report.Duration = s.now().Sub(started)
	s.metrics.ObserveSweep(name, report.Failures, report.Duration)
	s.log.Info("sweep completed",
		zap.String("sweep", name),
		zap.Int("candidates", report.Candidates),
		zap.Int("orders", report.Orders),
		zap.Int("notifications", report.Notifications),
		zap.Int("skipped", report.Skipped),
		zap.Int("failures", report.Failures),
		zap.Duration("took", report.Duration),
	)
	return report, nil
}

func (s *Service) hasOpenOrder(ctx context.Context, p domain.Product) (bool, error) {
	if !s.opts.SuppressDuplicates {
		return false, nil
	}
	return s.store.HasOpenAutomaticOrder(ctx, p.TenantID, p.ID)
}

func (s *Service) itemFailed(report *SweepReport, p domain.Product, step string, err error) {
	report.Failures++
	s.log.Error("sweep item failed",
		zap.String("sweep", report.Sweep),
		zap.String("step", step),
		zap.Int64("product_id", p.ID),
		zap.String("sku", p.SKU),
		zap.Int64("tenant_id", p.TenantID),
		zap.Error(err),
	)
}

func (s *Service) skipTenant(report *SweepReport, p domain.Product) {
	report.Skipped++
	s.log.Info("no active users for tenant, skipping product",
		zap.String("sweep", report.Sweep),
		zap.Int64("product_id", p.ID),
		zap.Int64("tenant_id", p.TenantID),
	)
}
