// Package notify records notifications and fans them out to email and the
// real-time event stream.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"grocerystock/internal/domain"
	"grocerystock/internal/events"
	"grocerystock/internal/mail"
	"grocerystock/internal/metrics"
	"grocerystock/internal/stock"

	"go.uber.org/zap"
)

type Store interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
}

type Notifier struct {
	store   Store
	mailer  mail.Mailer
	events  events.Publisher
	metrics *metrics.Registry
	log     *zap.Logger
}

func New(store Store, mailer mail.Mailer, publisher events.Publisher, m *metrics.Registry, log *zap.Logger) *Notifier {
	return &Notifier{store: store, mailer: mailer, events: publisher, metrics: m, log: log}
}

// Create persists n and broadcasts it. Only the store write can fail the call.
func (n *Notifier) Create(ctx context.Context, notif domain.Notification) (domain.Notification, error) {
	if notif.Priority == "" {
		notif.Priority = domain.PriorityMedium
	}
	if err := n.store.CreateNotification(ctx, &notif); err != nil {
		return domain.Notification{}, fmt.Errorf("create %s notification: %w", notif.Type, err)
	}
	n.metrics.NotificationCreated(string(notif.Type))
	n.Broadcast(ctx, events.NewNotification, notif.TenantID, map[string]any{
		"userId":       notif.RecipientID,
		"notification": notif,
	})
	return notif, nil
}

// Broadcast is fire-and-forget.
func (n *Notifier) Broadcast(ctx context.Context, eventType string, tenantID int64, payload any) {
	if n.events == nil {
		return
	}
	if err := n.events.Publish(ctx, events.Event{Type: eventType, TenantID: tenantID, Payload: payload}); err != nil {
		n.log.Warn("broadcast failed", zap.String("event", eventType), zap.Error(err))
	}
}

// StockAlert notifies u that p is low or out of stock, in-app and by email.
// Email failures are logged and do not fail the alert.
func (n *Notifier) StockAlert(ctx context.Context, p domain.Product, u domain.User) (domain.Notification, error) {
	alert := stockAlertFor(p)
	notif, err := n.Create(ctx, domain.Notification{
		TenantID:    p.TenantID,
		RecipientID: u.ID,
		Title:       alert.title,
		Message:     alert.message,
		Type:        alert.kind,
		Priority:    alert.priority,
		Data:        alert.data,
	})
	if err != nil {
		return domain.Notification{}, err
	}

	if u.Email == "" {
		return notif, nil
	}
	html, err := renderAlertEmail(alert, p, u)
	if err != nil {
		n.log.Error("render stock alert email", zap.Int64("product_id", p.ID), zap.Error(err))
		return notif, nil
	}
	if err := n.mailer.Send(ctx, mail.Message{
		To:      u.Email,
		ToName:  u.Name,
		Subject: alert.title,
		Text:    alert.message,
		HTML:    html,
	}); err != nil {
		n.log.Warn("stock alert email failed",
			zap.Int64("product_id", p.ID),
			zap.Int64("user_id", u.ID),
			zap.Error(err),
		)
	}
	return notif, nil
}

type stockAlert struct {
	kind     domain.NotificationType
	priority domain.Priority
	title    string
	message  string
	data     map[string]any
	outOf    bool
}

func stockAlertFor(p domain.Product) stockAlert {
	if stock.StatusOf(p) == domain.StockOutOfStock {
		return stockAlert{
			kind:     domain.NotificationOutOfStock,
			priority: domain.PriorityUrgent,
			title:    "Out of Stock Alert",
			message:  fmt.Sprintf("Product %q (SKU: %s) is out of stock!", p.Name, p.SKU),
			data: map[string]any{
				"productId":    p.ID,
				"productName":  p.Name,
				"currentStock": p.CurrentStock,
			},
			outOf: true,
		}
	}
	return stockAlert{
		kind:     domain.NotificationLowStock,
		priority: domain.PriorityHigh,
		title:    "Low Stock Alert",
		message: fmt.Sprintf(
			"Product %q (SKU: %s) is running low. Current stock: %d %s, Minimum required: %d %s",
			p.Name, p.SKU, p.CurrentStock, p.Unit, p.MinStockLevel, p.Unit,
		),
		data: map[string]any{
			"productId":     p.ID,
			"productName":   p.Name,
			"currentStock":  p.CurrentStock,
			"minStockLevel": p.MinStockLevel,
		},
	}
}

var alertEmail = template.Must(template.New("alert").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>{{.Title}}</h2>
  <p>Dear {{.User.Name}},</p>
  {{if .OutOfStock}}<p>The following product is now out of stock:</p>{{else}}<p>The following product is running low on stock:</p>{{end}}
  <h3>{{.Product.Name}}</h3>
  <p><strong>SKU:</strong> {{.Product.SKU}}</p>
  <p><strong>Current Stock:</strong> {{.Product.CurrentStock}} {{.Product.Unit}}</p>
  {{if not .OutOfStock}}<p><strong>Minimum Required:</strong> {{.Product.MinStockLevel}} {{.Product.Unit}}</p>{{end}}
  <p><strong>Category:</strong> {{.Product.Category}}</p>
  {{if .OutOfStock}}<p><strong>Action Required:</strong> Please place an urgent order to restock this item immediately.</p>{{else}}<p>Please consider placing an order to restock this item.</p>{{end}}
</div>`))

func renderAlertEmail(a stockAlert, p domain.Product, u domain.User) (string, error) {
	var buf bytes.Buffer
	err := alertEmail.Execute(&buf, map[string]any{
		"Title":      a.title,
		"User":       u,
		"Product":    p,
		"OutOfStock": a.outOf,
	})
	return buf.String(), err
}
