package service

import (
	"context"
	"time"

	"grocerystock/internal/domain"
	"grocerystock/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store is the persistence the stock workflow needs. Lookups are scoped to a
// tenant; tenantID 0 in ListReorderCandidates means every tenant.
type Store interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, tenantID, id int64) (domain.Product, error)
	DeactivateProduct(ctx context.Context, tenantID, id int64) error
	IncrementStock(ctx context.Context, tenantID, id int64, quantity int, costPrice *decimal.Decimal) (domain.Product, error)
	ListReorderCandidates(ctx context.Context, tenantID int64) ([]domain.Product, error)
	UpsertCatalog(ctx context.Context, tenantID int64, products []domain.Product) (int, int, error)
	StockAnalytics(ctx context.Context, tenantID int64) (domain.StockAnalytics, error)

	CreateOrder(ctx context.Context, o *domain.Order) error
	CreateOrderWithRestock(ctx context.Context, o *domain.Order) ([]domain.Product, error)
	GetOrder(ctx context.Context, tenantID, id int64) (domain.Order, error)
	UpdateOrder(ctx context.Context, o *domain.Order) error
	SetOrderStatus(ctx context.Context, tenantID, id int64, status domain.OrderStatus) (domain.Order, error)
	DeliverOrder(ctx context.Context, tenantID, id int64) (domain.Order, []domain.Product, error)
	RecordPayment(ctx context.Context, tenantID, id int64, status domain.PaymentStatus, at time.Time) (domain.Order, error)
	HasOpenAutomaticOrder(ctx context.Context, tenantID, productID int64) (bool, error)

	ListActiveUsers(ctx context.Context, tenantID int64) ([]domain.User, error)
}

type Notifier interface {
	Create(ctx context.Context, n domain.Notification) (domain.Notification, error)
	StockAlert(ctx context.Context, p domain.Product, u domain.User) (domain.Notification, error)
	Broadcast(ctx context.Context, eventType string, tenantID int64, payload any)
}

// ReorderTrigger schedules an out-of-band auto-reorder sweep.
type ReorderTrigger interface {
	TriggerAutoReorder()
}

type Options struct {
	ExpectedDeliveryDays int
	SuppressDuplicates   bool
}

type Service struct {
	store    Store
	notifier Notifier
	metrics  *metrics.Registry
	log      *zap.Logger
	opts     Options
	trigger  ReorderTrigger
	now      func() time.Time
}

func New(store Store, notifier Notifier, m *metrics.Registry, log *zap.Logger, opts Options) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		metrics:  m,
		log:      log,
		opts:     opts,
		now:      time.Now,
	}
}

// SetReorderTrigger wires the scheduler in after both are constructed.
func (s *Service) SetReorderTrigger(t ReorderTrigger) {
	s.trigger = t
}

func (s *Service) expectedDelivery() *time.Time {
	at := s.now().Add(time.Duration(s.opts.ExpectedDeliveryDays) * 24 * time.Hour)
	return &at
}

func stockPayload(p domain.Product) map[string]any {
	return map[string]any{
		"productId":     p.ID,
		"currentStock":  p.CurrentStock,
		"lastRestocked": p.LastRestocked,
	}
}
