package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"grocerystock/internal/domain"
	"grocerystock/internal/stock"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// memStore mirrors the repository semantics closely enough for the workflow
// tests: tenant scoping, conditional increments and locked orders.
type memStore struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	orders   map[int64]domain.Order
	users    map[int64][]domain.User
	nextID   int64

	failCreateOrderFor map[int64]bool
	failCandidates     error
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[int64]domain.Product),
		orders:   make(map[int64]domain.Order),
		users:    make(map[int64][]domain.User),
		nextID:   100,
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) put(p domain.Product) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.id()
	}
	p.Normalize()
	m.products[p.ID] = p
	return p
}

func (m *memStore) CreateProduct(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.TenantID == p.TenantID && existing.SKU == p.SKU {
			return &domain.DuplicateError{Field: "SKU"}
		}
	}
	p.ID = m.id()
	p.IsActive = true
	m.products[p.ID] = *p
	return nil
}

func (m *memStore) UpdateProduct(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[p.ID]
	if !ok || existing.TenantID != p.TenantID {
		return domain.ErrNotFound
	}
	p.CurrentStock = existing.CurrentStock
	p.LastRestocked = existing.LastRestocked
	m.products[p.ID] = *p
	return nil
}

func (m *memStore) GetProduct(_ context.Context, tenantID, id int64) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.TenantID != tenantID {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memStore) DeactivateProduct(_ context.Context, tenantID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.TenantID != tenantID {
		return domain.ErrNotFound
	}
	p.IsActive = false
	m.products[id] = p
	return nil
}

func (m *memStore) IncrementStock(_ context.Context, tenantID, id int64, quantity int, costPrice *decimal.Decimal) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.increment(tenantID, id, quantity, costPrice, true)
}

func (m *memStore) increment(tenantID, id int64, quantity int, costPrice *decimal.Decimal, markRestocked bool) (domain.Product, error) {
	p, ok := m.products[id]
	if !ok || p.TenantID != tenantID {
		return domain.Product{}, domain.ErrNotFound
	}
	if err := stock.CheckCapacity(p, quantity); err != nil {
		return domain.Product{}, err
	}
	p.CurrentStock += quantity
	if costPrice != nil {
		p.CostPrice = *costPrice
	}
	if markRestocked {
		now := time.Now()
		p.LastRestocked = &now
	}
	m.products[id] = p
	return p, nil
}

func (m *memStore) ListReorderCandidates(_ context.Context, tenantID int64) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCandidates != nil {
		return nil, m.failCandidates
	}
	out := make([]domain.Product, 0)
	for _, p := range m.products {
		if p.IsActive && stock.NeedsReorder(p) && (tenantID == 0 || p.TenantID == tenantID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentStock != out[j].CurrentStock {
			return out[i].CurrentStock < out[j].CurrentStock
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) UpsertCatalog(_ context.Context, tenantID int64, products []domain.Product) (int, int, error) {
	var created, updated int
	for _, p := range products {
		p.TenantID = tenantID
		if err := m.CreateProduct(context.Background(), &p); err != nil {
			updated++
			continue
		}
		created++
	}
	return created, updated, nil
}

func (m *memStore) StockAnalytics(_ context.Context, tenantID int64) (domain.StockAnalytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var a domain.StockAnalytics
	for _, p := range m.products {
		if p.TenantID != tenantID || !p.IsActive {
			continue
		}
		a.Overview.TotalProducts++
		a.Overview.TotalItems += p.CurrentStock
	}
	return a, nil
}

func (m *memStore) CreateOrder(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertOrder(o)
}

func (m *memStore) insertOrder(o *domain.Order) error {
	for _, line := range o.Lines {
		if m.failCreateOrderFor[line.ProductID] {
			return fmt.Errorf("insert order for product %d: boom", line.ProductID)
		}
	}
	o.Recalculate()
	o.ID = m.id()
	o.OrderNumber = domain.NewOrderNumber(time.Now())
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	m.orders[o.ID] = *o
	return nil
}

func (m *memStore) CreateOrderWithRestock(_ context.Context, o *domain.Order) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range o.Lines {
		p, ok := m.products[line.ProductID]
		if !ok || p.TenantID != o.TenantID {
			return nil, domain.ErrNotFound
		}
		if err := stock.CheckCapacity(p, line.Quantity); err != nil {
			return nil, err
		}
	}
	restocked := make([]domain.Product, 0, len(o.Lines))
	for _, line := range o.Lines {
		p, err := m.increment(o.TenantID, line.ProductID, line.Quantity, nil, true)
		if err != nil {
			return nil, err
		}
		restocked = append(restocked, p)
	}
	if err := m.insertOrder(o); err != nil {
		return nil, err
	}
	return restocked, nil
}

func (m *memStore) GetOrder(_ context.Context, tenantID, id int64) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.TenantID != tenantID {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (m *memStore) UpdateOrder(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.orders[o.ID]
	if !ok || existing.TenantID != o.TenantID {
		return domain.ErrNotFound
	}
	if existing.Status.Terminal() {
		return domain.ErrOrderLocked
	}
	o.Recalculate()
	m.orders[o.ID] = *o
	return nil
}

func (m *memStore) SetOrderStatus(_ context.Context, tenantID, id int64, status domain.OrderStatus) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.TenantID != tenantID {
		return domain.Order{}, domain.ErrNotFound
	}
	if o.Status.Terminal() {
		return domain.Order{}, domain.ErrOrderLocked
	}
	o.Status = status
	m.orders[id] = o
	return o, nil
}

func (m *memStore) DeliverOrder(_ context.Context, tenantID, id int64) (domain.Order, []domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.TenantID != tenantID {
		return domain.Order{}, nil, domain.ErrNotFound
	}
	if o.Status.Terminal() {
		return domain.Order{}, nil, domain.ErrOrderLocked
	}
	for _, line := range o.Lines {
		if p, ok := m.products[line.ProductID]; ok {
			if err := stock.CheckCapacity(p, line.Quantity); err != nil {
				return domain.Order{}, nil, err
			}
		}
	}
	var restocked []domain.Product
	for _, line := range o.Lines {
		p, err := m.increment(tenantID, line.ProductID, line.Quantity, nil, false)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.Order{}, nil, err
		}
		restocked = append(restocked, p)
	}
	now := time.Now()
	o.Status = domain.OrderDelivered
	o.ActualDeliveryDate = &now
	m.orders[id] = o
	return o, restocked, nil
}

func (m *memStore) RecordPayment(_ context.Context, tenantID, id int64, status domain.PaymentStatus, at time.Time) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.TenantID != tenantID {
		return domain.Order{}, domain.ErrNotFound
	}
	if !domain.PaymentChangeAllowed(o.Status, o.PaymentStatus, status) {
		return domain.Order{}, domain.ErrPaymentLocked
	}
	o.PaymentStatus = status
	if status == domain.PaymentCompleted {
		o.PaymentDate = &at
		if o.Status == domain.OrderPending {
			o.Status = domain.OrderConfirmed
		}
	}
	m.orders[id] = o
	return o, nil
}

func (m *memStore) HasOpenAutomaticOrder(_ context.Context, tenantID, productID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.TenantID != tenantID || o.OrderType != domain.OrderAutomatic || o.Status != domain.OrderPending {
			continue
		}
		for _, line := range o.Lines {
			if line.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memStore) ListActiveUsers(_ context.Context, tenantID int64) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[tenantID], nil
}

func (m *memStore) ordersOfType(t domain.OrderType) []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0)
	for _, o := range m.orders {
		if o.OrderType == t {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type broadcast struct {
	eventType string
	tenantID  int64
	payload   any
}

type memNotifier struct {
	created    []domain.Notification
	alerts     []domain.Notification
	broadcasts []broadcast
	failCreate bool
}

func (n *memNotifier) Create(_ context.Context, notif domain.Notification) (domain.Notification, error) {
	if n.failCreate {
		return domain.Notification{}, errors.New("notification store down")
	}
	notif.ID = int64(len(n.created) + 1)
	n.created = append(n.created, notif)
	return notif, nil
}

func (n *memNotifier) StockAlert(_ context.Context, p domain.Product, u domain.User) (domain.Notification, error) {
	kind := domain.NotificationLowStock
	if stock.StatusOf(p) == domain.StockOutOfStock {
		kind = domain.NotificationOutOfStock
	}
	notif := domain.Notification{TenantID: p.TenantID, RecipientID: u.ID, Type: kind, Data: map[string]any{"productId": p.ID}}
	n.alerts = append(n.alerts, notif)
	return notif, nil
}

func (n *memNotifier) Broadcast(_ context.Context, eventType string, tenantID int64, payload any) {
	n.broadcasts = append(n.broadcasts, broadcast{eventType: eventType, tenantID: tenantID, payload: payload})
}

type countingTrigger struct {
	calls int
}

func (c *countingTrigger) TriggerAutoReorder() { c.calls++ }

func newTestService(t *testing.T, opts Options) (*Service, *memStore, *memNotifier) {
	t.Helper()
	store, notifier := newMemStore(), &memNotifier{}
	svc := New(store, notifier, nil, zap.NewNop(), opts)
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	return svc, store, notifier
}

func grocery(tenantID int64, name string, current, minLevel, maxLevel, reorderQty int, cost string) domain.Product {
	return domain.Product{
		TenantID:        tenantID,
		Name:            name,
		Category:        "pantry",
		SKU:             name + "-SKU",
		Unit:            "piece",
		CurrentStock:    current,
		MinStockLevel:   minLevel,
		MaxStockLevel:   maxLevel,
		CostPrice:       decimal.RequireFromString(cost),
		SellingPrice:    decimal.RequireFromString(cost).Mul(decimal.NewFromInt(2)),
		ReorderQuantity: reorderQty,
		Supplier:        domain.Supplier{Name: "Fresh Farms", Email: "orders@freshfarms.example"},
		IsActive:        true,
	}
}
