package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"grocerystock/internal/domain"
	"grocerystock/internal/events"
	"grocerystock/internal/stock"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var actor = domain.Actor{UserID: 7, TenantID: 1}

func TestCreateProduct_MirrorsMaxOrderQuantity(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	p := grocery(0, "Rice", 10, 5, 80, 20, "1.50")
	p.MaxOrderQuantity = 3
	p.SKU = " rice-1 "

	view, err := svc.CreateProduct(context.Background(), actor, p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.MaxOrderQuantity != 80 {
		t.Fatalf("expected max order quantity 80, got %d", view.MaxOrderQuantity)
	}
	if view.SKU != "RICE-1" || view.TenantID != actor.TenantID {
		t.Fatalf("unexpected product: %+v", view.Product)
	}
	if view.StockStatus != domain.StockInStock {
		t.Fatalf("expected in_stock, got %s", view.StockStatus)
	}
	if view.ProfitMargin == nil || !view.ProfitMargin.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected margin: %v", view.ProfitMargin)
	}

	maxLevel := 40
	updated, err := svc.UpdateProduct(context.Background(), actor, view.ID, ProductPatch{MaxStockLevel: &maxLevel})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.MaxOrderQuantity != 40 {
		t.Fatalf("expected max order quantity 40 after update, got %d", updated.MaxOrderQuantity)
	}
}

func TestCreateProduct_Validation(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	cases := map[string]func(*domain.Product){
		"missing name":     func(p *domain.Product) { p.Name = "" },
		"bad category":     func(p *domain.Product) { p.Category = "toys" },
		"bad unit":         func(p *domain.Product) { p.Unit = "crate" },
		"negative stock":   func(p *domain.Product) { p.CurrentStock = -1 },
		"negative price":   func(p *domain.Product) { p.CostPrice = decimal.NewFromInt(-1) },
		"zero reorder":     func(p *domain.Product) { p.ReorderQuantity = 0 },
		"supplier email":   func(p *domain.Product) { p.Supplier.Email = "not-an-email" },
		"missing supplier": func(p *domain.Product) { p.Supplier.Name = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := grocery(0, "Oats", 10, 5, 50, 10, "2.00")
			mutate(&p)
			_, err := svc.CreateProduct(context.Background(), actor, p)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateProduct_MinAboveMaxIsAccepted(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	view, err := svc.CreateProduct(context.Background(), actor, grocery(0, "Flour", 10, 20, 10, 5, "1.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.StockStatus != domain.StockLow {
		t.Fatalf("expected low_stock when min >= max, got %s", view.StockStatus)
	}
}

func TestProductView_ZeroCostHasNoMargin(t *testing.T) {
	view := NewProductView(grocery(1, "Sample", 10, 5, 50, 10, "0"))
	if view.ProfitMargin != nil {
		t.Fatalf("expected nil margin, got %v", view.ProfitMargin)
	}
}

func TestRestock_IncrementsWithinCapacity(t *testing.T) {
	svc, store, notifier := newTestService(t, Options{})
	trigger := &countingTrigger{}
	svc.SetReorderTrigger(trigger)
	p := store.put(grocery(1, "Beans", 10, 5, 50, 10, "0.80"))

	cost := decimal.RequireFromString("0.90")
	view, err := svc.Restock(context.Background(), actor, p.ID, 15, &cost)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if view.CurrentStock != 25 || view.LastRestocked == nil {
		t.Fatalf("unexpected restock result: %+v", view.Product)
	}
	if !view.CostPrice.Equal(cost) {
		t.Fatalf("expected cost price %s, got %s", cost, view.CostPrice)
	}
	if trigger.calls != 0 {
		t.Fatalf("trigger should not fire above minimum")
	}
	if len(notifier.broadcasts) != 1 || notifier.broadcasts[0].eventType != events.StockUpdated {
		t.Fatalf("unexpected broadcasts: %+v", notifier.broadcasts)
	}
}

func TestRestock_StillLowKicksAutoReorder(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	trigger := &countingTrigger{}
	svc.SetReorderTrigger(trigger)
	p := store.put(grocery(1, "Eggs", 0, 10, 50, 12, "0.20"))

	if _, err := svc.Restock(context.Background(), actor, p.ID, 4, nil); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if trigger.calls != 1 {
		t.Fatalf("expected one auto-reorder kick, got %d", trigger.calls)
	}
}

func TestRestock_RejectsOverCapacity(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	p := store.put(grocery(1, "Tea", 45, 5, 50, 10, "3.00"))

	_, err := svc.Restock(context.Background(), actor, p.ID, 8, nil)
	var capErr *stock.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if capErr.MaxAllowedQuantity() != 5 {
		t.Fatalf("expected max allowed 5, got %d", capErr.MaxAllowedQuantity())
	}
	after, _ := store.GetProduct(context.Background(), 1, p.ID)
	if after.CurrentStock != 45 {
		t.Fatalf("stock changed on rejection: %d", after.CurrentStock)
	}
}

func TestRestock_Validation(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	p := store.put(grocery(1, "Salt", 10, 5, 50, 10, "0.50"))
	negative := decimal.NewFromInt(-2)

	if _, err := svc.Restock(context.Background(), actor, p.ID, 0, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
	if _, err := svc.Restock(context.Background(), actor, p.ID, 1, &negative); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for negative cost, got %v", err)
	}
}

func TestReorder_CreatesConfirmedOrderAndRestocks(t *testing.T) {
	svc, store, notifier := newTestService(t, Options{ExpectedDeliveryDays: 2})
	p := store.put(grocery(1, "Apples", 2, 5, 100, 10, "3.00"))

	res, err := svc.Reorder(context.Background(), actor, p.ID)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if res.Product.CurrentStock != 12 || res.Product.LastRestocked == nil {
		t.Fatalf("unexpected product after reorder: %+v", res.Product.Product)
	}
	o := res.Order
	if o.Status != domain.OrderConfirmed || o.OrderType != domain.OrderManual || o.PaymentStatus != domain.PaymentPending {
		t.Fatalf("unexpected order state: %+v", o)
	}
	if !o.TotalAmount.Equal(decimal.RequireFromString("30")) || o.CreatedBy != actor.UserID {
		t.Fatalf("unexpected order totals: %+v", o)
	}
	if o.ExpectedDeliveryDate == nil || o.ExpectedDeliveryDate.Sub(svc.now()).Hours() != 48 {
		t.Fatalf("unexpected expected delivery: %v", o.ExpectedDeliveryDate)
	}
	if len(notifier.created) != 1 || notifier.created[0].Title != "Product Reordered" {
		t.Fatalf("unexpected notifications: %+v", notifier.created)
	}
}

func TestReorder_CapacityRejectionLeavesStock(t *testing.T) {
	svc, store, notifier := newTestService(t, Options{})
	p := store.put(grocery(1, "Pears", 95, 5, 100, 10, "2.00"))

	_, err := svc.Reorder(context.Background(), actor, p.ID)
	var capErr *stock.CapacityError
	if !errors.As(err, &capErr) || capErr.MaxAllowedQuantity() != 5 {
		t.Fatalf("expected capacity error with max allowed 5, got %v", err)
	}
	after, _ := store.GetProduct(context.Background(), 1, p.ID)
	if after.CurrentStock != 95 {
		t.Fatalf("stock changed on rejection: %d", after.CurrentStock)
	}
	if len(store.ordersOfType(domain.OrderManual)) != 0 || len(notifier.created) != 0 {
		t.Fatalf("rejected reorder left side effects")
	}
}

func TestReorder_InactiveAndForeignProducts(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	inactive := grocery(1, "Old", 0, 5, 100, 10, "1.00")
	inactive.IsActive = false
	inactive = store.put(inactive)
	foreign := store.put(grocery(2, "Theirs", 0, 5, 100, 10, "1.00"))

	if _, err := svc.Reorder(context.Background(), actor, inactive.ID); !errors.Is(err, domain.ErrInactiveProduct) {
		t.Fatalf("expected inactive error, got %v", err)
	}
	if _, err := svc.Reorder(context.Background(), actor, foreign.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for other tenant, got %v", err)
	}
}

func TestReorder_NotificationFailureDoesNotFail(t *testing.T) {
	svc, store, notifier := newTestService(t, Options{})
	notifier.failCreate = true
	p := store.put(grocery(1, "Kale", 1, 5, 100, 10, "1.00"))

	if _, err := svc.Reorder(context.Background(), actor, p.ID); err != nil {
		t.Fatalf("reorder should succeed when notification fails: %v", err)
	}
}

func TestBulkReorder_PartialFailure(t *testing.T) {
	svc, store, notifier := newTestService(t, Options{})
	first := store.put(grocery(1, "Cheese", 1, 5, 100, 10, "4.00"))
	inactive := grocery(1, "Yogurt", 1, 5, 100, 10, "1.00")
	inactive.IsActive = false
	inactive = store.put(inactive)
	third := store.put(grocery(1, "Butter", 3, 5, 100, 10, "2.50"))

	res, err := svc.BulkReorder(context.Background(), actor, []int64{first.ID, inactive.ID, third.ID})
	if err != nil {
		t.Fatalf("bulk reorder: %v", err)
	}
	if len(res.Results) != 2 || len(res.Errors) != 1 {
		t.Fatalf("expected 2 successes and 1 error, got %+v", res)
	}
	if res.Errors[0].ProductID != inactive.ID || res.Errors[0].Error != "Product not found or inactive" {
		t.Fatalf("unexpected error entry: %+v", res.Errors[0])
	}
	if len(notifier.created) != 1 || notifier.created[0].Title != "Bulk Reorder Completed" {
		t.Fatalf("expected one summary notification, got %+v", notifier.created)
	}
	if got := notifier.created[0].Data["totalProducts"]; got != 2 {
		t.Fatalf("unexpected summary count: %v", got)
	}
}

func TestBulkReorder_CapacityDetails(t *testing.T) {
	svc, store, notifier := newTestService(t, Options{})
	full := store.put(grocery(1, "Jam", 95, 5, 100, 10, "2.00"))

	res, err := svc.BulkReorder(context.Background(), actor, []int64{full.ID})
	if err != nil {
		t.Fatalf("bulk reorder: %v", err)
	}
	if len(res.Results) != 0 || len(res.Errors) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	e := res.Errors[0]
	if e.MaxAllowedQuantity == nil || *e.MaxAllowedQuantity != 5 || *e.CurrentStock != 95 {
		t.Fatalf("unexpected capacity details: %+v", e)
	}
	if len(notifier.created) != 0 {
		t.Fatalf("no summary expected without successes")
	}
}

func TestBulkReorder_RequiresIDs(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	if _, err := svc.BulkReorder(context.Background(), actor, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestImportCatalog_RejectsRepeatedSKU(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	rows := []domain.Product{grocery(0, "A", 1, 1, 10, 1, "1"), grocery(0, "A", 2, 1, 10, 1, "1")}

	if _, _, err := svc.ImportCatalog(context.Background(), 1, rows); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReorderCandidates_SuggestsQuantityAndCost(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	store.put(grocery(1, "Low", 3, 5, 100, 10, "1.25"))
	store.put(grocery(1, "Out", 0, 5, 100, 4, "2.00"))
	store.put(grocery(1, "Fine", 50, 5, 100, 4, "2.00"))
	store.put(grocery(2, "Elsewhere", 0, 5, 100, 4, "2.00"))

	got, err := svc.ReorderCandidates(context.Background(), actor)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Name != "Out" || got[0].StockStatus != domain.StockOutOfStock {
		t.Fatalf("expected lowest stock first, got %+v", got[0])
	}
	if got[1].SuggestedReorderQuantity != 10 || !got[1].EstimatedCost.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected suggestion: %+v", got[1])
	}
}

// restockDuringRead lands a restock between the product read and the write
// of an update.
type restockDuringRead struct {
	*memStore
	quantity int
}

func (s *restockDuringRead) GetProduct(ctx context.Context, tenantID, id int64) (domain.Product, error) {
	p, err := s.memStore.GetProduct(ctx, tenantID, id)
	if err != nil {
		return p, err
	}
	if _, err := s.memStore.IncrementStock(ctx, tenantID, id, s.quantity, nil); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func TestUpdateProduct_KeepsConcurrentRestock(t *testing.T) {
	_, store, notifier := newTestService(t, Options{})
	flour := store.put(grocery(1, "Flour", 10, 5, 100, 20, "0.80"))
	svc := New(&restockDuringRead{memStore: store, quantity: 30}, notifier, nil, zap.NewNop(), Options{})

	name := "Bread Flour"
	view, err := svc.UpdateProduct(context.Background(), actor, flour.ID, ProductPatch{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, _ := store.GetProduct(context.Background(), actor.TenantID, flour.ID)
	if stored.CurrentStock != 40 || stored.Name != name {
		t.Fatalf("expected stock 40 and renamed product, got stock=%d name=%q", stored.CurrentStock, stored.Name)
	}
	if view.CurrentStock != 40 {
		t.Fatalf("returned view carries stale stock %d", view.CurrentStock)
	}
}

func TestUpdateProduct_CannotSetStock(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	sugar := store.put(grocery(1, "Sugar", 10, 5, 100, 20, "1.00"))

	var patch ProductPatch
	dec := json.NewDecoder(strings.NewReader(`{"current_stock": 500}`))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err == nil {
		t.Fatalf("expected current_stock to be rejected as an unknown field")
	}

	maxLevel := 60
	if _, err := svc.UpdateProduct(context.Background(), actor, sugar.ID, ProductPatch{MaxStockLevel: &maxLevel}); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, _ := store.GetProduct(context.Background(), actor.TenantID, sugar.ID)
	if stored.CurrentStock != 10 {
		t.Fatalf("expected stock to stay 10, got %d", stored.CurrentStock)
	}
}
