package stock

import (
	"errors"
	"testing"

	"grocerystock/internal/domain"

	"github.com/shopspring/decimal"
)

func TestClassify_Precedence(t *testing.T) {
	cases := []struct {
		name              string
		current, min, max int
		want              domain.StockStatus
	}{
		{"zero is out of stock", 0, 5, 100, domain.StockOutOfStock},
		{"negative is out of stock", -3, 5, 100, domain.StockOutOfStock},
		{"out of stock beats low when min is zero", 0, 0, 0, domain.StockOutOfStock},
		{"at min is low", 5, 5, 100, domain.StockLow},
		{"below min is low", 3, 5, 100, domain.StockLow},
		{"at max is overstock", 100, 5, 100, domain.StockOverstock},
		{"above max is overstock", 150, 5, 100, domain.StockOverstock},
		{"between is in stock", 50, 5, 100, domain.StockInStock},
		{"min above max: low beats overstock", 8, 10, 5, domain.StockLow},
		{"min equals max: low beats overstock", 10, 10, 10, domain.StockLow},
		{"min above max, above both", 12, 10, 5, domain.StockOverstock},
	}
	for _, tc := range cases {
		if got := Classify(tc.current, tc.min, tc.max); got != tc.want {
			t.Fatalf("%s: Classify(%d,%d,%d) = %s, want %s", tc.name, tc.current, tc.min, tc.max, got, tc.want)
		}
	}
}

func TestClassify_ExactlyOneStatusOverGrid(t *testing.T) {
	valid := map[domain.StockStatus]bool{
		domain.StockOutOfStock: true, domain.StockLow: true,
		domain.StockOverstock: true, domain.StockInStock: true,
	}
	for current := -1; current <= 12; current++ {
		for min := 0; min <= 10; min++ {
			for max := 0; max <= 10; max++ {
				got := Classify(current, min, max)
				if !valid[got] {
					t.Fatalf("unexpected status %q", got)
				}
				var want domain.StockStatus
				switch {
				case current <= 0:
					want = domain.StockOutOfStock
				case current <= min:
					want = domain.StockLow
				case current >= max:
					want = domain.StockOverstock
				default:
					want = domain.StockInStock
				}
				if got != want {
					t.Fatalf("Classify(%d,%d,%d) = %s, want %s", current, min, max, got, want)
				}
			}
		}
	}
}

func TestProfitMargin(t *testing.T) {
	margin, ok := ProfitMargin(decimal.RequireFromString("4.50"), decimal.RequireFromString("3.00"))
	if !ok {
		t.Fatalf("margin should be defined")
	}
	if !margin.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("margin: got %s", margin)
	}

	margin, ok = ProfitMargin(decimal.RequireFromString("1"), decimal.RequireFromString("3"))
	if !ok || !margin.Equal(decimal.RequireFromString("-66.67")) {
		t.Fatalf("rounded margin: got %s ok=%v", margin, ok)
	}

	if _, ok := ProfitMargin(decimal.NewFromInt(5), decimal.Zero); ok {
		t.Fatalf("zero cost must yield an undefined margin")
	}
}

func TestPlanLine_WithinCapacity(t *testing.T) {
	p := domain.Product{ID: 7, CurrentStock: 2, MaxStockLevel: 100, CostPrice: decimal.RequireFromString("3.00")}
	line, err := PlanLine(p, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.ProductID != 7 || line.Quantity != 10 {
		t.Fatalf("unexpected line: %+v", line)
	}
	if !line.UnitPrice.Equal(decimal.RequireFromString("3")) || !line.TotalPrice.Equal(decimal.RequireFromString("30")) {
		t.Fatalf("unexpected prices: %+v", line)
	}

	// Filling exactly to the ceiling is allowed.
	if _, err := PlanLine(domain.Product{CurrentStock: 90, MaxStockLevel: 100}, 10); err != nil {
		t.Fatalf("exact fill should pass: %v", err)
	}
}

func TestPlanLine_CapacityExceeded(t *testing.T) {
	p := domain.Product{ID: 3, Name: "Milk", CurrentStock: 95, MaxStockLevel: 100}
	_, err := PlanLine(p, 10)
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("want CapacityError, got %v", err)
	}
	if capErr.MaxAllowedQuantity() != 5 {
		t.Fatalf("max allowed: got %d", capErr.MaxAllowedQuantity())
	}
	payload := capErr.Payload()
	if payload["currentStock"] != 95 || payload["maxStockLevel"] != 100 ||
		payload["requestedQuantity"] != 10 || payload["maxAllowedQuantity"] != 5 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload["message"] == "" {
		t.Fatalf("payload needs a message")
	}
}

func TestPlanLine_RejectsNonPositiveQuantity(t *testing.T) {
	for _, qty := range []int{0, -4} {
		_, err := PlanLine(domain.Product{MaxStockLevel: 100}, qty)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("quantity %d: want validation error, got %v", qty, err)
		}
	}
}

func TestDraftLine_IgnoresCeiling(t *testing.T) {
	p := domain.Product{CurrentStock: 99, MaxStockLevel: 100, ReorderQuantity: 10, CostPrice: decimal.NewFromInt(2)}
	line := DraftLine(p)
	if line.Quantity != 10 || !line.TotalPrice.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected draft line: %+v", line)
	}
}

func TestGroupBySupplier(t *testing.T) {
	products := []domain.Product{
		{ID: 1, TenantID: 1, ReorderQuantity: 5, CostPrice: decimal.NewFromInt(1), Supplier: domain.Supplier{Name: "Farm", Email: "farm@example.com"}},
		{ID: 2, TenantID: 1, ReorderQuantity: 2, CostPrice: decimal.NewFromInt(4), Supplier: domain.Supplier{Name: "Dairy", Email: "dairy@example.com"}},
		{ID: 3, TenantID: 1, ReorderQuantity: 1, CostPrice: decimal.NewFromInt(3), Supplier: domain.Supplier{Name: "Farm", Email: "FARM@example.com"}},
		{ID: 4, TenantID: 2, ReorderQuantity: 1, CostPrice: decimal.NewFromInt(3), Supplier: domain.Supplier{Name: "Farm", Email: "farm@example.com"}},
	}
	groups := GroupBySupplier(products)
	if len(groups) != 3 {
		t.Fatalf("want 3 groups, got %d", len(groups))
	}
	first := groups[0]
	if first.Key.TenantID != 1 || first.Key.SupplierEmail != "farm@example.com" {
		t.Fatalf("unexpected first key: %+v", first.Key)
	}
	if len(first.Lines) != 2 || first.Lines[0].ProductID != 1 || first.Lines[1].ProductID != 3 {
		t.Fatalf("unexpected first group lines: %+v", first.Lines)
	}
	if groups[1].Supplier.Name != "Dairy" || groups[2].Key.TenantID != 2 {
		t.Fatalf("unexpected group order: %+v", groups)
	}
}
