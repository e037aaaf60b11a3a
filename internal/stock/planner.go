package stock

import (
	"fmt"

	"grocerystock/internal/domain"

	"github.com/shopspring/decimal"
)

// CapacityError rejects a stock increment that would push a product past its
// maximum stock level.
type CapacityError struct {
	ProductID         int64
	ProductName       string
	CurrentStock      int
	MaxStockLevel     int
	RequestedQuantity int
}

func (e *CapacityError) MaxAllowedQuantity() int {
	return e.MaxStockLevel - e.CurrentStock
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf(
		"adding %d units would exceed the maximum stock level of %d. Current stock: %d, maximum allowed quantity: %d",
		e.RequestedQuantity, e.MaxStockLevel, e.CurrentStock, e.MaxAllowedQuantity(),
	)
}

// Payload is the rejection body handed back to callers.
func (e *CapacityError) Payload() map[string]any {
	return map[string]any{
		"message":            e.Error(),
		"currentStock":       e.CurrentStock,
		"maxStockLevel":      e.MaxStockLevel,
		"requestedQuantity":  e.RequestedQuantity,
		"maxAllowedQuantity": e.MaxAllowedQuantity(),
	}
}

// CheckCapacity fails when currentStock + quantity exceeds maxStockLevel.
func CheckCapacity(p domain.Product, quantity int) error {
	if p.CurrentStock+quantity > p.MaxStockLevel {
		return &CapacityError{
			ProductID:         p.ID,
			ProductName:       p.Name,
			CurrentStock:      p.CurrentStock,
			MaxStockLevel:     p.MaxStockLevel,
			RequestedQuantity: quantity,
		}
	}
	return nil
}

// PlanLine builds a capacity-checked order line for quantity units of p.
func PlanLine(p domain.Product, quantity int) (domain.OrderLine, error) {
	if quantity < 1 {
		return domain.OrderLine{}, domain.Invalid("quantity must be a positive integer")
	}
	if err := CheckCapacity(p, quantity); err != nil {
		return domain.OrderLine{}, err
	}
	return PricedLine(p, quantity), nil
}

// DraftLine sizes a line at the product's reorder quantity without a capacity
// check. Automatic orders are validated against the ceiling on delivery.
func DraftLine(p domain.Product) domain.OrderLine {
	return PricedLine(p, p.ReorderQuantity)
}

// PricedLine prices quantity units of p at its current cost price.
func PricedLine(p domain.Product, quantity int) domain.OrderLine {
	return domain.OrderLine{
		ProductID:  p.ID,
		Quantity:   quantity,
		UnitPrice:  p.CostPrice,
		TotalPrice: p.CostPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}
