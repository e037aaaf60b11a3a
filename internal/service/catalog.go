package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"grocerystock/internal/domain"
	"grocerystock/internal/stock"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	categories = map[string]bool{
		"fruits": true, "vegetables": true, "dairy": true, "meat": true, "seafood": true, "bakery": true,
		"pantry": true, "beverages": true, "snacks": true, "canned": true, "frozen": true, "other": true,
	}
	units = map[string]bool{
		"kg": true, "g": true, "lb": true, "oz": true, "liter": true, "ml": true,
		"piece": true, "box": true, "pack": true, "bag": true, "bottle": true, "dozen": true,
	}
)

// ProductView is a product with its derived stock fields. ProfitMargin is nil
// when the cost price is zero.
type ProductView struct {
	domain.Product
	StockStatus  domain.StockStatus `json:"stock_status"`
	ProfitMargin *decimal.Decimal   `json:"profit_margin"`
}

func NewProductView(p domain.Product) ProductView {
	view := ProductView{Product: p, StockStatus: stock.StatusOf(p)}
	if margin, ok := stock.ProfitMargin(p.SellingPrice, p.CostPrice); ok {
		view.ProfitMargin = &margin
	}
	return view
}

// ProductPatch carries the fields a caller wants to change; nil means keep.
// Stock levels move only through restock, reorder and delivery.
type ProductPatch struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	Category        *string          `json:"category"`
	SKU             *string          `json:"sku"`
	Barcode         *string          `json:"barcode"`
	Unit            *string          `json:"unit"`
	MinStockLevel   *int             `json:"min_stock_level"`
	MaxStockLevel   *int             `json:"max_stock_level"`
	CostPrice       *decimal.Decimal `json:"cost_price"`
	SellingPrice    *decimal.Decimal `json:"selling_price"`
	ReorderQuantity *int             `json:"reorder_quantity"`
	Supplier        *domain.Supplier `json:"supplier"`
	IsActive        *bool            `json:"is_active"`
	ExpiryDate      *time.Time       `json:"expiry_date"`
}

func (s *Service) CreateProduct(ctx context.Context, actor domain.Actor, p domain.Product) (ProductView, error) {
	p.TenantID = actor.TenantID
	p.Normalize()
	if err := s.validateProduct(p); err != nil {
		return ProductView{}, err
	}
	if err := s.store.CreateProduct(ctx, &p); err != nil {
		return ProductView{}, err
	}
	return NewProductView(p), nil
}

func (s *Service) UpdateProduct(ctx context.Context, actor domain.Actor, id int64, patch ProductPatch) (ProductView, error) {
	p, err := s.store.GetProduct(ctx, actor.TenantID, id)
	if err != nil {
		return ProductView{}, err
	}
	patch.apply(&p)
	p.Normalize()
	if err := s.validateProduct(p); err != nil {
		return ProductView{}, err
	}
	if err := s.store.UpdateProduct(ctx, &p); err != nil {
		return ProductView{}, err
	}
	return NewProductView(p), nil
}

func (s *Service) DeleteProduct(ctx context.Context, actor domain.Actor, id int64) error {
	return s.store.DeactivateProduct(ctx, actor.TenantID, id)
}

func (s *Service) GetProduct(ctx context.Context, actor domain.Actor, id int64) (ProductView, error) {
	p, err := s.store.GetProduct(ctx, actor.TenantID, id)
	if err != nil {
		return ProductView{}, err
	}
	return NewProductView(p), nil
}

// ImportCatalog validates every row before writing any of them.
func (s *Service) ImportCatalog(ctx context.Context, tenantID int64, products []domain.Product) (int, int, error) {
	if len(products) == 0 {
		return 0, 0, domain.Invalid("import file has no data rows")
	}
	seen := make(map[string]int, len(products))
	for i := range products {
		p := &products[i]
		p.TenantID = tenantID
		p.Normalize()
		if err := s.validateProduct(*p); err != nil {
			return 0, 0, fmt.Errorf("row %d (%s): %w", i+1, p.SKU, err)
		}
		if first, dup := seen[p.SKU]; dup {
			return 0, 0, domain.Invalid("row %d repeats SKU %s from row %d", i+1, p.SKU, first)
		}
		seen[p.SKU] = i + 1
	}
	return s.store.UpsertCatalog(ctx, tenantID, products)
}

func (p ProductPatch) apply(dst *domain.Product) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Category != nil {
		dst.Category = *p.Category
	}
	if p.SKU != nil {
		dst.SKU = *p.SKU
	}
	if p.Barcode != nil {
		dst.Barcode = p.Barcode
	}
	if p.Unit != nil {
		dst.Unit = *p.Unit
	}
	if p.MinStockLevel != nil {
		dst.MinStockLevel = *p.MinStockLevel
	}
	if p.MaxStockLevel != nil {
		dst.MaxStockLevel = *p.MaxStockLevel
	}
	if p.CostPrice != nil {
		dst.CostPrice = *p.CostPrice
	}
	if p.SellingPrice != nil {
		dst.SellingPrice = *p.SellingPrice
	}
	if p.ReorderQuantity != nil {
		dst.ReorderQuantity = *p.ReorderQuantity
	}
	if p.Supplier != nil {
		dst.Supplier = *p.Supplier
	}
	if p.IsActive != nil {
		dst.IsActive = *p.IsActive
	}
	if p.ExpiryDate != nil {
		dst.ExpiryDate = p.ExpiryDate
	}
}

func (s *Service) validateProduct(p domain.Product) error {
	switch {
	case p.Name == "":
		return domain.Invalid("product name is required")
	case p.SKU == "":
		return domain.Invalid("SKU is required")
	case !categories[p.Category]:
		return domain.Invalid("invalid category %q", p.Category)
	case !units[p.Unit]:
		return domain.Invalid("invalid unit %q", p.Unit)
	case p.CurrentStock < 0:
		return domain.Invalid("current stock must be a non-negative integer")
	case p.MinStockLevel < 0:
		return domain.Invalid("minimum stock level must be a non-negative integer")
	case p.MaxStockLevel < 0:
		return domain.Invalid("maximum stock level must be a non-negative integer")
	case p.CostPrice.IsNegative():
		return domain.Invalid("cost price must be a non-negative number")
	case p.SellingPrice.IsNegative():
		return domain.Invalid("selling price must be a non-negative number")
	case p.ReorderQuantity < 1:
		return domain.Invalid("reorder quantity must be at least 1")
	case p.Supplier.Name == "":
		return domain.Invalid("supplier name is required")
	}
	if _, err := mail.ParseAddress(p.Supplier.Email); err != nil || strings.ContainsAny(p.Supplier.Email, "<> ") {
		return domain.Invalid("supplier email must be valid")
	}
	if p.MinStockLevel > p.MaxStockLevel {
		s.log.Warn("minimum stock level exceeds maximum",
			zap.String("sku", p.SKU),
			zap.Int64("tenant_id", p.TenantID),
			zap.Int("min_stock_level", p.MinStockLevel),
			zap.Int("max_stock_level", p.MaxStockLevel),
		)
	}
	return nil
}
