package repository

import (
	"context"
	"fmt"

	"grocerystock/internal/domain"

	"github.com/jackc/pgx/v5"
)

// UpsertCatalog inserts or refreshes products by (tenant, SKU). Stock counts
// of existing rows are overwritten by the import.
func (r *Repository) UpsertCatalog(ctx context.Context, tenantID int64, products []domain.Product) (int, int, error) {
	if len(products) == 0 {
		return 0, 0, nil
	}

	created, updated := 0, 0
	err := r.inTx(ctx, "catalog import", func(tx pgx.Tx) error {
		for _, p := range products {
			var inserted bool
			err := tx.QueryRow(ctx, `
				INSERT INTO products (
					tenant_id, name, description, category, sku, unit,
					current_stock, min_stock_level, max_stock_level,
					cost_price, selling_price, reorder_quantity, max_order_quantity,
					supplier_name, supplier_email, supplier_phone
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
				ON CONFLICT ON CONSTRAINT products_tenant_sku_key
				DO UPDATE SET
					name = EXCLUDED.name,
					description = EXCLUDED.description,
					category = EXCLUDED.category,
					unit = EXCLUDED.unit,
					current_stock = EXCLUDED.current_stock,
					min_stock_level = EXCLUDED.min_stock_level,
					max_stock_level = EXCLUDED.max_stock_level,
					cost_price = EXCLUDED.cost_price,
					selling_price = EXCLUDED.selling_price,
					reorder_quantity = EXCLUDED.reorder_quantity,
					max_order_quantity = EXCLUDED.max_order_quantity,
					supplier_name = EXCLUDED.supplier_name,
					supplier_email = EXCLUDED.supplier_email,
					supplier_phone = EXCLUDED.supplier_phone,
					is_active = TRUE,
					updated_at = NOW()
				RETURNING (xmax = 0)
			`,
				tenantID, p.Name, p.Description, p.Category, p.SKU, p.Unit,
				p.CurrentStock, p.MinStockLevel, p.MaxStockLevel,
				p.CostPrice, p.SellingPrice, p.ReorderQuantity, p.MaxOrderQuantity,
				p.Supplier.Name, p.Supplier.Email, p.Supplier.Phone,
			).Scan(&inserted)
			if err != nil {
				return fmt.Errorf("upsert product %q: %w", p.SKU, mapProductWriteError(err))
			}
			if inserted {
				created++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

// StockAnalytics summarises the active catalogue of one tenant.
func (r *Repository) StockAnalytics(ctx context.Context, tenantID int64) (domain.StockAnalytics, error) {
	var out domain.StockAnalytics
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*)::int,
			COUNT(*) FILTER (WHERE current_stock <= min_stock_level)::int,
			COUNT(*) FILTER (WHERE current_stock <= 0)::int,
			COUNT(*) FILTER (WHERE current_stock >= max_stock_level)::int,
			COALESCE(SUM(current_stock * cost_price), 0),
			COALESCE(SUM(current_stock), 0)::int
		FROM products
		WHERE tenant_id = $1 AND is_active
	`, tenantID).Scan(
		&out.Overview.TotalProducts,
		&out.Overview.LowStockProducts,
		&out.Overview.OutOfStockProducts,
		&out.Overview.OverstockProducts,
		&out.Overview.TotalInventoryValue,
		&out.Overview.TotalItems,
	)
	if err != nil {
		return domain.StockAnalytics{}, fmt.Errorf("stock overview: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT
			category,
			COUNT(*)::int AS product_count,
			COALESCE(SUM(current_stock), 0)::int,
			COALESCE(SUM(current_stock * cost_price), 0),
			COUNT(*) FILTER (WHERE current_stock <= min_stock_level)::int
		FROM products
		WHERE tenant_id = $1 AND is_active
		GROUP BY category
		ORDER BY product_count DESC, category ASC
	`, tenantID)
	if err != nil {
		return domain.StockAnalytics{}, fmt.Errorf("category stats: %w", err)
	}
	defer rows.Close()

	out.Categories = make([]domain.CategoryStats, 0)
	for rows.Next() {
		var c domain.CategoryStats
		if err := rows.Scan(&c.Category, &c.Count, &c.TotalStock, &c.TotalValue, &c.LowStockCount); err != nil {
			return domain.StockAnalytics{}, fmt.Errorf("scan category stats: %w", err)
		}
		out.Categories = append(out.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return domain.StockAnalytics{}, fmt.Errorf("iterate category stats: %w", err)
	}
	return out, nil
}
