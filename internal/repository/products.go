package repository

import (
	"context"
	"fmt"

	"grocerystock/internal/domain"
	"grocerystock/internal/stock"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const productColumns = `
	id,
	tenant_id,
	name,
	description,
	category,
	sku,
	barcode,
	unit,
	current_stock,
	min_stock_level,
	max_stock_level,
	cost_price,
	selling_price,
	reorder_quantity,
	max_order_quantity,
	supplier_name,
	supplier_email,
	supplier_phone,
	supplier_address,
	is_active,
	last_restocked,
	expiry_date,
	created_at,
	updated_at
`

// incrementAttempts bounds retries when the conditional update and the
// follow-up read disagree because of a concurrent writer.
const incrementAttempts = 3

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (
			tenant_id, name, description, category, sku, barcode, unit,
			current_stock, min_stock_level, max_stock_level,
			cost_price, selling_price, reorder_quantity, max_order_quantity,
			supplier_name, supplier_email, supplier_phone, supplier_address,
			is_active, expiry_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, TRUE, $19)
		RETURNING `+productColumns,
		p.TenantID, p.Name, p.Description, p.Category, p.SKU, p.Barcode, p.Unit,
		p.CurrentStock, p.MinStockLevel, p.MaxStockLevel,
		p.CostPrice, p.SellingPrice, p.ReorderQuantity, p.MaxOrderQuantity,
		p.Supplier.Name, p.Supplier.Email, p.Supplier.Phone, p.Supplier.Address,
		p.ExpiryDate,
	)
	created, err := scanProduct(row)
	if err != nil {
		return fmt.Errorf("create product: %w", mapProductWriteError(err))
	}
	*p = created
	return nil
}

// UpdateProduct overwrites the editable fields of an existing product.
// current_stock and last_restocked keep their stored values.
func (r *Repository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	row := r.pool.QueryRow(ctx, `
		UPDATE products
		SET
			name = $3,
			description = $4,
			category = $5,
			sku = $6,
			barcode = $7,
			unit = $8,
			min_stock_level = $9,
			max_stock_level = $10,
			cost_price = $11,
			selling_price = $12,
			reorder_quantity = $13,
			max_order_quantity = $14,
			supplier_name = $15,
			supplier_email = $16,
			supplier_phone = $17,
			supplier_address = $18,
			is_active = $19,
			expiry_date = $20,
			updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+productColumns,
		p.TenantID, p.ID,
		p.Name, p.Description, p.Category, p.SKU, p.Barcode, p.Unit,
		p.MinStockLevel, p.MaxStockLevel,
		p.CostPrice, p.SellingPrice, p.ReorderQuantity, p.MaxOrderQuantity,
		p.Supplier.Name, p.Supplier.Email, p.Supplier.Phone, p.Supplier.Address,
		p.IsActive, p.ExpiryDate,
	)
	updated, err := scanProduct(row)
	if err != nil {
		if notFound(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("update product %d: %w", p.ID, mapProductWriteError(err))
	}
	*p = updated
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, tenantID, id int64) (domain.Product, error) {
	return getProduct(ctx, r.pool, tenantID, id)
}

func getProduct(ctx context.Context, q querier, tenantID, id int64) (domain.Product, error) {
	row := q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	p, err := scanProduct(row)
	if err != nil {
		if notFound(err) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// DeactivateProduct is the catalog delete: the row stays for order history.
func (r *Repository) DeactivateProduct(ctx context.Context, tenantID, id int64) error {
	cmd, err := r.pool.Exec(ctx, `
		UPDATE products SET is_active = FALSE, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	if err != nil {
		return fmt.Errorf("deactivate product %d: %w", id, err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListReorderCandidates returns active products at or below their minimum,
// lowest stock first. tenantID 0 scans every tenant.
func (r *Repository) ListReorderCandidates(ctx context.Context, tenantID int64) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active
			AND current_stock <= min_stock_level
			AND ($1::bigint = 0 OR tenant_id = $1)
		ORDER BY current_stock ASC, id ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list reorder candidates: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reorder candidates: %w", err)
	}
	return products, nil
}

// IncrementStock adds quantity to a product only if the result stays within
// maxStockLevel, optionally replacing the cost price.
func (r *Repository) IncrementStock(ctx context.Context, tenantID, id int64, quantity int, costPrice *decimal.Decimal) (domain.Product, error) {
	return incrementStock(ctx, r.pool, tenantID, id, quantity, costPrice, true)
}

func incrementStock(
	ctx context.Context,
	q querier,
	tenantID, id int64,
	quantity int,
	costPrice *decimal.Decimal,
	markRestocked bool,
) (domain.Product, error) {
	for attempt := 0; attempt < incrementAttempts; attempt++ {
		row := q.QueryRow(ctx, `
			UPDATE products
			SET
				current_stock = current_stock + $3,
				cost_price = COALESCE($4, cost_price),
				last_restocked = CASE WHEN $5 THEN NOW() ELSE last_restocked END,
				updated_at = NOW()
			WHERE tenant_id = $1 AND id = $2 AND current_stock + $3 <= max_stock_level
			RETURNING `+productColumns,
			tenantID, id, quantity, costPrice, markRestocked,
		)
		updated, err := scanProduct(row)
		if err == nil {
			return updated, nil
		}
		if !notFound(err) {
			return domain.Product{}, fmt.Errorf("increment stock for product %d: %w", id, err)
		}

		current, err := getProduct(ctx, q, tenantID, id)
		if err != nil {
			return domain.Product{}, err
		}
		if err := stock.CheckCapacity(current, quantity); err != nil {
			return domain.Product{}, err
		}
	}
	return domain.Product{}, fmt.Errorf("increment stock for product %d: concurrent updates, retries exhausted", id)
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.SKU,
		&p.Barcode,
		&p.Unit,
		&p.CurrentStock,
		&p.MinStockLevel,
		&p.MaxStockLevel,
		&p.CostPrice,
		&p.SellingPrice,
		&p.ReorderQuantity,
		&p.MaxOrderQuantity,
		&p.Supplier.Name,
		&p.Supplier.Email,
		&p.Supplier.Phone,
		&p.Supplier.Address,
		&p.IsActive,
		&p.LastRestocked,
		&p.ExpiryDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}
