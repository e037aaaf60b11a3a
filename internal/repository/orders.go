package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grocerystock/internal/domain"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `
	id,
	tenant_id,
	order_number,
	total_amount,
	status,
	order_type,
	payment_status,
	payment_date,
	supplier_name,
	supplier_email,
	supplier_phone,
	expected_delivery_date,
	actual_delivery_date,
	notes,
	created_by,
	created_at,
	updated_at
`

const orderNumberAttempts = 5

// CreateOrder stores an order and its lines without touching stock.
func (r *Repository) CreateOrder(ctx context.Context, o *domain.Order) error {
	return r.inTx(ctx, "create order", func(tx pgx.Tx) error {
		return insertOrder(ctx, tx, o)
	})
}

// CreateOrderWithRestock stores o and applies every line to stock in the same
// transaction. A line that would breach its product's ceiling aborts the
// whole operation with a *stock.CapacityError.
func (r *Repository) CreateOrderWithRestock(ctx context.Context, o *domain.Order) ([]domain.Product, error) {
	var restocked []domain.Product
	err := r.inTx(ctx, "create order with restock", func(tx pgx.Tx) error {
		restocked = make([]domain.Product, 0, len(o.Lines))
		for _, line := range o.Lines {
			p, err := incrementStock(ctx, tx, o.TenantID, line.ProductID, line.Quantity, nil, true)
			if err != nil {
				return err
			}
			restocked = append(restocked, p)
		}
		return insertOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}
	return restocked, nil
}

func (r *Repository) GetOrder(ctx context.Context, tenantID, id int64) (domain.Order, error) {
	return getOrder(ctx, r.pool, tenantID, id, false)
}

// UpdateOrder rewrites the header and lines of an order that is still open.
func (r *Repository) UpdateOrder(ctx context.Context, o *domain.Order) error {
	o.Recalculate()
	return r.inTx(ctx, "update order", func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE orders
			SET
				total_amount = $3,
				supplier_name = $4,
				supplier_email = $5,
				supplier_phone = $6,
				expected_delivery_date = $7,
				notes = $8,
				updated_at = NOW()
			WHERE tenant_id = $1 AND id = $2 AND status NOT IN ('delivered', 'cancelled')
			RETURNING updated_at
		`,
			o.TenantID, o.ID,
			o.TotalAmount,
			o.Supplier.Name, o.Supplier.Email, o.Supplier.Phone,
			o.ExpectedDeliveryDate,
			o.Notes,
		).Scan(&o.UpdatedAt)
		if err != nil {
			if notFound(err) {
				return lockedOrMissing(ctx, tx, o.TenantID, o.ID)
			}
			return fmt.Errorf("update order %d: %w", o.ID, err)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM order_lines WHERE order_id = $1", o.ID); err != nil {
			return fmt.Errorf("clear order lines %d: %w", o.ID, err)
		}
		return insertLines(ctx, tx, o.ID, o.Lines)
	})
}

// SetOrderStatus moves an open order to status. Delivery goes through
// DeliverOrder so stock is applied.
func (r *Repository) SetOrderStatus(ctx context.Context, tenantID, id int64, status domain.OrderStatus) (domain.Order, error) {
	var order domain.Order
	err := r.inTx(ctx, "set order status", func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE orders SET status = $3, updated_at = NOW()
			WHERE tenant_id = $1 AND id = $2 AND status NOT IN ('delivered', 'cancelled')
			RETURNING `+orderColumns,
			tenantID, id, string(status),
		)
		updated, err := scanOrder(row)
		if err != nil {
			if notFound(err) {
				return lockedOrMissing(ctx, tx, tenantID, id)
			}
			return fmt.Errorf("set order %d status: %w", id, err)
		}
		if updated.Lines, err = loadLines(ctx, tx, id); err != nil {
			return err
		}
		order = updated
		return nil
	})
	return order, err
}

// DeliverOrder marks an open order delivered and adds every line to stock.
// Lines whose product no longer exists are skipped; a line that would breach
// a ceiling aborts the delivery.
func (r *Repository) DeliverOrder(ctx context.Context, tenantID, id int64) (domain.Order, []domain.Product, error) {
	var (
		order     domain.Order
		restocked []domain.Product
	)
	err := r.inTx(ctx, "deliver order", func(tx pgx.Tx) error {
		current, err := getOrder(ctx, tx, tenantID, id, true)
		if err != nil {
			return err
		}
		if current.Status.Terminal() {
			return domain.ErrOrderLocked
		}

		for _, line := range current.Lines {
			p, err := incrementStock(ctx, tx, tenantID, line.ProductID, line.Quantity, nil, false)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			restocked = append(restocked, p)
		}

		row := tx.QueryRow(ctx, `
			UPDATE orders
			SET status = 'delivered', actual_delivery_date = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING `+orderColumns,
			id,
		)
		if order, err = scanOrder(row); err != nil {
			return fmt.Errorf("mark order %d delivered: %w", id, err)
		}
		order.Lines = current.Lines
		return nil
	})
	if err != nil {
		return domain.Order{}, nil, err
	}
	return order, restocked, nil
}

// RecordPayment stores a payment outcome. A completed payment confirms an
// order that is still pending. Closed orders only accept a refund.
func (r *Repository) RecordPayment(ctx context.Context, tenantID, id int64, status domain.PaymentStatus, at time.Time) (domain.Order, error) {
	var order domain.Order
	err := r.inTx(ctx, "record payment", func(tx pgx.Tx) error {
		var current, paid string
		err := tx.QueryRow(ctx, `
			SELECT status, payment_status FROM orders
			WHERE tenant_id = $1 AND id = $2
			FOR UPDATE
		`, tenantID, id).Scan(&current, &paid)
		if err != nil {
			if notFound(err) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("lock order %d: %w", id, err)
		}
		if !domain.PaymentChangeAllowed(domain.OrderStatus(current), domain.PaymentStatus(paid), status) {
			return domain.ErrPaymentLocked
		}

		row := tx.QueryRow(ctx, `
			UPDATE orders
			SET
				payment_status = $3,
				payment_date = CASE WHEN $3 = 'completed' THEN $4 ELSE payment_date END,
				status = CASE WHEN $3 = 'completed' AND status = 'pending' THEN 'confirmed' ELSE status END,
				updated_at = NOW()
			WHERE tenant_id = $1 AND id = $2
			RETURNING `+orderColumns,
			tenantID, id, string(status), at,
		)
		updated, err := scanOrder(row)
		if err != nil {
			if notFound(err) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("record payment for order %d: %w", id, err)
		}
		if updated.Lines, err = loadLines(ctx, tx, id); err != nil {
			return err
		}
		order = updated
		return nil
	})
	return order, err
}

// HasOpenAutomaticOrder reports whether productID already sits on a pending
// automatic order.
func (r *Repository) HasOpenAutomaticOrder(ctx context.Context, tenantID, productID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN order_lines l ON l.order_id = o.id
			WHERE o.tenant_id = $1
				AND l.product_id = $2
				AND o.order_type = 'automatic'
				AND o.status = 'pending'
		)
	`, tenantID, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open automatic order for product %d: %w", productID, err)
	}
	return exists, nil
}

// insertOrder assigns an order number when missing and retries with a fresh
// one on collision, each attempt inside its own savepoint.
func insertOrder(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	o.Recalculate()
	for attempt := 0; ; attempt++ {
		if o.OrderNumber == "" || attempt > 0 {
			o.OrderNumber = domain.NewOrderNumber(time.Now())
		}

		sp, err := tx.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin order savepoint: %w", err)
		}
		err = sp.QueryRow(ctx, `
			INSERT INTO orders (
				tenant_id, order_number, total_amount, status, order_type, payment_status,
				supplier_name, supplier_email, supplier_phone,
				expected_delivery_date, notes, created_by
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, created_at, updated_at
		`,
			o.TenantID, o.OrderNumber, o.TotalAmount, string(o.Status), string(o.OrderType), string(o.PaymentStatus),
			o.Supplier.Name, o.Supplier.Email, o.Supplier.Phone,
			o.ExpectedDeliveryDate, o.Notes, o.CreatedBy,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err == nil {
			if err := insertLines(ctx, sp, o.ID, o.Lines); err != nil {
				_ = sp.Rollback(ctx)
				return err
			}
			if err := sp.Commit(ctx); err != nil {
				return fmt.Errorf("release order savepoint: %w", err)
			}
			return nil
		}

		_ = sp.Rollback(ctx)
		if isUniqueViolation(err, "orders_order_number_key") && attempt < orderNumberAttempts-1 {
			continue
		}
		return fmt.Errorf("insert order: %w", err)
	}
}

func insertLines(ctx context.Context, tx pgx.Tx, orderID int64, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, line := range lines {
		batch.Queue(`
			INSERT INTO order_lines (order_id, line_no, product_id, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orderID, i+1, line.ProductID, line.Quantity, line.UnitPrice, line.TotalPrice)
	}
	results := tx.SendBatch(ctx, batch)
	for range lines {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert order lines for order %d: %w", orderID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close order line batch: %w", err)
	}
	return nil
}

func getOrder(ctx context.Context, q querier, tenantID, id int64, forUpdate bool) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	order, err := scanOrder(q.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if notFound(err) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	if order.Lines, err = loadLines(ctx, q, id); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func loadLines(ctx context.Context, q querier, orderID int64) ([]domain.OrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, quantity, unit_price, total_price
		FROM order_lines
		WHERE order_id = $1
		ORDER BY line_no ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines %d: %w", orderID, err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.UnitPrice, &line.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines %d: %w", orderID, err)
	}
	return lines, nil
}

func lockedOrMissing(ctx context.Context, q querier, tenantID, id int64) error {
	var status string
	err := q.QueryRow(ctx, "SELECT status FROM orders WHERE tenant_id = $1 AND id = $2", tenantID, id).Scan(&status)
	if err != nil {
		if notFound(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("load order %d status: %w", id, err)
	}
	return domain.ErrOrderLocked
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status, orderType, payment string
	err := row.Scan(
		&o.ID,
		&o.TenantID,
		&o.OrderNumber,
		&o.TotalAmount,
		&status,
		&orderType,
		&payment,
		&o.PaymentDate,
		&o.Supplier.Name,
		&o.Supplier.Email,
		&o.Supplier.Phone,
		&o.ExpectedDeliveryDate,
		&o.ActualDeliveryDate,
		&o.Notes,
		&o.CreatedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	o.OrderType = domain.OrderType(orderType)
	o.PaymentStatus = domain.PaymentStatus(payment)
	return o, nil
}
