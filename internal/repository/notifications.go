package repository

import (
	"context"
	"fmt"

	"grocerystock/internal/domain"
)

func (r *Repository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (tenant_id, recipient_id, title, message, type, priority, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, is_read, created_at
	`,
		n.TenantID, n.RecipientID, n.Title, n.Message, string(n.Type), string(n.Priority), n.Data,
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert %s notification: %w", n.Type, err)
	}
	return nil
}

// ListActiveUsers returns a tenant's active users in creation order.
func (r *Repository) ListActiveUsers(ctx context.Context, tenantID int64) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, email, is_active
		FROM users
		WHERE tenant_id = $1 AND is_active
		ORDER BY id ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active users for tenant %d: %w", tenantID, err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.IsActive); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
