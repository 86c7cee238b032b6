package repositories

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-settlement/models"
)

type postgresNotificationRepository struct {
	db SQLExecutor
}

func (r *postgresNotificationRepository) Enqueue(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (id, user_id, type, title, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	var data interface{}
	if len(n.Data) > 0 {
		data = []byte(n.Data)
	}
	_, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, n.Type, n.Title, n.Message, data, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification for user %d: %w", n.UserID, err)
	}
	return nil
}

func (r *postgresNotificationRepository) ListByUser(ctx context.Context, userID int, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, user_id, type, title, message, data, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %d: %w", userID, err)
	}
	defer rows.Close()

	out := make([]*models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Data = data
		out = append(out, &n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return out, nil
}
