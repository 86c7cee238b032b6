package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-settlement/models"
)

type postgresAuditRepository struct {
	db SQLExecutor
}

func (r *postgresAuditRepository) Append(ctx context.Context, e *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, admin_id, action, entity_type, entity_id, details,
			ip_address, user_agent, prev_digest, digest, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.AdminID, e.Action, e.EntityType, e.EntityID, []byte(e.Details),
		e.IPAddress, e.UserAgent, e.PrevDigest, e.Digest, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry %s: %w", e.Action, err)
	}
	return nil
}

func (r *postgresAuditRepository) LastDigest(ctx context.Context, entityType models.AuditEntityType, entityID string) (string, error) {
	// Сериализуем запись цепочки одной сущности до конца транзакции.
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`, string(entityType), entityID); err != nil {
		return "", fmt.Errorf("failed to lock audit chain: %w", err)
	}
	var digest string
	query := `SELECT digest FROM audit_logs WHERE entity_type = $1 AND entity_id = $2 ORDER BY seq DESC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, entityType, entityID).Scan(&digest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read last audit digest: %w", err)
	}
	return digest, nil
}

func (r *postgresAuditRepository) ListByEntity(ctx context.Context, entityType models.AuditEntityType, entityID string) ([]*models.AuditLog, error) {
	query := `
		SELECT id, admin_id, action, entity_type, entity_id, details,
			COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(prev_digest, ''), digest, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY seq ASC`
	rows, err := r.db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AuditLog, 0)
	for rows.Next() {
		var e models.AuditLog
		var details []byte
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.EntityType, &e.EntityID, &details,
			&e.IPAddress, &e.UserAgent, &e.PrevDigest, &e.Digest, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Details = details
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}
	return entries, nil
}
