package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-settlement/models"
)

type postgresUserRepository struct {
	db SQLExecutor
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	u := &models.User{}
	query := `SELECT id, first_name, last_name, email, phone, role FROM users WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return u, nil
}
