package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

type postgresRepositories struct {
	exec SQLExecutor
}

func (r postgresRepositories) Registrations() RegistrationRepository {
	return &postgresRegistrationRepository{db: r.exec}
}
func (r postgresRepositories) Payments() PaymentRepository { return &postgresPaymentRepository{db: r.exec} }
func (r postgresRepositories) Tournaments() TournamentRepository {
	return &postgresTournamentRepository{db: r.exec}
}
func (r postgresRepositories) Users() UserRepository { return &postgresUserRepository{db: r.exec} }
func (r postgresRepositories) Audit() AuditRepository { return &postgresAuditRepository{db: r.exec} }
func (r postgresRepositories) Notifications() NotificationRepository {
	return &postgresNotificationRepository{db: r.exec}
}

type PostgresStore struct {
	postgresRepositories
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		postgresRepositories: postgresRepositories{exec: db},
		db:                   db,
		logger:               logger,
	}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Repositories) error) (txErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.ErrorContext(ctx, "rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(postgresRepositories{exec: tx})
}
