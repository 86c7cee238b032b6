package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/Dosada05/tournament-settlement/models"
)

var (
	ErrRegistrationNotFound       = errors.New("registration not found")
	ErrRegistrationConflict       = errors.New("user already has an active registration in this category")
	ErrRegistrationStatusConflict = errors.New("registration status changed concurrently")
	ErrPaymentNotFound            = errors.New("tournament payment ledger not found")
	ErrInstallmentAlreadyPaid     = errors.New("installment already paid")
	ErrInvalidInstallment         = errors.New("installment index must be 1 or 2")
	ErrTournamentNotFound         = errors.New("tournament not found")
	ErrTournamentStatusConflict   = errors.New("tournament status changed concurrently")
	ErrCategoryNotFound           = errors.New("category not found")
	ErrUserNotFound               = errors.New("user not found")
)

// StatusGuard is the state a registration must still be in for an update to apply.
type StatusGuard struct {
	Status       models.RegistrationStatus
	RefundStatus *models.RefundStatus
}

// GuardOf returns the guard matching the registration's current state.
func GuardOf(r *models.Registration) StatusGuard {
	g := StatusGuard{Status: r.Status}
	if r.RefundStatus != nil {
		rs := *r.RefundStatus
		g.RefundStatus = &rs
	}
	return g
}

type RegistrationRepository interface {
	Create(ctx context.Context, r *models.Registration) error
	GetByID(ctx context.Context, id int) (*models.Registration, error)
	// FindActive returns the user's registration in a category that is neither
	// rejected nor cancelled.
	FindActive(ctx context.Context, tournamentID, categoryID, userID int) (*models.Registration, error)
	// Update writes every mutable field of r, but only if the stored row still
	// matches guard. Otherwise ErrRegistrationStatusConflict.
	Update(ctx context.Context, r *models.Registration, guard StatusGuard) error
	ListByTournament(ctx context.Context, tournamentID int, statuses []models.RegistrationStatus) ([]*models.Registration, error)
}

type PaymentRepository interface {
	GetByTournament(ctx context.Context, tournamentID int) (*models.TournamentPayment, error)
	// GetForUpdate locks the ledger row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, tournamentID int) (*models.TournamentPayment, error)
	// EnsureExists inserts p unless a ledger for p.TournamentID already exists.
	EnsureExists(ctx context.Context, p *models.TournamentPayment) error
	Save(ctx context.Context, p *models.TournamentPayment) error
	// MarkInstallmentPaid flips a pending installment to paid; an already paid
	// installment yields ErrInstallmentAlreadyPaid.
	MarkInstallmentPaid(ctx context.Context, tournamentID, index int, paidAt time.Time, paidBy int, notes *string) error
	FreezePayouts(ctx context.Context, tournamentID int, at time.Time) error
	ListPending(ctx context.Context, filter models.InstallmentFilter) ([]*models.TournamentPayment, error)
}

type TournamentRepository interface {
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	GetForUpdate(ctx context.Context, id int) (*models.Tournament, error)
	GetCategory(ctx context.Context, tournamentID, categoryID int) (*models.Category, error)
	// UpdateStatus is a compare-and-set on the tournament status.
	UpdateStatus(ctx context.Context, id int, from, to models.TournamentStatus, at time.Time) error
	MarkFanOutCompleted(ctx context.Context, id int, at time.Time) error
	ListPendingFanOut(ctx context.Context) ([]*models.Tournament, error)
	RiskSnapshot(ctx context.Context, id int, recentSince time.Time) (*models.RiskSnapshot, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
}

// AuditRepository is append-only. No update or delete is offered.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	LastDigest(ctx context.Context, entityType models.AuditEntityType, entityID string) (string, error)
	ListByEntity(ctx context.Context, entityType models.AuditEntityType, entityID string) ([]*models.AuditLog, error)
}

type NotificationRepository interface {
	Enqueue(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID int, limit int) ([]*models.Notification, error)
}

// Repositories is the set of repositories bound to one executor.
type Repositories interface {
	Registrations() RegistrationRepository
	Payments() PaymentRepository
	Tournaments() TournamentRepository
	Users() UserRepository
	Audit() AuditRepository
	Notifications() NotificationRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repositories
	// WithinTx runs fn with repositories bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}
