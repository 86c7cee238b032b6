package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-settlement/audit"
	"github.com/Dosada05/tournament-settlement/models"
	"github.com/Dosada05/tournament-settlement/repositories"
	"github.com/google/uuid"
)

// Publisher pushes events to connected clients after a commit. Delivery is
// fire-and-forget: implementations must not block.
type Publisher interface {
	PublishToTournament(tournamentID int, event string, payload any)
	PublishToUser(userID int, event string, payload any)
}

type noopPublisher struct{}

func (noopPublisher) PublishToTournament(int, string, any) {}
func (noopPublisher) PublishToUser(int, string, any)       {}

// Env: общие зависимости всех сервисов движка.
type Env struct {
	Store     repositories.Store
	Audit     *audit.Recorder
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Now == nil {
		e.Now = func() time.Time { return time.Now().UTC() }
	}
	if e.Audit == nil {
		e.Audit = audit.NewRecorder(e.Now)
	}
	if e.Publisher == nil {
		e.Publisher = noopPublisher{}
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	return e
}

// registrationEvent names an operation that moves a registration.
type registrationEvent int

const (
	eventConfirm registrationEvent = iota
	eventReject
	eventRequestCancellation
	eventApproveCancellation
	eventRejectCancellation
	eventTournamentCancelled
)

type registrationTransitionRule struct {
	from []models.RegistrationStatus
	to   models.RegistrationStatus
}

// Допустимые переходы заявки: для каждого события исходные статусы и целевой.
var registrationTransitions = map[registrationEvent]registrationTransitionRule{
	eventConfirm:             {from: []models.RegistrationStatus{models.RegistrationPending}, to: models.RegistrationConfirmed},
	eventReject:              {from: []models.RegistrationStatus{models.RegistrationPending}, to: models.RegistrationRejected},
	eventRequestCancellation: {from: []models.RegistrationStatus{models.RegistrationConfirmed}, to: models.RegistrationCancellationRequested},
	eventApproveCancellation: {from: []models.RegistrationStatus{models.RegistrationCancellationRequested}, to: models.RegistrationCancelled},
	eventRejectCancellation:  {from: []models.RegistrationStatus{models.RegistrationCancellationRequested}, to: models.RegistrationConfirmed},
	eventTournamentCancelled: {from: []models.RegistrationStatus{models.RegistrationPending, models.RegistrationConfirmed}, to: models.RegistrationCancelled},
}

// nextStatus returns the status ev moves a registration to and whether ev is
// allowed from current.
func nextStatus(current models.RegistrationStatus, ev registrationEvent) (models.RegistrationStatus, bool) {
	rule := registrationTransitions[ev]
	for _, from := range rule.from {
		if current == from {
			return rule.to, true
		}
	}
	return rule.to, false
}

// mapRepoError переводит ошибки репозиториев в ошибки сервисного слоя.
func mapRepoError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrRegistrationNotFound),
		errors.Is(err, repositories.ErrPaymentNotFound),
		errors.Is(err, repositories.ErrTournamentNotFound),
		errors.Is(err, repositories.ErrCategoryNotFound),
		errors.Is(err, repositories.ErrUserNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	case errors.Is(err, repositories.ErrRegistrationStatusConflict),
		errors.Is(err, repositories.ErrTournamentStatusConflict):
		return fmt.Errorf("%s: %w", op, ErrAlreadyProcessed)
	case errors.Is(err, repositories.ErrRegistrationConflict):
		return fmt.Errorf("%s: %w", op, ErrRegistrationConflict)
	case errors.Is(err, repositories.ErrInstallmentAlreadyPaid):
		return fmt.Errorf("%s: %w", op, ErrAlreadyPaid)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// authorizeManager allows admins and the tournament's own organizer.
func authorizeManager(actor models.Actor, t *models.Tournament) error {
	if actor.IsAdmin() || (actor.IsOrganizer() && t.OrganizerID == actor.UserID) {
		return nil
	}
	return ErrForbiddenOperation
}

func newNotification(userID int, typ models.NotificationType, title, message string, data any, now time.Time) (*models.Notification, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal notification data: %w", err)
	}
	return &models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		Data:      raw,
		CreatedAt: now,
	}, nil
}

// enqueue stores a notification inside the caller's transaction.
func enqueue(ctx context.Context, tx repositories.Repositories, n *models.Notification) error {
	if err := tx.Notifications().Enqueue(ctx, n); err != nil {
		return fmt.Errorf("enqueue %s notification for user %d: %w", n.Type, n.UserID, err)
	}
	return nil
}

// dispatch отправляет уведомления подключённым клиентам, только после commit.
func (e Env) dispatch(notifications ...*models.Notification) {
	for _, n := range notifications {
		if n != nil {
			e.Publisher.PublishToUser(n.UserID, "notification", n)
		}
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
