package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Dosada05/tournament-settlement/models"
)

// Общие ошибки, используемые в сервисах и маппинге HTTP.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	// Нарушения машины состояний
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidState      = errors.New("operation not allowed in current state")

	// Idempotency guards: повтор уже выполненного действия
	ErrAlreadyProcessed = errors.New("already processed")
	ErrAlreadyPaid      = errors.New("installment already paid")
	ErrAlreadyCancelled = errors.New("tournament already cancelled")
	ErrAlreadyCompleted = errors.New("refund already completed")

	ErrMissingRequiredFields = errors.New("high-risk cancellation requires additional fields")
	ErrPartialFailure        = errors.New("cancellation fan-out partially failed")

	ErrPayoutsFrozen        = errors.New("payouts are frozen for a cancelled tournament")
	ErrLedgerSettled        = errors.New("ledger is settled, no further collections accepted")
	ErrRegistrationConflict = errors.New("user already has an active registration in this category")
	ErrRegistrationClosed   = errors.New("tournament is not accepting registrations")

	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
)

// IsIdempotentRepeat reports whether err only says the work was already done.
func IsIdempotentRepeat(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) || errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrAlreadyCancelled) || errors.Is(err, ErrAlreadyCompleted)
}

// TransitionError carries the state a rejected transition was attempted from.
type TransitionError struct {
	Entity  string
	ID      int
	Current string
	Target  string
	Err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %d: cannot move from %s to %s: %v", e.Entity, e.ID, e.Current, e.Target, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

func registrationTransition(r *models.Registration, target models.RegistrationStatus, err error) *TransitionError {
	return &TransitionError{Entity: "registration", ID: r.ID, Current: string(r.Status), Target: string(target), Err: err}
}

// ValidationError lists offending input fields with a message each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("%v: %s", ErrValidationFailed, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

type validator map[string]string

func (v validator) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		v[field] = "is required"
	}
}

func (v validator) check(ok bool, field, msg string) {
	if !ok {
		v[field] = msg
	}
}

func (v validator) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: v}
}

// MissingFieldsError is returned by the cancellation gate with the computed
// assessment, so the caller can resubmit with the right fields.
type MissingFieldsError struct {
	Missing    []string
	Assessment *models.RiskAssessment
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%v (risk %s): missing %s", ErrMissingRequiredFields, e.Assessment.Level, strings.Join(e.Missing, ", "))
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingRequiredFields }

// PartialFailureError reports a fan-out that committed some registrations and
// failed others. The tournament stays cancelled; rerunning the fan-out is safe.
type PartialFailureError struct {
	TournamentID int
	Cancelled    int
	Failed       int
	Err          error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("tournament %d: %v: %d cancelled, %d failed: %v", e.TournamentID, ErrPartialFailure, e.Cancelled, e.Failed, e.Err)
}

func (e *PartialFailureError) Unwrap() []error { return []error{ErrPartialFailure, e.Err} }
