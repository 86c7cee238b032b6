package services

import (
	"context"
	"strconv"

	"github.com/Dosada05/tournament-settlement/audit"
	"github.com/Dosada05/tournament-settlement/models"
)

// AuditService отдаёт журнал аудита только на чтение.
type AuditService struct {
	env Env
}

func NewAuditService(env Env) *AuditService {
	return &AuditService{env: env.withDefaults()}
}

// AuditTrail is an entity's audit chain with the result of its verification.
type AuditTrail struct {
	EntityType  models.AuditEntityType `json:"entity_type"`
	EntityID    string                 `json:"entity_id"`
	Entries     []*models.AuditLog     `json:"entries"`
	Verified    bool                   `json:"verified"`
	VerifyError string                 `json:"verify_error,omitempty"`
}

// Trail loads and verifies the audit chain of one entity. Admin only.
// A broken chain is reported in the result, not as an error.
func (s *AuditService) Trail(ctx context.Context, actor models.Actor, entityType models.AuditEntityType, entityID int) (*AuditTrail, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	switch entityType {
	case models.EntityRegistration, models.EntityTournament, models.EntityPayment:
	default:
		return nil, &ValidationError{Fields: map[string]string{"entity_type": "must be registration, tournament or tournament_payment"}}
	}

	id := strconv.Itoa(entityID)
	entries, err := s.env.Store.Audit().ListByEntity(ctx, entityType, id)
	if err != nil {
		return nil, mapRepoError(err, "list audit entries")
	}
	trail := &AuditTrail{EntityType: entityType, EntityID: id, Entries: entries, Verified: true}
	if err := audit.VerifyChain(entries); err != nil {
		trail.Verified = false
		trail.VerifyError = err.Error()
	}
	return trail, nil
}
