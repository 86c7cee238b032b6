package services

import (
	"context"

	"github.com/Dosada05/tournament-settlement/models"
)

const maxNotificationsPage = 200

type NotificationService struct {
	env Env
}

func NewNotificationService(env Env) *NotificationService {
	return &NotificationService{env: env.withDefaults()}
}

// ListMine returns the actor's own notifications, newest first.
func (s *NotificationService) ListMine(ctx context.Context, actor models.Actor, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > maxNotificationsPage {
		limit = 0
	}
	list, err := s.env.Store.Notifications().ListByUser(ctx, actor.UserID, limit)
	if err != nil {
		return nil, mapRepoError(err, "list notifications")
	}
	if list == nil {
		list = []*models.Notification{}
	}
	return list, nil
}
