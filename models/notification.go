package models

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	NotificationRegistrationConfirmed NotificationType = "registration_confirmed"
	NotificationRegistrationRejected  NotificationType = "registration_rejected"
	NotificationRefundApproved        NotificationType = "refund_approved"
	NotificationRefundRejected        NotificationType = "refund_rejected"
	NotificationRefundCompleted       NotificationType = "refund_completed"
	NotificationPayoutPaid            NotificationType = "payout_paid"
	NotificationTournamentCancelled   NotificationType = "tournament_cancelled"
)

// Notification is a queued message for a user. Delivery is handled outside
// the engine; the engine's obligation ends once the record is stored.
type Notification struct {
	ID        string           `json:"id"`
	UserID    int              `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      json.RawMessage  `json:"data,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
