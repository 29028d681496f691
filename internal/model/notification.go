package model

import "time"

// InAppNotification is a message shown in the guest's notification centre.
type InAppNotification struct {
	ID        string    // notifications.id
	UserID    *string   // notifications.user_id
	Email     string    // notifications.email
	Type      string    // notifications.type
	Title     string    // notifications.title
	Message   string    // notifications.message
	ActionURL string    // notifications.action_url
	CreatedAt time.Time // notifications.created_at
}
