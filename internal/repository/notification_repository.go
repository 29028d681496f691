package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/carshare-deposits/internal/model"
)

// NotificationRepo stores in-app notifications.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo returns a new NotificationRepo bound to the given database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// CreateIfAbsent inserts n unless a row with the same ID already exists, so
// a redelivered queue message never shows the guest the same notice twice.
// created reports whether a row was written.
func (r *NotificationRepo) CreateIfAbsent(ctx context.Context, n model.InAppNotification) (created bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE id = ?`, n.ID).Scan(&exists); err != nil {
		return false, err
	}
	if exists > 0 {
		return false, nil
	}
	var userID any
	if n.UserID != nil {
		userID = *n.UserID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, email, type, title, message, action_url, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, userID, n.Email, n.Type, n.Title, n.Message, n.ActionURL, n.CreatedAt.UTC(),
	); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}
