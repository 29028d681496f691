package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/carshare-deposits/internal/model"
)

// TripIssueRepo gives read access to trip incident reports.
type TripIssueRepo struct {
	db *sql.DB
}

// NewTripIssueRepo returns a new TripIssueRepo bound to the given database.
func NewTripIssueRepo(db *sql.DB) *TripIssueRepo { return &TripIssueRepo{db: db} }

// CountOpen returns the number of unresolved issues on the booking.
func (r *TripIssueRepo) CountOpen(ctx context.Context, bookingID string) (int, error) {
	args := make([]any, 0, len(model.OpenTripIssueStatuses)+1)
	args = append(args, bookingID)
	for _, s := range model.OpenTripIssueStatuses {
		args = append(args, string(s))
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trip_issues WHERE booking_id = ? AND status IN (`+placeholders(len(model.OpenTripIssueStatuses))+`)`,
		args...,
	).Scan(&n)
	return n, err
}
