package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/carshare-deposits/internal/model"
)

// ClaimRepo gives read access to host damage claims.  Claims are written by
// the claims workflow; only their status matters to deposit release.
type ClaimRepo struct {
	db *sql.DB
}

// NewClaimRepo returns a new ClaimRepo bound to the given database.
func NewClaimRepo(db *sql.DB) *ClaimRepo { return &ClaimRepo{db: db} }

// CountOpen returns the number of claims on the booking whose status is in
// model.OpenClaimStatuses.
func (r *ClaimRepo) CountOpen(ctx context.Context, bookingID string) (int, error) {
	args := make([]any, 0, len(model.OpenClaimStatuses)+1)
	args = append(args, bookingID)
	for _, s := range model.OpenClaimStatuses {
		args = append(args, string(s))
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claims WHERE booking_id = ? AND status IN (`+placeholders(len(model.OpenClaimStatuses))+`)`,
		args...,
	).Scan(&n)
	return n, err
}
