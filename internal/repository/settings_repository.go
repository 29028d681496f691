package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/carshare-deposits/internal/model"
)

// platformSettingsID is the primary key of the singleton settings row.
const platformSettingsID = "global"

// SettingsRepo reads the admin-managed platform_settings row.
type SettingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo returns a new SettingsRepo bound to the given database.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// Get returns the platform settings, falling back to the defaults when the
// row has never been saved.
func (r *SettingsRepo) Get(ctx context.Context) (model.PlatformSettings, error) {
	var s model.PlatformSettings
	err := r.db.QueryRowContext(ctx,
		`SELECT deposit_auto_release_enabled, deposit_grace_period_days FROM platform_settings WHERE id = ?`,
		platformSettingsID,
	).Scan(&s.AutoReleaseEnabled, &s.GracePeriodDays)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultPlatformSettings(), nil
	}
	if err != nil {
		return model.PlatformSettings{}, err
	}
	if s.GracePeriodDays < 0 {
		s.GracePeriodDays = 0
	}
	return s, nil
}
