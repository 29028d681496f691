package model

// Defaults applied when the platform_settings row has not been created yet.
const (
	DefaultGracePeriodDays = 3
)

// PlatformSettings is the singleton admin configuration row.  The release
// engine only reads it.
type PlatformSettings struct {
	AutoReleaseEnabled bool // platform_settings.deposit_auto_release_enabled
	GracePeriodDays    int  // platform_settings.deposit_grace_period_days
}

// DefaultPlatformSettings is used when no settings row exists.
func DefaultPlatformSettings() PlatformSettings {
	return PlatformSettings{AutoReleaseEnabled: true, GracePeriodDays: DefaultGracePeriodDays}
}
