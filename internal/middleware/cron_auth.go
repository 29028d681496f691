package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/carshare-deposits/internal/utils"
)

// Context keys set by CronAuth.
const (
	ctxCaller = "caller"
	ctxRole   = "role"
)

// Caller roles.
const (
	RoleCron  = "CRON"
	RoleAdmin = utils.RoleAdmin
)

// CronAuthConfig lists the accepted credentials.  Any subset may be set; with
// none set every request is rejected.
type CronAuthConfig struct {
	Secret       string // plain shared secret
	SecretBcrypt string // bcrypt hash of the shared secret
	JWTSecret    string // HS256 key for operator tokens with role ADMIN
}

func (c CronAuthConfig) configured() bool {
	return c.Secret != "" || c.SecretBcrypt != "" || c.JWTSecret != ""
}

// CronAuth validates the bearer credential of the job trigger and the run
// history endpoints.  The scheduler calls the trigger with the shared secret;
// operators use a signed admin token.  On success the caller identity is
// stored in the context for rate limiting and logs.
func CronAuth(cfg CronAuthConfig) echo.MiddlewareFunc {
	if !cfg.configured() {
		log.Warn().Str("component", "auth").Msg("no trigger credentials configured; all trigger calls will be rejected")
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}

			switch {
			case utils.EqualSecret(cfg.Secret, raw):
				c.Set(ctxCaller, "cron")
				c.Set(ctxRole, RoleCron)
			case cfg.SecretBcrypt != "" && utils.VerifySecret(cfg.SecretBcrypt, raw):
				c.Set(ctxCaller, "cron")
				c.Set(ctxRole, RoleCron)
			case cfg.JWTSecret != "" && strings.Count(raw, ".") == 2:
				claims, err := utils.ParseAdminToken(cfg.JWTSecret, raw)
				if err != nil || claims.Role != RoleAdmin {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
				}
				c.Set(ctxCaller, "admin:"+claims.Subject)
				c.Set(ctxRole, RoleAdmin)
			default:
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			return next(c)
		}
	}
}

// Caller returns the identity stored by CronAuth, or "anonymous".
func Caller(c echo.Context) string {
	if s, ok := c.Get(ctxCaller).(string); ok && s != "" {
		return s
	}
	return "anonymous"
}

// RequireRole rejects callers whose role, as set by CronAuth, is not one of
// roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ctxRole).(string)
			if !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
