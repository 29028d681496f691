package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/carshare-deposits/internal/config"
	"github.com/iliyamo/carshare-deposits/internal/handler"
	"github.com/iliyamo/carshare-deposits/internal/middleware"
	"github.com/iliyamo/carshare-deposits/internal/release"
	"github.com/iliyamo/carshare-deposits/internal/runlog"
	"github.com/iliyamo/carshare-deposits/internal/utils"
)

type stubReleaser struct{}

func (stubReleaser) Run(context.Context, release.RunOptions) (*release.Report, error) {
	return &release.Report{RunID: "r1", Mode: release.ModeExecute, Results: []release.Result{}}, nil
}

type stubHistory struct{}

func (stubHistory) List(context.Context, int) ([]release.Report, error) { return nil, nil }
func (stubHistory) Get(context.Context, string) (*release.Report, error) {
	return nil, runlog.ErrNotFound
}

func TestRoutes(t *testing.T) {
	auth := middleware.CronAuthConfig{Secret: "cron", JWTSecret: "jwt"}
	e := echo.New()
	RegisterRoutes(e)
	RegisterCron(e, handler.NewDepositReleaseHandler(stubReleaser{}), auth, config.RateLimitConfig{}, nil)
	RegisterAdmin(e, handler.NewRunsHandler(stubHistory{}), auth)

	admin, err := utils.NewAdminToken("jwt", "ops", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		method, path, bearer string
		status               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodPost, "/v1/cron/release-deposits", "", http.StatusUnauthorized},
		{http.MethodPost, "/v1/cron/release-deposits", "cron", http.StatusOK},
		{http.MethodGet, "/v1/cron/release-deposits?preview=true", admin, http.StatusOK},
		{http.MethodGet, "/v1/admin/deposit-releases/runs", "cron", http.StatusForbidden},
		{http.MethodGet, "/v1/admin/deposit-releases/runs", admin, http.StatusOK},
		{http.MethodGet, "/v1/admin/deposit-releases/runs/nope", admin, http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if tt.bearer != "" {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+tt.bearer)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, tt.status, rec.Code, "%s %s", tt.method, tt.path)
	}
}
