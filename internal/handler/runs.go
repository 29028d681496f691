package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/carshare-deposits/internal/release"
	"github.com/iliyamo/carshare-deposits/internal/runlog"
)

// RunHistory reads the local run journal.
type RunHistory interface {
	List(ctx context.Context, limit int) ([]release.Report, error)
	Get(ctx context.Context, id string) (*release.Report, error)
}

// RunsHandler exposes past run reports to operators.
type RunsHandler struct {
	History RunHistory
}

func NewRunsHandler(h RunHistory) *RunsHandler { return &RunsHandler{History: h} }

// List handles GET /v1/admin/deposit-releases/runs?limit=N.
func (h *RunsHandler) List(c echo.Context) error {
	limit := 20
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 200 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 200"})
		}
		limit = n
	}
	runs, err := h.History.List(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "run journal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"runs": runs})
}

// Get handles GET /v1/admin/deposit-releases/runs/:id.
func (h *RunsHandler) Get(c echo.Context) error {
	r, err := h.History.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, runlog.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "run not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "run journal error"})
	}
	return c.JSON(http.StatusOK, r)
}
