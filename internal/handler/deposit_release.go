package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/carshare-deposits/internal/release"
)

// Releaser runs one deposit release batch.
type Releaser interface {
	Run(ctx context.Context, opts release.RunOptions) (*release.Report, error)
}

// DepositReleaseHandler serves the scheduled-job trigger.
type DepositReleaseHandler struct {
	Releaser Releaser
}

// NewDepositReleaseHandler panics on a nil releaser; it is a wiring bug.
func NewDepositReleaseHandler(r Releaser) *DepositReleaseHandler {
	if r == nil {
		panic("nil releaser passed to NewDepositReleaseHandler")
	}
	return &DepositReleaseHandler{Releaser: r}
}

type triggerRequest struct {
	BookingCodes []string `json:"bookingCodes"`
}

type triggerResponse struct {
	Success             bool             `json:"success"`
	RunID               string           `json:"runId"`
	Mode                release.Mode     `json:"mode"`
	AutoReleaseDisabled bool             `json:"autoReleaseDisabled,omitempty"`
	Summary             release.Summary  `json:"summary"`
	Results             []release.Result `json:"results"`
	Duration            string           `json:"duration"`
}

// Trigger handles GET and POST /v1/cron/release-deposits.
//
// ?preview=true computes the outcome without writing anything.  The booking
// code filter comes from a JSON body {"bookingCodes": [...]} or, for GET, a
// comma-separated bookingCodes query parameter.  A completed run always
// answers 200, even when individual bookings failed; 500 means the run could
// not start.
func (h *DepositReleaseHandler) Trigger(c echo.Context) error {
	opts := release.RunOptions{}
	if p := c.QueryParam("preview"); p != "" {
		v, err := strconv.ParseBool(p)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid preview flag"})
		}
		opts.Preview = v
	}

	var body triggerRequest
	if c.Request().Method == http.MethodPost {
		if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil && !errors.Is(err, io.EOF) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		}
	}
	opts.BookingCodes = body.BookingCodes
	if q := c.QueryParam("bookingCodes"); q != "" {
		opts.BookingCodes = append(opts.BookingCodes, strings.Split(q, ",")...)
	}

	report, err := h.Releaser.Run(c.Request().Context(), opts)
	if err != nil {
		log.Error().Err(err).Str("component", "handler").Msg("deposit release run failed to start")
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "deposit release run failed"})
	}
	return c.JSON(http.StatusOK, triggerResponse{
		Success:             true,
		RunID:               report.RunID,
		Mode:                report.Mode,
		AutoReleaseDisabled: report.AutoReleaseDisabled,
		Summary:             report.Summary,
		Results:             report.Results,
		Duration:            (time.Duration(report.DurationMs) * time.Millisecond).String(),
	})
}
