package release

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mode selects whether a run writes anything.
type Mode string

const (
	ModeExecute Mode = "execute"
	ModePreview Mode = "preview"
)

// Per-booking outcome statuses.
const (
	StatusReleased     = "released"
	StatusWouldRelease = "would_release"
	StatusSkipped      = "skipped"
	StatusFailed       = "failed"
)

// ReasonWalletMissing annotates a released booking whose guest has no wallet
// profile.  The argument is the uncredited wallet portion.
const ReasonWalletMissing = "wallet profile not found; wallet portion $%s not credited"

// Summary aggregates per-booking outcomes.  In preview mode Released counts
// would-release results.
type Summary struct {
	Eligible int `json:"eligible"`
	Released int `json:"released"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Result is the outcome for a single booking.
type Result struct {
	BookingID     string           `json:"bookingId"`
	BookingCode   string           `json:"bookingCode"`
	Status        string           `json:"status"`
	Reason        string           `json:"reason,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	CardPortion   *decimal.Decimal `json:"cardPortion,omitempty"`
	WalletPortion *decimal.Decimal `json:"walletPortion,omitempty"`
	RefundRef     string           `json:"refundRef,omitempty"`
	AutoApproved  bool             `json:"autoApproved,omitempty"`
}

// Report is the structured result of one batch run.
type Report struct {
	RunID               string    `json:"runId"`
	Mode                Mode      `json:"mode"`
	StartedAt           time.Time `json:"startedAt"`
	FinishedAt          time.Time `json:"finishedAt"`
	DurationMs          int64     `json:"durationMs"`
	AutoReleaseDisabled bool      `json:"autoReleaseDisabled,omitempty"`
	BookingCodes        []string  `json:"bookingCodes,omitempty"`
	Summary             Summary   `json:"summary"`
	Results             []Result  `json:"results"`
}

func (r *Report) add(res Result) {
	switch res.Status {
	case StatusReleased, StatusWouldRelease:
		r.Summary.Released++
	case StatusSkipped:
		r.Summary.Skipped++
	case StatusFailed:
		r.Summary.Failed++
	}
	r.Results = append(r.Results, res)
}

func (r *Report) finish(at time.Time) {
	r.FinishedAt = at
	r.DurationMs = at.Sub(r.StartedAt).Milliseconds()
}

func amountPtr(d decimal.Decimal) *decimal.Decimal { return &d }
