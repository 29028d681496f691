package release

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/carshare-deposits/internal/model"
)

// Skip reasons that do not carry a count or amount.
const (
	ReasonClaimFiled      = "deposit held pending claim"
	ReasonReviewChanged   = "host review changed during release"
	ReasonInProgress      = "release already in progress"
	ReasonAlreadyReleased = "deposit already released"
)

// Decision is the gating filter's verdict for one booking.
type Decision struct {
	Release      bool
	Reason       string
	Net          decimal.Decimal
	AutoApproved bool
}

func skip(reason string) Decision { return Decision{Reason: reason} }

// Gate decides whether a candidate booking may be released now.  Its only
// side effect is the PENDING_REVIEW -> AUTO_APPROVED transition, and only
// when Evaluate is called with apply=true.
type Gate struct {
	store LedgerStore
	nowFn func() time.Time
}

// NewGate builds a Gate over the given store.
func NewGate(store LedgerStore, nowFn func() time.Time) *Gate {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Gate{store: store, nowFn: nowFn}
}

// Evaluate runs the gating steps in order.  b.HostFinalReview is updated in
// place when the review auto-approves, whether or not the write is applied,
// so preview reports show the same decision an execute run would make.
func (g *Gate) Evaluate(ctx context.Context, b *model.Booking, apply bool) (Decision, error) {
	if b.HostFinalReview == model.ReviewClaimFiled {
		return skip(ReasonClaimFiled), nil
	}

	autoApproved := false
	if next, ok := b.HostFinalReview.AutoApprove(b.HostReviewDeadline, g.nowFn()); ok {
		if apply {
			moved, err := g.store.AutoApproveReview(ctx, b.ID, g.nowFn().UTC())
			if err != nil {
				return Decision{}, fmt.Errorf("auto-approve review: %w", err)
			}
			if !moved {
				return skip(ReasonReviewChanged), nil
			}
		}
		b.HostFinalReview = next
		autoApproved = true
	}

	claims, err := g.store.CountOpenClaims(ctx, b.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("count open claims: %w", err)
	}
	if claims > 0 {
		d := skip(fmt.Sprintf("%d open claim(s)", claims))
		d.AutoApproved = autoApproved
		return d, nil
	}

	issues, err := g.store.CountOpenTripIssues(ctx, b.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("count open trip issues: %w", err)
	}
	if issues > 0 {
		d := skip(fmt.Sprintf("%d open trip issue(s)", issues))
		d.AutoApproved = autoApproved
		return d, nil
	}

	net := b.NetDeposit()
	if !net.IsPositive() {
		d := skip(fmt.Sprintf("deposit fully used for claims ($%s)", formatMoney(b.DepositUsedForClaim)))
		d.AutoApproved = autoApproved
		return d, nil
	}
	return Decision{Release: true, Net: net, AutoApproved: autoApproved}, nil
}
