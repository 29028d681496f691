package release

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/carshare-deposits/internal/model"
)

// Defaults used when the orchestrator is not configured otherwise.
const (
	DefaultBatchSize = 50
	DefaultLockTTL   = 2 * time.Minute
)

// RunOptions controls a single batch run.
type RunOptions struct {
	Preview      bool
	BookingCodes []string
}

// Orchestrator is the batch entry point: Selector -> Gate -> Calculate ->
// Executor over one bounded page of candidates.  Bookings are processed one
// at a time, each inside its own failure boundary.
type Orchestrator struct {
	store   LedgerStore
	gate    *Gate
	exec    *Executor
	locker  Locker
	journal Journal
	nowFn   func() time.Time
	batch   int
	lockTTL time.Duration
}

// NewOrchestrator wires the engine.  notifier may be nil.
func NewOrchestrator(store LedgerStore, gateway CardGateway, notifier Notifier) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		locker:  nopLocker{},
		nowFn:   time.Now,
		batch:   DefaultBatchSize,
		lockTTL: DefaultLockTTL,
	}
	o.gate = NewGate(store, o.now)
	o.exec = NewExecutor(store, gateway, notifier, o.now)
	return o
}

// WithLocker guards each booking with l during execute runs.
func (o *Orchestrator) WithLocker(l Locker) *Orchestrator {
	if l != nil {
		o.locker = l
	}
	return o
}

// WithJournal saves every finished report to j.
func (o *Orchestrator) WithJournal(j Journal) *Orchestrator {
	o.journal = j
	return o
}

// WithClock replaces time.Now; used by tests and replays.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	if now != nil {
		o.nowFn = now
	}
	return o
}

// WithBatchSize caps the number of candidates fetched per run.
func (o *Orchestrator) WithBatchSize(n int) *Orchestrator {
	if n > 0 {
		o.batch = n
	}
	return o
}

// WithLockTTL sets how long a per-booking lock may be held.
func (o *Orchestrator) WithLockTTL(ttl time.Duration) *Orchestrator {
	if ttl > 0 {
		o.lockTTL = ttl
	}
	return o
}

func (o *Orchestrator) now() time.Time { return o.nowFn() }

// Run executes one batch.  An error is returned only when the run could not
// fetch its candidates (settings or selector failure); every per-booking
// problem is folded into the report instead.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	mode := ModeExecute
	if opts.Preview {
		mode = ModePreview
	}
	start := o.now().UTC()
	codes := normalizeCodes(opts.BookingCodes)
	report := &Report{
		RunID:        uuid.NewString(),
		Mode:         mode,
		StartedAt:    start,
		BookingCodes: codes,
		Results:      []Result{},
	}
	logger := log.With().Str("component", "release").Str("run_id", report.RunID).Str("mode", string(mode)).Logger()

	settings, err := o.store.PlatformSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load platform settings: %w", err)
	}
	if !settings.AutoReleaseEnabled && !opts.Preview && len(codes) == 0 {
		report.AutoReleaseDisabled = true
		report.finish(o.now().UTC())
		logger.Info().Msg("auto-release disabled in platform settings; nothing processed")
		o.save(ctx, report)
		return report, nil
	}

	grace := settings.GracePeriodDays
	if grace < 0 {
		grace = 0
	}
	candidates, err := o.store.SelectEligible(ctx, EligibilityQuery{
		Now:          start,
		Cutoff:       start.Add(-time.Duration(grace) * 24 * time.Hour),
		BookingCodes: codes,
		Limit:        o.batch,
	})
	if err != nil {
		return nil, fmt.Errorf("select eligible bookings: %w", err)
	}
	report.Summary.Eligible = len(candidates)
	logger.Info().Int("eligible", len(candidates)).Int("grace_days", grace).Msg("deposit release run started")

	for _, b := range candidates {
		res := o.processOne(ctx, b, opts.Preview)
		report.add(res)
		ev := logger.Info()
		if res.Status == StatusFailed {
			ev = logger.Warn()
		}
		ev.Str("booking", res.BookingCode).Str("status", res.Status).Str("reason", res.Reason).Msg("booking processed")
	}

	report.finish(o.now().UTC())
	logger.Info().
		Int("released", report.Summary.Released).
		Int("skipped", report.Summary.Skipped).
		Int("failed", report.Summary.Failed).
		Int64("duration_ms", report.DurationMs).
		Msg("deposit release run finished")
	o.save(ctx, report)
	return report, nil
}

func (o *Orchestrator) save(ctx context.Context, r *Report) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Save(ctx, r); err != nil {
		log.Warn().Err(err).Str("component", "release").Str("run_id", r.RunID).Msg("save run report failed")
	}
}

// processOne is the per-booking failure boundary: errors and panics become a
// failed result and never reach sibling bookings.
func (o *Orchestrator) processOne(ctx context.Context, b model.Booking, preview bool) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(b, fmt.Sprintf("unexpected error: %v", r))
		}
	}()
	if preview {
		return o.previewOne(ctx, b)
	}

	unlock, acquired, err := o.locker.TryLock(ctx, "deposit-release:"+b.ID, o.lockTTL)
	if err != nil {
		return failed(b, fmt.Errorf("%w: %v", ErrLockUnavailable, err).Error())
	}
	if !acquired {
		return skipped(b, ReasonInProgress)
	}
	defer unlock()

	d, err := o.gate.Evaluate(ctx, &b, true)
	if err != nil {
		return failed(b, err.Error())
	}
	if !d.Release {
		res := skipped(b, d.Reason)
		res.AutoApproved = d.AutoApproved
		return res
	}

	split := Calculate(d.Net, b.DepositFromWallet)
	s, err := o.exec.Execute(ctx, b, split)
	if errors.Is(err, ErrAlreadyReleased) {
		return skipped(b, ReasonAlreadyReleased)
	}
	if err != nil {
		res := failed(b, err.Error())
		res.AutoApproved = d.AutoApproved
		return res
	}
	res = Result{
		BookingID:     b.ID,
		BookingCode:   b.BookingCode,
		Status:        StatusReleased,
		Amount:        amountPtr(s.NetAmount),
		CardPortion:   amountPtr(s.CardAmount),
		WalletPortion: amountPtr(s.CreditedWallet()),
		RefundRef:     s.CardRefundRef,
		AutoApproved:  d.AutoApproved,
	}
	if s.WalletMissing {
		res.Reason = fmt.Sprintf(ReasonWalletMissing, formatMoney(s.WalletAmount))
	}
	return res
}

// previewOne computes the same decision without any write, lock or gateway
// call.
func (o *Orchestrator) previewOne(ctx context.Context, b model.Booking) Result {
	d, err := o.gate.Evaluate(ctx, &b, false)
	if err != nil {
		return failed(b, err.Error())
	}
	if !d.Release {
		res := skipped(b, d.Reason)
		res.AutoApproved = d.AutoApproved
		return res
	}
	split := Calculate(d.Net, b.DepositFromWallet)
	return Result{
		BookingID:     b.ID,
		BookingCode:   b.BookingCode,
		Status:        StatusWouldRelease,
		Amount:        amountPtr(d.Net),
		CardPortion:   amountPtr(split.Card),
		WalletPortion: amountPtr(split.Wallet),
		AutoApproved:  d.AutoApproved,
	}
}

func skipped(b model.Booking, reason string) Result {
	return Result{BookingID: b.ID, BookingCode: b.BookingCode, Status: StatusSkipped, Reason: reason}
}

func failed(b model.Booking, reason string) Result {
	return Result{BookingID: b.ID, BookingCode: b.BookingCode, Status: StatusFailed, Reason: reason}
}

// normalizeCodes trims and de-duplicates booking codes.  An
// empty result means "no filter".
func normalizeCodes(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
