package release

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/carshare-deposits/internal/model"
	"github.com/iliyamo/carshare-deposits/internal/queue"
)

var testNow = time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tp(t time.Time) *time.Time { return &t }

func sp(s string) *string { return &s }

// memStore is an in-memory LedgerStore that applies the same eligibility
// rules as the SQL selector and counts every write.
type memStore struct {
	mu        sync.Mutex
	settings  model.PlatformSettings
	bookings  map[string]*model.Booking
	claims    map[string]int
	issues    map[string]int
	wallets   map[string]*model.WalletProfile // by id
	ledger    []model.DepositTransaction
	writes    int
	selectErr error
	settleErr error
	// reviewRace makes AutoApproveReview report that the host changed the
	// review first.
	reviewRace bool
}

func newMemStore() *memStore {
	return &memStore{
		settings: model.PlatformSettings{AutoReleaseEnabled: true, GracePeriodDays: 3},
		bookings: map[string]*model.Booking{},
		claims:   map[string]int{},
		issues:   map[string]int{},
		wallets:  map[string]*model.WalletProfile{},
	}
}

func (m *memStore) addBooking(b model.Booking) {
	if b.Status == "" {
		b.Status = model.BookingStatusCompleted
	}
	m.bookings[b.ID] = &b
}

func (m *memStore) addWallet(id, email, balance string) {
	m.wallets[id] = &model.WalletProfile{ID: id, Email: email, WalletBalance: dec(balance)}
}

func (m *memStore) booking(id string) model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.bookings[id]
}

func (m *memStore) balance(id string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallets[id].WalletBalance
}

func (m *memStore) PlatformSettings(context.Context) (model.PlatformSettings, error) {
	return m.settings, nil
}

func (m *memStore) SelectEligible(_ context.Context, q EligibilityQuery) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	codes := map[string]bool{}
	for _, c := range q.BookingCodes {
		codes[c] = true
	}
	ids := make([]string, 0, len(m.bookings))
	for id := range m.bookings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []model.Booking{}
	for _, id := range ids {
		b := m.bookings[id]
		if b.Status != model.BookingStatusCompleted || !b.DepositAmount.IsPositive() || b.Released() || b.ChargeRef() == "" {
			continue
		}
		if len(codes) > 0 && !codes[b.BookingCode] {
			continue
		}
		ok := false
		switch b.HostFinalReview {
		case model.ReviewNone:
			ok = b.TripEndedAt != nil && !b.TripEndedAt.After(q.Cutoff)
		case model.ReviewApproved, model.ReviewAutoApproved:
			ok = true
		case model.ReviewPending:
			ok = b.HostReviewDeadline != nil && !b.HostReviewDeadline.After(q.Now)
		}
		if ok {
			out = append(out, *b)
		}
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) CountOpenClaims(_ context.Context, id string) (int, error) {
	return m.claims[id], nil
}

func (m *memStore) CountOpenTripIssues(_ context.Context, id string) (int, error) {
	return m.issues[id], nil
}

func (m *memStore) AutoApproveReview(_ context.Context, id string, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bookings[id]
	if m.reviewRace {
		b.HostFinalReview = model.ReviewClaimFiled
		return false, nil
	}
	if b.HostFinalReview != model.ReviewPending {
		return false, nil
	}
	b.HostFinalReview = model.ReviewAutoApproved
	m.writes++
	return true, nil
}

func (m *memStore) RefundMarker(_ context.Context, id string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, errors.New("booking not found")
	}
	return b.DepositRefundedAt, nil
}

func (m *memStore) FindWalletByEmail(_ context.Context, email string) (*model.WalletProfile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wallets {
		if strings.EqualFold(w.Email, email) {
			cp := *w
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (m *memStore) RecordCardRefund(_ context.Context, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bookings[id]
	if b.Released() {
		return ErrAlreadyReleased
	}
	b.DepositRefundRef = sp(ref)
	m.writes++
	return nil
}

func (m *memStore) Settle(_ context.Context, s *Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settleErr != nil {
		return m.settleErr
	}
	b := m.bookings[s.BookingID]
	if b.Released() {
		return ErrAlreadyReleased
	}
	var w *model.WalletProfile
	if s.WalletAmount.IsPositive() && s.WalletID != "" {
		w = m.wallets[s.WalletID]
		if w == nil {
			return ErrWalletNotFound
		}
	}
	at := s.At
	b.DepositRefundedAt = &at
	b.DepositRefunded = s.NetAmount
	if s.CardRefundRef != "" {
		b.DepositRefundRef = sp(s.CardRefundRef)
	}
	if w != nil {
		w.WalletBalance = w.WalletBalance.Add(s.WalletAmount)
		entry := model.DepositTransaction{
			ID:           "tx-" + s.BookingID,
			WalletID:     w.ID,
			GuestEmail:   s.GuestEmail,
			Type:         model.DepositTxRelease,
			Amount:       s.WalletAmount,
			BalanceAfter: w.WalletBalance,
			BookingID:    s.BookingID,
			Description:  s.Description,
			CreatedAt:    s.At,
		}
		m.ledger = append(m.ledger, entry)
		s.LedgerEntry = &entry
	}
	m.writes++
	return nil
}

// fakeGateway records refund calls and fails for the configured charge refs.
type fakeGateway struct {
	mu      sync.Mutex
	calls   []RefundRequest
	failFor map[string]error
	panicOn string
}

func (g *fakeGateway) IssuePartialRefund(_ context.Context, req RefundRequest) (RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if req.ChargeRef == g.panicOn && g.panicOn != "" {
		panic("gateway exploded")
	}
	g.calls = append(g.calls, req)
	if err := g.failFor[req.ChargeRef]; err != nil {
		return RefundResult{}, err
	}
	return RefundResult{RefundID: "re_" + req.BookingID, Status: "succeeded"}, nil
}

type fakeNotifier struct {
	events []queue.DepositReleasedEvent
}

func (n *fakeNotifier) DepositReleased(ev queue.DepositReleasedEvent) {
	n.events = append(n.events, ev)
}

type fakeLocker struct {
	held map[string]bool
	err  error
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	if l.err != nil {
		return func() {}, false, l.err
	}
	if l.held[key] {
		return func() {}, false, nil
	}
	return func() {}, true, nil
}

type memJournal struct {
	saved []*Report
}

func (j *memJournal) Save(_ context.Context, r *Report) error {
	j.saved = append(j.saved, r)
	return nil
}
