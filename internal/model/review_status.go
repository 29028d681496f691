package model

import (
	"fmt"
	"strings"
	"time"
)

// ReviewStatus is the host's post-trip review state for a booking.  Bookings
// created before host reviews existed carry no status at all (ReviewNone).
type ReviewStatus string

const (
	ReviewNone         ReviewStatus = ""
	ReviewPending      ReviewStatus = "PENDING_REVIEW"
	ReviewApproved     ReviewStatus = "APPROVED"
	ReviewAutoApproved ReviewStatus = "AUTO_APPROVED"
	ReviewClaimFiled   ReviewStatus = "CLAIM_FILED"
)

// ParseReviewStatus maps a stored column value onto the enum.  NULL and empty
// strings are the legacy "no review" state; anything unknown is an error so a
// typo in the database never silently releases a deposit.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch ReviewStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case ReviewNone:
		return ReviewNone, nil
	case ReviewPending:
		return ReviewPending, nil
	case ReviewApproved:
		return ReviewApproved, nil
	case ReviewAutoApproved:
		return ReviewAutoApproved, nil
	case ReviewClaimFiled:
		return ReviewClaimFiled, nil
	}
	return ReviewNone, fmt.Errorf("unknown host review status %q", s)
}

// IsLegacy reports whether the booking predates host reviews.
func (s ReviewStatus) IsLegacy() bool { return s == ReviewNone }

// Approved reports whether the host (or the deadline) cleared the deposit.
func (s ReviewStatus) Approved() bool {
	return s == ReviewApproved || s == ReviewAutoApproved
}

// AutoApprove is the single transition the release engine may perform on a
// review: a PENDING_REVIEW whose deadline is at or before now becomes
// AUTO_APPROVED.  Any other input is returned unchanged with ok=false.
func (s ReviewStatus) AutoApprove(deadline *time.Time, now time.Time) (next ReviewStatus, ok bool) {
	if s != ReviewPending || deadline == nil || deadline.After(now) {
		return s, false
	}
	return ReviewAutoApproved, true
}

// String renders the legacy state as "NONE" for logs and reports.
func (s ReviewStatus) String() string {
	if s == ReviewNone {
		return "NONE"
	}
	return string(s)
}
