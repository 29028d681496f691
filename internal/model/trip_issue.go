package model

// TripIssueStatus is the state of a lightweight incident reported during or
// after a trip (fuel, cleanliness, late return).
type TripIssueStatus string

const (
	TripIssueOpen              TripIssueStatus = "OPEN"
	TripIssueInvestigating     TripIssueStatus = "INVESTIGATING"
	TripIssuePendingResolution TripIssueStatus = "PENDING_RESOLUTION"
	TripIssueResolved          TripIssueStatus = "RESOLVED"
	TripIssueClosed            TripIssueStatus = "CLOSED"
	TripIssueDismissed         TripIssueStatus = "DISMISSED"
)

// OpenTripIssueStatuses lists the statuses that gate a release the same way
// an open claim does.
var OpenTripIssueStatuses = []TripIssueStatus{
	TripIssueOpen,
	TripIssueInvestigating,
	TripIssuePendingResolution,
}

// IsOpen reports whether the issue still blocks the deposit.
func (s TripIssueStatus) IsOpen() bool {
	for _, o := range OpenTripIssueStatuses {
		if s == o {
			return true
		}
	}
	return false
}

// TripIssue mirrors a trip_issues row.
type TripIssue struct {
	ID        string          // trip_issues.id
	BookingID string          // trip_issues.booking_id
	Status    TripIssueStatus // trip_issues.status
}
