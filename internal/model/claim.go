package model

// ClaimStatus is the lifecycle state of a damage claim filed against a
// booking.  Claims are created and moved by the claims workflow; the release
// engine only counts the open ones.
type ClaimStatus string

const (
	ClaimPending              ClaimStatus = "PENDING"
	ClaimUnderReview          ClaimStatus = "UNDER_REVIEW"
	ClaimGuestResponsePending ClaimStatus = "GUEST_RESPONSE_PENDING"
	ClaimVehicleRepairPending ClaimStatus = "VEHICLE_REPAIR_PENDING"
	ClaimInsuranceProcessing  ClaimStatus = "INSURANCE_PROCESSING"

	ClaimApproved  ClaimStatus = "APPROVED"
	ClaimDenied    ClaimStatus = "DENIED"
	ClaimPaid      ClaimStatus = "PAID"
	ClaimResolved  ClaimStatus = "RESOLVED"
	ClaimClosed    ClaimStatus = "CLOSED"
	ClaimWithdrawn ClaimStatus = "WITHDRAWN"
)

// OpenClaimStatuses lists every status that blocks a deposit release.
var OpenClaimStatuses = []ClaimStatus{
	ClaimPending,
	ClaimUnderReview,
	ClaimGuestResponsePending,
	ClaimVehicleRepairPending,
	ClaimInsuranceProcessing,
}

// IsOpen reports whether the claim still blocks the deposit.
func (s ClaimStatus) IsOpen() bool {
	for _, o := range OpenClaimStatuses {
		if s == o {
			return true
		}
	}
	return false
}

// Claim is a dispute filed by the host against a completed booking.
type Claim struct {
	ID        string      // claims.id
	BookingID string      // claims.booking_id
	Status    ClaimStatus // claims.status
}
