package notify

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	DonationSubmitted EventType = "donation.submitted"
	DonationApproved  EventType = "donation.approved"
	DonationRejected  EventType = "donation.rejected"
)

// Event describes something a person should hear about. Recipient is nil for
// guest donors, in which case only publishers without per-user delivery act on it.
type Event struct {
	Type          EventType  `json:"type"`
	Recipient     *uuid.UUID `json:"recipient,omitempty"`
	CampaignID    uuid.UUID  `json:"campaignId"`
	CampaignTitle string     `json:"campaignTitle"`
	DonationID    uuid.UUID  `json:"donationId"`
	DonorName     string     `json:"donorName"`
	Amount        int64      `json:"amount"`
	Reason        string     `json:"reason,omitempty"`
	OccurredAt    time.Time  `json:"occurredAt"`
}
