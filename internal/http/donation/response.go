package donation

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
)

type submitResponse struct {
	ID               uuid.UUID       `json:"id"`
	Status           donation.Status `json:"status"`
	PaymentReference string          `json:"paymentReference"`
	Amount           int64           `json:"amount"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type donationResponse struct {
	ID               uuid.UUID       `json:"id"`
	CampaignID       uuid.UUID       `json:"campaignId"`
	DonorID          *uuid.UUID      `json:"donorId,omitempty"`
	DonorName        string          `json:"donorName"`
	DonorEmail       string          `json:"donorEmail,omitempty"`
	IsAnonymous      bool            `json:"isAnonymous"`
	Amount           int64           `json:"amount"`
	PaymentReference string          `json:"paymentReference"`
	ProofURL         string          `json:"proofUrl,omitempty"`
	Status           donation.Status `json:"status"`
	Message          string          `json:"message,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	DecidedAt        *time.Time      `json:"decidedAt,omitempty"`
	DecidedBy        *uuid.UUID      `json:"decidedBy,omitempty"`
}

type publicResponse struct {
	ID        uuid.UUID `json:"id"`
	DonorName string    `json:"donorName"`
	Amount    int64     `json:"amount"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type decisionResponse struct {
	donationResponse
	CampaignStatus  string `json:"campaignStatus"`
	CollectedAmount int64  `json:"collectedAmount"`
	DonorCount      int64  `json:"donorCount"`
}

func toResponse(d *donation.Donation) donationResponse {
	return donationResponse{
		ID:               d.ID,
		CampaignID:       d.CampaignID,
		DonorID:          d.DonorID,
		DonorName:        d.DonorName,
		DonorEmail:       d.DonorEmail,
		IsAnonymous:      d.IsAnonymous,
		Amount:           d.Amount,
		PaymentReference: d.PaymentReference,
		ProofURL:         d.ProofURL,
		Status:           d.Status,
		Message:          d.Message,
		Reason:           d.Reason,
		CreatedAt:        d.CreatedAt,
		DecidedAt:        d.DecidedAt,
		DecidedBy:        d.DecidedBy,
	}
}

func toResponseList(ds []*donation.Donation) []donationResponse {
	resp := make([]donationResponse, len(ds))
	for i, d := range ds {
		resp[i] = toResponse(d)
	}

	return resp
}

// toPublicList expects donations already passed through Donation.Public.
func toPublicList(ds []*donation.Donation) []publicResponse {
	resp := make([]publicResponse, len(ds))
	for i, d := range ds {
		resp[i] = publicResponse{
			ID:        d.ID,
			DonorName: d.DonorName,
			Amount:    d.Amount,
			Message:   d.Message,
			CreatedAt: d.CreatedAt,
		}
	}

	return resp
}

func toDecisionResponse(dec *donation.Decision) decisionResponse {
	return decisionResponse{
		donationResponse: toResponse(dec.Donation),
		CampaignStatus:   string(dec.Campaign.Status),
		CollectedAmount:  dec.Campaign.CollectedAmount,
		DonorCount:       dec.Campaign.DonorCount,
	}
}
