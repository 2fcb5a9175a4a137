package campaign

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
)

type campaignResponse struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	ImageURL        string          `json:"imageUrl,omitempty"`
	Location        string          `json:"location,omitempty"`
	ContactPhone    string          `json:"contactPhone,omitempty"`
	TargetAmount    int64           `json:"targetAmount"`
	CollectedAmount int64           `json:"collectedAmount"`
	DonorCount      int64           `json:"donorCount"`
	PercentFunded   float64         `json:"percentFunded"`
	DaysLeft        int             `json:"daysLeft"`
	Deadline        time.Time       `json:"deadline"`
	Status          campaign.Status `json:"status"`
	CreatorID       uuid.UUID       `json:"creatorId"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	ClosedAt        *time.Time      `json:"closedAt,omitempty"`
}

type supporterResponse struct {
	ID        uuid.UUID `json:"id"`
	DonorName string    `json:"donorName"`
	Amount    int64     `json:"amount"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type detailResponse struct {
	campaignResponse
	Supporters []supporterResponse `json:"supporters"`
}

type listResponse struct {
	Items []campaignResponse `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

func toResponse(c *campaign.Campaign, now time.Time) campaignResponse {
	p := campaign.ProgressOf(c, now)

	return campaignResponse{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		ImageURL:        c.ImageURL,
		Location:        c.Location,
		ContactPhone:    c.ContactPhone,
		TargetAmount:    c.TargetAmount,
		CollectedAmount: c.CollectedAmount,
		DonorCount:      c.DonorCount,
		PercentFunded:   p.PercentFunded,
		DaysLeft:        p.DaysLeft,
		Deadline:        c.Deadline,
		Status:          c.Status,
		CreatorID:       c.CreatorID,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		ClosedAt:        c.ClosedAt,
	}
}

func toSupporters(ds []*donation.Donation) []supporterResponse {
	resp := make([]supporterResponse, len(ds))
	for i, d := range ds {
		resp[i] = supporterResponse{
			ID:        d.ID,
			DonorName: d.DonorName,
			Amount:    d.Amount,
			Message:   d.Message,
			CreatedAt: d.CreatedAt,
		}
	}

	return resp
}

func toListResponse(page *campaign.Page, now time.Time) listResponse {
	items := make([]campaignResponse, len(page.Items))
	for i, c := range page.Items {
		items[i] = toResponse(c, now)
	}

	return listResponse{
		Items: items,
		Total: page.Total,
		Page:  page.Page,
		Limit: page.PageSize,
	}
}
