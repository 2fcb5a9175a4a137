package donation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/notify"
)

// Ledger accepts donation submissions and answers queries over them. It never
// touches campaign aggregates: only approved donations count, and approval is
// the Workflow's job.
type Ledger struct {
	repo      Repository
	campaigns Campaigns
	opts      options
}

func NewLedger(repo Repository, campaigns Campaigns, opts ...Option) *Ledger {
	return &Ledger{
		repo:      repo,
		campaigns: campaigns,
		opts:      newOptions(opts),
	}
}

// MinimumDonation is the smallest amount Submit accepts.
func (l *Ledger) MinimumDonation() int64 {
	return l.opts.minimum
}

// MaximumDonation is the largest amount Submit accepts.
func (l *Ledger) MaximumDonation() int64 {
	return l.opts.maximum
}

func (l *Ledger) Submit(ctx context.Context, params SubmitParams) (*Donation, error) {
	if params.Amount < l.opts.minimum {
		return nil, fmt.Errorf("%w (minimum %d)", ErrBelowMinimum, l.opts.minimum)
	}

	if params.Amount > l.opts.maximum {
		return nil, fmt.Errorf("%w (maximum %d)", ErrAboveMaximum, l.opts.maximum)
	}

	proof := strings.TrimSpace(params.ProofURL)
	if proof == "" {
		return nil, ErrMissingProof
	}

	if err := l.opts.proofOK(proof); err != nil {
		return nil, err
	}

	c, err := l.campaigns.Get(ctx, params.CampaignID)
	if err != nil {
		return nil, err
	}

	if c.Status != campaign.StatusActive {
		return nil, campaign.ErrNotActive
	}

	now := l.opts.now()

	ref := strings.TrimSpace(params.PaymentReference)
	if ref == "" {
		ref = NewPaymentReference(now)
	}

	d := &Donation{
		ID:               uuid.New(),
		CampaignID:       c.ID,
		DonorID:          params.Donor.ID,
		DonorName:        strings.TrimSpace(params.Donor.Name),
		DonorEmail:       strings.TrimSpace(params.Donor.Email),
		IsAnonymous:      params.Donor.Anonymous,
		Amount:           params.Amount,
		PaymentReference: ref,
		ProofURL:         proof,
		Status:           StatusPending,
		Message:          strings.TrimSpace(params.Message),
		CreatedAt:        now,
	}

	if err := l.repo.CreateDonation(ctx, d); err != nil {
		return nil, err
	}

	l.opts.metrics.DonationSubmitted(d.Amount)

	creator := c.CreatorID
	l.opts.notifier.Notify(ctx, notify.Event{
		Type:          notify.DonationSubmitted,
		Recipient:     &creator,
		CampaignID:    c.ID,
		CampaignTitle: c.Title,
		DonationID:    d.ID,
		DonorName:     d.DisplayName(),
		Amount:        d.Amount,
		OccurredAt:    now,
	})

	return d, nil
}

func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (*Donation, error) {
	return l.repo.GetDonation(ctx, id)
}

// ListPending is the review queue, oldest submission first.
func (l *Ledger) ListPending(ctx context.Context) ([]*Donation, error) {
	status := StatusPending

	return l.repo.ListDonations(ctx, ListFilter{Status: &status, OldestFirst: true})
}

// ListByDonor is a donor's own history, newest first.
func (l *Ledger) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*Donation, error) {
	return l.repo.ListDonations(ctx, ListFilter{DonorID: &donorID})
}

// ListByCampaign lists the donations of an existing campaign, newest first.
// A nil status lists every donation.
func (l *Ledger) ListByCampaign(ctx context.Context, campaignID uuid.UUID, status *Status) ([]*Donation, error) {
	if _, err := l.campaigns.Get(ctx, campaignID); err != nil {
		return nil, err
	}

	return l.repo.ListDonations(ctx, ListFilter{CampaignID: &campaignID, Status: status})
}

// Supporters lists the approved donations of a campaign as shown to the public.
func (l *Ledger) Supporters(ctx context.Context, campaignID uuid.UUID) ([]*Donation, error) {
	status := StatusApproved

	items, err := l.ListByCampaign(ctx, campaignID, &status)
	if err != nil {
		return nil, err
	}

	out := make([]*Donation, 0, len(items))
	for _, d := range items {
		out = append(out, d.Public())
	}

	return out, nil
}
