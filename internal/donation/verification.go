package donation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/notify"
)

// Workflow applies administrator decisions to pending donations. An approval
// credits the campaign exactly once, in the same unit of work that marks the
// donation APPROVED.
type Workflow struct {
	repo Repository
	opts options
}

func NewWorkflow(repo Repository, opts ...Option) *Workflow {
	w := &Workflow{
		repo: repo,
		opts: newOptions(opts),
	}

	onRetry := w.opts.retry.OnRetry
	w.opts.retry.OnRetry = func(err error, wait time.Duration) {
		w.opts.metrics.DecisionRetried()
		w.opts.logger.Debug("retrying decision", "error", err, "wait", wait)

		if onRetry != nil {
			onRetry(err, wait)
		}
	}

	return w
}

// Decision is the committed result of Decide.
type Decision struct {
	Donation    *Donation
	Campaign    *campaign.Campaign
	CloseReason campaign.CloseReason
}

func (w *Workflow) Decide(ctx context.Context, params DecideParams) (*Decision, error) {
	if params.Outcome != OutcomeApprove && params.Outcome != OutcomeReject {
		return nil, fmt.Errorf("%w %q", ErrInvalidOutcome, params.Outcome)
	}

	d, err := w.repo.GetDonation(ctx, params.DonationID)
	if err != nil {
		return nil, err
	}

	if d.Status != StatusPending {
		return nil, fmt.Errorf("%w (status %s)", ErrAlreadyDecided, d.Status)
	}

	start := w.opts.now()

	var decision *Decision

	err = w.opts.retry.Do(ctx, func() error {
		var err error

		decision, err = w.decide(ctx, d.CampaignID, params)

		return err
	})
	if err != nil {
		return nil, err
	}

	w.opts.metrics.DonationDecided(params.Outcome, decision.Donation.Amount, w.opts.now().Sub(start))
	w.opts.views.Invalidate(ctx, decision.Campaign.ID)

	if decision.CloseReason != campaign.CloseReasonNone {
		w.opts.observer.CampaignClosed(decision.CloseReason, 1)
	}

	w.notify(ctx, decision)

	return decision, nil
}

func (w *Workflow) decide(ctx context.Context, campaignID uuid.UUID, params DecideParams) (*Decision, error) {
	tx, err := w.repo.BeginDecision(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("begin decision: %w", err)
	}
	defer tx.Rollback()

	d, err := tx.GetDonation(ctx, params.DonationID)
	if err != nil {
		return nil, err
	}

	if d.CampaignID != campaignID {
		return nil, fmt.Errorf("donation %s moved from campaign %s to %s", d.ID, campaignID, d.CampaignID)
	}

	now := w.opts.now()
	if err := d.Decide(params.Outcome, params.ActorID, params.Reason, now); err != nil {
		return nil, err
	}

	c, err := tx.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if params.Outcome == OutcomeApprove {
		if d.Amount > math.MaxInt64-c.CollectedAmount {
			return nil, fmt.Errorf("%w (collected %d, donation %d)", ErrTotalOverflow, c.CollectedAmount, d.Amount)
		}

		c.CollectedAmount += d.Amount
		c.DonorCount++
	}

	reason, closed := campaign.Transition(c, now)

	if err := tx.SaveDecision(ctx, d); err != nil {
		return nil, err
	}

	if params.Outcome == OutcomeApprove || closed {
		if err := tx.SaveCampaign(ctx, c); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decision: %w", err)
	}

	return &Decision{Donation: d, Campaign: c, CloseReason: reason}, nil
}

func (w *Workflow) notify(ctx context.Context, decision *Decision) {
	d := decision.Donation

	eventType := notify.DonationRejected
	if d.Status == StatusApproved {
		eventType = notify.DonationApproved
	}

	w.opts.notifier.Notify(ctx, notify.Event{
		Type:          eventType,
		Recipient:     d.DonorID,
		CampaignID:    d.CampaignID,
		CampaignTitle: decision.Campaign.Title,
		DonationID:    d.ID,
		DonorName:     d.DisplayName(),
		Amount:        d.Amount,
		Reason:        d.Reason,
		OccurredAt:    *d.DecidedAt,
	})
}
