package donation_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
	"github.com/MrJamesThe3rd/bantudesa/internal/notify"
	"github.com/MrJamesThe3rd/bantudesa/internal/retry"
	"github.com/MrJamesThe3rd/bantudesa/internal/sentinel"
)

func fastRetry(attempts int) donation.Option {
	return donation.WithRetry(retry.Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	})
}

func pendingDonation(campaignID uuid.UUID, amount int64) *donation.Donation {
	donor := uuid.New()

	return &donation.Donation{
		ID:               uuid.New(),
		CampaignID:       campaignID,
		DonorID:          &donor,
		DonorName:        "Dewi",
		Amount:           amount,
		PaymentReference: "DON-1-ABCDEF12",
		ProofURL:         "proof.png",
		Status:           donation.StatusPending,
		CreatedAt:        now.Add(-time.Hour),
	}
}

func TestWorkflow_Decide_Approve(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	campaignID := uuid.New()
	actor := uuid.New()
	d := pendingDonation(campaignID, 100_000)

	repo := donation.NewMockRepository(ctrl)
	tx := donation.NewMockDecisionTx(ctrl)
	notifier := donation.NewMockNotifier(ctrl)
	metrics := donation.NewMockMetrics(ctrl)
	views := campaign.NewMockViews(ctrl)

	repo.EXPECT().GetDonation(gomock.Any(), d.ID).Return(d, nil)
	repo.EXPECT().BeginDecision(gomock.Any(), campaignID).Return(tx, nil)
	tx.EXPECT().GetDonation(gomock.Any(), d.ID).Return(pendingDonation(campaignID, 100_000), nil)
	tx.EXPECT().GetCampaign(gomock.Any(), campaignID).Return(openCampaign(campaignID), nil)
	tx.EXPECT().
		SaveDecision(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got *donation.Donation) error {
			assert.Equal(t, donation.StatusApproved, got.Status)
			require.NotNil(t, got.DecidedBy)
			assert.Equal(t, actor, *got.DecidedBy)
			return nil
		})
	tx.EXPECT().
		SaveCampaign(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c *campaign.Campaign) error {
			assert.Equal(t, int64(100_000), c.CollectedAmount)
			assert.Equal(t, int64(1), c.DonorCount)
			c.Version++
			return nil
		})
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(nil)
	metrics.EXPECT().DonationDecided(donation.OutcomeApprove, int64(100_000), gomock.Any())
	views.EXPECT().Invalidate(gomock.Any(), campaignID)
	notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e notify.Event) {
			assert.Equal(t, notify.DonationApproved, e.Type)
			assert.NotNil(t, e.Recipient)
			assert.Equal(t, "Dewi", e.DonorName)
		})

	w := donation.NewWorkflow(repo,
		donation.WithClock(clock),
		donation.WithNotifier(notifier),
		donation.WithMetrics(metrics),
		donation.WithViews(views),
	)

	got, err := w.Decide(context.Background(), donation.DecideParams{
		DonationID: d.ID,
		Outcome:    donation.OutcomeApprove,
		ActorID:    actor,
	})
	require.NoError(t, err)
	assert.Equal(t, donation.StatusApproved, got.Donation.Status)
	assert.Equal(t, campaign.StatusActive, got.Campaign.Status)
	assert.Equal(t, campaign.CloseReasonNone, got.CloseReason)
	assert.Equal(t, int64(2), got.Campaign.Version)
}

func TestWorkflow_Decide_RejectLeavesAggregate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	campaignID := uuid.New()
	d := pendingDonation(campaignID, 100_000)

	repo := donation.NewMockRepository(ctrl)
	tx := donation.NewMockDecisionTx(ctrl)

	repo.EXPECT().GetDonation(gomock.Any(), d.ID).Return(d, nil)
	repo.EXPECT().BeginDecision(gomock.Any(), campaignID).Return(tx, nil)
	tx.EXPECT().GetDonation(gomock.Any(), d.ID).Return(pendingDonation(campaignID, 100_000), nil)
	tx.EXPECT().GetCampaign(gomock.Any(), campaignID).Return(openCampaign(campaignID), nil)
	tx.EXPECT().SaveDecision(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(nil)

	w := donation.NewWorkflow(repo, donation.WithClock(clock))

	got, err := w.Decide(context.Background(), donation.DecideParams{
		DonationID: d.ID,
		Outcome:    donation.OutcomeReject,
		ActorID:    uuid.New(),
		Reason:     " blurry proof ",
	})
	require.NoError(t, err)
	assert.Equal(t, donation.StatusRejected, got.Donation.Status)
	assert.Equal(t, "blurry proof", got.Donation.Reason)
	assert.Zero(t, got.Campaign.CollectedAmount)
	assert.Zero(t, got.Campaign.DonorCount)
}

func TestWorkflow_Decide_ApprovalReachingTargetCloses(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	campaignID := uuid.New()
	d := pendingDonation(campaignID, 3_000_000)

	funded := openCampaign(campaignID)
	funded.CollectedAmount = 3_000_000
	funded.DonorCount = 1

	repo := donation.NewMockRepository(ctrl)
	tx := donation.NewMockDecisionTx(ctrl)
	obs := campaign.NewMockObserver(ctrl)

	repo.EXPECT().GetDonation(gomock.Any(), d.ID).Return(d, nil)
	repo.EXPECT().BeginDecision(gomock.Any(), campaignID).Return(tx, nil)
	tx.EXPECT().GetDonation(gomock.Any(), d.ID).Return(pendingDonation(campaignID, 3_000_000), nil)
	tx.EXPECT().GetCampaign(gomock.Any(), campaignID).Return(funded, nil)
	tx.EXPECT().SaveDecision(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().SaveCampaign(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(nil)
	obs.EXPECT().CampaignClosed(campaign.CloseReasonTarget, 1)

	w := donation.NewWorkflow(repo, donation.WithClock(clock), donation.WithObserver(obs))

	got, err := w.Decide(context.Background(), donation.DecideParams{
		DonationID: d.ID,
		Outcome:    donation.OutcomeApprove,
		ActorID:    uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusClosed, got.Campaign.Status)
	assert.Equal(t, int64(6_000_000), got.Campaign.CollectedAmount)
	assert.InDelta(t, 100.0, campaign.PercentFunded(got.Campaign.CollectedAmount, got.Campaign.TargetAmount), 1e-9)
}

func TestWorkflow_Decide_Guards(t *testing.T) {
	campaignID := uuid.New()

	type testCase struct {
		name      string
		outcome   donation.Outcome
		setupMock func(repo *donation.MockRepository, id uuid.UUID)
		wantErr   error
	}

	tests := []testCase{
		{
			name:    "InvalidOutcome",
			outcome: donation.Outcome("MAYBE"),
			wantErr: sentinel.ErrValidation,
		},
		{
			name:    "NotFound",
			outcome: donation.OutcomeApprove,
			setupMock: func(repo *donation.MockRepository, id uuid.UUID) {
				repo.EXPECT().GetDonation(gomock.Any(), id).Return(nil, donation.ErrNotFound)
			},
			wantErr: sentinel.ErrNotFound,
		},
		{
			name:    "AlreadyDecided",
			outcome: donation.OutcomeApprove,
			setupMock: func(repo *donation.MockRepository, id uuid.UUID) {
				d := pendingDonation(campaignID, 10_000)
				d.ID = id
				d.Status = donation.StatusRejected

				repo.EXPECT().GetDonation(gomock.Any(), id).Return(d, nil)
			},
			wantErr: donation.ErrAlreadyDecided,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			id := uuid.New()
			repo := donation.NewMockRepository(ctrl)

			if tt.setupMock != nil {
				tt.setupMock(repo, id)
			}

			w := donation.NewWorkflow(repo, donation.WithClock(clock))
			got, err := w.Decide(context.Background(), donation.DecideParams{
				DonationID: id,
				Outcome:    tt.outcome,
				ActorID:    uuid.New(),
			})

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func TestWorkflow_Decide_FailureRollsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	campaignID := uuid.New()
	d := pendingDonation(campaignID, 50_000)

	repo := donation.NewMockRepository(ctrl)
	tx := donation.NewMockDecisionTx(ctrl)
	notifier := donation.NewMockNotifier(ctrl)

	repo.EXPECT().GetDonation(gomock.Any(), d.ID).Return(d, nil)
	repo.EXPECT().BeginDecision(gomock.Any(), campaignID).Return(tx, nil)
	tx.EXPECT().GetDonation(gomock.Any(), d.ID).Return(pendingDonation(campaignID, 50_000), nil)
	tx.EXPECT().GetCampaign(gomock.Any(), campaignID).Return(openCampaign(campaignID), nil)
	tx.EXPECT().SaveDecision(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().SaveCampaign(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	tx.EXPECT().Rollback().Return(nil)
	// No Commit and no notification.

	w := donation.NewWorkflow(repo, donation.WithClock(clock), donation.WithNotifier(notifier))

	_, err := w.Decide(context.Background(), donation.DecideParams{
		DonationID: d.ID,
		Outcome:    donation.OutcomeApprove,
		ActorID:    uuid.New(),
	})
	require.Error(t, err)
	assert.Nil(t, sentinel.Kind(err))
}

func TestWorkflow_Decide_RefusesTotalOverflow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	campaignID := uuid.New()
	d := pendingDonation(campaignID, 10_000)

	nearlyFull := openCampaign(campaignID)
	nearlyFull.TargetAmount = math.MaxInt64
	nearlyFull.CollectedAmount = math.MaxInt64 - 5_000
	nearlyFull.DonorCount = 1

	repo := donation.NewMockRepository(ctrl)
	tx := donation.NewMockDecisionTx(ctrl)
	views := campaign.NewMockViews(ctrl)

	repo.EXPECT().GetDonation(gomock.Any(), d.ID).Return(d, nil)
	repo.EXPECT().BeginDecision(gomock.Any(), campaignID).Return(tx, nil)
	tx.EXPECT().GetDonation(gomock.Any(), d.ID).Return(pendingDonation(campaignID, 10_000), nil)
	tx.EXPECT().GetCampaign(gomock.Any(), campaignID).Return(nearlyFull, nil)
	tx.EXPECT().Rollback().Return(nil)
	// Nothing saved, committed or invalidated.

	w := donation.NewWorkflow(repo, donation.WithClock(clock), donation.WithViews(views), fastRetry(3))

	got, err := w.Decide(context.Background(), donation.DecideParams{
		DonationID: d.ID,
		Outcome:    donation.OutcomeApprove,
		ActorID:    uuid.New(),
	})
	assert.ErrorIs(t, err, donation.ErrTotalOverflow)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	assert.Nil(t, got)
}

func TestWorkflow_Decide_RetriesLostRace(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	campaignID := uuid.New()
	d := pendingDonation(campaignID, 20_000)

	repo := donation.NewMockRepository(ctrl)
	first := donation.NewMockDecisionTx(ctrl)
	second := donation.NewMockDecisionTx(ctrl)
	metrics := donation.NewMockMetrics(ctrl)

	repo.EXPECT().GetDonation(gomock.Any(), d.ID).Return(d, nil)

	gomock.InOrder(
		repo.EXPECT().BeginDecision(gomock.Any(), campaignID).Return(first, nil),
		repo.EXPECT().BeginDecision(gomock.Any(), campaignID).Return(second, nil),
	)

	first.EXPECT().GetDonation(gomock.Any(), d.ID).Return(pendingDonation(campaignID, 20_000), nil)
	first.EXPECT().GetCampaign(gomock.Any(), campaignID).Return(openCampaign(campaignID), nil)
	first.EXPECT().SaveDecision(gomock.Any(), gomock.Any()).Return(nil)
	first.EXPECT().SaveCampaign(gomock.Any(), gomock.Any()).Return(campaign.ErrStaleVersion)
	first.EXPECT().Rollback().Return(nil)

	second.EXPECT().GetDonation(gomock.Any(), d.ID).Return(pendingDonation(campaignID, 20_000), nil)
	second.EXPECT().GetCampaign(gomock.Any(), campaignID).Return(openCampaign(campaignID), nil)
	second.EXPECT().SaveDecision(gomock.Any(), gomock.Any()).Return(nil)
	second.EXPECT().SaveCampaign(gomock.Any(), gomock.Any()).Return(nil)
	second.EXPECT().Commit().Return(nil)
	second.EXPECT().Rollback().Return(nil)

	metrics.EXPECT().DecisionRetried()
	metrics.EXPECT().DonationDecided(donation.OutcomeApprove, int64(20_000), gomock.Any())

	w := donation.NewWorkflow(repo, donation.WithClock(clock), donation.WithMetrics(metrics), fastRetry(3))

	got, err := w.Decide(context.Background(), donation.DecideParams{
		DonationID: d.ID,
		Outcome:    donation.OutcomeApprove,
		ActorID:    uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20_000), got.Campaign.CollectedAmount)
}

func TestWorkflow_Decide_RetriesExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	campaignID := uuid.New()
	d := pendingDonation(campaignID, 20_000)

	repo := donation.NewMockRepository(ctrl)

	repo.EXPECT().GetDonation(gomock.Any(), d.ID).Return(d, nil)
	repo.EXPECT().BeginDecision(gomock.Any(), campaignID).Return(nil, campaign.ErrStaleVersion).Times(2)

	w := donation.NewWorkflow(repo, donation.WithClock(clock), fastRetry(2))

	_, err := w.Decide(context.Background(), donation.DecideParams{
		DonationID: d.ID,
		Outcome:    donation.OutcomeApprove,
		ActorID:    uuid.New(),
	})
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.ErrorIs(t, err, sentinel.ErrConcurrency)
}
