package donation_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
	"github.com/MrJamesThe3rd/bantudesa/internal/notify"
	"github.com/MrJamesThe3rd/bantudesa/internal/sentinel"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func openCampaign(id uuid.UUID) *campaign.Campaign {
	return &campaign.Campaign{
		ID:           id,
		Title:        "Posyandu renovation",
		TargetAmount: 5_000_000,
		Deadline:     now.Add(10 * 24 * time.Hour),
		Status:       campaign.StatusActive,
		CreatorID:    uuid.New(),
		Version:      1,
	}
}

func TestLedger_Submit(t *testing.T) {
	campaignID := uuid.New()
	donorID := uuid.New()

	type args struct {
		params donation.SubmitParams
	}

	type testCase struct {
		name      string
		args      args
		setupMock func(repo *donation.MockRepository, campaigns *donation.MockCampaigns, n *donation.MockNotifier)
		wantErr   error
	}

	valid := donation.SubmitParams{
		CampaignID: campaignID,
		Amount:     100_000,
		ProofURL:   "/api/v1/proofs/abc.png",
		Donor:      donation.Donor{ID: &donorID, Name: "Siti", Email: "siti@example.com"},
		Message:    "  semangat ",
	}

	tests := []testCase{
		{
			name: "Success",
			args: args{params: valid},
			setupMock: func(repo *donation.MockRepository, campaigns *donation.MockCampaigns, n *donation.MockNotifier) {
				c := openCampaign(campaignID)

				campaigns.EXPECT().Get(gomock.Any(), campaignID).Return(c, nil)
				repo.EXPECT().CreateDonation(gomock.Any(), gomock.Any()).Return(nil)
				n.EXPECT().
					Notify(gomock.Any(), gomock.Any()).
					Do(func(_ context.Context, e notify.Event) {
						assert.Equal(t, notify.DonationSubmitted, e.Type)
						require.NotNil(t, e.Recipient)
						assert.Equal(t, c.CreatorID, *e.Recipient)
						assert.Equal(t, int64(100_000), e.Amount)
					})
			},
		},
		{
			name: "BelowMinimum",
			args: args{params: donation.SubmitParams{
				CampaignID: campaignID,
				Amount:     9_999,
				ProofURL:   "/api/v1/proofs/abc.png",
			}},
			wantErr: donation.ErrBelowMinimum,
		},
		{
			name: "AboveMaximum",
			args: args{params: donation.SubmitParams{
				CampaignID: campaignID,
				Amount:     donation.DefaultMaximumDonation + 1,
				ProofURL:   "/api/v1/proofs/abc.png",
			}},
			wantErr: donation.ErrAboveMaximum,
		},
		{
			name: "MissingProof",
			args: args{params: donation.SubmitParams{
				CampaignID: campaignID,
				Amount:     10_000,
				ProofURL:   "   ",
			}},
			wantErr: donation.ErrMissingProof,
		},
		{
			name: "UnknownCampaign",
			args: args{params: valid},
			setupMock: func(_ *donation.MockRepository, campaigns *donation.MockCampaigns, _ *donation.MockNotifier) {
				campaigns.EXPECT().Get(gomock.Any(), campaignID).Return(nil, campaign.ErrNotFound)
			},
			wantErr: sentinel.ErrNotFound,
		},
		{
			name: "CampaignClosed",
			args: args{params: valid},
			setupMock: func(_ *donation.MockRepository, campaigns *donation.MockCampaigns, _ *donation.MockNotifier) {
				c := openCampaign(campaignID)
				c.Status = campaign.StatusClosed

				campaigns.EXPECT().Get(gomock.Any(), campaignID).Return(c, nil)
			},
			wantErr: campaign.ErrNotActive,
		},
		{
			name: "RepoError",
			args: args{params: valid},
			setupMock: func(repo *donation.MockRepository, campaigns *donation.MockCampaigns, _ *donation.MockNotifier) {
				campaigns.EXPECT().Get(gomock.Any(), campaignID).Return(openCampaign(campaignID), nil)
				repo.EXPECT().CreateDonation(gomock.Any(), gomock.Any()).Return(errors.New("db error"))
			},
			wantErr: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := donation.NewMockRepository(ctrl)
			campaigns := donation.NewMockCampaigns(ctrl)
			notifier := donation.NewMockNotifier(ctrl)

			if tt.setupMock != nil {
				tt.setupMock(repo, campaigns, notifier)
			}

			ledger := donation.NewLedger(repo, campaigns,
				donation.WithClock(clock),
				donation.WithNotifier(notifier),
			)

			got, err := ledger.Submit(context.Background(), tt.args.params)

			if tt.wantErr != nil {
				assert.Error(t, err)
				assert.Nil(t, got)

				if sentinel.Kind(tt.wantErr) != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}

				return
			}

			require.NoError(t, err)
			assert.Equal(t, donation.StatusPending, got.Status)
			assert.Equal(t, campaignID, got.CampaignID)
			assert.Equal(t, "semangat", got.Message)
			assert.Nil(t, got.DecidedAt)
			assert.True(t, strings.HasPrefix(got.PaymentReference, "DON-"))
		})
	}
}

func TestLedger_Submit_CustomMinimum(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := donation.NewMockRepository(ctrl)
	campaigns := donation.NewMockCampaigns(ctrl)

	ledger := donation.NewLedger(repo, campaigns, donation.WithMinimumDonation(50_000))
	assert.Equal(t, int64(50_000), ledger.MinimumDonation())

	_, err := ledger.Submit(context.Background(), donation.SubmitParams{
		CampaignID: uuid.New(),
		Amount:     20_000,
		ProofURL:   "proof.png",
	})
	assert.ErrorIs(t, err, donation.ErrBelowMinimum)
	assert.ErrorIs(t, err, sentinel.ErrValidation)
}

func TestLedger_Submit_CustomMaximum(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := donation.NewMockRepository(ctrl)
	campaigns := donation.NewMockCampaigns(ctrl)

	ledger := donation.NewLedger(repo, campaigns, donation.WithMaximumDonation(1_000_000))
	assert.Equal(t, int64(1_000_000), ledger.MaximumDonation())

	_, err := ledger.Submit(context.Background(), donation.SubmitParams{
		CampaignID: uuid.New(),
		Amount:     math.MaxInt64,
		ProofURL:   "proof.png",
	})
	assert.ErrorIs(t, err, donation.ErrAboveMaximum)
	assert.ErrorIs(t, err, sentinel.ErrValidation)
}

func TestLedger_Submit_ProofCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := donation.NewMockRepository(ctrl)
	campaigns := donation.NewMockCampaigns(ctrl)

	ledger := donation.NewLedger(repo, campaigns, donation.WithProofCheck(func(url string) error {
		if strings.HasPrefix(url, "http://localhost:8080/api/v1/proofs/") {
			return nil
		}

		return donation.ErrForeignProof
	}))

	// Rejected before the campaign is looked up.
	_, err := ledger.Submit(context.Background(), donation.SubmitParams{
		CampaignID: uuid.New(),
		Amount:     50_000,
		ProofURL:   "http://169.254.169.254/latest/meta-data",
	})
	assert.ErrorIs(t, err, donation.ErrForeignProof)
	assert.ErrorIs(t, err, sentinel.ErrValidation)
}

func TestLedger_Submit_KeepsGivenReference(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	campaignID := uuid.New()
	repo := donation.NewMockRepository(ctrl)
	campaigns := donation.NewMockCampaigns(ctrl)

	campaigns.EXPECT().Get(gomock.Any(), campaignID).Return(openCampaign(campaignID), nil)
	repo.EXPECT().CreateDonation(gomock.Any(), gomock.Any()).Return(nil)

	ledger := donation.NewLedger(repo, campaigns, donation.WithClock(clock))
	got, err := ledger.Submit(context.Background(), donation.SubmitParams{
		CampaignID:       campaignID,
		Amount:           25_000,
		ProofURL:         "proof.pdf",
		Donor:            donation.Donor{Name: "Budi", Anonymous: true},
		PaymentReference: " TRF-001 ",
	})
	require.NoError(t, err)
	assert.Equal(t, "TRF-001", got.PaymentReference)
	assert.Nil(t, got.DonorID)
	assert.Equal(t, donation.AnonymousName, got.DisplayName())
}

func TestLedger_ListPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := donation.NewMockRepository(ctrl)
	pending := donation.StatusPending

	repo.EXPECT().
		ListDonations(gomock.Any(), donation.ListFilter{Status: &pending, OldestFirst: true}).
		Return([]*donation.Donation{{ID: uuid.New()}, {ID: uuid.New()}}, nil)

	ledger := donation.NewLedger(repo, donation.NewMockCampaigns(ctrl))
	got, err := ledger.ListPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLedger_Supporters(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	campaignID := uuid.New()
	donorID := uuid.New()
	repo := donation.NewMockRepository(ctrl)
	campaigns := donation.NewMockCampaigns(ctrl)
	approved := donation.StatusApproved

	campaigns.EXPECT().Get(gomock.Any(), campaignID).Return(openCampaign(campaignID), nil)
	repo.EXPECT().
		ListDonations(gomock.Any(), donation.ListFilter{CampaignID: &campaignID, Status: &approved}).
		Return([]*donation.Donation{
			{ID: uuid.New(), DonorName: "Rina", DonorEmail: "rina@example.com", ProofURL: "a.png", Amount: 10_000},
			{ID: uuid.New(), DonorID: &donorID, DonorName: "Agus", IsAnonymous: true, Amount: 20_000},
		}, nil)

	ledger := donation.NewLedger(repo, campaigns)
	got, err := ledger.Supporters(context.Background(), campaignID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Rina", got[0].DonorName)
	assert.Empty(t, got[0].DonorEmail)
	assert.Empty(t, got[0].ProofURL)

	assert.Equal(t, donation.AnonymousName, got[1].DonorName)
	assert.Nil(t, got[1].DonorID)
}

func TestParseOutcome(t *testing.T) {
	got, err := donation.ParseOutcome("approve")
	require.NoError(t, err)
	assert.Equal(t, donation.OutcomeApprove, got)
	assert.Equal(t, donation.StatusApproved, got.Status())

	got, err = donation.ParseOutcome(" REJECT")
	require.NoError(t, err)
	assert.Equal(t, donation.StatusRejected, got.Status())

	_, err = donation.ParseOutcome("maybe")
	assert.ErrorIs(t, err, donation.ErrInvalidOutcome)
}
