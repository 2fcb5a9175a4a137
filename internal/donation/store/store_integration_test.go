//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	campaignStore "github.com/MrJamesThe3rd/bantudesa/internal/campaign/store"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation/store"
	"github.com/MrJamesThe3rd/bantudesa/internal/retry"
	"github.com/MrJamesThe3rd/bantudesa/internal/testutil/containers"
)

type env struct {
	registry *campaign.Service
	ledger   *donation.Ledger
	workflow *donation.Workflow
	store    *store.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := containers.NewPostgres(t)

	policy := retry.Policy{MaxAttempts: 10, InitialInterval: 5 * time.Millisecond}
	registry := campaign.NewService(campaignStore.New(db), campaign.WithRetry(policy))
	donations := store.New(db, 5*time.Second)

	return &env{
		registry: registry,
		ledger:   donation.NewLedger(donations, registry),
		workflow: donation.NewWorkflow(donations, donation.WithRetry(policy)),
		store:    donations,
	}
}

func (e *env) campaign(t *testing.T, target int64) *campaign.Campaign {
	t.Helper()

	c, err := e.registry.Create(context.Background(), campaign.CreateParams{
		Title:        "Air Bersih",
		Description:  "Pipa air untuk dusun",
		TargetAmount: target,
		Deadline:     time.Now().Add(72 * time.Hour),
		CreatorID:    uuid.New(),
	})
	require.NoError(t, err)

	return c
}

func (e *env) submit(t *testing.T, campaignID uuid.UUID, amount int64) *donation.Donation {
	t.Helper()

	d, err := e.ledger.Submit(context.Background(), donation.SubmitParams{
		CampaignID: campaignID,
		Amount:     amount,
		ProofURL:   "https://example.com/proof.jpg",
		Donor:      donation.Donor{Name: "Siti"},
	})
	require.NoError(t, err)

	return d
}

func TestStore_CreateAndList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c := e.campaign(t, 1_000_000)
	first := e.submit(t, c.ID, 50_000)
	second := e.submit(t, c.ID, 75_000)

	got, err := e.store.GetDonation(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.PaymentReference, got.PaymentReference)
	assert.Equal(t, donation.StatusPending, got.Status)
	assert.Nil(t, got.DonorID)

	dup := *second
	dup.ID = uuid.New()
	assert.ErrorIs(t, e.store.CreateDonation(ctx, &dup), donation.ErrDuplicateReference)

	pending, err := e.ledger.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, []uuid.UUID{pending[0].ID, pending[1].ID})

	_, err = e.store.GetDonation(ctx, uuid.New())
	assert.ErrorIs(t, err, donation.ErrNotFound)
}

func TestStore_DecisionUpdatesAggregate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c := e.campaign(t, 100_000)
	approved := e.submit(t, c.ID, 60_000)
	rejected := e.submit(t, c.ID, 30_000)

	_, err := e.workflow.Decide(ctx, donation.DecideParams{DonationID: rejected.ID, Outcome: donation.OutcomeReject, ActorID: uuid.New(), Reason: "bukti buram"})
	require.NoError(t, err)

	dec, err := e.workflow.Decide(ctx, donation.DecideParams{DonationID: approved.ID, Outcome: donation.OutcomeApprove, ActorID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(60_000), dec.Campaign.CollectedAmount)

	_, err = e.workflow.Decide(ctx, donation.DecideParams{DonationID: approved.ID, Outcome: donation.OutcomeApprove, ActorID: uuid.New()})
	assert.ErrorIs(t, err, donation.ErrAlreadyDecided)

	got, err := e.registry.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60_000), got.CollectedAmount)
	assert.Equal(t, int64(1), got.DonorCount)

	stored, err := e.store.GetDonation(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, donation.StatusRejected, stored.Status)
	assert.Equal(t, "bukti buram", stored.Reason)
	assert.NotNil(t, stored.DecidedAt)
}

func TestStore_ConcurrentApprovalsKeepSum(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c := e.campaign(t, 10_000_000)

	const n = 12

	donations := make([]*donation.Donation, n)
	for i := range donations {
		donations[i] = e.submit(t, c.ID, int64(10_000*(i+1)))
	}

	var (
		mu   sync.Mutex
		want int64
	)

	decide := func(d *donation.Donation, outcome donation.Outcome) error {
		_, err := e.workflow.Decide(ctx, donation.DecideParams{DonationID: d.ID, Outcome: outcome, ActorID: uuid.New()})
		if errors.Is(err, donation.ErrAlreadyDecided) {
			return nil
		}

		if err == nil && outcome == donation.OutcomeApprove {
			mu.Lock()
			want += d.Amount
			mu.Unlock()
		}

		return err
	}

	var g errgroup.Group

	for i, d := range donations {
		outcome := donation.OutcomeApprove
		if i%3 == 0 {
			outcome = donation.OutcomeReject
		}

		// each donation is decided twice at once; only one may win
		g.Go(func() error { return decide(d, outcome) })
		g.Go(func() error { return decide(d, outcome) })
	}

	require.NoError(t, g.Wait())

	got, err := e.registry.Get(ctx, c.ID)
	require.NoError(t, err)

	approved := donation.StatusApproved

	list, err := e.ledger.ListByCampaign(ctx, c.ID, &approved)
	require.NoError(t, err)

	var sum int64
	for _, d := range list {
		sum += d.Amount
	}

	assert.Equal(t, want, sum)
	assert.Equal(t, sum, got.CollectedAmount)
	assert.Equal(t, int64(len(list)), got.DonorCount)
}
