//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/campaign/store"
	"github.com/MrJamesThe3rd/bantudesa/internal/testutil/containers"
)

func newCampaign(title string, deadline time.Time) *campaign.Campaign {
	return &campaign.Campaign{
		ID:           uuid.New(),
		Title:        title,
		Description:  "Perbaikan jalan desa",
		Location:     "Sleman",
		TargetAmount: 1_000_000,
		Deadline:     deadline,
		Status:       campaign.StatusActive,
		CreatorID:    uuid.New(),
		Version:      1,
	}
}

func TestStore_CreateGetUpdate(t *testing.T) {
	s := store.New(containers.NewPostgres(t))
	ctx := context.Background()

	c := newCampaign("Jembatan Kali", time.Now().Add(48*time.Hour).UTC().Truncate(time.Microsecond))
	require.NoError(t, s.CreateCampaign(ctx, c))
	assert.False(t, c.CreatedAt.IsZero())

	got, err := s.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Title, got.Title)
	assert.Equal(t, campaign.StatusActive, got.Status)
	assert.True(t, c.Deadline.Equal(got.Deadline))
	assert.Zero(t, got.CollectedAmount)

	got.Title = "Jembatan Kali Baru"
	require.NoError(t, s.UpdateCampaign(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	stale := *c
	stale.Title = "lost update"
	assert.ErrorIs(t, s.UpdateCampaign(ctx, &stale), campaign.ErrStaleVersion)

	_, err = s.GetCampaign(ctx, uuid.New())
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestStore_ListCampaigns(t *testing.T) {
	s := store.New(containers.NewPostgres(t))
	ctx := context.Background()

	deadline := time.Now().Add(24 * time.Hour)

	for _, title := range []string{"Sumur Bor", "Sekolah 100%", "Masjid Desa"} {
		require.NoError(t, s.CreateCampaign(ctx, newCampaign(title, deadline)))
	}

	cancelled := newCampaign("Sumur Lama", deadline)
	cancelled.Status = campaign.StatusCancelled
	require.NoError(t, s.CreateCampaign(ctx, cancelled))

	active := campaign.StatusActive

	tests := []struct {
		name      string
		filter    campaign.ListFilter
		wantTotal int
		wantItems int
	}{
		{name: "all", filter: campaign.ListFilter{Page: 1, PageSize: 10}, wantTotal: 4, wantItems: 4},
		{name: "paged", filter: campaign.ListFilter{Page: 2, PageSize: 3}, wantTotal: 4, wantItems: 1},
		{name: "status", filter: campaign.ListFilter{Status: &active, Page: 1, PageSize: 10}, wantTotal: 3, wantItems: 3},
		{name: "search case-insensitive", filter: campaign.ListFilter{Search: "sumur", Page: 1, PageSize: 10}, wantTotal: 2, wantItems: 2},
		{name: "search escapes wildcards", filter: campaign.ListFilter{Search: "100%", Page: 1, PageSize: 10}, wantTotal: 1, wantItems: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := s.ListCampaigns(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Len(t, items, tt.wantItems)
		})
	}
}

func TestStore_StatusTransitions(t *testing.T) {
	s := store.New(containers.NewPostgres(t))
	ctx := context.Background()
	now := time.Now()

	expired := newCampaign("Lewat", now.Add(-time.Hour))
	open := newCampaign("Masih Buka", now.Add(time.Hour))
	require.NoError(t, s.CreateCampaign(ctx, expired))
	require.NoError(t, s.CreateCampaign(ctx, open))

	n, err := s.CloseExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetCampaign(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusClosed, got.Status)
	assert.NotNil(t, got.ClosedAt)

	require.NoError(t, s.UpdateStatus(ctx, open.ID, campaign.StatusActive, campaign.StatusCancelled, now))
	assert.ErrorIs(t, s.UpdateStatus(ctx, open.ID, campaign.StatusActive, campaign.StatusCancelled, now), campaign.ErrStaleVersion)
}
