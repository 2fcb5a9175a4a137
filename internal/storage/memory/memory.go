// Package memory keeps campaigns and donations in process memory. It backs
// STORAGE_DRIVER=memory and the concurrency tests of the ledger.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
)

// numShards bounds the decision locks; campaigns hashing to the same shard
// simply serialize.
const numShards = 64

type Store struct {
	mu        sync.RWMutex
	campaigns map[uuid.UUID]*campaign.Campaign
	donations map[uuid.UUID]*donation.Donation
	refs      map[string]uuid.UUID

	shards [numShards]sync.Mutex
	now    func() time.Time
}

func New() *Store {
	return &Store{
		campaigns: make(map[uuid.UUID]*campaign.Campaign),
		donations: make(map[uuid.UUID]*donation.Donation),
		refs:      make(map[string]uuid.UUID),
		now:       time.Now,
	}
}

func (s *Store) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[c.ID]; ok {
		return fmt.Errorf("creating campaign: duplicate id %s", c.ID)
	}

	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}

	c.UpdatedAt = now
	s.campaigns[c.ID] = cloneCampaign(c)

	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}

	return cloneCampaign(c), nil
}

func (s *Store) ListCampaigns(ctx context.Context, filter campaign.ListFilter) ([]*campaign.Campaign, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	search := strings.ToLower(filter.Search)

	s.mu.RLock()

	var matched []*campaign.Campaign

	for _, c := range s.campaigns {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}

		if search != "" &&
			!strings.Contains(strings.ToLower(c.Title), search) &&
			!strings.Contains(strings.ToLower(c.Description), search) {
			continue
		}

		matched = append(matched, cloneCampaign(c))
	}

	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *campaign.Campaign) int {
		if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
			return n
		}

		return cmp.Compare(b.ID.String(), a.ID.String())
	})

	total := len(matched)

	start := min(filter.Offset(), total)
	end := total

	if filter.PageSize > 0 {
		end = min(start+filter.PageSize, total)
	}

	return matched[start:end], total, nil
}

func (s *Store) UpdateCampaign(ctx context.Context, c *campaign.Campaign) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.campaigns[c.ID]
	if !ok {
		return campaign.ErrNotFound
	}

	if stored.Version != c.Version {
		return campaign.ErrStaleVersion
	}

	next := cloneCampaign(c)
	// Aggregates belong to the decision workflow.
	next.CollectedAmount = stored.CollectedAmount
	next.DonorCount = stored.DonorCount
	next.Version++
	next.UpdatedAt = s.now()

	s.campaigns[c.ID] = next

	c.Version = next.Version
	c.UpdatedAt = next.UpdatedAt

	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, from, to campaign.Status, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}

	if stored.Status != from {
		return campaign.ErrStaleVersion
	}

	next := cloneCampaign(stored)
	next.Status = to
	next.ClosedAt = &at
	next.Version++
	next.UpdatedAt = s.now()

	s.campaigns[id] = next

	return nil
}

func (s *Store) CloseExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	closed := 0

	for id, c := range s.campaigns {
		if c.Status != campaign.StatusActive || now.Before(c.Deadline) {
			continue
		}

		next := cloneCampaign(c)
		next.Status = campaign.StatusClosed
		next.ClosedAt = &now
		next.Version++
		next.UpdatedAt = s.now()

		s.campaigns[id] = next
		closed++
	}

	return closed, nil
}

func (s *Store) CreateDonation(ctx context.Context, d *donation.Donation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[d.CampaignID]; !ok {
		return campaign.ErrNotFound
	}

	if _, ok := s.refs[d.PaymentReference]; ok {
		return donation.ErrDuplicateReference
	}

	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}

	s.donations[d.ID] = cloneDonation(d)
	s.refs[d.PaymentReference] = d.ID

	return nil
}

func (s *Store) GetDonation(ctx context.Context, id uuid.UUID) (*donation.Donation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.donations[id]
	if !ok {
		return nil, donation.ErrNotFound
	}

	return cloneDonation(d), nil
}

func (s *Store) ListDonations(ctx context.Context, filter donation.ListFilter) ([]*donation.Donation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()

	var out []*donation.Donation

	for _, d := range s.donations {
		if filter.CampaignID != nil && d.CampaignID != *filter.CampaignID {
			continue
		}

		if filter.DonorID != nil && (d.DonorID == nil || *d.DonorID != *filter.DonorID) {
			continue
		}

		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}

		out = append(out, cloneDonation(d))
	}

	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *donation.Donation) int {
		n := a.CreatedAt.Compare(b.CreatedAt)
		if n == 0 {
			n = cmp.Compare(a.ID.String(), b.ID.String())
		}

		if filter.OldestFirst {
			return n
		}

		return -n
	})

	return out, nil
}

// BeginDecision takes the campaign's shard lock, which is held until Commit
// or Rollback.
func (s *Store) BeginDecision(ctx context.Context, campaignID uuid.UUID) (donation.DecisionTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("beginning decision: %w", err)
	}

	shard := &s.shards[shardOf(campaignID)]
	shard.Lock()

	if err := ctx.Err(); err != nil {
		shard.Unlock()
		return nil, fmt.Errorf("beginning decision: %w", err)
	}

	return &decisionTx{store: s, shard: shard}, nil
}

func shardOf(id uuid.UUID) uint64 {
	h := fnv.New64a()
	h.Write(id[:])

	return h.Sum64() % numShards
}

// decisionTx stages its writes and applies them in Commit under the store
// lock, re-checking the preconditions it saw when staging.
type decisionTx struct {
	store *Store
	shard *sync.Mutex
	done  bool

	donation *donation.Donation
	campaign *campaign.Campaign
}

func (tx *decisionTx) GetDonation(ctx context.Context, id uuid.UUID) (*donation.Donation, error) {
	return tx.store.GetDonation(ctx, id)
}

func (tx *decisionTx) GetCampaign(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	return tx.store.GetCampaign(ctx, id)
}

func (tx *decisionTx) SaveDecision(ctx context.Context, d *donation.Donation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	current, err := tx.store.GetDonation(ctx, d.ID)
	if err != nil {
		return err
	}

	if current.Status != donation.StatusPending {
		return donation.ErrAlreadyDecided
	}

	tx.donation = cloneDonation(d)

	return nil
}

func (tx *decisionTx) SaveCampaign(ctx context.Context, c *campaign.Campaign) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	current, err := tx.store.GetCampaign(ctx, c.ID)
	if err != nil {
		return err
	}

	if current.Version != c.Version {
		return campaign.ErrStaleVersion
	}

	staged := cloneCampaign(c)
	staged.Version++
	tx.campaign = staged

	c.Version = staged.Version

	return nil
}

func (tx *decisionTx) Commit() error {
	if tx.done {
		return errors.New("decision already finished")
	}

	defer tx.finish()

	s := tx.store

	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.donation != nil {
		current, ok := s.donations[tx.donation.ID]
		if !ok {
			return donation.ErrNotFound
		}

		if current.Status != donation.StatusPending {
			return donation.ErrAlreadyDecided
		}
	}

	if tx.campaign != nil {
		current, ok := s.campaigns[tx.campaign.ID]
		if !ok {
			return campaign.ErrNotFound
		}

		if current.Version != tx.campaign.Version-1 {
			return campaign.ErrStaleVersion
		}
	}

	if tx.donation != nil {
		s.donations[tx.donation.ID] = tx.donation
	}

	if tx.campaign != nil {
		tx.campaign.UpdatedAt = s.now()
		s.campaigns[tx.campaign.ID] = tx.campaign
	}

	return nil
}

func (tx *decisionTx) Rollback() error {
	if tx.done {
		return nil
	}

	tx.finish()

	return nil
}

func (tx *decisionTx) finish() {
	tx.done = true
	tx.donation = nil
	tx.campaign = nil
	tx.shard.Unlock()
}

func cloneCampaign(c *campaign.Campaign) *campaign.Campaign {
	out := *c
	if c.ClosedAt != nil {
		at := *c.ClosedAt
		out.ClosedAt = &at
	}

	return &out
}

func cloneDonation(d *donation.Donation) *donation.Donation {
	out := *d

	if d.DonorID != nil {
		id := *d.DonorID
		out.DonorID = &id
	}

	if d.DecidedAt != nil {
		at := *d.DecidedAt
		out.DecidedAt = &at
	}

	if d.DecidedBy != nil {
		by := *d.DecidedBy
		out.DecidedBy = &by
	}

	return &out
}
