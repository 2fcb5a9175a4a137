package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/retry"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=campaign
type Repository interface {
	CreateCampaign(ctx context.Context, c *Campaign) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*Campaign, error)
	ListCampaigns(ctx context.Context, filter ListFilter) ([]*Campaign, int, error)

	// UpdateCampaign writes the editable fields and status of c if the stored
	// version still equals c.Version, then increments c.Version. It returns
	// ErrStaleVersion when another writer got there first.
	UpdateCampaign(ctx context.Context, c *Campaign) error

	// UpdateStatus moves a campaign from one status to another, returning
	// ErrStaleVersion when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) error

	// CloseExpired closes every ACTIVE campaign whose deadline is not after now.
	CloseExpired(ctx context.Context, now time.Time) (int, error)
}

// Observer is told about lifecycle transitions the registry persists.
type Observer interface {
	CampaignClosed(reason CloseReason, n int)
}

type nopObserver struct{}

func (nopObserver) CampaignClosed(CloseReason, int) {}

// Views drops rendered copies of a campaign once a write made them stale.
type Views interface {
	Invalidate(ctx context.Context, id uuid.UUID)
}

type nopViews struct{}

func (nopViews) Invalidate(context.Context, uuid.UUID) {}

type Service struct {
	repo     Repository
	now      func() time.Time
	observer Observer
	views    Views
	retry    retry.Policy
}

type Option func(*Service)

// WithClock overrides the time source used for lifecycle evaluation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithViews(v Views) Option {
	return func(s *Service) { s.views = v }
}

func WithRetry(p retry.Policy) Option {
	return func(s *Service) { s.retry = p }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		now:      time.Now,
		observer: nopObserver{},
		views:    nopViews{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Now exposes the registry clock so callers derive progress consistently.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Campaign, error) {
	c := &Campaign{
		ID:           uuid.New(),
		Title:        strings.TrimSpace(params.Title),
		Description:  params.Description,
		ImageURL:     params.ImageURL,
		Location:     params.Location,
		ContactPhone: params.ContactPhone,
		TargetAmount: params.TargetAmount,
		Deadline:     params.Deadline,
		Status:       StatusActive,
		CreatorID:    params.CreatorID,
		Version:      1,
	}

	if err := validate(c, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// Get returns the campaign with its lifecycle status brought up to date.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.settle(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) (*Page, error) {
	filter = filter.Normalize()

	closed, err := s.repo.CloseExpired(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("closing expired campaigns: %w", err)
	}

	if closed > 0 {
		s.observer.CampaignClosed(CloseReasonDeadline, closed)
	}

	items, total, err := s.repo.ListCampaigns(ctx, filter)
	if err != nil {
		return nil, err
	}

	for _, c := range items {
		if err := s.settle(ctx, c); err != nil {
			return nil, err
		}
	}

	return &Page{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// Update edits an active campaign. Lowering the target to or below the
// collected amount closes it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Campaign, error) {
	var updated *Campaign

	err := s.retry.Do(ctx, func() error {
		c, err := s.Get(ctx, id)
		if err != nil {
			return err
		}

		if c.Status != StatusActive {
			return ErrNotActive
		}

		apply(c, params)

		now := s.now()
		if err := validate(c, now); err != nil {
			return err
		}

		reason, closed := Transition(c, now)

		if err := s.repo.UpdateCampaign(ctx, c); err != nil {
			return err
		}

		if closed {
			s.observer.CampaignClosed(reason, 1)
		}

		updated = c

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.views.Invalidate(ctx, id)

	return updated, nil
}

// Cancel is the explicit admin cancellation of an active campaign.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	var cancelled *Campaign

	err := s.retry.Do(ctx, func() error {
		c, err := s.Get(ctx, id)
		if err != nil {
			return err
		}

		now := s.now()
		if err := Cancel(c, now); err != nil {
			return err
		}

		if err := s.repo.UpdateStatus(ctx, c.ID, StatusActive, StatusCancelled, now); err != nil {
			return err
		}

		c.Version++
		cancelled = c

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.views.Invalidate(ctx, id)

	return cancelled, nil
}

// settle persists a pending lifecycle transition of c. When a concurrent
// writer already moved the campaign, c is refreshed from the store instead.
func (s *Service) settle(ctx context.Context, c *Campaign) error {
	from := c.Status

	reason, changed := Transition(c, s.now())
	if !changed {
		return nil
	}

	err := s.repo.UpdateStatus(ctx, c.ID, from, c.Status, *c.ClosedAt)
	if errors.Is(err, ErrStaleVersion) {
		fresh, err := s.repo.GetCampaign(ctx, c.ID)
		if err != nil {
			return err
		}

		*c = *fresh

		return nil
	}

	if err != nil {
		return fmt.Errorf("persisting campaign status: %w", err)
	}

	c.Version++
	s.observer.CampaignClosed(reason, 1)

	return nil
}

func validate(c *Campaign, now time.Time) error {
	if c.Title == "" {
		return ErrMissingTitle
	}

	if c.TargetAmount <= 0 {
		return ErrInvalidTarget
	}

	if !c.Deadline.After(now) {
		return ErrInvalidDeadline
	}

	return nil
}

func apply(c *Campaign, p UpdateParams) {
	if p.Title != nil {
		c.Title = strings.TrimSpace(*p.Title)
	}

	if p.Description != nil {
		c.Description = *p.Description
	}

	if p.ImageURL != nil {
		c.ImageURL = *p.ImageURL
	}

	if p.Location != nil {
		c.Location = *p.Location
	}

	if p.ContactPhone != nil {
		c.ContactPhone = *p.ContactPhone
	}

	if p.TargetAmount != nil {
		c.TargetAmount = *p.TargetAmount
	}

	if p.Deadline != nil {
		c.Deadline = *p.Deadline
	}
}
