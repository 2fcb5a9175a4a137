package donation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/notify"
	"github.com/MrJamesThe3rd/bantudesa/internal/retry"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=donation
type Repository interface {
	CreateDonation(ctx context.Context, d *Donation) error
	GetDonation(ctx context.Context, id uuid.UUID) (*Donation, error)
	ListDonations(ctx context.Context, filter ListFilter) ([]*Donation, error)

	// BeginDecision opens the unit of work in which a decision on a donation of
	// the given campaign is made. Units of work on the same campaign serialize.
	BeginDecision(ctx context.Context, campaignID uuid.UUID) (DecisionTx, error)
}

// DecisionTx is all-or-nothing: nothing written through it is visible before
// Commit, and Rollback after Commit is a no-op.
type DecisionTx interface {
	GetDonation(ctx context.Context, id uuid.UUID) (*Donation, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error)

	// SaveDecision persists the verdict of a donation that is still PENDING in
	// the store, returning ErrAlreadyDecided otherwise.
	SaveDecision(ctx context.Context, d *Donation) error

	// SaveCampaign writes the aggregate and status of c if the stored version
	// still equals c.Version, then increments c.Version.
	SaveCampaign(ctx context.Context, c *campaign.Campaign) error

	Commit() error
	Rollback() error
}

// Campaigns is the registry view the ledger needs for eligibility checks.
type Campaigns interface {
	Get(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error)
}

type Notifier interface {
	Notify(ctx context.Context, e notify.Event)
}

type Metrics interface {
	DonationSubmitted(amount int64)
	DonationDecided(outcome Outcome, amount int64, took time.Duration)
	DecisionRetried()
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notify.Event) {}

type nopMetrics struct{}

func (nopMetrics) DonationSubmitted(int64) {}
func (nopMetrics) DonationDecided(Outcome, int64, time.Duration) {}
func (nopMetrics) DecisionRetried() {}

type nopObserver struct{}

func (nopObserver) CampaignClosed(campaign.CloseReason, int) {}

type nopViews struct{}

func (nopViews) Invalidate(context.Context, uuid.UUID) {}

const (
	DefaultMinimumDonation int64 = 10_000
	DefaultMaximumDonation int64 = 1_000_000_000_000
)

type options struct {
	minimum  int64
	maximum  int64
	proofOK  func(url string) error
	views    campaign.Views
	now      func() time.Time
	notifier Notifier
	metrics  Metrics
	observer campaign.Observer
	retry    retry.Policy
	logger   *slog.Logger
}

type Option func(*options)

func WithMinimumDonation(amount int64) Option {
	return func(o *options) {
		if amount > 0 {
			o.minimum = amount
		}
	}
}

func WithMaximumDonation(amount int64) Option {
	return func(o *options) {
		if amount > 0 {
			o.maximum = amount
		}
	}
}

// WithProofCheck rejects proof URLs for which check returns an error.
func WithProofCheck(check func(url string) error) Option {
	return func(o *options) {
		if check != nil {
			o.proofOK = check
		}
	}
}

// WithViews invalidates cached campaign views after each decision.
func WithViews(v campaign.Views) Option {
	return func(o *options) {
		if v != nil {
			o.views = v
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithObserver reports campaigns closed by a decision.
func WithObserver(obs campaign.Observer) Option {
	return func(o *options) { o.observer = obs }
}

func WithRetry(p retry.Policy) Option {
	return func(o *options) { o.retry = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) options {
	o := options{
		minimum:  DefaultMinimumDonation,
		maximum:  DefaultMaximumDonation,
		proofOK:  func(string) error { return nil },
		views:    nopViews{},
		now:      time.Now,
		notifier: nopNotifier{},
		metrics:  nopMetrics{},
		observer: nopObserver{},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
