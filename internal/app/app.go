// Package app assembles the ledger services from configuration for both
// binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/MrJamesThe3rd/bantudesa/internal/blob"
	"github.com/MrJamesThe3rd/bantudesa/internal/cache"
	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	campaignStore "github.com/MrJamesThe3rd/bantudesa/internal/campaign/store"
	"github.com/MrJamesThe3rd/bantudesa/internal/config"
	"github.com/MrJamesThe3rd/bantudesa/internal/database"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
	donationStore "github.com/MrJamesThe3rd/bantudesa/internal/donation/store"
	"github.com/MrJamesThe3rd/bantudesa/internal/export"
	"github.com/MrJamesThe3rd/bantudesa/internal/metrics"
	"github.com/MrJamesThe3rd/bantudesa/internal/notify"
	"github.com/MrJamesThe3rd/bantudesa/internal/retry"
	"github.com/MrJamesThe3rd/bantudesa/internal/storage/memory"
)

type App struct {
	Registry   *campaign.Service
	Ledger     *donation.Ledger
	Workflow   *donation.Workflow
	Export     *export.Service
	Blobs      *blob.FileStore
	Views      *cache.CampaignCache
	Metrics    *metrics.Metrics
	Dispatcher *notify.Dispatcher

	// Ping checks the storage backend.
	Ping func(ctx context.Context) error

	closers []func() error
}

// NewLogger builds the process logger from the Log config group.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)).With("app", cfg.App.Name)
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// New connects every backend named by cfg. Close releases them in reverse
// order once the caller is done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{Metrics: metrics.New(reg)}

	campaigns, donations, err := a.openStorage(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	rdb, err := cache.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		a.Close()
		return nil, err
	}

	if rdb != nil {
		a.closers = append(a.closers, rdb.Close)
		a.Views = cache.NewCampaignCache(rdb, cfg.Redis.CacheTTL)
	}

	pub, err := a.publisher(cfg, logger, rdb)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Dispatcher = notify.NewDispatcher(pub, cfg.Notify.Timeout, logger, a.Metrics)

	a.Blobs, err = blob.NewFileStore(cfg.Blob.Dir, strings.TrimRight(cfg.App.BaseURL, "/")+"/api/v1/proofs", cfg.Blob.MaxBytes)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy := retry.Policy{MaxAttempts: cfg.Ledger.DecisionMaxAttempts}

	campaignOpts := []campaign.Option{
		campaign.WithObserver(a.Metrics),
		campaign.WithRetry(policy),
	}

	shared := []donation.Option{
		donation.WithNotifier(a.Dispatcher),
		donation.WithMetrics(a.Metrics),
		donation.WithLogger(logger),
	}

	if a.Views != nil {
		campaignOpts = append(campaignOpts, campaign.WithViews(a.Views))
		shared = append(shared, donation.WithViews(a.Views))
	}

	a.Registry = campaign.NewService(campaigns, campaignOpts...)

	a.Ledger = donation.NewLedger(donations, a.Registry, slices.Concat(shared, []donation.Option{
		donation.WithMinimumDonation(cfg.Ledger.MinimumDonation),
		donation.WithMaximumDonation(cfg.Ledger.MaximumDonation),
		donation.WithProofCheck(a.proofCheck(cfg.Blob.ProofHosts)),
	})...)

	a.Workflow = donation.NewWorkflow(donations, slices.Concat(shared, []donation.Option{
		donation.WithObserver(a.Metrics),
		donation.WithRetry(policy),
	})...)

	a.Export = export.NewService(a.Registry, a.Ledger, a.Blobs,
		export.WithProofHosts(cfg.Blob.ProofHosts...),
		export.WithMaxProofBytes(cfg.Blob.MaxBytes),
	)

	return a, nil
}

// proofCheck accepts proofs uploaded to a.Blobs or hosted on one of hosts.
func (a *App) proofCheck(hosts []string) func(string) error {
	return func(url string) error {
		if !a.Blobs.Accepts(url, hosts) {
			return donation.ErrForeignProof
		}

		return nil
	}
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (campaign.Repository, donation.Repository, error) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn("using in-memory storage, data is lost on exit")

		s := memory.New()

		return s, s, nil
	}

	db, err := database.New(ctx, cfg.ConnectionString(), database.Pool{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	a.closers = append(a.closers, db.Close)
	a.Ping = db.PingContext

	if cfg.DB.Migrate {
		if err := database.Migrate(db); err != nil {
			return nil, nil, err
		}
	}

	return campaignStore.New(db), donationStore.New(db, cfg.DB.TxTimeout), nil
}

func (a *App) publisher(cfg *config.Config, logger *slog.Logger, rdb *redis.Client) (notify.Publisher, error) {
	switch cfg.Notify.Driver {
	case "kafka":
		p := notify.NewKafkaPublisher(cfg.Notify.Brokers, cfg.Notify.Topic)
		a.closers = append(a.closers, p.Close)

		return p, nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("NOTIFY_DRIVER=redis requires REDIS_URL")
		}

		return notify.NewRedisStreamPublisher(rdb, cfg.Notify.Stream), nil
	default:
		return notify.LogPublisher{Logger: logger}, nil
	}
}

// Close waits for in-flight notifications, then releases every backend.
func (a *App) Close() {
	if a.Dispatcher != nil {
		a.Dispatcher.Wait()
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("failed to close resource", "error", err)
		}
	}

	a.closers = nil
}
