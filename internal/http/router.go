package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrJamesThe3rd/bantudesa/internal/auth"
	"github.com/MrJamesThe3rd/bantudesa/internal/http/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/http/donation"
	"github.com/MrJamesThe3rd/bantudesa/internal/http/export"
	"github.com/MrJamesThe3rd/bantudesa/internal/http/proof"
	"github.com/MrJamesThe3rd/bantudesa/internal/http/respond"
	"github.com/MrJamesThe3rd/bantudesa/internal/metrics"
)

type Config struct {
	Auth        *auth.Authenticator
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Timeout     time.Duration
	// Ping reports storage health; nil means always healthy.
	Ping func(ctx context.Context) error
}

func New(
	cfg Config,
	campaignsV1 *campaign.Handler,
	donationsV1 *donation.Handler,
	proofsV1 *proof.Handler,
	exportV1 *export.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Metrics != nil {
		router.Use(instrument(cfg.Metrics))
	}

	router.Get("/healthz", health(cfg.Ping))

	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		if cfg.Timeout > 0 {
			r.Use(middleware.Timeout(cfg.Timeout))
		}

		r.Use(auth.Middleware(cfg.Auth))

		r.Route("/campaigns", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			campaignsV1.Routes(r)
			donationsV1.CampaignRoutes(r)
			exportV1.CampaignRoutes(r)
		})

		r.Route("/donations", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			donationsV1.Routes(r)
		})

		r.Route("/proofs", proofsV1.Routes)
	})

	return router
}

func health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				respond.Fail(w, http.StatusServiceUnavailable, "unavailable", "storage unreachable")
				return
			}
		}

		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// instrument records request latency by route pattern once chi has matched it.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			m.ObserveRequest(r.Method, route, status, time.Since(start))
		})
	}
}
