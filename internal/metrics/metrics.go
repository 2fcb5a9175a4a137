package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
	"github.com/MrJamesThe3rd/bantudesa/internal/notify"
)

// Metrics records ledger activity. It satisfies donation.Metrics,
// campaign.Observer and notify.Recorder.
type Metrics struct {
	DonationsSubmitted  prometheus.Counter
	SubmittedAmount     prometheus.Counter
	DonationsDecided    *prometheus.CounterVec
	ApprovedAmount      prometheus.Counter
	DecisionDuration    prometheus.Histogram
	DecisionRetries     prometheus.Counter
	CampaignsClosed     *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	_ donation.Metrics  = (*Metrics)(nil)
	_ campaign.Observer = (*Metrics)(nil)
	_ notify.Recorder   = (*Metrics)(nil)
)

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		DonationsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "bantudesa_donations_submitted_total",
			Help: "Total number of donations submitted for verification",
		}),
		SubmittedAmount: f.NewCounter(prometheus.CounterOpts{
			Name: "bantudesa_donations_submitted_amount_total",
			Help: "Sum of submitted donation amounts in rupiah",
		}),
		DonationsDecided: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bantudesa_donations_decided_total",
			Help: "Total number of verification decisions by outcome",
		}, []string{"outcome"}),
		ApprovedAmount: f.NewCounter(prometheus.CounterOpts{
			Name: "bantudesa_donations_approved_amount_total",
			Help: "Sum of approved donation amounts in rupiah",
		}),
		DecisionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bantudesa_decision_duration_seconds",
			Help:    "Duration of verification decisions including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		DecisionRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "bantudesa_decision_retries_total",
			Help: "Verification attempts repeated after losing a race on the campaign",
		}),
		CampaignsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bantudesa_campaigns_closed_total",
			Help: "Campaigns closed by the lifecycle, by reason",
		}, []string{"reason"}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bantudesa_notifications_total",
			Help: "Notification deliveries by event type and result",
		}, []string{"type", "result"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bantudesa_http_request_duration_seconds",
			Help:    "HTTP request duration by route pattern and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) DonationSubmitted(amount int64) {
	m.DonationsSubmitted.Inc()
	m.SubmittedAmount.Add(float64(amount))
}

func (m *Metrics) DonationDecided(outcome donation.Outcome, amount int64, took time.Duration) {
	m.DonationsDecided.WithLabelValues(string(outcome)).Inc()
	m.DecisionDuration.Observe(took.Seconds())

	if outcome == donation.OutcomeApprove {
		m.ApprovedAmount.Add(float64(amount))
	}
}

func (m *Metrics) DecisionRetried() {
	m.DecisionRetries.Inc()
}

func (m *Metrics) CampaignClosed(reason campaign.CloseReason, n int) {
	m.CampaignsClosed.WithLabelValues(string(reason)).Add(float64(n))
}

func (m *Metrics) NotificationSent(t notify.EventType) {
	m.NotificationsTotal.WithLabelValues(string(t), "sent").Inc()
}

func (m *Metrics) NotificationFailed(t notify.EventType) {
	m.NotificationsTotal.WithLabelValues(string(t), "failed").Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(method, route, statusClass(status)).Observe(took.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
