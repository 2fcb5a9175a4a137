package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
	"github.com/MrJamesThe3rd/bantudesa/internal/metrics"
	"github.com/MrJamesThe3rd/bantudesa/internal/notify"
)

func TestMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.DonationSubmitted(100_000)
	m.DonationSubmitted(50_000)
	m.DonationDecided(donation.OutcomeApprove, 100_000, 10*time.Millisecond)
	m.DonationDecided(donation.OutcomeReject, 50_000, 5*time.Millisecond)
	m.DecisionRetried()
	m.CampaignClosed(campaign.CloseReasonDeadline, 3)
	m.NotificationFailed(notify.DonationApproved)

	assert.InDelta(t, 2, testutil.ToFloat64(m.DonationsSubmitted), 0)
	assert.InDelta(t, 150_000, testutil.ToFloat64(m.SubmittedAmount), 0)
	assert.InDelta(t, 100_000, testutil.ToFloat64(m.ApprovedAmount), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DonationsDecided.WithLabelValues("REJECT")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DecisionRetries), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.CampaignsClosed.WithLabelValues("deadline")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("donation.approved", "failed")), 0)
}
