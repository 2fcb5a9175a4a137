package notify_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/bantudesa/internal/notify"
)

func TestRupiah(t *testing.T) {
	assert.Equal(t, "Rp10.000", notify.Rupiah(10_000))
	assert.Equal(t, "Rp5.000.000", notify.Rupiah(5_000_000))
	assert.Equal(t, "Rp0", notify.Rupiah(0))
}

func TestText(t *testing.T) {
	e := notify.Event{
		Type:          notify.DonationRejected,
		CampaignTitle: "Sumur bor",
		Amount:        100_000,
		Reason:        "bukti tidak terbaca",
	}

	assert.Equal(t, `Donasi Rp100.000 untuk "Sumur bor" ditolak: bukti tidak terbaca`, notify.Text(e))

	e.Type = notify.DonationApproved
	assert.Contains(t, notify.Text(e), "diverifikasi")
}

type publisherFunc func(ctx context.Context, e notify.Event) error

func (f publisherFunc) Publish(ctx context.Context, e notify.Event) error { return f(ctx, e) }

type countingRecorder struct {
	mu     sync.Mutex
	sent   int
	failed int
}

func (r *countingRecorder) NotificationSent(notify.EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent++
}

func (r *countingRecorder) NotificationFailed(notify.EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func TestDispatcher(t *testing.T) {
	rec := &countingRecorder{}

	pub := publisherFunc(func(ctx context.Context, e notify.Event) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("expected a bounded context")
		}

		if e.Type == notify.DonationRejected {
			return errors.New("broker down")
		}

		return nil
	})

	var logs bytes.Buffer
	d := notify.NewDispatcher(pub, time.Second, slog.New(slog.NewTextHandler(&logs, nil)), rec)

	ctx, cancel := context.WithCancel(context.Background())
	d.Notify(ctx, notify.Event{Type: notify.DonationApproved, DonationID: uuid.New()})
	d.Notify(ctx, notify.Event{Type: notify.DonationRejected, DonationID: uuid.New()})
	// Cancelling the caller's context must not abort delivery.
	cancel()

	d.Wait()

	assert.Equal(t, 1, rec.sent)
	assert.Equal(t, 1, rec.failed)
	assert.Contains(t, logs.String(), "broker down")
}

func TestLogPublisher(t *testing.T) {
	var logs bytes.Buffer

	recipient := uuid.New()
	pub := notify.LogPublisher{Logger: slog.New(slog.NewTextHandler(&logs, nil))}

	err := pub.Publish(context.Background(), notify.Event{
		Type:          notify.DonationSubmitted,
		Recipient:     &recipient,
		CampaignTitle: "Balai warga",
		DonorName:     "Anonymous",
		Amount:        25_000,
	})
	assert.NoError(t, err)
	assert.Contains(t, logs.String(), "Rp25.000")
	assert.Contains(t, logs.String(), recipient.String())
}
