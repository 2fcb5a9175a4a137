// Package notify delivers best-effort donation notifications. Delivery never
// blocks or fails the operation that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// Publisher hands an event to a delivery channel.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Recorder counts delivery outcomes.
type Recorder interface {
	NotificationSent(t EventType)
	NotificationFailed(t EventType)
}

type nopRecorder struct{}

func (nopRecorder) NotificationSent(EventType) {}
func (nopRecorder) NotificationFailed(EventType) {}

// Dispatcher publishes each event on its own goroutine with a detached,
// bounded context.
type Dispatcher struct {
	pub      Publisher
	timeout  time.Duration
	logger   *slog.Logger
	recorder Recorder
	wg       sync.WaitGroup
}

func NewDispatcher(pub Publisher, timeout time.Duration, logger *slog.Logger, recorder Recorder) *Dispatcher {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{pub: pub, timeout: timeout, logger: logger, recorder: recorder}
}

func (d *Dispatcher) Notify(ctx context.Context, e Event) {
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.pub.Publish(pctx, e); err != nil {
			d.recorder.NotificationFailed(e.Type)
			d.logger.Warn("notification failed",
				"type", e.Type,
				"donation_id", e.DonationID,
				"error", err,
			)

			return
		}

		d.recorder.NotificationSent(e.Type)
	}()
}

// Wait blocks until every in-flight notification finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(_ context.Context, e Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"type", e.Type,
		"campaign_id", e.CampaignID,
		"donation_id", e.DonationID,
		"amount", e.Amount,
	}

	if e.Recipient != nil {
		attrs = append(attrs, "recipient", *e.Recipient)
	}

	logger.Info(Text(e), attrs...)

	return nil
}

// envelope is the wire format shared by the Kafka and Redis publishers.
type envelope struct {
	Event
	Text string `json:"text"`
}

func encode(e Event) ([]byte, error) {
	b, err := json.Marshal(envelope{Event: e, Text: Text(e)})
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}

	return b, nil
}

// KafkaPublisher writes events keyed by campaign id so events of one campaign
// stay ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(e.CampaignID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// RedisStreamPublisher appends events to a Redis stream.
type RedisStreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client redis.Cmdable, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: 10_000}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    string(e.Type),
			"payload": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd: %w", err)
	}

	return nil
}
