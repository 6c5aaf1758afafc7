package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// Handler processes one decoded event.
type Handler func(AuthFailureEvent) error

// Consumer tails the auth failure queue, reconnecting with backoff until
// its context ends.
type Consumer struct {
	url      string
	queue    string
	log      zerolog.Logger
	handle   Handler
	prefetch int
}

// NewConsumer returns a Consumer that hands each event to h, or logs it
// when h is nil.
func NewConsumer(url, queue string, log zerolog.Logger, h Handler) *Consumer {
	if queue == "" {
		queue = DefaultQueueName
	}
	c := &Consumer{url: url, queue: queue, log: log, handle: h, prefetch: 50}
	if c.handle == nil {
		c.handle = c.logEvent
	}
	return c
}

// Run consumes until ctx is cancelled. It only returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := newDialBackoff()
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			wait, _ := backoff.Next()
			c.log.Warn().Err(err).Dur("retry_in", wait).Msg("audit consumer: failed to dial broker")
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		backoff = newDialBackoff()

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Msg("audit consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

// newDialBackoff doubles from one second up to thirty, without limit on
// the number of attempts.
func newDialBackoff() retry.Backoff {
	return retry.WithCappedDuration(30*time.Second, retry.NewExponential(time.Second))
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.log.Warn().Err(err).Msg("audit consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				c.log.Warn().Err(err).Msg("audit consumer: handle message failed")
				_ = d.Nack(false, false) // reject without requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	var ev AuthFailureEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.ID == "" {
		return errors.New("event without id")
	}
	return c.handle(ev)
}

func (c *Consumer) logEvent(ev AuthFailureEvent) error {
	c.log.Info().
		Str("event_id", ev.ID).
		Str("kind", ev.Kind).
		Int("status", ev.Status).
		Str("method", ev.Method).
		Str("path", ev.Path).
		Str("remote_addr", ev.RemoteAddr).
		Time("occurred_at", ev.OccurredAt).
		Msg(ev.Message)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
