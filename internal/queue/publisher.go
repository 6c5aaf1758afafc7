package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
	"github.com/iliyamo/tenant-auth-gateway/internal/middleware"
)

// DefaultQueueName is the durable queue auth failures are published to.
const DefaultQueueName = "auth.failures"

// Publisher defaults.
const (
	DefaultBufferSize = 256
	publishTimeout    = 5 * time.Second
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends AuthFailureEvents to a durable queue. Publishing never
// blocks or fails the request that triggered it: Hook queues events for a
// single background sender and drops them when the buffer is full.
type Publisher struct {
	url     string
	queue   string
	log     zerolog.Logger
	dial    func(ctx context.Context, url string) (Channel, closer, error)
	timeout time.Duration

	// lock guards ch and conn; a one-slot channel so waiters can give up
	lock chan struct{}
	ch   Channel
	conn closer

	events  chan AuthFailureEvent
	qmu     sync.RWMutex
	closed  bool
	once    sync.Once
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Int64
}

// closer is the connection behind a Channel.
type closer interface{ Close() error }

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithBufferSize sets how many events may wait for the sender.
func WithBufferSize(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.events = make(chan AuthFailureEvent, n)
		}
	}
}

// NewPublisher returns a Publisher for the broker at url. The connection is
// opened on first publish and reopened after a failure.
func NewPublisher(url, queue string, log zerolog.Logger, opts ...PublisherOption) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		url:     url,
		queue:   queue,
		log:     log,
		dial:    dialAMQP,
		timeout: publishTimeout,
		lock:    make(chan struct{}, 1),
		events:  make(chan AuthFailureEvent, DefaultBufferSize),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// dialAMQP opens a connection whose TCP dial and AMQP handshake both end by
// ctx's deadline.
func dialAMQP(ctx context.Context, url string) (Channel, closer, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			c, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// cleared by the client once the handshake completes
			if deadline, ok := ctx.Deadline(); ok {
				if err := c.SetDeadline(deadline); err != nil {
					_ = c.Close()
					return nil, err
				}
			}
			return c, nil
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	return ch, conn, nil
}

// Publish sends ev, declaring the queue on a fresh channel. It gives up
// when ctx ends, including while another publish holds the connection.
func (p *Publisher) Publish(ctx context.Context, ev AuthFailureEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	select {
	case p.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.lock }()

	if p.ch == nil {
		ch, conn, err := p.dial(ctx, p.url)
		if err != nil {
			return err
		}
		// durable, not auto-deleted, not exclusive
		if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			if conn != nil {
				_ = conn.Close()
			}
			return fmt.Errorf("queue declare: %w", err)
		}
		p.ch, p.conn = ch, conn
	}

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
	if err != nil {
		_ = p.resetLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Hook returns an error hook that queues each failure for the background
// sender.
func (p *Publisher) Hook() middleware.ErrorHook {
	return func(err error, r *http.Request) {
		ev := NewEvent(err, r)
		if !p.enqueue(ev) {
			p.dropped.Add(1)
			p.log.Warn().Str("event_id", ev.ID).Msg("auth failure event dropped, buffer full")
		}
	}
}

// Dropped reports how many events Hook discarded.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

func (p *Publisher) enqueue(ev AuthFailureEvent) bool {
	p.once.Do(p.start)
	p.qmu.RLock()
	defer p.qmu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.events <- ev:
		return true
	default:
		return false
	}
}

func (p *Publisher) start() { go p.run() }

func (p *Publisher) run() {
	defer close(p.done)
	for ev := range p.events {
		ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
		if err := p.Publish(ctx, ev); err != nil {
			p.log.Warn().Err(err).Str("event_id", ev.ID).Msg("auth failure event not published")
		}
		cancel()
	}
}

// Close stops accepting events, gives queued ones one publish timeout to
// drain, and closes the connection.
func (p *Publisher) Close() error {
	p.once.Do(p.start)
	p.qmu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.qmu.Unlock()

	t := time.NewTimer(p.timeout)
	select {
	case <-p.done:
	case <-t.C:
		p.cancel()
		<-p.done
	}
	t.Stop()
	p.cancel()

	p.lock <- struct{}{}
	defer func() { <-p.lock }()
	return p.resetLocked()
}

func (p *Publisher) resetLocked() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	return errors.Join(errs...)
}

// NewEvent describes err for request r.
func NewEvent(err error, r *http.Request) AuthFailureEvent {
	status, body := middleware.Classify(err)
	kind := "internal"
	if k, ok := autherr.KindOf(err); ok {
		kind = k.String()
	}
	ev := AuthFailureEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Status:     status,
		Message:    body.Message,
		OccurredAt: time.Now().UTC(),
	}
	if r != nil {
		ev.Method, ev.Path, ev.RemoteAddr = r.Method, r.URL.Path, r.RemoteAddr
	}
	return ev
}
