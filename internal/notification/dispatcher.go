package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Notification kinds sent by background jobs
const (
	KindReviewReminder = "review_reminder"
	KindDailyDigest    = "daily_digest"
)

// Notification is a one-shot, best-effort message to a user
type Notification struct {
	ID        string            `json:"id"`
	UserID    int64             `json:"user_id"`
	Kind      string            `json:"kind"`
	Payload   map[string]string `json:"payload"`
	CreatedAt time.Time         `json:"created_at"`
}

// Sink delivers a notification to one outbound channel
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// Config tunes the dispatcher queue
type Config struct {
	QueueSize       int
	Workers         int
	RetryDelay      time.Duration
	DeliveryTimeout time.Duration
}

// DefaultConfig returns the default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		QueueSize:       1024,
		Workers:         4,
		RetryDelay:      time.Second,
		DeliveryTimeout: 10 * time.Second,
	}
}

// Dispatcher decouples callers from delivery. Send hands the notification to a
// bounded queue and returns at once; workers deliver it to every sink.
type Dispatcher struct {
	sinks  []Sink
	cfg    Config
	queue  chan Notification
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts the delivery workers
func NewDispatcher(cfg Config, sinks ...Sink) *Dispatcher {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = def.DeliveryTimeout
	}

	d := &Dispatcher{
		sinks:  sinks,
		cfg:    cfg,
		queue:  make(chan Notification, cfg.QueueSize),
		logger: slog.Default().With("component", "notification"),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Send enqueues a notification. It never blocks and never fails: when the
// queue is full or the dispatcher is closed the notification is dropped.
func (d *Dispatcher) Send(userID int64, kind string, payload map[string]string) {
	n := Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("dispatcher closed, dropping notification", "user_id", userID, "kind", kind)
		return
	}

	select {
	case d.queue <- n:
	default:
		d.logger.Warn("notification queue full, dropping notification", "user_id", userID, "kind", kind)
	}
}

// Close stops accepting notifications and waits for the queue to drain
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "notification queue not drained")
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		for _, sink := range d.sinks {
			d.deliver(sink, n)
		}
	}
}

// deliver makes one attempt and at most one retry
func (d *Dispatcher) deliver(sink Sink, n Notification) {
	err := d.attempt(sink, n)
	if err == nil {
		return
	}

	d.logger.Warn("notification delivery failed, retrying",
		"id", n.ID, "user_id", n.UserID, "kind", n.Kind, "error", err)
	time.Sleep(d.cfg.RetryDelay)

	if err := d.attempt(sink, n); err != nil {
		d.logger.Error("notification dropped",
			"id", n.ID, "user_id", n.UserID, "kind", n.Kind, "error", err)
	}
}

func (d *Dispatcher) attempt(sink Sink, n Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeliveryTimeout)
	defer cancel()
	return sink.Deliver(ctx, n)
}

// LogSink writes notifications to the structured log. It is the fallback when
// no outbound channel is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log sink on the default logger
func NewLogSink() *LogSink {
	return &LogSink{logger: slog.Default().With("component", "notification")}
}

func (s *LogSink) Deliver(_ context.Context, n Notification) error {
	s.logger.Info("notification", "id", n.ID, "user_id", n.UserID, "kind", n.Kind, "payload", n.Payload)
	return nil
}
