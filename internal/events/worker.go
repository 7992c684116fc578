package events

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/pkg/metrics"
)

// Delivery statuses shared by queue backends.
const (
	StatusPending = "pending"
	StatusLeased  = "leased"
	StatusDone    = "done"
	StatusDead    = "dead"
)

const defaultConsumer = "triage-worker"

type Config struct {
	Consumer     string
	PollInterval time.Duration
	LeaseTTL     time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	BatchSize    int
}

func (c Config) normalized() Config {
	if strings.TrimSpace(c.Consumer) == "" {
		c.Consumer = NewConsumerID()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 2 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	return c
}

// NewConsumerID names one worker process: host, pid and a random suffix.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%s-%d-%s", defaultConsumer, host, os.Getpid(), uuid.NewString()[:8])
}

// Worker leases events from a Queue and dispatches them by name.
type Worker struct {
	queue    Queue
	handlers map[string]Handler
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
}

func NewWorker(q Queue, handlers map[string]Handler, cfg Config, log zerolog.Logger) *Worker {
	return &Worker{
		queue:    q,
		handlers: handlers,
		cfg:      cfg.normalized(),
		log:      log.With().Str("component", "events.worker").Logger(),
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Str("consumer", w.cfg.Consumer).Dur("poll", w.cfg.PollInterval).Msg("worker started")
	t := time.NewTicker(w.cfg.PollInterval)
	defer t.Stop()
	for {
		if _, err := w.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.log.Error().Err(err).Msg("lease events")
		}
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped")
			return nil
		case <-t.C:
		}
	}
}

// ProcessOnce handles one leased batch and returns how many events it saw.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := w.queue.Lease(ctx, w.cfg.Consumer, w.cfg.BatchSize, w.cfg.LeaseTTL)
	if err != nil {
		return 0, err
	}
	for _, ev := range batch {
		w.dispatch(ctx, ev)
	}
	return len(batch), nil
}

func (w *Worker) dispatch(ctx context.Context, ev Event) {
	l := w.log.With().Str("event_id", ev.ID).Str("event", ev.Name).Int("attempt", ev.Attempts).Logger()

	h, ok := w.handlers[ev.Name]
	if !ok {
		w.settle(ctx, l, ev, Permanent(fmt.Errorf("no handler for %s", ev.Name)))
		return
	}
	err := safeHandle(ctx, h, ev)
	w.settle(ctx, l, ev, err)
}

func (w *Worker) settle(ctx context.Context, l zerolog.Logger, ev Event, err error) {
	var outcome string
	var settleErr error
	switch {
	case err == nil:
		outcome = StatusDone
		settleErr = w.queue.Ack(ctx, w.cfg.Consumer, ev.ID)
	case IsPermanent(err) || ev.Attempts >= w.cfg.MaxAttempts:
		outcome = StatusDead
		l.Error().Err(err).Msg("event dead-lettered")
		settleErr = w.queue.Dead(ctx, w.cfg.Consumer, ev.ID, err.Error())
	default:
		outcome = "retry"
		next := w.now().Add(time.Duration(ev.Attempts) * w.cfg.RetryBackoff)
		l.Warn().Err(err).Time("next_attempt", next).Msg("event will be retried")
		settleErr = w.queue.Retry(ctx, w.cfg.Consumer, ev.ID, next, err.Error())
	}
	metrics.EventsProcessed.WithLabelValues(ev.Name, outcome).Inc()
	switch {
	case errors.Is(settleErr, ErrLeaseLost):
		l.Warn().Str("outcome", outcome).Msg("lease expired before settling, event belongs to another consumer")
	case settleErr != nil:
		l.Error().Err(settleErr).Str("outcome", outcome).Msg("settle event")
	}
}

func safeHandle(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h.Handle(ctx, ev)
}
