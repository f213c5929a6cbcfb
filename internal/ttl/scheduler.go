package ttl

import (
	"context"
	"errors"
	"sync"
	"time"

	"memoryhttpd/internal/logs"
	"memoryhttpd/internal/metrics"
)

var (
	// ErrClosed is returned by Schedule once the scheduler stopped accepting records.
	ErrClosed = errors.New("expiration scheduler is closed")
	// ErrQueueFull is returned when no queue slot freed up within Config.RegisterTimeout.
	ErrQueueFull = errors.New("expiration queue is full")
)

const (
	DefaultQueueSize = 25
	DefaultIdleWait  = 24 * time.Hour
)

// Store defines the minimal contract required by the scheduler.
// This keeps the scheduler decoupled from the concrete store implementation.
type Store interface {
	Delete(key string)
	DeleteIfGeneration(key string, gen uint64) bool
}

// Config tunes the scheduler. Zero values pick the defaults.
type Config struct {
	// QueueSize is the capacity of the inbound registration queue.
	QueueSize int
	// RegisterTimeout bounds how long Schedule waits for a free slot.
	// Zero waits until the caller's context is done.
	RegisterTimeout time.Duration
	// Strict skips records whose key was rewritten after registration.
	// Without it a stale record still deletes whatever value the key holds.
	Strict bool
	// IdleWait is how long the loop sleeps when nothing is pending.
	IdleWait time.Duration
}

// Scheduler deletes keys from the store when their deadline elapses.
//
// Only the Run goroutine touches the priority queue; everyone else goes
// through Schedule and the bounded inbound channel.
type Scheduler struct {
	store   Store
	cfg     Config
	logger  *logs.Logger
	metrics *metrics.Registry

	in        chan Expiration
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	queue     queue
}

// NewScheduler creates a scheduler. Call Run to start processing.
func NewScheduler(
	store Store,
	cfg Config,
	logger *logs.Logger,
	metricsRegistry *metrics.Registry,
) *Scheduler {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = DefaultIdleWait
	}
	return &Scheduler{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: metricsRegistry,
		in:      make(chan Expiration, cfg.QueueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Schedule registers exp with the scheduler.
//
// It blocks while the inbound queue is full. It fails with ErrClosed after
// Close, with ErrQueueFull once RegisterTimeout elapses, or with ctx.Err()
// if the caller gives up first.
func (s *Scheduler) Schedule(ctx context.Context, exp Expiration) error {
	err := s.send(ctx, exp)
	if err != nil {
		s.metrics.Inc(metrics.ExpirationRegisterFailuresTotal)
		return err
	}
	s.metrics.Inc(metrics.ExpirationsScheduledTotal)
	return nil
}

func (s *Scheduler) send(ctx context.Context, exp Expiration) error {
	select {
	case <-s.quit:
		return ErrClosed
	default:
	}

	var timeout <-chan time.Time
	if s.cfg.RegisterTimeout > 0 {
		t := time.NewTimer(s.cfg.RegisterTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case s.in <- exp:
		return nil
	case <-s.quit:
		return ErrClosed
	case <-timeout:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting registrations and makes Run return.
// It is safe to call multiple times.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
}

// Done is closed once Run has returned.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run processes registrations and deadlines until Close is called or ctx is
// cancelled. It blocks and should typically be run in a separate goroutine.
// Records still pending when Run returns are dropped.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	defer s.Close()

	timer := time.NewTimer(s.cfg.IdleWait)
	defer timer.Stop()

	for {
		wait := s.cfg.IdleWait
		if next, ok := s.queue.peek(); ok {
			wait = time.Until(next.Deadline)
		}
		timer.Reset(wait)

		select {
		case exp := <-s.in:
			s.queue.push(exp)
			s.metrics.Inc(metrics.ExpirationsPending)
		case now := <-timer.C:
			s.expireOne(now)
		case <-s.quit:
			s.logger.Debug("expiration scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Debug("expiration scheduler stopped")
			return
		}
	}
}

// expireOne handles at most one due record. Further due records are picked
// up by the next loop iteration, whose timer fires immediately.
func (s *Scheduler) expireOne(now time.Time) {
	exp, ok := s.queue.peek()
	if !ok || exp.Deadline.After(now) {
		return
	}

	if s.cfg.Strict {
		if s.store.DeleteIfGeneration(exp.Key, exp.Generation) {
			s.logger.Debugf("expiration of key %q", exp.Key)
			s.metrics.Inc(metrics.ExpirationsFiredTotal)
		} else {
			s.logger.Debugf("skipped stale expiration of key %q", exp.Key)
			s.metrics.Inc(metrics.ExpirationsSkippedTotal)
		}
	} else {
		s.logger.Debugf("expiration of key %q", exp.Key)
		s.store.Delete(exp.Key)
		s.metrics.Inc(metrics.ExpirationsFiredTotal)
	}

	s.queue.pop()
	s.metrics.Add(metrics.ExpirationsPending, -1)
}
