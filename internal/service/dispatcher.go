package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledgerpay/internal/metrics"
)

// Sink is a post-commit side effect. Its errors are logged and counted, never
// returned to the reconciler.
type Sink interface {
	Name() string
	HandleSettled(ctx context.Context, ev SettledEvent) error
}

const sinkTimeout = 10 * time.Second

// Dispatcher fans settled events out to sinks on a fixed worker pool.
// Publish never blocks: when the queue is full the event is dropped.
type Dispatcher struct {
	queue chan SettledEvent
	sinks []Sink
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(workers, queueSize int, sinks ...Sink) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	d := &Dispatcher{
		queue: make(chan SettledEvent, queueSize),
		sinks: sinks,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) Publish(ev SettledEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.DispatchDropped.Inc()
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		metrics.DispatchDropped.Inc()
		slog.Warn("dispatch queue full, dropping side effects",
			"component", "dispatch", "payment_id", ev.PaymentID, "user_id", ev.UserID)
		return false
	}
}

// Close stops accepting events and waits for queued ones to drain or ctx to end.
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
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.queue {
		for _, s := range d.sinks {
			d.run(s, ev)
		}
	}
}

func (d *Dispatcher) run(s Sink, ev SettledEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			metrics.DispatchFailures.WithLabelValues(s.Name()).Inc()
			slog.Error("sink panicked", "component", "dispatch", "sink", s.Name(), "payment_id", ev.PaymentID, "panic", fmt.Sprint(r))
		}
	}()
	if err := s.HandleSettled(ctx, ev); err != nil {
		metrics.DispatchFailures.WithLabelValues(s.Name()).Inc()
		slog.Error("sink failed", "component", "dispatch", "sink", s.Name(), "payment_id", ev.PaymentID, "error", err)
	}
}
