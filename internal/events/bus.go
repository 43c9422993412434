// Package events delivers lifecycle events to in-process observers.
//
// Delivery is asynchronous, best effort and at most once: Publish never
// blocks, an event is dropped when the queue is full or the bus is stopped,
// and observer failures are logged but never retried or reported back to the
// publisher.
package events

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"forum-invitations/internal/domain"
	"forum-invitations/internal/logger"
	"forum-invitations/internal/metrics"
)

// Handler observes one event
type Handler func(ctx context.Context, event domain.Event) error

type subscription struct {
	event string
	fn    Handler
}

type Bus struct {
	subscriptions sync.Map
	queue         chan domain.Event
	workers       int

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewBus(queueSize, workers int) *Bus {
	if workers < 1 {
		workers = 1
	}
	return &Bus{
		queue:   make(chan domain.Event, queueSize),
		workers: workers,
	}
}

// Subscribe registers fn under name for events called event, or for every
// event when event is empty. A second subscription with the same name
// replaces the first.
func (b *Bus) Subscribe(name, event string, fn Handler) {
	b.subscriptions.Store(name, subscription{event: event, fn: fn})
}

func (b *Bus) Unsubscribe(name string) bool {
	_, found := b.subscriptions.LoadAndDelete(name)
	return found
}

// Publish queues event for delivery without blocking
func (b *Bus) Publish(event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		b.drop(event, "stopped")
		return
	}
	select {
	case b.queue <- event:
	default:
		b.drop(event, "queue full")
	}
}

func (b *Bus) drop(event domain.Event, reason string) {
	metrics.EventDropped(event.Name)
	logger.Warn("Dropping event", "event", event.Name, "reason", reason)
}

// Start launches the delivery workers. They exit when ctx is done or the bus
// is stopped and drained.
func (b *Bus) Start(ctx context.Context) {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker(ctx, i)
	}
}

// Stop rejects further events and waits for queued ones to be delivered
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.stopped {
		b.stopped = true
		close(b.queue)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bus) worker(ctx context.Context, id int) {
	defer b.wg.Done()
	logger.Debug("Event worker started", "worker", id)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Event worker stopping", "worker", id)
			return
		case event, ok := <-b.queue:
			if !ok {
				return
			}
			b.dispatch(ctx, event)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, event domain.Event) {
	b.subscriptions.Range(func(key, value any) bool {
		sub := value.(subscription)
		if sub.event != "" && sub.event != event.Name {
			return true
		}
		name := key.(string)
		if err := deliver(ctx, sub.fn, event); err != nil {
			logger.Error("Event observer failed", "observer", name, "event", event.Name, "error", err)
		}
		return true
	})
}

func deliver(ctx context.Context, fn Handler, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx, event)
}

// LogObserver records every event in the application log
func LogObserver(ctx context.Context, event domain.Event) error {
	args := []any{"event", event.Name, "occurred_at", event.OccurredAt}
	for k, v := range event.Payload {
		if k == "email" {
			continue
		}
		args = append(args, k, v)
	}
	logger.InfoContext(ctx, "Lifecycle event", args...)
	return nil
}
