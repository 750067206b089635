package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrDispatchQueueFull is returned when the inbox has no room; the event is dropped.
	ErrDispatchQueueFull = errors.New("event queue full")
	// ErrDispatcherClosed is returned by Publish after Close.
	ErrDispatcherClosed = errors.New("event dispatcher closed")
)

const (
	DefaultDispatchBuffer  = 1024
	DefaultDispatchTimeout = 10 * time.Second
)

// Dispatcher hands events to a background goroutine so callers never wait on
// a sink. Each event is published with its own bounded context, detached from
// the caller's.
type Dispatcher struct {
	next    Publisher
	inbox   chan Event
	timeout time.Duration
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher starts a dispatcher delivering to next. Non-positive size or
// timeout fall back to the defaults. Call Close to flush and stop it.
func NewDispatcher(next Publisher, size int, timeout time.Duration, log *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultDispatchBuffer
	}
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		next:    next,
		inbox:   make(chan Event, size),
		timeout: timeout,
		log:     log,
		done:    make(chan struct{}),
	}
	go d.loop()
	return d
}

// Publish queues evt without blocking. ctx is ignored: delivery outlives the
// request that produced the event.
func (d *Dispatcher) Publish(_ context.Context, evt Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.inbox <- evt:
		return nil
	default:
		return ErrDispatchQueueFull
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for evt := range d.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.next.Publish(ctx, evt); err != nil {
			d.log.Warn("deliver event", "type", evt.Type, "id", evt.ID, "err", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queued ones are delivered
// or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.inbox)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Publisher = (*Dispatcher)(nil)
