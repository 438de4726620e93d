package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls how flow events are queued between the engine and sinks.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher fans audit events out to one or more sinks from a single
// delivery goroutine, so a slow sink never stalls the flow operation that
// emitted the event. A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	sinks []Sink
	queue chan Event
	lossy bool

	// mu guards intake against the queue closing mid-send.
	mu     sync.RWMutex
	closed bool

	done    chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher starts the delivery goroutine. A disabled config returns
// nil; nil sinks are skipped.
func NewDispatcher(cfg Config, sinks ...Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}

	d := &Dispatcher{
		sinks: kept,
		queue: make(chan Event, size),
		lossy: cfg.DropIfFull,
		done:  make(chan struct{}),
	}
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.done)
	for event := range d.queue {
		for _, sink := range d.sinks {
			sink.Emit(context.Background(), event)
		}
	}
}

// Emit queues an event for delivery. A lossy dispatcher counts a drop when
// the queue is full instead of blocking; otherwise Emit blocks until the
// queue accepts the event or ctx ends. After Close, Emit is a no-op.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.lossy {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops intake and returns once every queued event has reached the
// sinks.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

// Dropped reports how many events lossy intake discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
