package goFlow

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples flow processing from sink latency. Events are
// queued on a bounded channel and delivered by a single worker goroutine, so
// a slow sink can never stall Authenticate. Backpressure policy comes from
// AuditConfig: drop (counted) or block.
type auditDispatcher struct {
	cfg     AuditConfig
	sink    AuditSink
	queue   chan AuditEvent
	done    chan struct{}
	worker  sync.WaitGroup
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

// newAuditDispatcher returns nil when auditing is disabled; all methods are
// nil-safe so callers never branch on it.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan AuditEvent, cfg.BufferSize),
		done:  make(chan struct{}),
	}

	d.worker.Add(1)
	go d.run()

	return d
}

func (d *auditDispatcher) run() {
	defer d.worker.Done()

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			d.drain()
			return
		}
	}
}

// drain delivers whatever is still queued at shutdown. Events enqueued after
// done closes may race the drain and be lost; audit delivery is best-effort.
func (d *auditDispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit queues one event. With DropIfFull it never blocks; otherwise it waits
// for queue space, ctx cancellation, or dispatcher shutdown.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops the worker after draining the queue. Idempotent; Emit after
// Close is a no-op.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.worker.Wait()
	})
}

// Dropped reports how many events the drop-if-full policy discarded.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
