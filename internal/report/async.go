package report

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/gridci/internal/ctxlog"
)

// Async decouples a slow sink from the caller. Events are delivered in order
// by a single goroutine. Instance events that find the buffer full are
// dropped and counted; run summaries always wait for room.
type Async struct {
	next    Sink
	queue   chan func(context.Context) error
	done    chan struct{}
	closed  sync.Once
	ctx     context.Context
	dropped atomic.Int64
}

// NewAsync starts the delivery goroutine. ctx carries the logger used for
// delivery errors; it is not used for cancellation so that Close can flush.
func NewAsync(ctx context.Context, next Sink, buffer int) *Async {
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		next:  next,
		queue: make(chan func(context.Context) error, buffer),
		done:  make(chan struct{}),
		ctx:   context.WithoutCancel(ctx),
	}
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer close(a.done)
	logger := ctxlog.FromContext(a.ctx)
	for deliver := range a.queue {
		if err := deliver(a.ctx); err != nil {
			logger.Warn("Report sink delivery failed.", "error", err)
		}
	}
}

// InstanceEvent never blocks. The scheduler calls it from its control loop.
func (a *Async) InstanceEvent(ctx context.Context, ev InstanceEvent) error {
	select {
	case a.queue <- func(ctx context.Context) error { return a.next.InstanceEvent(ctx, ev) }:
	default:
		n := a.dropped.Add(1)
		ctxlog.FromContext(ctx).Warn("Report sink is behind, dropping instance event.",
			"instance", ev.Instance, "attempt", ev.Attempt, "dropped", n)
	}
	return nil
}

func (a *Async) RunFinished(_ context.Context, s RunSummary) error {
	a.queue <- func(ctx context.Context) error { return a.next.RunFinished(ctx, s) }
	return nil
}

// Dropped returns how many instance events were discarded on overflow.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close flushes pending deliveries and stops the goroutine. Sending after
// Close panics.
func (a *Async) Close() {
	a.closed.Do(func() { close(a.queue) })
	<-a.done
}
