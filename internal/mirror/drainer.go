package mirror

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"docmirror/internal/bus"
	"docmirror/internal/event"
)

// Options bounds one drain call. A MaxDuration or MaxIdleRounds of zero
// means unbounded on that axis, which is how the long-lived subscribe
// mode runs the same loop.
type Options struct {
	BatchSize     int
	MaxDuration   time.Duration
	MaxIdleRounds int
	WaitTime      time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 16
	}
	if o.WaitTime <= 0 {
		o.WaitTime = 2 * time.Second
	}
	return o
}

// Stats summarizes one drain call. Individual message failures are
// expected and show up as counts, not as a call error.
type Stats struct {
	Processed int
	Completed int
	Abandoned int
	Skipped   int
	Duration  time.Duration
}

// Add merges two stat sets; the worker uses it to accumulate totals
// across drain ticks.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Processed: s.Processed + o.Processed,
		Completed: s.Completed + o.Completed,
		Abandoned: s.Abandoned + o.Abandoned,
		Skipped:   s.Skipped + o.Skipped,
		Duration:  s.Duration + o.Duration,
	}
}

func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"processed":  s.Processed,
		"completed":  s.Completed,
		"abandoned":  s.Abandoned,
		"skipped":    s.Skipped,
		"durationMs": s.Duration.Milliseconds(),
	})
}

// Drainer pulls batches from the subscription and dispatches them to
// the processor, completing or abandoning each message by outcome.
// One drainer owns one receiver; messages within a batch are processed
// sequentially in receive order so upserts for the same entity never
// race inside an invocation.
type Drainer struct {
	recv   bus.Receiver
	client bus.Client
	proc   *Processor
	opts   Options
	log    *zap.Logger
	closed atomic.Bool
}

func NewDrainer(recv bus.Receiver, client bus.Client, proc *Processor, opts Options, log *zap.Logger) *Drainer {
	return &Drainer{
		recv:   recv,
		client: client,
		proc:   proc,
		opts:   opts.withDefaults(),
		log:    log,
	}
}

// Drain runs the bounded consume-and-apply loop and returns its counts.
// The deadline is checked at the top of each round only; an in-flight
// receive or dispatch is never cut short. Receive failures are
// call-level and propagate along with the stats so far.
func (d *Drainer) Drain(ctx context.Context) (Stats, error) {
	start := time.Now()
	var deadline time.Time
	if d.opts.MaxDuration > 0 {
		deadline = start.Add(d.opts.MaxDuration)
	}

	// Cancellation bounds the loop and the receive, not an in-flight
	// dispatch: once a batch is in hand it is drained to completion so
	// shutdown never turns half a batch into abandons.
	dispatchCtx := context.WithoutCancel(ctx)

	var stats Stats
	idleRounds := 0
	for {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			break
		}
		wait := d.opts.WaitTime
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			// A sub-millisecond block would truncate to "block
			// forever" on the wire; the budget is spent, exit instead.
			if remaining < time.Millisecond {
				break
			}
			if remaining < wait {
				wait = remaining
			}
		}

		msgs, err := d.recv.Receive(ctx, d.opts.BatchSize, wait)
		if err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}
		if len(msgs) == 0 {
			idleRounds++
			if d.opts.MaxIdleRounds > 0 && idleRounds >= d.opts.MaxIdleRounds {
				// Caught up; clean exit.
				break
			}
			continue
		}
		idleRounds = 0
		for _, msg := range msgs {
			d.dispatch(dispatchCtx, msg, &stats)
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

func (d *Drainer) dispatch(ctx context.Context, msg bus.Message, stats *Stats) {
	stats.Processed++

	var ev event.Envelope
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		// Malformed payloads cannot be retried into correctness.
		stats.Skipped++
		d.log.Warn("dropping malformed message",
			zap.String("receipt_id", msg.ReceiptID),
			zap.Error(err))
		d.complete(ctx, msg)
		return
	}

	procedure, ok := d.proc.Resolve(ev.Type)
	if !ok {
		stats.Skipped++
		d.log.Debug("skipping unmapped event type",
			zap.String("event_type", ev.Type),
			zap.String("event_id", ev.ID))
		d.complete(ctx, msg)
		return
	}

	if err := d.proc.Execute(ctx, procedure, &ev); err != nil {
		stats.Abandoned++
		d.log.Error("abandoning message after processing failure",
			zap.String("procedure", procedure),
			zap.String("event_id", ev.ID),
			zap.String("event_type", ev.Type),
			zap.Error(err))
		if aerr := d.recv.Abandon(ctx, msg); aerr != nil {
			d.log.Warn("abandon failed",
				zap.String("receipt_id", msg.ReceiptID), zap.Error(aerr))
		}
		return
	}

	d.complete(ctx, msg)
	stats.Completed++
}

// complete acks best-effort: the procedure already ran, and redelivery
// of a completed-but-unacked message is harmless because every
// procedure is idempotent.
func (d *Drainer) complete(ctx context.Context, msg bus.Message) {
	if err := d.recv.Complete(ctx, msg); err != nil {
		d.log.Warn("complete failed",
			zap.String("receipt_id", msg.ReceiptID), zap.Error(err))
	}
}

// Close shuts the receiver, then the client. Safe to call repeatedly
// and when either is already closed.
func (d *Drainer) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := d.recv.Close(); err != nil {
		d.log.Warn("closing receiver", zap.Error(err))
	}
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
