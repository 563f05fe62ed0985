// Package dispatch serializes every outbound chat call behind one worker.
//
// Producers enqueue sends and edits from any goroutine; the worker delivers
// them one at a time in enqueue order. Delivery failures are logged and
// otherwise swallowed, except for Deliver callers who wait for the result.
package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/time/rate"

	"github.com/Iron-Ham/herobot/internal/chat"
	"github.com/Iron-Ham/herobot/internal/errors"
	"github.com/Iron-Ham/herobot/internal/logging"
)

// Defaults applied when Options leaves a field unset.
const (
	DefaultQueueSize    = 256
	DefaultDrainTimeout = 10 * time.Second
)

// Options configures a Dispatcher.
type Options struct {
	// RateLimit is the sustained number of calls per second. Zero or less
	// disables throttling.
	RateLimit float64
	// Burst is the number of calls allowed back to back.
	Burst int
	// QueueSize bounds the number of waiting calls. Producers block when
	// the queue is full.
	QueueSize int
	// DrainTimeout bounds delivery of queued calls after Run's context ends.
	DrainTimeout time.Duration
}

type opKind int

const (
	opSend opKind = iota
	opEdit
)

func (k opKind) String() string {
	if k == opEdit {
		return "edit"
	}
	return "send"
}

type request struct {
	kind   opKind
	msg    chat.Outbound
	handle chat.Handle
	// result is nil for fire-and-forget calls.
	result chan<- result
}

type result struct {
	handle chat.Handle
	err    error
}

// Stats counts delivery outcomes.
type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
}

// Dispatcher is the single serialization point for outbound chat calls.
type Dispatcher struct {
	endpoint     chat.Endpoint
	limiter      *rate.Limiter
	drainTimeout time.Duration
	logger       *logging.Logger

	queue chan request
	done  chan struct{}

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// New creates a Dispatcher. Call Run to start delivering.
func New(endpoint chat.Endpoint, opts Options, logger *logging.Logger) *Dispatcher {
	if opts.QueueSize < 1 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := max(opts.Burst, 1)

	return &Dispatcher{
		endpoint:     endpoint,
		limiter:      rate.NewLimiter(limit, burst),
		drainTimeout: opts.DrainTimeout,
		logger:       logger.WithComponent("dispatch"),
		queue:        make(chan request, opts.QueueSize),
		done:         make(chan struct{}),
	}
}

// Notify enqueues a new message to the recipient.
func (d *Dispatcher) Notify(text string) error {
	return d.enqueue(request{kind: opSend, msg: chat.Outbound{Text: text}})
}

// Reply enqueues a message threaded under the inbound message it answers.
func (d *Dispatcher) Reply(to chat.Inbound, text string) error {
	return d.enqueue(request{kind: opSend, msg: chat.Outbound{Text: text, ReplyTo: to.ID}})
}

// RefreshHeartbeat enqueues an in-place edit of the liveness message.
func (d *Dispatcher) RefreshHeartbeat(h chat.Handle, text string) error {
	return d.enqueue(request{kind: opEdit, handle: h, msg: chat.Outbound{Text: text}})
}

// Deliver enqueues msg and waits for the worker to send it. Ordering with
// respect to other enqueued calls is preserved.
func (d *Dispatcher) Deliver(ctx context.Context, msg chat.Outbound) (chat.Handle, error) {
	ch := make(chan result, 1)
	if err := d.enqueue(request{kind: opSend, msg: msg, result: ch}); err != nil {
		return chat.Handle{}, err
	}

	select {
	case res := <-ch:
		return res.handle, res.err
	case <-ctx.Done():
		return chat.Handle{}, ctx.Err()
	case <-d.done:
		// The worker may have answered just before exiting.
		select {
		case res := <-ch:
			return res.handle, res.err
		default:
			return chat.Handle{}, errors.ErrDispatcherClosed
		}
	}
}

func (d *Dispatcher) enqueue(req request) error {
	select {
	case <-d.done:
		return errors.ErrDispatcherClosed
	default:
	}

	select {
	case d.queue <- req:
		return nil
	case <-d.done:
		return errors.ErrDispatcherClosed
	}
}

// Run delivers queued calls until ctx ends, then drains what is already
// queued within the drain timeout. Calls in flight are never aborted.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)

	d.logger.Debug("dispatcher started")
	for {
		// Cancellation wins over a non-empty queue so leftovers go through
		// the bounded drain.
		if ctx.Err() != nil {
			d.drain(context.WithoutCancel(ctx))
			return nil
		}

		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return nil
		case req := <-d.queue:
			d.deliver(context.WithoutCancel(ctx), req)
		}
	}
}

func (d *Dispatcher) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, d.drainTimeout)
	defer cancel()

	for {
		select {
		case req := <-d.queue:
			if ctx.Err() != nil {
				d.drop(req, ctx.Err())
				continue
			}
			d.deliver(ctx, req)
		default:
			d.logger.Debug("dispatcher stopped", "delivered", d.delivered.Load(), "failed", d.failed.Load())
			return
		}
	}
}

func (d *Dispatcher) drop(req request, cause error) {
	d.dropped.Add(1)
	d.logger.Warn("dropped outbound call", "op", req.kind.String(), "error", cause)
	if req.result != nil {
		req.result <- result{err: errors.ErrDispatcherClosed}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, req request) {
	if err := d.limiter.Wait(ctx); err != nil {
		d.drop(req, err)
		return
	}

	var res result
	var pc panics.Catcher
	pc.Try(func() {
		res = d.call(ctx, req)
	})
	if r := pc.Recovered(); r != nil {
		res = result{err: r.AsError()}
	}

	if res.err != nil {
		d.failed.Add(1)
		d.logger.Error("outbound call failed",
			"op", req.kind.String(),
			"retryable", errors.IsRetryable(res.err),
			"error", res.err,
		)
	} else {
		d.delivered.Add(1)
	}

	if req.result != nil {
		req.result <- res
	}
}

func (d *Dispatcher) call(ctx context.Context, req request) result {
	switch req.kind {
	case opEdit:
		return result{handle: req.handle, err: d.endpoint.EditMessage(ctx, req.handle, req.msg.Text)}
	default:
		h, err := d.endpoint.SendMessage(ctx, req.msg)
		return result{handle: h, err: err}
	}
}

// Stats returns delivery counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}
