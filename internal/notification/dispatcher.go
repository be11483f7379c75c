package notification

import (
	"context"
	"log/slog"
	"sync"
)

// Dispatcher decouples notification delivery from the caller's critical path.
// Messages go into a buffered inbox consumed by one background worker; when
// the inbox is full the message is dropped and counted rather than blocking
// payment processing.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger

	inbox     chan Message
	wg        sync.WaitGroup
	closeOnce sync.Once

	// onFailure is invoked for every failed or dropped delivery (metrics hook).
	onFailure func()
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithBuffer sets the inbox capacity. Default 64.
func WithBuffer(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.inbox = make(chan Message, n)
		}
	}
}

// WithFailureHook registers a callback fired on failed or dropped deliveries.
func WithFailureHook(hook func()) Option {
	return func(d *Dispatcher) {
		d.onFailure = hook
	}
}

// NewDispatcher starts the background delivery worker.
func NewDispatcher(sender Sender, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		logger: logger,
		inbox:  make(chan Message, 64),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.run()
	return d
}

// Dispatch enqueues a message without blocking and reports whether it was
// accepted. A false return means the inbox was full and the message dropped;
// the triggering state change has already committed either way.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) bool {
	select {
	case d.inbox <- msg:
		return true
	default:
		d.logger.Warn("notification dropped, dispatcher inbox full",
			"recipient", msg.Recipient,
			"template", msg.Template,
		)
		d.fail()
		return false
	}
}

// Close drains the inbox and stops the worker.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.inbox)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for msg := range d.inbox {
		// Deliveries run on a background context: the originating request may
		// be long gone by the time the message reaches the front of the queue.
		if err := d.sender.Send(context.Background(), msg); err != nil {
			d.logger.Warn("notification delivery failed",
				"error", err,
				"recipient", msg.Recipient,
				"template", msg.Template,
			)
			d.fail()
		}
	}
}

func (d *Dispatcher) fail() {
	if d.onFailure != nil {
		d.onFailure()
	}
}
