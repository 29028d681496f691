package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// MessagePublisher is satisfied by *Publisher.
type MessagePublisher interface {
	Publish(ctx context.Context, queue string, body []byte, headers amqp.Table) error
}

type task struct {
	queue string
	body  []byte
}

// Dispatcher is the outbound notification queue of the release engine.
// DepositReleased never blocks: it enqueues one task per channel on a bounded
// buffer and returns.  A single worker publishes the tasks with its own retry
// policy.  Nothing about delivery is ever reported back to the caller.
type Dispatcher struct {
	pub      MessagePublisher
	tasks    chan task
	attempts int
	backoff  time.Duration
	timeout  time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a stopped dispatcher.  buffer bounds the number of
// pending tasks; attempts is the per-task publish attempt budget.
func NewDispatcher(pub MessagePublisher, buffer, attempts int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if attempts <= 0 {
		attempts = 3
	}
	return &Dispatcher{
		pub:      pub,
		tasks:    make(chan task, buffer),
		attempts: attempts,
		backoff:  500 * time.Millisecond,
		timeout:  10 * time.Second,
	}
}

// WithBackoff sets the base delay between publish attempts.
func (d *Dispatcher) WithBackoff(b time.Duration) *Dispatcher {
	d.backoff = b
	return d
}

// Start launches the publishing worker.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	d.wg.Add(1)
	go d.work()
}

// Close stops accepting tasks, drains the buffer and waits for the worker.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.tasks)
	started := d.started
	d.mu.Unlock()
	if started {
		d.wg.Wait()
	}
}

// DepositReleased enqueues the email and SMS/in-app notifications for ev.
func (d *Dispatcher) DepositReleased(ev DepositReleasedEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("component", "notify").Str("booking", ev.BookingCode).Msg("marshal event failed")
		return
	}
	d.enqueue(task{queue: QueueDepositReleasedEmail, body: body}, ev.BookingCode)
	d.enqueue(task{queue: QueueDepositReleasedSMS, body: body}, ev.BookingCode)
}

func (d *Dispatcher) enqueue(t task, bookingCode string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Warn().Str("component", "notify").Str("queue", t.queue).Str("booking", bookingCode).Msg("dispatcher closed; notification dropped")
		return
	}
	select {
	case d.tasks <- t:
	default:
		log.Warn().Str("component", "notify").Str("queue", t.queue).Str("booking", bookingCode).Msg("notification buffer full; notification dropped")
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for t := range d.tasks {
		d.deliver(t)
	}
}

func (d *Dispatcher) deliver(t task) {
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err = d.pub.Publish(ctx, t.queue, t.body, amqp.Table{HeaderAttempt: int32(1)})
		cancel()
		if err == nil {
			return
		}
		if attempt < d.attempts {
			time.Sleep(d.backoff * time.Duration(attempt))
		}
	}
	log.Error().Err(err).Str("component", "notify").Str("queue", t.queue).Int("attempts", d.attempts).Msg("notification publish gave up")
}
