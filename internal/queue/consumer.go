package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// HeaderAttempt carries the 1-based delivery attempt of a notification.
const HeaderAttempt = "x-attempt"

// HandlerFunc delivers one deposit release notification on one channel.
type HandlerFunc func(ctx context.Context, ev DepositReleasedEvent) error

type action int

const (
	actionAck action = iota
	actionRetry
	actionDrop
)

// Consumer reads one notification queue and hands every event to Handle.
// A failed delivery waits RetryDelay times the attempt number, then is
// re-published with an incremented attempt header until MaxAttempts is
// reached and it is dropped with an error log.  Malformed messages are
// dropped straight away.
type Consumer struct {
	URL         string
	Queue       string
	Handle      HandlerFunc
	MaxAttempts int
	Prefetch    int
	RetryDelay  time.Duration
}

// maxRetryDelay caps the linear redelivery backoff.
const maxRetryDelay = 5 * time.Minute

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Broker
// failures trigger a reconnect with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn().Err(err).Str("component", "consumer").Str("queue", c.Queue).Dur("retry_in", backoff).Msg("failed to dial broker")
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("component", "consumer").Str("queue", c.Queue).Msg("consume loop ended; reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	prefetch := c.Prefetch
	if prefetch <= 0 {
		prefetch = 20
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		log.Warn().Err(err).Str("component", "consumer").Msg("set QoS failed")
	}
	if err := declare(ch, c.Queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			attempt := attemptOf(d.Headers)
			switch c.process(ctx, d.Body, attempt) {
			case actionAck:
				_ = d.Ack(false)
			case actionRetry:
				if !sleepCtx(ctx, c.retryDelay(attempt)) {
					_ = d.Nack(false, true)
					return ctx.Err()
				}
				headers := amqp.Table{HeaderAttempt: int32(attempt + 1)}
				if err := publish(ctx, ch, c.Queue, d.Body, headers); err != nil {
					// Requeue the original rather than lose it.
					_ = d.Nack(false, true)
					return fmt.Errorf("republish: %w", err)
				}
				_ = d.Ack(false)
			case actionDrop:
				_ = d.Nack(false, false)
			}
		}
	}
}

// process decodes and delivers one message and decides what to do with it.
func (c *Consumer) process(ctx context.Context, body []byte, attempt int) action {
	var ev DepositReleasedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Error().Err(err).Str("component", "consumer").Str("queue", c.Queue).Msg("malformed message dropped")
		return actionDrop
	}
	err := c.Handle(ctx, ev)
	if err == nil {
		return actionAck
	}
	limit := c.MaxAttempts
	if limit <= 0 {
		limit = 5
	}
	if attempt >= limit {
		log.Error().Err(err).Str("component", "consumer").Str("queue", c.Queue).Str("booking", ev.BookingCode).Int("attempt", attempt).Msg("notification delivery gave up")
		return actionDrop
	}
	log.Warn().Err(err).Str("component", "consumer").Str("queue", c.Queue).Str("booking", ev.BookingCode).Int("attempt", attempt).Msg("notification delivery failed; retrying")
	return actionRetry
}

// retryDelay is how long a failed delivery waits before it is re-published.
func (c *Consumer) retryDelay(attempt int) time.Duration {
	base := c.RetryDelay
	if base <= 0 {
		base = 5 * time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base * time.Duration(attempt)
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// attemptOf reads the attempt header; messages without one are attempt 1.
func attemptOf(h amqp.Table) int {
	switch v := h[HeaderAttempt].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 1
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
