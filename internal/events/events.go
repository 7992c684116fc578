// Package events carries domain events from request handlers to background
// handlers with at-least-once delivery.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	TicketCreated = "ticket/created"
	UserSignup    = "user/signup"
)

type Event struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"createdAt"`
}

type TicketCreatedPayload struct {
	TicketID string `json:"ticketId"`
}

type UserSignupPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Publisher enqueues an event. Delivery is asynchronous and unordered.
type Publisher interface {
	Publish(ctx context.Context, name string, payload any) (string, error)
}

// Queue is the consumer side of the event log.
type Queue interface {
	Publisher
	// Lease claims up to limit due events for ttl. Leased events that are
	// neither acked nor released become due again once the lease expires.
	Lease(ctx context.Context, consumer string, limit int, ttl time.Duration) ([]Event, error)
	// Ack, Retry and Dead settle an event and only apply while consumer
	// still holds its lease; otherwise they return ErrLeaseLost.
	Ack(ctx context.Context, consumer, id string) error
	Retry(ctx context.Context, consumer, id string, next time.Time, lastErr string) error
	Dead(ctx context.Context, consumer, id string, lastErr string) error
}

// ErrLeaseLost means the lease expired and the event was claimed again or settled.
var ErrLeaseLost = errors.New("event lease no longer held")

type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

type HandlerFunc func(ctx context.Context, ev Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

type permanentError struct {
	cause error
}

func (e permanentError) Error() string {
	if e.cause == nil {
		return "permanent error"
	}
	return e.cause.Error()
}

func (e permanentError) Unwrap() error { return e.cause }

// Permanent marks an error as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{cause: err}
}

// IsPermanent reports whether err was explicitly marked as non-retryable.
func IsPermanent(err error) bool {
	var target permanentError
	return errors.As(err, &target)
}

// Decode unmarshals the payload of ev into v. Malformed payloads are permanent.
func Decode(ev Event, v any) error {
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		return Permanent(err)
	}
	return nil
}
