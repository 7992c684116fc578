package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	event       Event
	status      string
	nextAttempt time.Time
	leaseUntil  time.Time
	leaseOwner  string
	lastError   string
}

// MemoryQueue is an in-process Queue for single-process deployments and tests.
type MemoryQueue struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: map[string]*memoryEntry{}, now: time.Now}
}

func (q *MemoryQueue) Publish(_ context.Context, name string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", name, err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	ev := Event{ID: uuid.NewString(), Name: name, Payload: b, CreatedAt: now}
	q.entries[ev.ID] = &memoryEntry{event: ev, status: StatusPending, nextAttempt: now}
	return ev.ID, nil
}

func (q *MemoryQueue) Lease(_ context.Context, consumer string, limit int, ttl time.Duration) ([]Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	var due []*memoryEntry
	for _, e := range q.entries {
		pending := e.status == StatusPending && !e.nextAttempt.After(now)
		expired := e.status == StatusLeased && !e.leaseUntil.After(now)
		if pending || expired {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].event.CreatedAt.Before(due[j].event.CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]Event, 0, len(due))
	for _, e := range due {
		e.status = StatusLeased
		e.leaseUntil = now.Add(ttl)
		e.leaseOwner = consumer
		e.event.Attempts++
		out = append(out, e.event)
	}
	return out, nil
}

func (q *MemoryQueue) Ack(_ context.Context, consumer, id string) error {
	return q.settle(consumer, id, func(e *memoryEntry) { e.status = StatusDone })
}

func (q *MemoryQueue) Retry(_ context.Context, consumer, id string, next time.Time, lastErr string) error {
	return q.settle(consumer, id, func(e *memoryEntry) {
		e.status = StatusPending
		e.nextAttempt = next
		e.lastError = lastErr
	})
}

func (q *MemoryQueue) Dead(_ context.Context, consumer, id string, lastErr string) error {
	return q.settle(consumer, id, func(e *memoryEntry) {
		e.status = StatusDead
		e.lastError = lastErr
	})
}

// Status returns the delivery status and attempt count of an event.
func (q *MemoryQueue) Status(id string) (string, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return "", 0
	}
	return e.status, e.event.Attempts
}

func (q *MemoryQueue) settle(consumer, id string, fn func(*memoryEntry)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return fmt.Errorf("event %s not found", id)
	}
	if e.status != StatusLeased || e.leaseOwner != consumer {
		return ErrLeaseLost
	}
	fn(e)
	e.leaseOwner = ""
	e.leaseUntil = time.Time{}
	return nil
}
