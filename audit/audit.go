// Package audit records verification events for compliance review.
// Appends are best-effort from the pipeline's point of view: a failed
// append never fails a verification.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is a single audit record.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	ProfileRef string         `json:"profile_ref"`
	CreatedAt  time.Time      `json:"created_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Event types emitted by the pipeline.
const (
	EventVerificationStarted  = "verification.started"
	EventVerificationFinished = "verification.finished"
	EventAvatarExtracted      = "avatar.extracted"
)

// NewEvent builds an event with a fresh ID and the current time.
func NewEvent(eventType, profileRef string, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ProfileRef: profileRef,
		CreatedAt:  time.Now().UTC(),
		Payload:    payload,
	}
}

// Journal is an append-only audit sink.
type Journal interface {
	Append(ctx context.Context, event Event) error
}

// MemoryJournal keeps events in memory. Intended for tests.
type MemoryJournal struct {
	mutex  sync.Mutex
	events []Event
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(ctx context.Context, event Event) error {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.events = append(j.events, event)
	return nil
}

// Events returns a snapshot of everything appended so far.
func (j *MemoryJournal) Events() []Event {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	out := make([]Event, len(j.events))
	copy(out, j.events)
	return out
}

// LogJournal writes events to the structured log. The fallback sink
// when no durable journal is configured.
type LogJournal struct{}

func NewLogJournal() *LogJournal {
	return &LogJournal{}
}

func (j *LogJournal) Append(ctx context.Context, event Event) error {
	slog.Info("audit event",
		"id", event.ID,
		"type", event.Type,
		"profile_ref", event.ProfileRef,
		"payload", event.Payload)
	return nil
}

// RedisJournal appends events to a Redis stream at
// <namespace>:audit, one entry per event with the JSON body under
// the "event" field.
type RedisJournal struct {
	client    *redis.Client
	namespace string
}

func NewRedisJournal(client *redis.Client, namespace string) *RedisJournal {
	return &RedisJournal{client: client, namespace: namespace}
}

func (j *RedisJournal) Append(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	err = j.client.XAdd(ctx, &redis.XAddArgs{
		Stream: fmt.Sprintf("%s:audit", j.namespace),
		Values: map[string]any{"event": body},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append audit event to Redis: %w", err)
	}
	return nil
}
