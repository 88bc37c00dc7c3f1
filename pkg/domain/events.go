package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventFetch     EventType = "fetch"
	EventFlush     EventType = "flush"
	EventDelete    EventType = "delete"
	EventTurnStart EventType = "turn_start"
	EventTurnEnd   EventType = "turn_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// SnapshotEvent describes a host round-trip of the whole snapshot.
type SnapshotEvent struct {
	EventBase
	Items int   `json:"items"` // top-level node count
	Err   error `json:"-"`
}

// NodeEvent describes a node released on the host.
type NodeEvent struct {
	EventBase
	Path string `json:"path"`
	Node *Node  `json:"node,omitempty"`
	Err  error  `json:"-"`
}

// TurnEvent describes the start or end of one script turn against a document.
type TurnEvent struct {
	EventBase
	TurnID     string        `json:"turn_id"`
	DocumentID string        `json:"document_id"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// LifecycleHooks defines callbacks for bridge observability.
type LifecycleHooks struct {
	OnFetch     func(context.Context, *SnapshotEvent)
	OnFlush     func(context.Context, *SnapshotEvent)
	OnDelete    func(context.Context, *NodeEvent)
	OnTurnStart func(context.Context, *TurnEvent)
	OnTurnEnd   func(context.Context, *TurnEvent)
}

// NewEventBase stamps an event of the given type with the current time.
func NewEventBase(t EventType) EventBase {
	return EventBase{Timestamp: time.Now(), Type: t}
}

// MergeHooks returns hooks that call every non-nil callback of each set, in order.
func MergeHooks(sets ...LifecycleHooks) LifecycleHooks {
	var merged LifecycleHooks
	for _, h := range sets {
		merged.OnFetch = chain(merged.OnFetch, h.OnFetch)
		merged.OnFlush = chain(merged.OnFlush, h.OnFlush)
		merged.OnDelete = chain(merged.OnDelete, h.OnDelete)
		merged.OnTurnStart = chain(merged.OnTurnStart, h.OnTurnStart)
		merged.OnTurnEnd = chain(merged.OnTurnEnd, h.OnTurnEnd)
	}
	return merged
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
