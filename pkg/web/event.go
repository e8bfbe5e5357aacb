// Package web provides the live status dashboard with SSE streaming of badge updates.
package web

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/umputun/lifebadge/pkg/badge"
)

// EventType represents the type of event being streamed.
type EventType string

// event type constants for SSE streaming, also used as the SSE "event" field.
const (
	EventTypeBadge      EventType = "badge"      // result of a single check
	EventTypeTransition EventType = "transition" // state kind changed between two checks
)

// Event represents a single event to be streamed to web clients.
type Event struct {
	Type      EventType   `json:"type"`
	Badge     badge.Badge `json:"badge"`
	From      string      `json:"from,omitempty"` // previous state label, transitions only
	Timestamp time.Time   `json:"timestamp"`
	Seq       int64       `json:"seq"` // assigned by Server on publish, increasing
}

// NewBadgeEvent creates a badge event with current timestamp.
func NewBadgeEvent(b badge.Badge) Event {
	return Event{Type: EventTypeBadge, Badge: b, Timestamp: time.Now()}
}

// NewTransitionEvent creates a transition event from the previous state label to the given badge.
func NewTransitionEvent(from string, b badge.Badge) Event {
	return Event{Type: EventTypeTransition, Badge: b, From: from, Timestamp: time.Now()}
}

// JSON returns the event as JSON bytes for SSE streaming.
func (e Event) JSON() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}
