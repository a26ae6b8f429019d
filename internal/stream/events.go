// Package stream transforms a model turn's wire events into durable
// messages while forwarding the raw stream to the consumer untouched.
package stream

import (
	"encoding/json"
	"strings"
)

// EventType is the tag before the colon on a stream line.
type EventType string

const (
	EventTurnStart      EventType = "turn-start"
	EventTextDelta      EventType = "text-delta"
	EventReasoningDelta EventType = "reasoning-delta"
	EventFinish         EventType = "finish"
)

// Usage reports token consumption on the finish event.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Event is one parsed stream line. Only the fields for the given type are
// populated.
type Event struct {
	Type EventType

	// ID is the turn identifier carried by every event type.
	ID string

	// Delta holds incremental text for text-delta events.
	Delta string

	// Reasoning holds incremental reasoning text for reasoning-delta events.
	Reasoning string

	// FinishReason and Usage are set on finish events.
	FinishReason string
	Usage        Usage
}

type eventPayload struct {
	ID           string `json:"id"`
	Delta        string `json:"delta"`
	Reasoning    string `json:"reasoning"`
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
}

// ParseLine decodes one `<type>:<json>` stream line. It returns ok=false for
// anything that is not a well-formed known event; callers forward such lines
// untouched and ignore them for state.
func ParseLine(line string) (Event, bool) {
	tag, payload, found := strings.Cut(line, ":")
	if !found {
		return Event{}, false
	}

	typ := EventType(tag)
	switch typ {
	case EventTurnStart, EventTextDelta, EventReasoningDelta, EventFinish:
	default:
		return Event{}, false
	}

	var p eventPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return Event{}, false
	}

	return Event{
		Type:         typ,
		ID:           p.ID,
		Delta:        p.Delta,
		Reasoning:    p.Reasoning,
		FinishReason: p.FinishReason,
		Usage:        p.Usage,
	}, true
}
