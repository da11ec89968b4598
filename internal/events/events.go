package events

import (
	"encoding/json"
	"time"
)

// EventType identifies a live-channel event on the bus.
type EventType string

const (
	EventTypeLiveChanged EventType = "LiveChanged"
)

// LiveEvent is the envelope published to JetStream and consumed by the
// gateway tier.
type LiveEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// LiveChangedPayload carries the state committed when the channel advances to
// or schedules a new video. Viewers treat the event as a refresh hint only;
// they re-fetch the authoritative state over HTTP.
type LiveChangedPayload struct {
	YoutubeID     string    `json:"youtube_id"`
	Title         string    `json:"titulo"`
	SourceChannel string    `json:"canal_fuente"`
	ChangedAt     time.Time `json:"changed_at"`
}
