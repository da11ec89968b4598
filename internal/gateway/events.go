package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// Envelope is the frame every WebSocket message travels in, both directions.
type Envelope struct {
	Event string          `json:"evento"`
	Data  json.RawMessage `json:"datos,omitempty"`
}

// Client-to-server events.
const (
	EventJoin    = "unirse"
	EventLeave   = "salir"
	EventMessage = "mensaje"
)

// Server-to-client events. EventMessage is shared: the echo of a send comes
// back as a "mensaje" frame once broadcast.
const (
	EventSystem      = "sistema"
	EventLiveChanged = "live_cambio"
)

// JoinPayload asks to enter or leave a room.
type JoinPayload struct {
	Room string `json:"sala"`
	Name string `json:"nombre"`
}

// MessagePayload is a chat send from a client.
type MessagePayload struct {
	Room    string `json:"sala"`
	User    string `json:"usuario"`
	Content string `json:"contenido"`
}

// SystemPayload carries a plain system notice.
type SystemPayload struct {
	Message string `json:"mensaje"`
}

func marshalEnvelope(event string, data interface{}) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		env.Data = raw
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return frame, nil
}

// ChatFrame builds a "mensaje" frame for a chat message.
func ChatFrame(msg *models.ChatMessage) ([]byte, error) {
	return marshalEnvelope(EventMessage, msg)
}

// SystemFrame builds a "sistema" frame with a plain notice.
func SystemFrame(message string) ([]byte, error) {
	return marshalEnvelope(EventSystem, SystemPayload{Message: message})
}

// LiveChangedFrame builds a payload-less "live_cambio" hint frame.
func LiveChangedFrame() ([]byte, error) {
	return marshalEnvelope(EventLiveChanged, nil)
}
