// Package protocol defines the JSON frames exchanged over the room websocket.
//
// Every frame is an envelope {"event": name, "data": payload}. The relay
// never looks inside whiteboardAction payloads beyond the room id.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Whiteboard/internal/domain"
)

const (
	EventJoinRoom         = "joinRoom"
	EventUsersUpdated     = "usersUpdated"
	EventCursorMove       = "cursorMove"
	EventCursorMoved      = "cursorMoved"
	EventWhiteboardAction = "whiteboardAction"
	EventPing             = "ping"
	EventPong             = "pong"
)

var ErrUnknownEvent = errors.New("unknown event")

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinRoom struct {
	RoomID domain.RoomID    `json:"roomId"`
	User   *domain.Identity `json:"user,omitempty"`
}

type CursorMove struct {
	RoomID domain.RoomID `json:"roomId"`
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
}

type CursorMoved struct {
	UserID domain.ConnectionID `json:"userId"`
	X      float64             `json:"x"`
	Y      float64             `json:"y"`
}

type WhiteboardAction struct {
	RoomID domain.RoomID        `json:"roomId"`
	Type   domain.OperationKind `json:"type"`
	Action json.RawMessage      `json:"action"`
}

// Encode wraps payload into an envelope frame.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode envelope: %w", ErrUnknownEvent)
	}
	return env, nil
}

// Bind unmarshals the envelope payload into v.
func (e Envelope) Bind(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: %w", e.Event, err)
	}
	return nil
}
