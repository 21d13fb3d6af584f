package domain

import "github.com/google/uuid"

// ConnectionID identifies one live transport connection, not a person.
// A reconnect always gets a fresh one.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// Participant is the presence record of one connection inside a room.
// Only the cursor position changes after creation.
type Participant struct {
	ConnectionID ConnectionID `json:"connectionId"`
	DisplayName  string       `json:"displayName"`
	AvatarURL    string       `json:"avatarUrl"`
	CursorColor  string       `json:"cursorColor"`
	X            float64      `json:"x"`
	Y            float64      `json:"y"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(id ConnectionID, who Identity, cursorColor string) *Participant {
	return &Participant{
		ConnectionID: id,
		DisplayName:  who.DisplayName,
		AvatarURL:    who.AvatarURL,
		CursorColor:  cursorColor,
	}
}

func (p *Participant) MoveCursor(x, y float64) {
	p.X = x
	p.Y = y
}
