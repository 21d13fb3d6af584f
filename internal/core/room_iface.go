package core

import "github.com/dkeye/Whiteboard/internal/domain"

// PublishResult reports delivery stats/backpressure to the hub.
type PublishResult struct {
	SendTo  int
	Dropped []domain.ConnectionID
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

// RoomManager owns the room map. Rooms exist only while they have members;
// callers delete a room once it is empty.
type RoomManager interface {
	GetOrCreate(id domain.RoomID) *Room
	Get(id domain.RoomID) (*Room, bool)
	Delete(id domain.RoomID)
	List() []RoomInfo
}
