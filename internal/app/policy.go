package app

import "github.com/dkeye/Whiteboard/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a member whose send buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, member domain.ConnectionID) BackpressureAction
}

// SimplePolicy disconnects slow members. Their client rejoins and gets a
// fresh membership list, which is the only resync the protocol has.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomID, domain.ConnectionID) BackpressureAction {
	return KickMember
}

// DropPolicy keeps slow members and loses the frame.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomID, domain.ConnectionID) BackpressureAction {
	return DropFrame
}

// PolicyByName maps the config value to a policy. Unknown names kick.
func PolicyByName(name string) Policy {
	switch name {
	case "drop":
		return DropPolicy{}
	default:
		return SimplePolicy{}
	}
}
