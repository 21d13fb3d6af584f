package app

import (
	"context"

	"github.com/dkeye/Whiteboard/internal/core"
	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/rs/zerolog/log"
)

type connEntry struct {
	Signal   core.SignalConnection
	Cancel   context.CancelFunc
	Canceled bool
	Token    string
	Rooms    map[domain.RoomID]struct{}
}

// Registry is the presence registry: which connection sits in which room,
// plus the transport endpoint used to reach it.
//
// It is mutated only by the relay hub's handlers, which run one at a time on
// the hub loop, so it takes no locks.
type Registry struct {
	rooms core.RoomManager
	conns map[domain.ConnectionID]*connEntry
	color func() string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: NewRoomManager(),
		conns: make(map[domain.ConnectionID]*connEntry),
		color: domain.RandomCursorColor,
	}
}

// BindSignal records the transport endpoint of a freshly accepted connection.
func (r *Registry) BindSignal(id domain.ConnectionID, sig core.SignalConnection, cancel context.CancelFunc, token string) {
	e := r.entry(id)
	e.Signal = sig
	e.Cancel = cancel
	e.Token = token
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("client", token).Msg("bound signal")
}

func (r *Registry) entry(id domain.ConnectionID) *connEntry {
	e, ok := r.conns[id]
	if !ok {
		e = &connEntry{Rooms: make(map[domain.RoomID]struct{})}
		r.conns[id] = e
	}
	return e
}

// Bound reports whether the connection has a live transport endpoint.
func (r *Registry) Bound(id domain.ConnectionID) bool {
	e, ok := r.conns[id]
	return ok && e.Signal != nil
}

func (r *Registry) Signal(id domain.ConnectionID) (core.SignalConnection, bool) {
	e, ok := r.conns[id]
	if !ok || e.Signal == nil {
		return nil, false
	}
	return e.Signal, true
}

// Unbind forgets the connection entirely. Call Leave first.
func (r *Registry) Unbind(id domain.ConnectionID) {
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("unbind session")
}

// Cancel stops the connection's pumps; the adapter then reports the
// disconnect. Only the first call for a connection acts and returns true.
func (r *Registry) Cancel(id domain.ConnectionID) bool {
	e, ok := r.conns[id]
	if !ok || e.Canceled {
		return false
	}
	e.Canceled = true
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("canceled session")
	return true
}

// Canceled reports whether Cancel already fired for the connection. Its
// disconnect is on the way; nothing more should be sent to it.
func (r *Registry) Canceled(id domain.ConnectionID) bool {
	e, ok := r.conns[id]
	return ok && e.Canceled
}

// Join adds the connection to the room, creating the room on first use.
// Joining a room twice keeps the cursor color and position and refreshes
// the display data.
func (r *Registry) Join(roomID domain.RoomID, id domain.ConnectionID, who domain.Identity) domain.Participant {
	room := r.rooms.GetOrCreate(roomID)
	p, ok := room.Participant(id)
	if ok {
		p.DisplayName = who.DisplayName
		p.AvatarURL = who.AvatarURL
	} else {
		p = domain.NewParticipant(id, who, r.color())
		room.Add(p)
	}
	r.entry(id).Rooms[roomID] = struct{}{}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("room", string(roomID)).Str("color", p.CursorColor).Msg("joined room")
	return *p
}

// Leave removes the connection from every room it is recorded in and
// returns those rooms. Emptied rooms are deleted.
func (r *Registry) Leave(id domain.ConnectionID) []domain.RoomID {
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	left := make([]domain.RoomID, 0, len(e.Rooms))
	for roomID := range e.Rooms {
		delete(e.Rooms, roomID)
		room, ok := r.rooms.Get(roomID)
		if !ok || !room.Remove(id) {
			log.Debug().Str("module", "app.registry").Str("sid", string(id)).Str("room", string(roomID)).Msg("stale room entry")
			continue
		}
		left = append(left, roomID)
		if room.Len() == 0 {
			r.rooms.Delete(roomID)
			log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room emptied")
		}
	}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Int("rooms", len(left)).Msg("left rooms")
	return left
}

// Members lists the room in join order. Unknown rooms are empty.
func (r *Registry) Members(roomID domain.RoomID) []domain.Participant {
	room, ok := r.rooms.Get(roomID)
	if !ok {
		return []domain.Participant{}
	}
	return room.Members()
}

// MemberIDs lists the room's connection ids in join order.
func (r *Registry) MemberIDs(roomID domain.RoomID) []domain.ConnectionID {
	room, ok := r.rooms.Get(roomID)
	if !ok {
		return nil
	}
	return room.Connections()
}

func (r *Registry) IsMember(roomID domain.RoomID, id domain.ConnectionID) bool {
	room, ok := r.rooms.Get(roomID)
	if !ok {
		return false
	}
	_, ok = room.Participant(id)
	return ok
}

// UpdateCursor moves the participant's cursor. It reports false, and does
// nothing, when the connection is not in the room.
func (r *Registry) UpdateCursor(roomID domain.RoomID, id domain.ConnectionID, x, y float64) bool {
	room, ok := r.rooms.Get(roomID)
	if !ok {
		return false
	}
	p, ok := room.Participant(id)
	if !ok {
		return false
	}
	p.MoveCursor(x, y)
	return true
}

// RoomsOf lists the rooms the connection is recorded in.
func (r *Registry) RoomsOf(id domain.ConnectionID) []domain.RoomID {
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	out := make([]domain.RoomID, 0, len(e.Rooms))
	for roomID := range e.Rooms {
		out = append(out, roomID)
	}
	return out
}

func (r *Registry) Rooms() []core.RoomInfo {
	return r.rooms.List()
}
