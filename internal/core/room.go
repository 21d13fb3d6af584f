package core

import "github.com/dkeye/Whiteboard/internal/domain"

// Room is the ordered membership set of one room.
// Not safe for concurrent use; the hub loop is its only caller.
type Room struct {
	id      domain.RoomID
	order   []domain.ConnectionID
	members map[domain.ConnectionID]*domain.Participant
}

func NewRoom(id domain.RoomID) *Room {
	return &Room{
		id:      id,
		members: make(map[domain.ConnectionID]*domain.Participant),
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) Len() int { return len(r.order) }

func (r *Room) Participant(id domain.ConnectionID) (*domain.Participant, bool) {
	p, ok := r.members[id]
	return p, ok
}

// Add inserts p at the end of the membership order. Re-adding an existing
// connection replaces its record in place.
func (r *Room) Add(p *domain.Participant) {
	if _, ok := r.members[p.ConnectionID]; !ok {
		r.order = append(r.order, p.ConnectionID)
	}
	r.members[p.ConnectionID] = p
}

func (r *Room) Remove(id domain.ConnectionID) bool {
	if _, ok := r.members[id]; !ok {
		return false
	}
	delete(r.members, id)
	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Members returns value copies in join order.
func (r *Room) Members() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.members[id])
	}
	return out
}

// Connections returns member ids in join order.
func (r *Room) Connections() []domain.ConnectionID {
	return append([]domain.ConnectionID(nil), r.order...)
}
