package app

import (
	"sort"

	"github.com/dkeye/Whiteboard/internal/core"
	"github.com/dkeye/Whiteboard/internal/domain"
)

// RoomManagerImpl is the in-memory room map. Like the registry that drives
// it, it is confined to the hub loop and carries no lock.
type RoomManagerImpl struct {
	rooms map[domain.RoomID]*core.Room
}

func NewRoomManager() core.RoomManager {
	return &RoomManagerImpl{rooms: make(map[domain.RoomID]*core.Room)}
}

func (f *RoomManagerImpl) GetOrCreate(id domain.RoomID) *core.Room {
	if room, ok := f.rooms[id]; ok {
		return room
	}
	room := core.NewRoom(id)
	f.rooms[id] = room
	return room
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (*core.Room, bool) {
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) Delete(id domain.RoomID) {
	delete(f.rooms, id)
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: r.Len()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
