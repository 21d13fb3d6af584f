package hub

import (
	"context"

	"github.com/dkeye/Whiteboard/internal/core"
	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/dkeye/Whiteboard/internal/protocol"
)

// The On* handlers must only be called from the hub loop.

func (h *Hub) OnConnect(id domain.ConnectionID, sig core.SignalConnection, cancel context.CancelFunc, token string) {
	h.Registry.BindSignal(id, sig, cancel, token)
}

// OnJoinRoom adds the connection and sends the full membership list to every
// member, the newcomer included.
func (h *Hub) OnJoinRoom(id domain.ConnectionID, room domain.RoomID, who *domain.Identity) {
	if !h.Registry.Bound(id) {
		h.log.Debug().Str("sid", string(id)).Msg("join from unknown connection")
		return
	}
	if room == "" {
		h.log.Warn().Str("sid", string(id)).Msg("join without room id")
		return
	}
	h.Registry.Join(room, id, domain.Normalize(who))
	h.broadcastMembers(room)
}

// OnDisconnecting drops the connection from all its rooms and refreshes the
// membership of those that still have an audience.
func (h *Hub) OnDisconnecting(id domain.ConnectionID) {
	for _, room := range h.Registry.Leave(id) {
		if len(h.Registry.MemberIDs(room)) == 0 {
			continue
		}
		h.broadcastMembers(room)
	}
	h.Registry.Unbind(id)
}

func (h *Hub) broadcastMembers(room domain.RoomID) {
	members := h.Registry.Members(room)
	frame, err := protocol.Encode(protocol.EventUsersUpdated, members)
	if err != nil {
		h.log.Error().Err(err).Str("room", string(room)).Msg("encode members")
		return
	}
	res := h.publish(room, "", frame)
	h.log.Info().Str("room", string(room)).Int("members", len(members)).Int("sent_to", res.SendTo).Msg("members updated")
}
