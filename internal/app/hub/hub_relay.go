package hub

import (
	"github.com/dkeye/Whiteboard/internal/app"
	"github.com/dkeye/Whiteboard/internal/core"
	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/dkeye/Whiteboard/internal/protocol"
)

// OnCursorMove records the position and tells everyone but the mover.
func (h *Hub) OnCursorMove(id domain.ConnectionID, room domain.RoomID, x, y float64) {
	if !h.Registry.UpdateCursor(room, id, x, y) {
		h.log.Debug().Str("sid", string(id)).Str("room", string(room)).Msg("cursor from non-member")
		return
	}
	frame, err := protocol.Encode(protocol.EventCursorMoved, protocol.CursorMoved{UserID: id, X: x, Y: y})
	if err != nil {
		h.log.Error().Err(err).Msg("encode cursor")
		return
	}
	h.publish(room, id, frame)
}

// OnWhiteboardOperation forwards the sender's frame untouched to the other
// members. The sender already applied it locally.
func (h *Hub) OnWhiteboardOperation(id domain.ConnectionID, room domain.RoomID, frame core.Frame) {
	if !h.Registry.IsMember(room, id) {
		h.log.Debug().Str("sid", string(id)).Str("room", string(room)).Msg("operation from non-member")
		return
	}
	res := h.publish(room, id, frame)
	h.log.Debug().Str("sid", string(id)).Str("room", string(room)).Int("sent_to", res.SendTo).Msg("operation relayed")
}

// publish sends frame to every member of room except one. An empty except
// reaches everybody.
func (h *Hub) publish(room domain.RoomID, except domain.ConnectionID, frame core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for _, id := range h.Registry.MemberIDs(room) {
		if id == except || h.Registry.Canceled(id) {
			continue
		}
		sig, ok := h.Registry.Signal(id)
		if !ok {
			continue
		}
		if err := sig.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SendTo++
	}
	if len(res.Dropped) > 0 {
		h.onDropped(room, res.Dropped)
	}
	return res
}

func (h *Hub) onDropped(room domain.RoomID, dropped []domain.ConnectionID) {
	if h.Policy == nil {
		return
	}
	for _, id := range dropped {
		switch h.Policy.OnBackPressure(room, id) {
		case app.KickMember:
			if h.Registry.Cancel(id) {
				h.log.Warn().Str("sid", string(id)).Str("room", string(room)).Msg("kicking slow member")
			}
		case app.MarkSlow, app.DropFrame, app.NoAction:
			h.log.Debug().Str("sid", string(id)).Str("room", string(room)).Msg("frame dropped")
		}
	}
}
