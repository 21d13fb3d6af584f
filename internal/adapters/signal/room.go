package signal

import (
	"context"

	"github.com/dkeye/Whiteboard/internal/core"
	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/dkeye/Whiteboard/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(ctx context.Context, sid domain.ConnectionID, env protocol.Envelope) {
	var p protocol.JoinRoom
	if err := env.Bind(&p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad join payload")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(p.RoomID)).Msg("join")
	if err := ctl.Hub.JoinRoom(ctx, sid, p.RoomID, p.User); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join not delivered")
	}
}

func (ctl *SignalWSController) handleCursorMove(ctx context.Context, sid domain.ConnectionID, env protocol.Envelope) {
	var p protocol.CursorMove
	if err := env.Bind(&p); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad cursor payload")
		return
	}
	_ = ctl.Hub.CursorMove(ctx, sid, p.RoomID, p.X, p.Y)
}

// handleWhiteboardAction reads only the room id; the frame itself is relayed
// byte for byte.
func (ctl *SignalWSController) handleWhiteboardAction(ctx context.Context, sid domain.ConnectionID, env protocol.Envelope, frame core.Frame) {
	var p struct {
		RoomID domain.RoomID `json:"roomId"`
	}
	if err := env.Bind(&p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad whiteboard payload")
		return
	}
	_ = ctl.Hub.Relay(ctx, sid, p.RoomID, frame)
}
