package signal

import "github.com/dkeye/Whiteboard/internal/protocol"

// handlePing answers an application level ping; it never reaches the hub.
func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, protocol.Envelope{Event: protocol.EventPong})
}
