// Package hub is the relay hub: it owns the presence registry and fans room
// messages out to the other members.
//
// All handlers run on a single goroutine (Run). Transport adapters enqueue
// work with the exported non-blocking-for-the-hub methods; each handler runs
// to completion before the next, so registry mutation followed by broadcast
// is atomic with respect to every other connection.
package hub

import (
	"context"
	"errors"

	"github.com/dkeye/Whiteboard/internal/app"
	"github.com/dkeye/Whiteboard/internal/core"
	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("hub stopped")

const DefaultQueueSize = 256

type Hub struct {
	Registry *app.Registry
	Policy   app.Policy

	events chan func()
	done   chan struct{}
	log    zerolog.Logger
}

func New(reg *app.Registry, policy app.Policy, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		Registry: reg,
		Policy:   policy,
		events:   make(chan func(), queueSize),
		done:     make(chan struct{}),
		log:      log.With().Str("module", "hub").Logger(),
	}
}

// Run handles queued events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	h.log.Info().Msg("hub loop started")
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("hub loop stopped")
			return
		case fn := <-h.events:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) submit(ctx context.Context, fn func()) error {
	select {
	case h.events <- fn:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect registers a freshly accepted connection (state Unjoined).
func (h *Hub) Connect(ctx context.Context, id domain.ConnectionID, sig core.SignalConnection, cancel context.CancelFunc, token string) error {
	return h.submit(ctx, func() { h.OnConnect(id, sig, cancel, token) })
}

func (h *Hub) JoinRoom(ctx context.Context, id domain.ConnectionID, room domain.RoomID, who *domain.Identity) error {
	return h.submit(ctx, func() { h.OnJoinRoom(id, room, who) })
}

func (h *Hub) CursorMove(ctx context.Context, id domain.ConnectionID, room domain.RoomID, x, y float64) error {
	return h.submit(ctx, func() { h.OnCursorMove(id, room, x, y) })
}

// Relay forwards an encoded whiteboardAction frame as-is.
func (h *Hub) Relay(ctx context.Context, id domain.ConnectionID, room domain.RoomID, frame core.Frame) error {
	return h.submit(ctx, func() { h.OnWhiteboardOperation(id, room, frame) })
}

// Disconnect is queued behind everything the connection sent before it.
func (h *Hub) Disconnect(ctx context.Context, id domain.ConnectionID) error {
	return h.submit(ctx, func() { h.OnDisconnecting(id) })
}

// Rooms lists live rooms. It is answered by the hub loop.
func (h *Hub) Rooms(ctx context.Context) ([]core.RoomInfo, error) {
	return query(ctx, h, h.Registry.Rooms)
}

func (h *Hub) Members(ctx context.Context, room domain.RoomID) ([]domain.Participant, error) {
	return query(ctx, h, func() []domain.Participant { return h.Registry.Members(room) })
}

func query[T any](ctx context.Context, h *Hub, fn func() T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	if err := h.submit(ctx, func() { reply <- fn() }); err != nil {
		return zero, err
	}
	select {
	case out := <-reply:
		return out, nil
	case <-h.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
