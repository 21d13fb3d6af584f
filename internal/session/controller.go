// Package session is the drawing client: it joins one room over the relay,
// keeps the local canvas, history and presence view in step with the other
// members, and turns local gestures into outbound frames.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/dkeye/Whiteboard/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

var ErrClosed = errors.New("session closed")

const DefaultStrokeInterval = 20 * time.Millisecond

// Conn is the subset of *websocket.Conn the controller uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Options struct {
	Room     domain.RoomID
	Identity *domain.Identity
	// Color of local strokes; black when empty.
	Color  string
	Loader BoardLoader

	// CursorLimit cursor frames per CursorInterval; the rest are coalesced.
	CursorLimit    int
	CursorInterval time.Duration
	// StrokeInterval is how long stroke points gather before they are sent
	// as one append. Negative sends every ExtendStroke at once.
	StrokeInterval time.Duration
	// MaxFrame bounds outbound frames; it must not exceed the relay's
	// read limit. Zero means protocol.DefaultMaxFrame.
	MaxFrame int

	// Callbacks run on the event loop and must return quickly.
	OnPresence func([]domain.Participant)
	OnCursor   func(protocol.CursorMoved)
	OnCanvas   func(domain.Snapshot)
}

type cursorPos struct{ x, y float64 }

type Controller struct {
	conn     Conn
	opts     Options
	state    *State
	throttle *Throttle
	pending  *cursorPos

	cmds chan func()
	done chan struct{}
	log  zerolog.Logger
}

func NewController(conn Conn, opts Options) *Controller {
	if opts.CursorLimit <= 0 {
		opts.CursorLimit = 30
	}
	if opts.CursorInterval <= 0 {
		opts.CursorInterval = time.Second
	}
	if opts.StrokeInterval == 0 {
		opts.StrokeInterval = DefaultStrokeInterval
	}
	return &Controller{
		conn:     conn,
		opts:     opts,
		state:    NewState(opts.Room, opts.Color, opts.MaxFrame),
		throttle: NewThrottle(opts.CursorLimit, opts.CursorInterval),
		cmds:     make(chan func(), 16),
		done:     make(chan struct{}),
		log:      log.With().Str("module", "session").Str("room", string(opts.Room)).Logger(),
	}
}

// Run joins the room and processes inbound frames and local commands until
// ctx is done or the connection fails. It closes the connection on return.
// A transport error is returned as is; the caller decides whether to dial
// again and rejoin.
func (c *Controller) Run(ctx context.Context) (err error) {
	defer close(c.done)

	if c.opts.Loader != nil {
		snap, lerr := c.opts.Loader.LoadBoard(ctx, c.opts.Room)
		if lerr != nil {
			_ = c.conn.Close()
			return fmt.Errorf("load board: %w", lerr)
		}
		c.state.Load(snap)
	}
	c.state.Baseline()

	join, err := c.state.JoinFrame(c.opts.Identity)
	if err != nil {
		_ = c.conn.Close()
		return err
	}
	if err := c.write(join); err != nil {
		_ = c.conn.Close()
		return err
	}
	c.log.Info().Msg("joined")

	inbound := make(chan []byte, 64)
	readErr := make(chan error, 1)
	stop := make(chan struct{})

	var wg conc.WaitGroup
	wg.Go(func() {
		for {
			_, data, rerr := c.conn.ReadMessage()
			if rerr != nil {
				readErr <- rerr
				return
			}
			select {
			case inbound <- data:
			case <-stop:
				return
			}
		}
	})
	defer func() {
		close(stop)
		_ = c.conn.Close()
		wg.Wait()
		c.log.Info().Err(err).Msg("session ended")
	}()

	every := c.opts.CursorInterval / time.Duration(c.opts.CursorLimit)
	if every < time.Millisecond {
		every = time.Millisecond
	}
	flush := time.NewTicker(every)
	defer flush.Stop()

	var strokeTick <-chan time.Time
	if c.opts.StrokeInterval > 0 {
		points := time.NewTicker(c.opts.StrokeInterval)
		defer points.Stop()
		strokeTick = points.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rerr := <-readErr:
			return fmt.Errorf("read: %w", rerr)
		case data := <-inbound:
			c.handle(data)
		case fn := <-c.cmds:
			fn()
		case <-flush.C:
			c.flushCursor()
		case <-strokeTick:
			if err := c.flushPoints(); err != nil {
				c.log.Warn().Err(err).Msg("send stroke points")
			}
		}
	}
}

func (c *Controller) write(frame []byte) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (c *Controller) handle(data []byte) {
	upd, err := c.state.Handle(data)
	if err != nil {
		c.log.Debug().Err(err).Msg("inbound frame dropped")
		return
	}
	if upd.Presence && c.opts.OnPresence != nil {
		c.opts.OnPresence(c.state.Members())
	}
	if upd.Cursor != nil && c.opts.OnCursor != nil {
		c.opts.OnCursor(*upd.Cursor)
	}
	if upd.Canvas {
		c.canvasChanged()
	}
}

func (c *Controller) canvasChanged() {
	if c.opts.OnCanvas != nil {
		c.opts.OnCanvas(c.state.Snapshot())
	}
}

func (c *Controller) flushCursor() {
	if c.pending == nil || !c.throttle.Allow() {
		return
	}
	pos := *c.pending
	c.pending = nil
	c.sendCursor(pos.x, pos.y)
}

func (c *Controller) sendCursor(x, y float64) {
	frame, err := c.state.CursorFrame(x, y)
	if err != nil {
		c.log.Error().Err(err).Msg("encode cursor")
		return
	}
	if err := c.write(frame); err != nil {
		c.log.Warn().Err(err).Msg("send cursor")
	}
}

// do runs fn on the event loop and waits for it.
func (c *Controller) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case c.cmds <- func() { errc <- fn() }:
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-c.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrClosed
		}
	}
}

// flushOutbox writes every queued frame in order.
func (c *Controller) flushOutbox() error {
	for _, frame := range c.state.Drain() {
		if err := c.write(frame); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) flushPoints() error {
	if err := c.state.FlushPoints(); err != nil {
		return err
	}
	return c.flushOutbox()
}

// commit notifies the canvas observer of a local change and sends what it
// queued, even when the change itself failed part way.
func (c *Controller) commit(changed bool, err error) error {
	if err == nil && c.opts.StrokeInterval < 0 {
		err = c.state.FlushPoints()
	}
	if changed && err == nil {
		c.canvasChanged()
	}
	if werr := c.flushOutbox(); werr != nil {
		return werr
	}
	return err
}

func (c *Controller) BeginStroke(x, y float64) (domain.StrokeID, error) {
	var id domain.StrokeID
	err := c.do(func() error {
		sid, err := c.state.BeginStroke(x, y)
		id = sid
		return c.commit(true, err)
	})
	return id, err
}

// ExtendStroke draws the points locally at once; they reach the room on the
// next stroke tick or when the gesture ends.
func (c *Controller) ExtendStroke(points ...float64) error {
	return c.do(func() error {
		return c.commit(true, c.state.ExtendStroke(points...))
	})
}

func (c *Controller) EndStroke() error {
	return c.do(func() error {
		return c.commit(false, c.state.EndStroke())
	})
}

func (c *Controller) Clear() error {
	return c.do(func() error {
		return c.commit(true, c.state.Clear())
	})
}

// Undo reports whether there was a step to undo.
func (c *Controller) Undo() (bool, error) {
	var moved bool
	err := c.do(func() error {
		ok, err := c.state.Undo()
		moved = ok
		return c.commit(ok, err)
	})
	return moved, err
}

func (c *Controller) Redo() (bool, error) {
	var moved bool
	err := c.do(func() error {
		ok, err := c.state.Redo()
		moved = ok
		return c.commit(ok, err)
	})
	return moved, err
}

// SetBackground is local only; other members never see it.
func (c *Controller) SetBackground(ref string) error {
	return c.do(func() error {
		return c.commit(true, c.state.SetBackground(ref))
	})
}

// MoveCursor sends the position now if the throttle allows, otherwise keeps
// only the latest position for the next flush.
func (c *Controller) MoveCursor(x, y float64) error {
	return c.do(func() error {
		if c.throttle.Allow() {
			c.pending = nil
			c.sendCursor(x, y)
			return nil
		}
		c.pending = &cursorPos{x: x, y: y}
		return nil
	})
}

func (c *Controller) Snapshot() (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := c.do(func() error {
		snap = c.state.Snapshot()
		return nil
	})
	return snap, err
}

func (c *Controller) Participants() ([]domain.Participant, error) {
	var members []domain.Participant
	err := c.do(func() error {
		members = c.state.Members()
		return nil
	})
	return members, err
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} { return c.done }
