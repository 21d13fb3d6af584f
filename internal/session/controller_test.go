package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/dkeye/Whiteboard/internal/protocol"
	"github.com/gorilla/websocket"
)

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.in:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return io.ErrClosedPipe
	default:
	}
	f.out <- data
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) next(t *testing.T) protocol.Envelope {
	t.Helper()
	select {
	case data := <-f.out:
		env, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame written")
	}
	return protocol.Envelope{}
}

func startController(t *testing.T, conn *fakeConn, opts Options) (*Controller, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := NewController(conn, opts)
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()
	return c, errc
}

func TestControllerJoinsThenDraws(t *testing.T) {
	conn := newFakeConn()
	c, _ := startController(t, conn, Options{Room: "r1", Identity: &domain.Identity{DisplayName: "ann"}, Color: "#123456"})

	env := conn.next(t)
	var join protocol.JoinRoom
	if env.Event != protocol.EventJoinRoom || env.Bind(&join) != nil {
		t.Fatalf("first frame = %+v", env)
	}
	if join.RoomID != "r1" || join.User == nil || join.User.DisplayName != "ann" {
		t.Fatalf("join = %+v", join)
	}

	id, err := c.BeginStroke(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	var action protocol.WhiteboardAction
	if env := conn.next(t); env.Bind(&action) != nil || action.Type != domain.KindScribble {
		t.Fatalf("stroke frame = %+v", env)
	}
	op, err := action.Operation()
	if err != nil {
		t.Fatal(err)
	}
	start, ok := op.(domain.ScribbleStart)
	if !ok || start.ID != id || start.Color != "#123456" || start.X != 1 || start.Y != 2 {
		t.Fatalf("start = %#v", op)
	}

	if err := c.ExtendStroke(3, 4); err != nil {
		t.Fatal(err)
	}
	conn.next(t)
	if err := c.EndStroke(); err != nil {
		t.Fatal(err)
	}

	undone, err := c.Undo()
	if err != nil || !undone {
		t.Fatalf("undo = %v, %v", undone, err)
	}
	if env := conn.next(t); env.Bind(&action) != nil || action.Type != domain.KindUndo {
		t.Fatalf("undo frame = %+v", env)
	}
	snap, err := c.Snapshot()
	if err != nil || len(snap.Strokes) != 0 {
		t.Fatalf("snapshot after undo = %+v, %v", snap, err)
	}
}

func TestControllerAppliesInbound(t *testing.T) {
	conn := newFakeConn()
	presence := make(chan []domain.Participant, 4)
	c, _ := startController(t, conn, Options{
		Room:       "r1",
		OnPresence: func(ps []domain.Participant) { presence <- ps },
	})
	conn.next(t)

	frame, err := protocol.Encode(protocol.EventUsersUpdated, []domain.Participant{{ConnectionID: "a"}, {ConnectionID: "b"}})
	if err != nil {
		t.Fatal(err)
	}
	conn.in <- frame

	select {
	case ps := <-presence:
		if len(ps) != 2 {
			t.Fatalf("presence = %+v", ps)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("presence callback not called")
	}
	members, err := c.Participants()
	if err != nil || len(members) != 2 {
		t.Fatalf("participants = %+v, %v", members, err)
	}
}

func TestControllerEndsOnReadError(t *testing.T) {
	conn := newFakeConn()
	c, errc := startController(t, conn, Options{Room: "r1"})
	conn.next(t)
	conn.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("run err = %v, want EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return")
	}
	if _, err := c.BeginStroke(0, 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("command after close = %v, want ErrClosed", err)
	}
}

func TestControllerCancel(t *testing.T) {
	conn := newFakeConn()
	ctx, cancel := context.WithCancel(context.Background())
	c := NewController(conn, Options{Room: "r1"})
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()
	conn.next(t)
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("run err = %v, want context.Canceled", err)
	}
	<-c.Done()
}

func TestControllerCoalescesCursor(t *testing.T) {
	conn := newFakeConn()
	c, _ := startController(t, conn, Options{Room: "r1", CursorLimit: 1, CursorInterval: time.Hour})
	conn.next(t)

	for i := 1; i <= 3; i++ {
		if err := c.MoveCursor(float64(i), float64(i)); err != nil {
			t.Fatal(err)
		}
	}
	env := conn.next(t)
	var move protocol.CursorMove
	if env.Event != protocol.EventCursorMove || env.Bind(&move) != nil || move.X != 1 {
		t.Fatalf("cursor frame = %+v", env)
	}
	var pending *cursorPos
	if err := c.do(func() error { pending = c.pending; return nil }); err != nil {
		t.Fatal(err)
	}
	if pending == nil || pending.x != 3 || pending.y != 3 {
		t.Fatalf("pending = %+v, want latest position", pending)
	}
	select {
	case data := <-conn.out:
		t.Fatalf("unexpected frame %s", data)
	default:
	}
}

func TestControllerLoadsBoardAsBaseline(t *testing.T) {
	conn := newFakeConn()
	loader := BoardLoaderFunc(func(context.Context, domain.RoomID) (domain.Snapshot, error) {
		return domain.Snapshot{Strokes: []domain.Stroke{{ID: "old", Color: "#000000", Points: []float64{0, 0}}}}, nil
	})
	c, _ := startController(t, conn, Options{Room: "r1", Loader: loader})
	conn.next(t)

	snap, err := c.Snapshot()
	if err != nil || len(snap.Strokes) != 1 || snap.Strokes[0].ID != "old" {
		t.Fatalf("snapshot = %+v, %v", snap, err)
	}
	if undone, _ := c.Undo(); undone {
		t.Fatalf("loaded board was undoable")
	}
}

func TestControllerLoaderError(t *testing.T) {
	conn := newFakeConn()
	loader := BoardLoaderFunc(func(context.Context, domain.RoomID) (domain.Snapshot, error) {
		return domain.Snapshot{}, errors.New("store down")
	})
	_, errc := startController(t, conn, Options{Room: "r1", Loader: loader})
	if err := <-errc; err == nil {
		t.Fatalf("run succeeded with failing loader")
	}
	select {
	case <-conn.closed:
	default:
		t.Fatalf("connection left open")
	}
}

func TestControllerCoalescesStrokePoints(t *testing.T) {
	conn := newFakeConn()
	c, _ := startController(t, conn, Options{Room: "r1", StrokeInterval: time.Hour})
	conn.next(t)

	id, err := c.BeginStroke(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	conn.next(t)
	for i := 1; i <= 5; i++ {
		if err := c.ExtendStroke(float64(i), float64(i)); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case data := <-conn.out:
		t.Fatalf("points sent before the gesture ended: %s", data)
	default:
	}

	if err := c.EndStroke(); err != nil {
		t.Fatal(err)
	}
	var action protocol.WhiteboardAction
	if env := conn.next(t); env.Bind(&action) != nil {
		t.Fatalf("points frame = %+v", env)
	}
	op, err := action.Operation()
	if err != nil {
		t.Fatal(err)
	}
	p, ok := op.(domain.ScribblePoint)
	if !ok || p.ID != id || len(p.Points) != 10 {
		t.Fatalf("points op = %#v, want all 5 points in one append", op)
	}
}

func TestControllerSendsPointsAtOnceWhenUnbuffered(t *testing.T) {
	conn := newFakeConn()
	c, _ := startController(t, conn, Options{Room: "r1", StrokeInterval: -1})
	conn.next(t)

	if _, err := c.BeginStroke(0, 0); err != nil {
		t.Fatal(err)
	}
	conn.next(t)
	if err := c.ExtendStroke(1, 1); err != nil {
		t.Fatal(err)
	}
	select {
	case data := <-conn.out:
		if env, err := protocol.Decode(data); err != nil || env.Event != protocol.EventWhiteboardAction {
			t.Fatalf("frame = %s, %v", data, err)
		}
	default:
		t.Fatalf("ExtendStroke did not write its points")
	}
}
