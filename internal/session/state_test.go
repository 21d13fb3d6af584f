package session

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/dkeye/Whiteboard/internal/protocol"
)

func newPair(t *testing.T) (*State, *State) {
	t.Helper()
	a := NewState("r1", "#ff0000", 0)
	b := NewState("r1", "#0000ff", 0)
	a.Baseline()
	b.Baseline()
	return a, b
}

func relay(t *testing.T, to *State, frame []byte, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := to.Handle(frame); err != nil {
		t.Fatalf("handle %s: %v", frame, err)
	}
}

// deliver hands every frame from has queued to to.
func deliver(t *testing.T, from, to *State) {
	t.Helper()
	for _, frame := range from.Drain() {
		if len(frame) > protocol.DefaultMaxFrame {
			t.Fatalf("frame of %d bytes exceeds %d", len(frame), protocol.DefaultMaxFrame)
		}
		if _, err := to.Handle(frame); err != nil {
			t.Fatalf("handle %.200s: %v", frame, err)
		}
	}
}

func drawLine(t *testing.T, from, to *State, pts ...float64) domain.StrokeID {
	t.Helper()
	id, err := from.BeginStroke(pts[0], pts[1])
	if err != nil {
		t.Fatalf("BeginStroke: %v", err)
	}
	for i := 2; i+1 < len(pts); i += 2 {
		if err := from.ExtendStroke(pts[i], pts[i+1]); err != nil {
			t.Fatalf("ExtendStroke: %v", err)
		}
	}
	if err := from.EndStroke(); err != nil {
		t.Fatalf("EndStroke: %v", err)
	}
	deliver(t, from, to)
	return id
}

func TestRemoteStrokeAccumulates(t *testing.T) {
	a, b := newPair(t)
	id := drawLine(t, a, b, 0, 0, 1, 1, 2, 2)

	for name, s := range map[string]*State{"sender": a, "receiver": b} {
		snap := s.Snapshot()
		if len(snap.Strokes) != 1 {
			t.Fatalf("%s strokes = %d, want 1", name, len(snap.Strokes))
		}
		got := snap.Strokes[0]
		if got.ID != id || got.Color != "#ff0000" {
			t.Fatalf("%s stroke = %+v", name, got)
		}
		if want := []float64{0, 0, 1, 1, 2, 2}; !reflect.DeepEqual(got.Points, want) {
			t.Fatalf("%s points = %v, want %v", name, got.Points, want)
		}
	}
}

func TestRemoteOpsNotRecorded(t *testing.T) {
	a, b := newPair(t)
	drawLine(t, a, b, 0, 0, 1, 1)
	if err := a.Clear(); err != nil {
		t.Fatal(err)
	}
	deliver(t, a, b)

	if b.history.Len() != 1 {
		t.Fatalf("receiver history len = %d, want baseline only", b.history.Len())
	}
	if a.history.Len() != 3 {
		t.Fatalf("sender history len = %d, want 3", a.history.Len())
	}
}

func TestUndoRedoShipsSnapshot(t *testing.T) {
	a, b := newPair(t)
	drawLine(t, a, b, 0, 0, 5, 5)
	drawLine(t, a, b, 10, 10, 20, 20)

	if moved, err := a.Undo(); !moved || err != nil {
		t.Fatalf("undo = %v, %v", moved, err)
	}
	deliver(t, a, b)
	if got := len(b.Snapshot().Strokes); got != 1 {
		t.Fatalf("receiver strokes after undo = %d, want 1", got)
	}
	if !reflect.DeepEqual(a.Snapshot(), b.Snapshot()) {
		t.Fatalf("canvases diverged after undo:\n%+v\n%+v", a.Snapshot(), b.Snapshot())
	}

	if moved, err := a.Redo(); !moved || err != nil {
		t.Fatalf("redo = %v, %v", moved, err)
	}
	deliver(t, a, b)
	if got := len(b.Snapshot().Strokes); got != 2 {
		t.Fatalf("receiver strokes after redo = %d, want 2", got)
	}
}

func TestRemoteStepMovesCursorOnlyInRange(t *testing.T) {
	a, b := newPair(t)
	drawLine(t, b, a, 0, 0, 1, 1)
	drawLine(t, b, a, 2, 2, 3, 3)
	if b.Step() != 2 {
		t.Fatalf("receiver step = %d, want 2", b.Step())
	}

	snap := domain.Snapshot{Strokes: []domain.Stroke{}}
	action, err := protocol.NewWhiteboardAction("r1", domain.Undo{Step: 1, Snapshot: &snap})
	if err != nil {
		t.Fatal(err)
	}
	frame, err := protocol.Encode(protocol.EventWhiteboardAction, action)
	relay(t, b, frame, err)
	if b.Step() != 1 {
		t.Fatalf("in-range step: cursor = %d, want 1", b.Step())
	}
	if len(b.Snapshot().Strokes) != 0 {
		t.Fatalf("shipped snapshot not applied")
	}

	action, _ = protocol.NewWhiteboardAction("r1", domain.Redo{Step: 9, Snapshot: &snap})
	frame, err = protocol.Encode(protocol.EventWhiteboardAction, action)
	relay(t, b, frame, err)
	if b.Step() != 1 {
		t.Fatalf("out-of-range step moved the cursor to %d", b.Step())
	}
}

func TestRemoteStepWithoutSnapshot(t *testing.T) {
	_, b := newPair(t)
	other := NewState("r1", "", 0)
	drawLine(t, b, other, 0, 0, 1, 1)

	encode := func(op domain.Operation) []byte {
		action, err := protocol.NewWhiteboardAction("r1", op)
		if err != nil {
			t.Fatal(err)
		}
		frame, err := protocol.Encode(protocol.EventWhiteboardAction, action)
		if err != nil {
			t.Fatal(err)
		}
		return frame
	}

	if _, err := b.Handle(encode(domain.Undo{Step: 0})); err != nil {
		t.Fatalf("in range: %v", err)
	}
	if len(b.Snapshot().Strokes) != 0 || b.Step() != 0 {
		t.Fatalf("local step 0 not restored: step %d, %+v", b.Step(), b.Snapshot())
	}

	before := b.Snapshot()
	_, err := b.Handle(encode(domain.Redo{Step: 7}))
	if !errors.Is(err, ErrStepOutOfRange) {
		t.Fatalf("err = %v, want ErrStepOutOfRange", err)
	}
	if !reflect.DeepEqual(before, b.Snapshot()) {
		t.Fatalf("rejected step changed the canvas")
	}
}

func TestUndoBoundsLocal(t *testing.T) {
	a := NewState("r1", "", 0)
	a.Baseline()
	if moved, err := a.Undo(); moved || err != nil {
		t.Fatalf("undo at baseline = %v, %v; want nothing", moved, err)
	}
	if moved, err := a.Redo(); moved || err != nil {
		t.Fatalf("redo at tip = %v, %v; want nothing", moved, err)
	}
	if frames := a.Drain(); len(frames) != 0 {
		t.Fatalf("queued %d frames without a history move", len(frames))
	}

	a.BeginStroke(1, 1)
	a.EndStroke()
	if !a.CanUndo() || a.CanRedo() {
		t.Fatalf("after stroke: canUndo %v canRedo %v", a.CanUndo(), a.CanRedo())
	}
	if _, err := a.Undo(); err != nil {
		t.Fatal(err)
	}
	if a.CanUndo() || !a.CanRedo() {
		t.Fatalf("after undo: canUndo %v canRedo %v", a.CanUndo(), a.CanRedo())
	}
}

func TestNewGestureTruncatesRedo(t *testing.T) {
	a := NewState("r1", "", 0)
	a.Baseline()
	a.BeginStroke(1, 1)
	a.EndStroke()
	a.BeginStroke(2, 2)
	a.EndStroke()
	a.Undo()
	a.BeginStroke(3, 3)
	a.EndStroke()

	if a.history.Len() != 3 || a.Step() != 2 || a.CanRedo() {
		t.Fatalf("history len %d step %d canRedo %v", a.history.Len(), a.Step(), a.CanRedo())
	}
}

func TestExtendWithoutStroke(t *testing.T) {
	a := NewState("r1", "", 0)
	if err := a.ExtendStroke(1, 1); !errors.Is(err, ErrNoStroke) {
		t.Fatalf("err = %v, want ErrNoStroke", err)
	}
	a.BeginStroke(0, 0)
	if err := a.ExtendStroke(1); err == nil {
		t.Fatalf("odd coordinate count accepted")
	}
}

func TestBackgroundIsLocalAndUndoable(t *testing.T) {
	a := NewState("r1", "", 0)
	a.Baseline()
	a.SetBackground("https://example.test/bg.png")
	if a.Snapshot().Image != "https://example.test/bg.png" {
		t.Fatalf("background not set")
	}
	a.Undo()
	if a.Snapshot().Image != "" {
		t.Fatalf("background survived undo")
	}
	a.Redo()
	a.Clear()
	if a.Snapshot().Image != "" {
		t.Fatalf("background survived clear")
	}
}

func TestForeignRoomAndBadFrames(t *testing.T) {
	a := NewState("r1", "", 0)
	other := NewState("r2", "", 0)
	if _, err := other.BeginStroke(0, 0); err != nil {
		t.Fatal(err)
	}
	frame := other.Drain()[0]
	if _, err := a.Handle(frame); !errors.Is(err, ErrForeignRoom) {
		t.Fatalf("err = %v, want ErrForeignRoom", err)
	}
	if _, err := a.Handle([]byte("not json")); err == nil {
		t.Fatalf("garbage accepted")
	}
	if len(a.Snapshot().Strokes) != 0 {
		t.Fatalf("canvas changed: %+v", a.Snapshot())
	}
}

func TestPresenceAndCursor(t *testing.T) {
	a := NewState("r1", "", 0)
	members := []domain.Participant{
		{ConnectionID: "x", DisplayName: "x"},
		{ConnectionID: "y", DisplayName: "y"},
	}
	frame, err := protocol.Encode(protocol.EventUsersUpdated, members)
	if err != nil {
		t.Fatal(err)
	}
	upd, err := a.Handle(frame)
	if err != nil || !upd.Presence {
		t.Fatalf("update = %+v, %v", upd, err)
	}

	frame, _ = protocol.Encode(protocol.EventCursorMoved, protocol.CursorMoved{UserID: "y", X: 4, Y: 5})
	upd, err = a.Handle(frame)
	if err != nil || upd.Cursor == nil || upd.Cursor.UserID != "y" {
		t.Fatalf("update = %+v, %v", upd, err)
	}
	got := a.Members()
	if got[1].X != 4 || got[1].Y != 5 {
		t.Fatalf("cursor not tracked: %+v", got[1])
	}
}

func TestPointsWaitForFlush(t *testing.T) {
	a := NewState("r1", "", 0)
	id, _ := a.BeginStroke(0, 0)
	if frames := a.Drain(); len(frames) != 1 {
		t.Fatalf("start frames = %d, want 1", len(frames))
	}
	for i := 1; i <= 3; i++ {
		if err := a.ExtendStroke(float64(i), float64(i)); err != nil {
			t.Fatal(err)
		}
	}
	if frames := a.Drain(); len(frames) != 0 {
		t.Fatalf("points sent before flush: %d frames", len(frames))
	}
	if s, _ := a.canvas.Stroke(id); s.PointCount() != 4 {
		t.Fatalf("local stroke has %d points, want 4", s.PointCount())
	}

	if err := a.FlushPoints(); err != nil {
		t.Fatal(err)
	}
	frames := a.Drain()
	if len(frames) != 1 {
		t.Fatalf("flushed frames = %d, want 1", len(frames))
	}
	env, _ := protocol.Decode(frames[0])
	var action protocol.WhiteboardAction
	if err := env.Bind(&action); err != nil {
		t.Fatal(err)
	}
	op, err := action.Operation()
	if err != nil {
		t.Fatal(err)
	}
	want := domain.ScribblePoint{ID: id, Points: []float64{1, 1, 2, 2, 3, 3}}
	if !reflect.DeepEqual(op, want) {
		t.Fatalf("flushed op = %#v, want %#v", op, want)
	}
}

func TestStrokeSurvivesRemoteWipe(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, a, b *State)
		wipe  func(t *testing.T, b *State)
	}{
		{
			name:  "clear",
			setup: func(*testing.T, *State, *State) {},
			wipe: func(t *testing.T, b *State) {
				if err := b.Clear(); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "undo",
			setup: func(t *testing.T, a, b *State) {
				drawLine(t, b, a, 50, 50, 60, 60)
			},
			wipe: func(t *testing.T, b *State) {
				if moved, err := b.Undo(); !moved || err != nil {
					t.Fatalf("undo = %v, %v", moved, err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := newPair(t)
			tt.setup(t, a, b)

			id, err := a.BeginStroke(0, 0)
			if err != nil {
				t.Fatal(err)
			}
			if err := a.ExtendStroke(1, 1); err != nil {
				t.Fatal(err)
			}
			deliver(t, a, b)
			tt.wipe(t, b)
			deliver(t, b, a)

			if err := a.ExtendStroke(2, 2, 3, 3); err != nil {
				t.Fatal(err)
			}
			if err := a.EndStroke(); err != nil {
				t.Fatal(err)
			}
			deliver(t, a, b)

			for name, s := range map[string]*State{"drawer": a, "peer": b} {
				snap := s.Snapshot()
				if len(snap.Strokes) != 1 {
					t.Fatalf("%s strokes = %+v, want 1", name, snap.Strokes)
				}
				got := snap.Strokes[0]
				if got.ID != id || got.Color != "#ff0000" {
					t.Fatalf("%s stroke = %s %s, want %s #ff0000", name, got.ID, got.Color, id)
				}
				if want := []float64{2, 2, 3, 3}; !reflect.DeepEqual(got.Points, want) {
					t.Fatalf("%s points = %v, want %v", name, got.Points, want)
				}
			}
		})
	}
}

func TestLargeUndoSplitsAcrossFrames(t *testing.T) {
	a, b := newPair(t)
	pts := make([]float64, 0, 6000)
	for i := 0; i < 3000; i++ {
		pts = append(pts, float64(i)*0.37+100.25, float64(i)*0.61+200.75)
	}
	drawLine(t, a, b, pts...)
	drawLine(t, a, b, 1, 1, 2, 2)

	if moved, err := a.Undo(); !moved || err != nil {
		t.Fatalf("undo = %v, %v", moved, err)
	}
	if n := len(a.outbox); n < 2 {
		t.Fatalf("undo went out as %d frame(s), want a split", n)
	}
	deliver(t, a, b)
	if !reflect.DeepEqual(a.Snapshot(), b.Snapshot()) {
		t.Fatalf("canvases diverged after split undo: %d vs %d strokes",
			len(a.Snapshot().Strokes), len(b.Snapshot().Strokes))
	}
	if b.parts.Pending() != 0 {
		t.Fatalf("receiver kept %d incomplete batches", b.parts.Pending())
	}
}

func TestRemoteUndoKeepsLocalBackground(t *testing.T) {
	a, b := newPair(t)
	a.SetBackground("https://example.test/a.png")
	b.SetBackground("https://example.test/b.png")
	drawLine(t, a, b, 0, 0, 1, 1)

	a.Undo()
	deliver(t, a, b)
	if got := b.Snapshot().Image; got != "https://example.test/b.png" {
		t.Fatalf("receiver background = %q, want its own", got)
	}
	if got := a.Snapshot().Image; got != "https://example.test/a.png" {
		t.Fatalf("sender background = %q", got)
	}
}
