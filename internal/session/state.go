package session

import (
	"errors"
	"fmt"

	"github.com/dkeye/Whiteboard/internal/canvas"
	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/dkeye/Whiteboard/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoStroke        = errors.New("no stroke in progress")
	ErrStepOutOfRange  = errors.New("history step out of range")
	ErrForeignRoom     = errors.New("action for another room")
	ErrUnexpectedEvent = errors.New("unexpected event")
)

// Update says which views an inbound frame changed.
type Update struct {
	Presence bool
	Canvas   bool
	Cursor   *protocol.CursorMoved
}

// State is one client's view of a room: presence, canvas and history.
// Local changes apply at once and queue their frames; Drain hands them to
// the writer. Points of the stroke in progress wait for FlushPoints so
// that a fast gesture goes out as a few larger appends.
// It is not safe for concurrent use; Controller serializes access.
type State struct {
	room     domain.RoomID
	color    string
	maxFrame int
	canvas   *canvas.Canvas
	history  *canvas.History
	members  []domain.Participant
	active   domain.StrokeID
	pending  []float64
	outbox   [][]byte
	parts    *protocol.Reassembler
	log      zerolog.Logger
}

// NewState builds an empty view of room. Outbound frames stay within
// maxFrame bytes; zero means protocol.DefaultMaxFrame.
func NewState(room domain.RoomID, color string, maxFrame int) *State {
	if color == "" {
		color = domain.DefaultStrokeColor
	}
	if maxFrame <= 0 {
		maxFrame = protocol.DefaultMaxFrame
	}
	return &State{
		room:     room,
		color:    color,
		maxFrame: maxFrame,
		canvas:   canvas.New(),
		history:  canvas.NewHistory(),
		members:  []domain.Participant{},
		parts:    protocol.NewReassembler(),
		log:      log.With().Str("module", "session").Str("room", string(room)).Logger(),
	}
}

func (s *State) Room() domain.RoomID { return s.room }

// Load replaces the canvas with a saved board. Call before Baseline.
func (s *State) Load(snap domain.Snapshot) {
	s.canvas.Restore(snap)
}

// Baseline records the current canvas as the first history step, so the
// first local gesture can be undone.
func (s *State) Baseline() {
	if s.history.Len() == 0 {
		s.history.Record(s.canvas.Snapshot())
	}
}

func (s *State) Snapshot() domain.Snapshot { return s.canvas.Snapshot() }

func (s *State) Members() []domain.Participant {
	return append([]domain.Participant(nil), s.members...)
}

func (s *State) Step() int { return s.history.Current() }

func (s *State) CanUndo() bool { return s.history.CanUndo() }

func (s *State) CanRedo() bool { return s.history.CanRedo() }

func (s *State) JoinFrame(who *domain.Identity) ([]byte, error) {
	return protocol.Encode(protocol.EventJoinRoom, protocol.JoinRoom{RoomID: s.room, User: who})
}

func (s *State) CursorFrame(x, y float64) ([]byte, error) {
	return protocol.Encode(protocol.EventCursorMove, protocol.CursorMove{RoomID: s.room, X: x, Y: y})
}

// Drain returns the queued frames in order and empties the queue.
func (s *State) Drain() [][]byte {
	out := s.outbox
	s.outbox = nil
	return out
}

func (s *State) queue(op domain.Operation) error {
	frames, err := protocol.EncodeOperationFrames(s.room, op, s.maxFrame)
	if err != nil {
		return err
	}
	s.outbox = append(s.outbox, frames...)
	return nil
}

// BeginStroke opens a local stroke at (x, y). A stroke still in progress is
// finished first.
func (s *State) BeginStroke(x, y float64) (domain.StrokeID, error) {
	if err := s.EndStroke(); err != nil {
		return "", err
	}
	op := domain.ScribbleStart{ID: domain.NewStrokeID(), X: x, Y: y, Color: s.color}
	s.canvas.Start(op)
	s.active = op.ID
	return op.ID, s.queue(op)
}

// ExtendStroke appends flat x,y pairs to the stroke in progress. If a
// remote clear or history move removed the stroke meanwhile, it is opened
// again under the same id and color.
func (s *State) ExtendStroke(points ...float64) error {
	if s.active == "" {
		return ErrNoStroke
	}
	if len(points)%2 != 0 {
		return fmt.Errorf("odd number of coordinates: %d", len(points))
	}
	if len(points) == 0 {
		return nil
	}
	if !s.canvas.Has(s.active) {
		op := domain.ScribbleStart{ID: s.active, X: points[0], Y: points[1], Color: s.color}
		s.canvas.Start(op)
		if err := s.queue(op); err != nil {
			return err
		}
		points = points[2:]
	}
	s.canvas.Append(domain.ScribblePoint{ID: s.active, Points: points})
	s.pending = append(s.pending, points...)
	return nil
}

// FlushPoints queues the points buffered since the last flush.
func (s *State) FlushPoints() error {
	if s.active == "" || len(s.pending) == 0 {
		return nil
	}
	op := domain.ScribblePoint{ID: s.active, Points: s.pending}
	s.pending = nil
	return s.queue(op)
}

// EndStroke sends the remaining points, closes the gesture and records it.
// It does nothing without a stroke in progress.
func (s *State) EndStroke() error {
	if s.active == "" {
		return nil
	}
	err := s.FlushPoints()
	s.active = ""
	s.history.Record(s.canvas.Snapshot())
	return err
}

func (s *State) Clear() error {
	if err := s.EndStroke(); err != nil {
		return err
	}
	s.canvas.Clear()
	s.history.Record(s.canvas.Snapshot())
	return s.queue(domain.Clear{})
}

// Undo restores the previous step and queues the frames announcing it. It
// reports false when there is nothing to undo.
func (s *State) Undo() (bool, error) {
	if err := s.EndStroke(); err != nil {
		return false, err
	}
	snap, step, ok := s.history.Undo()
	if !ok {
		return false, nil
	}
	s.canvas.Restore(snap)
	return true, s.queue(domain.Undo{Step: step, Snapshot: shared(snap)})
}

func (s *State) Redo() (bool, error) {
	if err := s.EndStroke(); err != nil {
		return false, err
	}
	snap, step, ok := s.history.Redo()
	if !ok {
		return false, nil
	}
	s.canvas.Restore(snap)
	return true, s.queue(domain.Redo{Step: step, Snapshot: shared(snap)})
}

// shared strips the local background before a snapshot goes on the wire.
func shared(snap domain.Snapshot) *domain.Snapshot {
	snap.Image = ""
	return &snap
}

// SetBackground changes the board image locally and records it.
func (s *State) SetBackground(ref string) error {
	err := s.EndStroke()
	s.canvas.SetBackground(ref)
	s.history.Record(s.canvas.Snapshot())
	return err
}

// Handle applies one inbound frame.
func (s *State) Handle(frame []byte) (Update, error) {
	env, err := protocol.Decode(frame)
	if err != nil {
		return Update{}, err
	}
	switch env.Event {
	case protocol.EventUsersUpdated:
		var members []domain.Participant
		if err := env.Bind(&members); err != nil {
			return Update{}, err
		}
		s.members = members
		return Update{Presence: true}, nil
	case protocol.EventCursorMoved:
		var moved protocol.CursorMoved
		if err := env.Bind(&moved); err != nil {
			return Update{}, err
		}
		for i := range s.members {
			if s.members[i].ConnectionID == moved.UserID {
				s.members[i].MoveCursor(moved.X, moved.Y)
			}
		}
		return Update{Cursor: &moved}, nil
	case protocol.EventWhiteboardAction:
		var action protocol.WhiteboardAction
		if err := env.Bind(&action); err != nil {
			return Update{}, err
		}
		if action.RoomID != s.room {
			return Update{}, fmt.Errorf("%s: %w", action.RoomID, ErrForeignRoom)
		}
		op, err := action.Operation()
		if err != nil {
			return Update{}, err
		}
		op, whole := s.parts.Add(op)
		if !whole {
			return Update{}, nil
		}
		if err := s.applyRemote(op); err != nil {
			return Update{}, err
		}
		return Update{Canvas: true}, nil
	case protocol.EventPong:
		return Update{}, nil
	default:
		return Update{}, fmt.Errorf("%s: %w", env.Event, ErrUnexpectedEvent)
	}
}

// applyRemote mutates the canvas only; remote activity is never recorded in
// the local history. A remote clear or history move takes the local stroke
// in progress with it, so its unsent points are dropped too.
func (s *State) applyRemote(op domain.Operation) error {
	switch o := op.(type) {
	case domain.Undo:
		s.pending = nil
		return s.applyStep(o.Step, o.Snapshot)
	case domain.Redo:
		s.pending = nil
		return s.applyStep(o.Step, o.Snapshot)
	case domain.Clear:
		s.pending = nil
		s.canvas.Clear()
		return nil
	default:
		s.canvas.Apply(op)
		return nil
	}
}

// applyStep restores the sender's snapshot when it shipped one, keeping the
// local background. The step only moves the local cursor when it exists here.
func (s *State) applyStep(step int, snap *domain.Snapshot) error {
	if snap != nil {
		bg := s.canvas.Background()
		s.canvas.Restore(*snap)
		s.canvas.SetBackground(bg)
		if _, ok := s.history.At(step); ok {
			s.history.Seek(step)
		}
		return nil
	}
	local, ok := s.history.Seek(step)
	if !ok {
		s.log.Warn().Int("step", step).Int("history", s.history.Len()).Msg("remote step rejected")
		return fmt.Errorf("step %d: %w", step, ErrStepOutOfRange)
	}
	s.canvas.Restore(local)
	return nil
}
