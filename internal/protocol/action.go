package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Whiteboard/internal/domain"
)

var ErrUnknownAction = errors.New("unknown action type")

// scribbleWire is the freedraw action body. A start carries color and the
// origin as its first point; an append carries only id and points.
type scribbleWire struct {
	ID     domain.StrokeID `json:"id"`
	X      *float64        `json:"x,omitempty"`
	Y      *float64        `json:"y,omitempty"`
	Color  *string         `json:"color,omitempty"`
	Points []float64       `json:"points"`
}

type stepWire struct {
	Step     int                  `json:"step"`
	Snapshot *domain.Snapshot     `json:"snapshot,omitempty"`
	Part     *domain.SnapshotPart `json:"part,omitempty"`
}

// NewWhiteboardAction builds the relay payload for op.
func NewWhiteboardAction(room domain.RoomID, op domain.Operation) (WhiteboardAction, error) {
	body, err := EncodeOperation(op)
	if err != nil {
		return WhiteboardAction{}, err
	}
	return WhiteboardAction{RoomID: room, Type: op.Kind(), Action: body}, nil
}

// Operation decodes the action body according to Type.
func (a WhiteboardAction) Operation() (domain.Operation, error) {
	return DecodeOperation(a.Type, a.Action)
}

func EncodeOperation(op domain.Operation) (json.RawMessage, error) {
	var v any
	switch o := op.(type) {
	case domain.ScribbleStart:
		x, y, color := o.X, o.Y, o.Color
		v = scribbleWire{ID: o.ID, X: &x, Y: &y, Color: &color, Points: []float64{x, y}}
	case domain.ScribblePoint:
		v = scribbleWire{ID: o.ID, Points: o.Points}
	case domain.Clear:
		v = struct{}{}
	case domain.Undo:
		v = stepWire{Step: o.Step, Snapshot: o.Snapshot, Part: o.Part}
	case domain.Redo:
		v = stepWire{Step: o.Step, Snapshot: o.Snapshot, Part: o.Part}
	default:
		return nil, fmt.Errorf("encode operation %T: %w", op, ErrUnknownAction)
	}
	return json.Marshal(v)
}

func DecodeOperation(kind domain.OperationKind, raw json.RawMessage) (domain.Operation, error) {
	switch kind {
	case domain.KindScribble:
		var w scribbleWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		if w.Color == nil {
			return domain.ScribblePoint{ID: w.ID, Points: w.Points}, nil
		}
		start := domain.ScribbleStart{ID: w.ID, Color: *w.Color}
		switch {
		case w.X != nil && w.Y != nil:
			start.X, start.Y = *w.X, *w.Y
		case len(w.Points) >= 2:
			start.X, start.Y = w.Points[0], w.Points[1]
		}
		return start, nil
	case domain.KindClear:
		return domain.Clear{}, nil
	case domain.KindUndo, domain.KindRedo:
		var w stepWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		if kind == domain.KindUndo {
			return domain.Undo{Step: w.Step, Snapshot: w.Snapshot, Part: w.Part}, nil
		}
		return domain.Redo{Step: w.Step, Snapshot: w.Snapshot, Part: w.Part}, nil
	default:
		return nil, fmt.Errorf("decode %q: %w", kind, ErrUnknownAction)
	}
}
