package domain

import "github.com/google/uuid"

const DefaultStrokeColor = "#000000"

// StrokeID is generated by the drawing client and stays the same for every
// fragment of one pointer-down to pointer-up gesture.
type StrokeID string

func NewStrokeID() StrokeID {
	return StrokeID(uuid.NewString())
}

// Stroke is one freehand gesture. Points is a flat x0,y0,x1,y1,... sequence.
type Stroke struct {
	ID     StrokeID  `json:"id"`
	Color  string    `json:"color"`
	Points []float64 `json:"points"`
}

// PointCount is the number of (x, y) pairs.
func (s Stroke) PointCount() int { return len(s.Points) / 2 }

func (s Stroke) Clone() Stroke {
	out := s
	out.Points = append([]float64(nil), s.Points...)
	return out
}

// Snapshot is a full copy of the canvas content at one instant.
// Image is an opaque background reference (URL or data URI).
type Snapshot struct {
	Strokes []Stroke `json:"strokes"`
	Image   string   `json:"image,omitempty"`
}

func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Image: s.Image, Strokes: make([]Stroke, len(s.Strokes))}
	for i, st := range s.Strokes {
		out.Strokes[i] = st.Clone()
	}
	return out
}
