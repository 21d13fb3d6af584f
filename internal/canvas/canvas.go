// Package canvas holds one client's drawing state: the stroke assembler that
// reconciles start/append operations into strokes, and the linear undo/redo
// history of whole-canvas snapshots.
//
// Nothing here is safe for concurrent use. The session event loop owns it.
package canvas

import "github.com/dkeye/Whiteboard/internal/domain"

// Canvas assembles strokes keyed by id, in creation order.
type Canvas struct {
	strokes    []domain.Stroke
	index      map[domain.StrokeID]int
	background string
}

func New() *Canvas {
	return &Canvas{index: make(map[domain.StrokeID]int)}
}

// Start opens a stroke seeded with its origin point. A start for an id that
// is already present extends that stroke instead.
func (c *Canvas) Start(op domain.ScribbleStart) {
	if i, ok := c.index[op.ID]; ok {
		c.strokes[i].Points = append(c.strokes[i].Points, op.X, op.Y)
		return
	}
	color := op.Color
	if color == "" {
		color = domain.DefaultStrokeColor
	}
	c.add(domain.Stroke{ID: op.ID, Color: color, Points: []float64{op.X, op.Y}})
}

// Append concatenates points onto the stroke. Points for an unknown id open
// a new stroke rather than being dropped.
func (c *Canvas) Append(op domain.ScribblePoint) {
	if i, ok := c.index[op.ID]; ok {
		c.strokes[i].Points = append(c.strokes[i].Points, op.Points...)
		return
	}
	c.add(domain.Stroke{
		ID:     op.ID,
		Color:  domain.DefaultStrokeColor,
		Points: append([]float64(nil), op.Points...),
	})
}

func (c *Canvas) add(s domain.Stroke) {
	c.index[s.ID] = len(c.strokes)
	c.strokes = append(c.strokes, s)
}

// Clear drops every stroke and the background.
func (c *Canvas) Clear() {
	c.strokes = nil
	c.index = make(map[domain.StrokeID]int)
	c.background = ""
}

// Apply handles the operations that touch strokes directly. History
// operations are not its business and report false.
func (c *Canvas) Apply(op domain.Operation) bool {
	switch o := op.(type) {
	case domain.ScribbleStart:
		c.Start(o)
	case domain.ScribblePoint:
		c.Append(o)
	case domain.Clear:
		c.Clear()
	default:
		return false
	}
	return true
}

func (c *Canvas) Len() int { return len(c.strokes) }

func (c *Canvas) Has(id domain.StrokeID) bool {
	_, ok := c.index[id]
	return ok
}

func (c *Canvas) Stroke(id domain.StrokeID) (domain.Stroke, bool) {
	i, ok := c.index[id]
	if !ok {
		return domain.Stroke{}, false
	}
	return c.strokes[i].Clone(), true
}

// Strokes returns a copy in creation order.
func (c *Canvas) Strokes() []domain.Stroke {
	out := make([]domain.Stroke, len(c.strokes))
	for i, s := range c.strokes {
		out[i] = s.Clone()
	}
	return out
}

func (c *Canvas) Background() string { return c.background }

func (c *Canvas) SetBackground(ref string) { c.background = ref }

func (c *Canvas) Snapshot() domain.Snapshot {
	return domain.Snapshot{Strokes: c.Strokes(), Image: c.background}
}

// Restore overwrites the canvas with the snapshot contents.
func (c *Canvas) Restore(s domain.Snapshot) {
	snap := s.Clone()
	c.strokes = snap.Strokes
	c.index = make(map[domain.StrokeID]int, len(snap.Strokes))
	for i, st := range c.strokes {
		c.index[st.ID] = i
	}
	c.background = snap.Image
}
