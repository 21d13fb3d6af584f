package domain

// OperationKind is the `type` discriminator of a relayed whiteboard action.
type OperationKind string

const (
	KindScribble OperationKind = "freedraw"
	KindClear    OperationKind = "clear"
	KindUndo     OperationKind = "undo"
	KindRedo     OperationKind = "redo"
)

// Operation is one relayed drawing or history instruction.
// The set of implementations is closed: ScribbleStart, ScribblePoint,
// Clear, Undo and Redo.
type Operation interface {
	Kind() OperationKind
	operation()
}

// ScribbleStart opens a stroke at (X, Y).
type ScribbleStart struct {
	ID    StrokeID
	X, Y  float64
	Color string
}

// ScribblePoint appends points to an open stroke.
type ScribblePoint struct {
	ID     StrokeID
	Points []float64
}

type Clear struct{}

// Undo moves the sender's history back to Step. Snapshot, when present,
// is the canvas content at that step on the sender's side. A snapshot too
// large for one frame travels as several Undo values sharing Step, each
// carrying a slice of it and a Part.
type Undo struct {
	Step     int
	Snapshot *Snapshot
	Part     *SnapshotPart
}

// Redo is the forward twin of Undo.
type Redo struct {
	Step     int
	Snapshot *Snapshot
	Part     *SnapshotPart
}

// SnapshotPart places one slice of a split snapshot. Index runs from 0 to
// Total-1; a stroke cut across two slices keeps its id in both.
type SnapshotPart struct {
	Batch string `json:"batch"`
	Index int    `json:"index"`
	Total int    `json:"total"`
}

func (ScribbleStart) Kind() OperationKind { return KindScribble }
func (ScribblePoint) Kind() OperationKind { return KindScribble }
func (Clear) Kind() OperationKind         { return KindClear }
func (Undo) Kind() OperationKind          { return KindUndo }
func (Redo) Kind() OperationKind          { return KindRedo }

func (ScribbleStart) operation() {}
func (ScribblePoint) operation() {}
func (Clear) operation()         {}
func (Undo) operation()          {}
func (Redo) operation()          {}
