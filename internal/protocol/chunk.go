package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/dkeye/Whiteboard/internal/domain"
	"github.com/google/uuid"
)

// DefaultMaxFrame is the largest frame a client sends and the relay's
// default read limit. The two must agree or the relay drops the sender.
const DefaultMaxFrame = 32 << 10

const (
	// partSlack covers the index and total digits, measured at zero.
	partSlack         = 32
	maxPartsPerBatch  = 1 << 12
	maxPendingBatches = 8
)

var ErrFrameTooLarge = errors.New("frame exceeds size limit")

// ActionFrame encodes op as one whiteboardAction envelope for room.
func ActionFrame(room domain.RoomID, op domain.Operation) ([]byte, error) {
	action, err := NewWhiteboardAction(room, op)
	if err != nil {
		return nil, err
	}
	return Encode(EventWhiteboardAction, action)
}

// EncodeOperationFrames encodes op as whiteboardAction frames of at most
// maxFrame bytes each. A point append is cut into several appends for the
// same stroke. An undo or redo snapshot is cut into parts that a
// Reassembler joins again; when not even one stroke fits, the step goes
// alone and receivers fall back to their own history.
func EncodeOperationFrames(room domain.RoomID, op domain.Operation, maxFrame int) ([][]byte, error) {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	frame, err := ActionFrame(room, op)
	if err != nil {
		return nil, err
	}
	if len(frame) <= maxFrame {
		return [][]byte{frame}, nil
	}
	switch o := op.(type) {
	case domain.ScribblePoint:
		return splitPoints(room, o, maxFrame)
	case domain.Undo:
		return splitStep(room, o.Snapshot, maxFrame, func(snap *domain.Snapshot, part *domain.SnapshotPart) domain.Operation {
			return domain.Undo{Step: o.Step, Snapshot: snap, Part: part}
		})
	case domain.Redo:
		return splitStep(room, o.Snapshot, maxFrame, func(snap *domain.Snapshot, part *domain.SnapshotPart) domain.Operation {
			return domain.Redo{Step: o.Step, Snapshot: snap, Part: part}
		})
	}
	return nil, fmt.Errorf("%s: %d bytes: %w", op.Kind(), len(frame), ErrFrameTooLarge)
}

func splitPoints(room domain.RoomID, op domain.ScribblePoint, maxFrame int) ([][]byte, error) {
	empty, err := ActionFrame(room, domain.ScribblePoint{ID: op.ID, Points: []float64{}})
	if err != nil {
		return nil, err
	}
	budget := maxFrame - len(empty)
	var frames [][]byte
	for rest := op.Points; len(rest) > 0; {
		n, _ := takePoints(rest, budget)
		if n == 0 {
			return nil, fmt.Errorf("%s: point does not fit in %d bytes: %w", op.Kind(), maxFrame, ErrFrameTooLarge)
		}
		frame, err := ActionFrame(room, domain.ScribblePoint{ID: op.ID, Points: rest[:n]})
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
		rest = rest[n:]
	}
	return frames, nil
}

func splitStep(room domain.RoomID, snap *domain.Snapshot, maxFrame int,
	build func(*domain.Snapshot, *domain.SnapshotPart) domain.Operation) ([][]byte, error) {
	stepOnly := func() ([][]byte, error) {
		op := build(nil, nil)
		frame, err := ActionFrame(room, op)
		if err != nil {
			return nil, err
		}
		if len(frame) > maxFrame {
			return nil, fmt.Errorf("%s: %d bytes: %w", op.Kind(), len(frame), ErrFrameTooLarge)
		}
		return [][]byte{frame}, nil
	}
	if snap == nil {
		return stepOnly()
	}

	part := domain.SnapshotPart{Batch: uuid.NewString()}
	empty, err := ActionFrame(room, build(&domain.Snapshot{Strokes: []domain.Stroke{}, Image: snap.Image}, &part))
	if err != nil {
		return nil, err
	}
	budget := maxFrame - len(empty) - partSlack

	var parts [][]domain.Stroke
	var cur []domain.Stroke
	used := 0
	for _, st := range snap.Strokes {
		head, err := json.Marshal(domain.Stroke{ID: st.ID, Color: st.Color, Points: []float64{}})
		if err != nil {
			return nil, err
		}
		overhead := len(head) + 1
		rest := st.Points
		for first := true; first || len(rest) > 0; {
			n, size := takePoints(rest, budget-used-overhead)
			if used+overhead > budget || (n == 0 && len(rest) > 0) {
				if len(cur) == 0 {
					return stepOnly()
				}
				parts = append(parts, cur)
				cur, used = nil, 0
				continue
			}
			cur = append(cur, domain.Stroke{ID: st.ID, Color: st.Color, Points: append([]float64{}, rest[:n]...)})
			used += overhead + size
			rest = rest[n:]
			first = false
		}
	}
	if len(cur) > 0 || len(parts) == 0 {
		parts = append(parts, cur)
	}

	part.Total = len(parts)
	frames := make([][]byte, 0, len(parts))
	for i, strokes := range parts {
		if strokes == nil {
			strokes = []domain.Stroke{}
		}
		p := part
		p.Index = i
		frame, err := ActionFrame(room, build(&domain.Snapshot{Strokes: strokes, Image: snap.Image}, &p))
		if err != nil {
			return nil, err
		}
		if len(frame) > maxFrame {
			return stepOnly()
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// takePoints reports how many leading coordinates of pts fit in budget
// bytes, in whole pairs, and the bytes they take including separators.
func takePoints(pts []float64, budget int) (n, used int) {
	for n < len(pts) {
		end := min(n+2, len(pts))
		cost := 0
		for _, f := range pts[n:end] {
			cost += numberLen(f) + 1
		}
		if used+cost > budget {
			break
		}
		used += cost
		n = end
	}
	return n, used
}

func numberLen(f float64) int {
	b, err := json.Marshal(f)
	if err != nil {
		return len(fmt.Sprint(f))
	}
	return len(b)
}

// Reassembler joins the parts of split undo and redo snapshots. It holds at
// most a few incomplete batches and forgets the oldest beyond that.
// Not safe for concurrent use.
type Reassembler struct {
	batches map[string]*partBatch
	order   []string
}

type partBatch struct {
	parts []*domain.Snapshot
	seen  int
}

func NewReassembler() *Reassembler {
	return &Reassembler{batches: make(map[string]*partBatch)}
}

// Add passes op through unless it is one part of a split snapshot. A part
// yields false until the last part of its batch arrives, then the whole
// operation with the joined snapshot.
func (r *Reassembler) Add(op domain.Operation) (domain.Operation, bool) {
	var (
		part *domain.SnapshotPart
		snap *domain.Snapshot
	)
	switch o := op.(type) {
	case domain.Undo:
		part, snap = o.Part, o.Snapshot
	case domain.Redo:
		part, snap = o.Part, o.Snapshot
	}
	if part == nil {
		return op, true
	}
	if part.Total < 1 || part.Total > maxPartsPerBatch || part.Index < 0 || part.Index >= part.Total {
		return nil, false
	}

	b, ok := r.batches[part.Batch]
	if !ok {
		b = &partBatch{parts: make([]*domain.Snapshot, part.Total)}
		r.track(part.Batch, b)
	}
	if len(b.parts) != part.Total || b.parts[part.Index] != nil {
		return nil, false
	}
	if snap == nil {
		snap = &domain.Snapshot{}
	}
	b.parts[part.Index] = snap
	b.seen++
	if b.seen < part.Total {
		return nil, false
	}

	r.forget(part.Batch)
	joined := b.join()
	switch o := op.(type) {
	case domain.Undo:
		return domain.Undo{Step: o.Step, Snapshot: &joined}, true
	case domain.Redo:
		return domain.Redo{Step: o.Step, Snapshot: &joined}, true
	}
	return nil, false
}

// Pending is the number of incomplete batches.
func (r *Reassembler) Pending() int { return len(r.batches) }

func (r *Reassembler) track(id string, b *partBatch) {
	if len(r.order) >= maxPendingBatches {
		delete(r.batches, r.order[0])
		r.order = r.order[1:]
	}
	r.batches[id] = b
	r.order = append(r.order, id)
}

func (r *Reassembler) forget(id string) {
	delete(r.batches, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
}

// join concatenates the parts in index order. A stroke cut at a part
// boundary comes back as one stroke.
func (b *partBatch) join() domain.Snapshot {
	out := domain.Snapshot{Strokes: []domain.Stroke{}, Image: b.parts[0].Image}
	for _, p := range b.parts {
		for _, st := range p.Strokes {
			if n := len(out.Strokes); n > 0 && out.Strokes[n-1].ID == st.ID {
				out.Strokes[n-1].Points = append(out.Strokes[n-1].Points, st.Points...)
				continue
			}
			out.Strokes = append(out.Strokes, domain.Stroke{ID: st.ID, Color: st.Color, Points: append([]float64{}, st.Points...)})
		}
	}
	return out
}
