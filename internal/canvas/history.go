package canvas

import "github.com/dkeye/Whiteboard/internal/domain"

// History is a linear undo/redo stack of snapshots.
// Invariant: -1 <= current < len(steps), and current == -1 iff steps is empty.
type History struct {
	steps   []domain.Snapshot
	current int
}

func NewHistory() *History {
	return &History{current: -1}
}

// Record drops any redo tail and appends s as the newest step.
func (h *History) Record(s domain.Snapshot) {
	h.steps = append(h.steps[:h.current+1], s.Clone())
	h.current = len(h.steps) - 1
}

// Undo steps back and returns the snapshot to apply.
func (h *History) Undo() (domain.Snapshot, int, bool) {
	if h.current <= 0 {
		return domain.Snapshot{}, h.current, false
	}
	h.current--
	return h.steps[h.current].Clone(), h.current, true
}

func (h *History) Redo() (domain.Snapshot, int, bool) {
	if h.current >= len(h.steps)-1 {
		return domain.Snapshot{}, h.current, false
	}
	h.current++
	return h.steps[h.current].Clone(), h.current, true
}

// Seek moves the cursor to step without touching the stored snapshots.
// Out of range steps are refused.
func (h *History) Seek(step int) (domain.Snapshot, bool) {
	if step < 0 || step >= len(h.steps) {
		return domain.Snapshot{}, false
	}
	h.current = step
	return h.steps[step].Clone(), true
}

func (h *History) Current() int { return h.current }

func (h *History) Len() int { return len(h.steps) }

func (h *History) CanUndo() bool { return h.current > 0 }

func (h *History) CanRedo() bool { return h.current < len(h.steps)-1 }

func (h *History) At(step int) (domain.Snapshot, bool) {
	if step < 0 || step >= len(h.steps) {
		return domain.Snapshot{}, false
	}
	return h.steps[step].Clone(), true
}
