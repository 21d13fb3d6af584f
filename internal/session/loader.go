package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dkeye/Whiteboard/internal/domain"
)

// BoardLoader fetches a saved board to seed the canvas before joining.
type BoardLoader interface {
	LoadBoard(ctx context.Context, room domain.RoomID) (domain.Snapshot, error)
}

type BoardLoaderFunc func(ctx context.Context, room domain.RoomID) (domain.Snapshot, error)

func (f BoardLoaderFunc) LoadBoard(ctx context.Context, room domain.RoomID) (domain.Snapshot, error) {
	return f(ctx, room)
}

// FileLoader loads the same JSON board file for any room.
func FileLoader(path string) BoardLoader {
	return BoardLoaderFunc(func(context.Context, domain.RoomID) (domain.Snapshot, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("load board: %w", err)
		}
		return LoadSnapshotJSON(data)
	})
}

// LoadSnapshotJSON accepts either {"strokes":[...],"image":...} or a bare
// stroke array.
func LoadSnapshotJSON(data []byte) (domain.Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var strokes []domain.Stroke
		if err := json.Unmarshal(data, &strokes); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode board: %w", err)
		}
		return domain.Snapshot{Strokes: strokes}, nil
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode board: %w", err)
	}
	return snap, nil
}
