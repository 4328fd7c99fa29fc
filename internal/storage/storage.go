package storage

import (
	"context"

	"positionScope/internal/model"
)

// LogSink archives raw log records.
type LogSink interface {
	PutLogBatch(logs []model.LogRecord) error
}

// SnapshotSink persists the positions committed by a reconciliation pass.
type SnapshotSink interface {
	PutSnapshot(ctx context.Context, snap model.Snapshot) error
}
