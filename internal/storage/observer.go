package storage

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/model"
)

// SnapshotSource reports whose cache is being published and its
// generation.
type SnapshotSource func() (owner common.Address, generation uint64)

// SnapshotObserver writes every cache update to a sink.
type SnapshotObserver struct {
	sink    SnapshotSink
	source  SnapshotSource
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

func NewSnapshotObserver(sink SnapshotSink, source SnapshotSource, timeout time.Duration, logger *zap.Logger) *SnapshotObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SnapshotObserver{sink: sink, source: source, timeout: timeout, now: time.Now, logger: logger}
}

// OnCacheUpdated persists the update. Failures are logged; the cache is
// already committed.
func (o *SnapshotObserver) OnCacheUpdated(positions []model.Position, staked []model.StakedPosition) {
	owner, generation := o.source()
	if owner == (common.Address{}) {
		return
	}
	snap := model.Snapshot{
		Owner:      owner.Hex(),
		Generation: generation,
		TakenAt:    o.now().UTC(),
		Positions:  positions,
		Staked:     staked,
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if err := o.sink.PutSnapshot(ctx, snap); err != nil {
		o.logger.Warn("persist snapshot failed",
			zap.String("owner", snap.Owner),
			zap.Uint64("generation", generation),
			zap.Error(err),
		)
		return
	}
	o.logger.Debug("snapshot persisted",
		zap.String("owner", snap.Owner),
		zap.Int("positions", len(positions)),
		zap.Int("staked", len(staked)),
	)
}
