package position

import "positionScope/internal/model"

// Observer is notified after every committed reconciliation pass and
// after the cache is invalidated by an account change.
type Observer interface {
	OnCacheUpdated(positions []model.Position, staked []model.StakedPosition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(positions []model.Position, staked []model.StakedPosition)

func (f ObserverFunc) OnCacheUpdated(positions []model.Position, staked []model.StakedPosition) {
	f(positions, staked)
}
