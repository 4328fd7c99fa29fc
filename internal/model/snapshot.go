package model

import "time"

// Snapshot is the cache content committed by one reconciliation pass.
type Snapshot struct {
	Owner      string           `json:"owner"`
	Generation uint64           `json:"generation"`
	TakenAt    time.Time        `json:"taken_at"`
	Positions  []Position       `json:"positions"`
	Staked     []StakedPosition `json:"staked"`
}
