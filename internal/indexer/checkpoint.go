package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"positionScope/internal/model"
	"positionScope/internal/storage/postgres"
)

// StateStore persists the ownership scan checkpoint.
type StateStore interface {
	Load(ctx context.Context) (model.OwnershipState, bool, error)
	Save(ctx context.Context, state model.OwnershipState) error
}

// FileStateStore keeps the checkpoint in a local JSON file. An empty path
// disables it.
type FileStateStore struct {
	Path string
}

func (s *FileStateStore) Load(ctx context.Context) (model.OwnershipState, bool, error) {
	if s == nil || s.Path == "" {
		return model.OwnershipState{}, false, nil
	}

	stat, err := os.Stat(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.OwnershipState{}, false, nil
		}
		return model.OwnershipState{}, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return model.OwnershipState{}, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return model.OwnershipState{}, false, fmt.Errorf("read checkpoint: %w", err)
	}
	var state model.OwnershipState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.OwnershipState{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return state, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, state model.OwnershipState) error {
	if s == nil || s.Path == "" {
		return nil
	}

	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := s.Path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// DBStateStore keeps the checkpoint in the ownership_state table.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (model.OwnershipState, bool, error) {
	if s == nil || s.Store == nil {
		return model.OwnershipState{}, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, state model.OwnershipState) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, state)
}
