package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"doccloud/internal/document/model"
	"doccloud/pkg/logger"
)

var _ SnapshotRepository = &FileSnapshotRepository{}

// FileSnapshotRepository keeps the snapshot in a single JSON file.
type FileSnapshotRepository struct {
	Path string
}

func NewFileSnapshotRepository(path string) *FileSnapshotRepository {
	return &FileSnapshotRepository{Path: path}
}

// Load treats a missing, unreadable or corrupt file as an empty store. A
// corrupt file is moved aside first so the next Save cannot destroy it.
func (r *FileSnapshotRepository) Load(_ context.Context) (model.Snapshot, error) {
	data, err := os.ReadFile(r.Path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Sugar.Infof("No snapshot at %s, starting with an empty store", r.Path)
		return model.Snapshot{}, nil
	}
	if err != nil {
		logger.Sugar.Warnf("Failed to read snapshot %s, starting with an empty store: %v", r.Path, err)
		return model.Snapshot{}, nil
	}

	s, err := DecodeSnapshot(data)
	if err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", r.Path, time.Now().UnixMilli())
		if rerr := os.Rename(r.Path, aside); rerr != nil {
			logger.Sugar.Errorf("Failed to move corrupt snapshot %s aside: %v", r.Path, rerr)
		}
		logger.Sugar.Warnf("Corrupt snapshot %s moved to %s, starting with an empty store: %v", r.Path, aside, err)
		return model.Snapshot{}, nil
	}
	return s, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target.
func (r *FileSnapshotRepository) Save(_ context.Context, snapshot model.Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(r.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("ensure snapshot dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, r.Path); err != nil {
		logger.Sugar.Errorf("Failed to replace snapshot %s: %v", r.Path, err)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
