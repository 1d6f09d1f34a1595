package repository

import (
	"context"
	"encoding/json"

	"doccloud/internal/document/model"
)

// SnapshotRepository is the durable medium for the whole store.
type SnapshotRepository interface {
	// Load returns the last saved snapshot, or an empty one when nothing
	// usable has been saved yet.
	Load(ctx context.Context) (model.Snapshot, error)
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snapshot model.Snapshot) error
}

// EncodeSnapshot serializes s as a JSON object of name to versions.
func EncodeSnapshot(s model.Snapshot) ([]byte, error) {
	if s == nil {
		s = model.Snapshot{}
	}
	return json.MarshalIndent(s, "", "  ")
}

// DecodeSnapshot parses data and renumbers every history from 1.
func DecodeSnapshot(data []byte) (model.Snapshot, error) {
	var s model.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s == nil {
		s = model.Snapshot{}
	}
	for name, versions := range s {
		if len(versions) == 0 {
			delete(s, name)
			continue
		}
		for i := range versions {
			versions[i].VersionNumber = i + 1
		}
	}
	return s, nil
}
