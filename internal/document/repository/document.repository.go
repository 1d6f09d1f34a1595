package repository

import (
	"context"
	"database/sql"
	"errors"

	"doccloud/internal/document/model"
	"doccloud/pkg/logger"
)

// Schema creates the single-row snapshot table if it does not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS document_snapshots (
  id TEXT PRIMARY KEY,
  data JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const snapshotID = "default"

var _ SnapshotRepository = &DocumentRepository{}

// DocumentRepository keeps the snapshot as one JSONB row in Postgres.
type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

// Migrate creates the snapshot table.
func (r *DocumentRepository) Migrate(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, Schema)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document_snapshots table: %v", err)
	}
	return err
}

// Load returns an empty store when no row exists or the row cannot be
// decoded. Query errors are returned: treating an outage as an empty store
// would let the next Save wipe the history.
func (r *DocumentRepository) Load(ctx context.Context) (model.Snapshot, error) {
	var data []byte
	err := r.DB.QueryRowContext(ctx, `SELECT data FROM document_snapshots WHERE id = $1`, snapshotID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		logger.Sugar.Info("No snapshot row found, starting with an empty store")
		return model.Snapshot{}, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load snapshot: %v", err)
		return nil, err
	}

	s, err := DecodeSnapshot(data)
	if err != nil {
		logger.Sugar.Warnf("Corrupt snapshot row, starting with an empty store: %v", err)
		return model.Snapshot{}, nil
	}
	return s, nil
}

func (r *DocumentRepository) Save(ctx context.Context, snapshot model.Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	// lib/pq wants a string for JSONB, not []byte
	_, err = r.DB.ExecContext(ctx, `INSERT INTO document_snapshots (id, data, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET data = $2, updated_at = NOW()`, snapshotID, string(data))
	if err != nil {
		logger.Sugar.Errorf("Failed to save snapshot: %v", err)
	}
	return err
}
