// Package local implements a blob store as a file hierarchy.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"doccloud/internal/blob"
)

var _ blob.Store = &Store{}

// sidecar is stored next to each blob and records its provenance.
type sidecar struct {
	ExternalID         string    `json:"externalId"`
	Name               string    `json:"name"`
	VersionNumber      int       `json:"versionNumber"`
	PreviousExternalID string    `json:"previousExternalId"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Store is a file-based implementation of a blob store.
type Store struct {
	root string
	mu   sync.Mutex
}

// New produces a new Store storing data beneath root.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) blobroot() string {
	return filepath.Join(s.root, "blobs")
}

// CIDv1 strings share a long common prefix, so shard on the tail.
func (s *Store) blobpath(addr string) string {
	n := len(addr)
	return filepath.Join(s.blobroot(), addr[n-2:], addr[n-4:], addr)
}

// Upload adds data to the store if it wasn't already present.
func (s *Store) Upload(_ context.Context, data []byte, meta blob.Metadata) (blob.Result, error) {
	addr, err := blob.ContentAddress(data)
	if err != nil {
		return blob.Result{}, fmt.Errorf("%w: %w", blob.ErrUpload, err)
	}

	var (
		path = s.blobpath(addr)
		dir  = filepath.Dir(path)
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return blob.Result{}, fmt.Errorf("%w: ensuring path %s exists: %w", blob.ErrUpload, dir, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		sc, err := readSidecar(path)
		if err != nil {
			return blob.Result{}, fmt.Errorf("%w: %w", blob.ErrUpload, err)
		}
		return blob.Result{ContentAddress: addr, ExternalID: sc.ExternalID, IsDuplicate: true}, nil
	}
	if err != nil {
		return blob.Result{}, fmt.Errorf("%w: creating %s: %w", blob.ErrUpload, path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return blob.Result{}, fmt.Errorf("%w: writing data to %s: %w", blob.ErrUpload, path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return blob.Result{}, fmt.Errorf("%w: closing %s: %w", blob.ErrUpload, path, err)
	}

	sc := sidecar{
		ExternalID:         uuid.NewString(),
		Name:               meta.Name,
		VersionNumber:      meta.VersionNumber,
		PreviousExternalID: meta.PreviousExternalID,
		CreatedAt:          time.Now().UTC(),
	}
	if err := writeSidecar(path, sc); err != nil {
		os.Remove(path)
		return blob.Result{}, fmt.Errorf("%w: %w", blob.ErrUpload, err)
	}

	return blob.Result{ContentAddress: addr, ExternalID: sc.ExternalID}, nil
}

// Get returns the bytes stored under addr.
func (s *Store) Get(addr string) ([]byte, error) {
	if len(addr) < 4 {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(s.blobpath(addr))
}

func readSidecar(blobPath string) (sidecar, error) {
	var sc sidecar
	data, err := os.ReadFile(blobPath + ".json")
	if errors.Is(err, os.ErrNotExist) {
		// Blob written by a process that died before its sidecar.
		return sc, nil
	}
	if err != nil {
		return sc, fmt.Errorf("reading sidecar for %s: %w", blobPath, err)
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("decoding sidecar for %s: %w", blobPath, err)
	}
	return sc, nil
}

func writeSidecar(blobPath string, sc sidecar) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sidecar for %s: %w", blobPath, err)
	}
	if err := os.WriteFile(blobPath+".json", data, 0644); err != nil {
		return fmt.Errorf("writing sidecar for %s: %w", blobPath, err)
	}
	return nil
}
