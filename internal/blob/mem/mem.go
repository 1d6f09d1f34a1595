// Package mem implements an in-memory blob store.
package mem

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"doccloud/internal/blob"
)

var _ blob.Store = &Store{}

type object struct {
	data       []byte
	externalID string
	meta       blob.Metadata
}

// Store is a memory-based implementation of a blob store.
type Store struct {
	mu      sync.Mutex
	objects map[string]object
}

// New produces a new Store.
func New() *Store {
	return &Store{objects: make(map[string]object)}
}

// Upload adds data to the store if it wasn't already present.
func (s *Store) Upload(_ context.Context, data []byte, meta blob.Metadata) (blob.Result, error) {
	addr, err := blob.ContentAddress(data)
	if err != nil {
		return blob.Result{}, fmt.Errorf("%w: %w", blob.ErrUpload, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if obj, ok := s.objects[addr]; ok {
		return blob.Result{ContentAddress: addr, ExternalID: obj.externalID, IsDuplicate: true}, nil
	}

	obj := object{
		data:       append([]byte(nil), data...),
		externalID: uuid.NewString(),
		meta:       meta,
	}
	s.objects[addr] = obj
	return blob.Result{ContentAddress: addr, ExternalID: obj.externalID}, nil
}

// Get returns the bytes stored under addr.
func (s *Store) Get(addr string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[addr]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// Len reports the number of distinct objects stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
