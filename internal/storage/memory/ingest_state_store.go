package memory

import (
	"context"
	"fmt"
	"sync"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/storage"
)

// IngestStateStore is an in-memory implementation of storage.IngestStateStore.
type IngestStateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.IngestState // keyed by (asset_id, data_type)
}

// NewIngestStateStore creates a new in-memory ingest state store.
func NewIngestStateStore() *IngestStateStore {
	return &IngestStateStore{
		data: make(map[string]*domain.IngestState),
	}
}

// Compile-time interface check.
var _ storage.IngestStateStore = (*IngestStateStore)(nil)

// stateKey generates a unique key for an ingest state record.
func stateKey(assetID, dataType string) string {
	return fmt.Sprintf("%s|%s", assetID, dataType)
}

// Get retrieves the resume point for (asset_id, data_type).
func (s *IngestStateStore) Get(_ context.Context, assetID, dataType string) (*domain.IngestState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.data[stateKey(assetID, dataType)]
	if !ok {
		return nil, storage.ErrNotFound
	}

	stateCopy := *st
	return &stateCopy, nil
}

// Update records a new resume point. Nil fields keep their previously
// stored values.
func (s *IngestStateStore) Update(_ context.Context, state *domain.IngestState) error {
	if state == nil || state.AssetID == "" || state.DataType == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := stateKey(state.AssetID, state.DataType)
	stateCopy := *state

	if existing, ok := s.data[key]; ok {
		if stateCopy.LastID == nil {
			stateCopy.LastID = existing.LastID
		}
		if stateCopy.LastTimestamp == nil {
			stateCopy.LastTimestamp = existing.LastTimestamp
		}
	}

	s.data[key] = &stateCopy
	return nil
}
