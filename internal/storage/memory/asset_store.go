package memory

import (
	"context"
	"sort"
	"sync"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/storage"
)

// AssetStore is an in-memory implementation of storage.AssetStore.
type AssetStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Asset
}

// NewAssetStore creates a new in-memory asset store.
func NewAssetStore() *AssetStore {
	return &AssetStore{
		data: make(map[string]*domain.Asset),
	}
}

// Compile-time interface check.
var _ storage.AssetStore = (*AssetStore)(nil)

// Upsert inserts or updates an asset keyed by id.
func (s *AssetStore) Upsert(_ context.Context, a *domain.Asset) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	assetCopy := *a
	s.data[a.ID] = &assetCopy
	return nil
}

// GetByID retrieves an asset by its ID. Returns ErrNotFound if not exists.
func (s *AssetStore) GetByID(_ context.Context, assetID string) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.data[assetID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	assetCopy := *a
	return &assetCopy, nil
}

// GetEnabled retrieves all enabled assets, ordered by name.
func (s *AssetStore) GetEnabled(ctx context.Context) ([]*domain.Asset, error) {
	return s.getAll(ctx, true)
}

// GetAll retrieves all assets including disabled, ordered by name.
func (s *AssetStore) GetAll(ctx context.Context) ([]*domain.Asset, error) {
	return s.getAll(ctx, false)
}

func (s *AssetStore) getAll(_ context.Context, enabledOnly bool) ([]*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Asset
	for _, a := range s.data {
		if enabledOnly && !a.Enabled {
			continue
		}
		assetCopy := *a
		result = append(result, &assetCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}
