package memory

import (
	"context"
	"sort"
	"sync"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/storage"
)

// PostStore is an in-memory implementation of storage.PostStore.
type PostStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Post // keyed by post id
}

// NewPostStore creates a new in-memory post store.
func NewPostStore() *PostStore {
	return &PostStore{
		data: make(map[string]*domain.Post),
	}
}

// Compile-time interface check.
var _ storage.PostStore = (*PostStore)(nil)

// UpsertBulk inserts posts. Existing ids keep their original timestamp
// and text; only engagement counts and fetched_at are refreshed.
func (s *PostStore) UpsertBulk(_ context.Context, posts []*domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range posts {
		if p == nil || p.ID == "" || p.AssetID == "" {
			return storage.ErrInvalidInput
		}

		if existing, ok := s.data[p.ID]; ok {
			existing.Likes = p.Likes
			existing.Retweets = p.Retweets
			existing.Replies = p.Replies
			existing.Impressions = p.Impressions
			existing.FetchedAt = p.FetchedAt
			continue
		}

		postCopy := *p
		s.data[p.ID] = &postCopy
	}

	return nil
}

// GetByAsset retrieves all posts for an asset, ordered by timestamp ASC.
func (s *PostStore) GetByAsset(_ context.Context, assetID string) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Post
	for _, p := range s.data {
		if p.AssetID != assetID {
			continue
		}
		postCopy := *p
		result = append(result, &postCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Count returns the number of posts stored for an asset.
func (s *PostStore) Count(_ context.Context, assetID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.data {
		if p.AssetID == assetID {
			count++
		}
	}
	return count, nil
}
