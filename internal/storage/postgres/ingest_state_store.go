package postgres

import (
	"context"
	"fmt"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/storage"
)

// IngestStateStore implements storage.IngestStateStore using PostgreSQL.
type IngestStateStore struct {
	pool *Pool
}

// NewIngestStateStore creates a new IngestStateStore.
func NewIngestStateStore(pool *Pool) *IngestStateStore {
	return &IngestStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IngestStateStore = (*IngestStateStore)(nil)

// Get retrieves the resume point for (asset_id, data_type).
func (s *IngestStateStore) Get(ctx context.Context, assetID, dataType string) (*domain.IngestState, error) {
	query := `
		SELECT asset_id, data_type, last_id, last_timestamp, updated_at
		FROM ingestion_state
		WHERE asset_id = $1 AND data_type = $2
	`

	var st domain.IngestState
	err := s.pool.QueryRow(ctx, query, assetID, dataType).Scan(
		&st.AssetID,
		&st.DataType,
		&st.LastID,
		&st.LastTimestamp,
		&st.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get ingest state: %w", err)
	}
	return &st, nil
}

// Update records a new resume point. Nil fields keep their previously
// stored values.
func (s *IngestStateStore) Update(ctx context.Context, state *domain.IngestState) error {
	if state == nil || state.AssetID == "" || state.DataType == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO ingestion_state (asset_id, data_type, last_id, last_timestamp, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset_id, data_type) DO UPDATE SET
			last_id = COALESCE(EXCLUDED.last_id, ingestion_state.last_id),
			last_timestamp = COALESCE(EXCLUDED.last_timestamp, ingestion_state.last_timestamp),
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		state.AssetID,
		state.DataType,
		state.LastID,
		state.LastTimestamp,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update ingest state: %w", err)
	}
	return nil
}
