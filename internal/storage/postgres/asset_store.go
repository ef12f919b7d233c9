package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/storage"
)

// AssetStore implements storage.AssetStore using PostgreSQL.
type AssetStore struct {
	pool *Pool
}

// NewAssetStore creates a new AssetStore.
func NewAssetStore(pool *Pool) *AssetStore {
	return &AssetStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AssetStore = (*AssetStore)(nil)

// Upsert inserts or updates an asset keyed by id.
func (s *AssetStore) Upsert(ctx context.Context, a *domain.Asset) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO assets (
			id, name, founder, network, pool_address, coingecko_id,
			price_source, launch_date, color, enabled, skip_timeframes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			founder = EXCLUDED.founder,
			network = EXCLUDED.network,
			pool_address = EXCLUDED.pool_address,
			coingecko_id = EXCLUDED.coingecko_id,
			price_source = EXCLUDED.price_source,
			launch_date = EXCLUDED.launch_date,
			color = EXCLUDED.color,
			enabled = EXCLUDED.enabled,
			skip_timeframes = EXCLUDED.skip_timeframes,
			updated_at = EXCLUDED.updated_at
	`

	skip := make([]string, len(a.SkipTimeframes))
	for i, tf := range a.SkipTimeframes {
		skip[i] = string(tf)
	}

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.Name,
		a.Founder,
		a.Network,
		a.PoolAddress,
		a.CoingeckoID,
		a.PriceSource,
		a.LaunchDate,
		a.Color,
		a.Enabled,
		skip,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert asset: %w", err)
	}
	return nil
}

// GetByID retrieves an asset by its ID. Returns ErrNotFound if not exists.
func (s *AssetStore) GetByID(ctx context.Context, assetID string) (*domain.Asset, error) {
	query := `
		SELECT id, name, founder, network, pool_address, coingecko_id,
		       price_source, launch_date, color, enabled, skip_timeframes,
		       created_at, updated_at
		FROM assets
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, assetID)
	a, err := scanAsset(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get asset by id: %w", err)
	}
	return a, nil
}

// GetEnabled retrieves all enabled assets, ordered by name.
func (s *AssetStore) GetEnabled(ctx context.Context) ([]*domain.Asset, error) {
	return s.getAll(ctx, true)
}

// GetAll retrieves all assets including disabled, ordered by name.
func (s *AssetStore) GetAll(ctx context.Context) ([]*domain.Asset, error) {
	return s.getAll(ctx, false)
}

func (s *AssetStore) getAll(ctx context.Context, enabledOnly bool) ([]*domain.Asset, error) {
	query := `
		SELECT id, name, founder, network, pool_address, coingecko_id,
		       price_source, launch_date, color, enabled, skip_timeframes,
		       created_at, updated_at
		FROM assets
	`
	if enabledOnly {
		query += ` WHERE enabled = true`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get assets: %w", err)
	}
	defer rows.Close()

	var assets []*domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset rows: %w", err)
	}

	return assets, nil
}

// scanAsset scans a single row into an Asset.
func scanAsset(row pgx.Row) (*domain.Asset, error) {
	var a domain.Asset
	var skip []string

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Founder,
		&a.Network,
		&a.PoolAddress,
		&a.CoingeckoID,
		&a.PriceSource,
		&a.LaunchDate,
		&a.Color,
		&a.Enabled,
		&skip,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, tf := range skip {
		a.SkipTimeframes = append(a.SkipTimeframes, domain.Timeframe(tf))
	}

	return &a, nil
}
