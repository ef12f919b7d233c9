package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/storage"
)

// PostStore implements storage.PostStore using PostgreSQL.
type PostStore struct {
	pool *Pool
}

// NewPostStore creates a new PostStore.
func NewPostStore(pool *Pool) *PostStore {
	return &PostStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PostStore = (*PostStore)(nil)

// UpsertBulk inserts posts atomically. Existing ids keep their original
// timestamp and text; only engagement counts and fetched_at are
// refreshed, since engagement must track reality across re-fetches.
func (s *PostStore) UpsertBulk(ctx context.Context, posts []*domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO tweets (
			id, asset_id, timestamp, text, likes, retweets, replies, impressions, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			likes = EXCLUDED.likes,
			retweets = EXCLUDED.retweets,
			replies = EXCLUDED.replies,
			impressions = EXCLUDED.impressions,
			fetched_at = EXCLUDED.fetched_at
	`

	for _, p := range posts {
		if p == nil || p.ID == "" || p.AssetID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			p.ID,
			p.AssetID,
			p.Timestamp,
			p.Text,
			p.Likes,
			p.Retweets,
			p.Replies,
			p.Impressions,
			p.FetchedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert post: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByAsset retrieves all posts for an asset, ordered by timestamp ASC.
func (s *PostStore) GetByAsset(ctx context.Context, assetID string) ([]*domain.Post, error) {
	query := `
		SELECT id, asset_id, timestamp, text, likes, retweets, replies, impressions, fetched_at
		FROM tweets
		WHERE asset_id = $1
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("get posts by asset: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// Count returns the number of posts stored for an asset.
func (s *PostStore) Count(ctx context.Context, assetID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tweets WHERE asset_id = $1`, assetID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

// scanPosts scans multiple rows into a slice of Post.
func scanPosts(rows pgx.Rows) ([]*domain.Post, error) {
	var posts []*domain.Post

	for rows.Next() {
		var p domain.Post

		err := rows.Scan(
			&p.ID,
			&p.AssetID,
			&p.Timestamp,
			&p.Text,
			&p.Likes,
			&p.Retweets,
			&p.Replies,
			&p.Impressions,
			&p.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}

		posts = append(posts, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post rows: %w", err)
	}

	return posts, nil
}
