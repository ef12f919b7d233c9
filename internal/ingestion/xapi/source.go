// Package xapi fetches founder posts from the X API v2 user timeline.
package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/ingestion"
)

const (
	// SourceName is the source tag.
	SourceName = "xapi"

	defaultBaseURL = "https://api.x.com/2"

	// maxResultsPerPage is the timeline page-size ceiling.
	maxResultsPerPage = 100

	defaultRateLimitWait = 15 * time.Minute
)

// Options contains configuration for creating a Source.
type Options struct {
	BaseURL string

	// BearerToken authenticates every request.
	BearerToken string

	RateLimitWait time.Duration

	Logger *log.Logger
}

// Source is an ingestion.PostSource backed by the X API v2. It fetches
// original posts only (no retweets or replies) from the timeline of
// the asset's founder handle.
type Source struct {
	client        *resty.Client
	rateLimitWait time.Duration
	logger        *log.Logger

	// userIDs caches handle lookups for the life of the Source. Guarded
	// by mu: one Source serves concurrent per-asset fetches.
	mu      sync.Mutex
	userIDs map[string]string
}

var _ ingestion.PostSource = (*Source)(nil)

// New creates a new X API source.
func New(opts Options) *Source {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	wait := opts.RateLimitWait
	if wait == 0 {
		wait = defaultRateLimitWait
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetAuthToken(opts.BearerToken).
		SetHeader("Accept", "application/json")

	return &Source{
		client:        client,
		rateLimitWait: wait,
		logger:        logger,
		userIDs:       make(map[string]string),
	}
}

// Name returns the source tag.
func (s *Source) Name() string {
	return SourceName
}

type userResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type timelineResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		CreatedAt     string `json:"created_at"`
		PublicMetrics struct {
			LikeCount       int `json:"like_count"`
			RetweetCount    int `json:"retweet_count"`
			ReplyCount      int `json:"reply_count"`
			ImpressionCount int `json:"impression_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

// FetchSince fetches all posts newer than sinceID, walking the
// timeline page by page. The timeline API caps history at roughly the
// 3200 most recent posts; for an initial load that is simply where the
// walk ends.
func (s *Source) FetchSince(ctx context.Context, asset *domain.Asset, sinceID *string) ([]*domain.Post, error) {
	userID, err := s.lookupUserID(ctx, asset.Founder)
	if err != nil {
		return nil, err
	}

	var posts []*domain.Post
	paginationToken := ""

	for {
		page, nextToken, err := s.fetchTimelinePage(ctx, userID, sinceID, paginationToken)
		if err != nil {
			return posts, err
		}

		for _, t := range page.Data {
			created, err := time.Parse(time.RFC3339, t.CreatedAt)
			if err != nil {
				return posts, fmt.Errorf("parse created_at for post %s: %w", t.ID, err)
			}
			posts = append(posts, &domain.Post{
				ID:          t.ID,
				AssetID:     asset.ID,
				Timestamp:   created.Unix(),
				Text:        t.Text,
				Likes:       t.PublicMetrics.LikeCount,
				Retweets:    t.PublicMetrics.RetweetCount,
				Replies:     t.PublicMetrics.ReplyCount,
				Impressions: t.PublicMetrics.ImpressionCount,
			})
		}

		if nextToken == "" {
			return posts, nil
		}
		paginationToken = nextToken
	}
}

func (s *Source) lookupUserID(ctx context.Context, handle string) (string, error) {
	if handle == "" {
		return "", fmt.Errorf("asset has no founder handle")
	}
	s.mu.Lock()
	id, ok := s.userIDs[handle]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("handle", handle).
		Get("/users/by/username/{handle}")
	if err != nil {
		return "", fmt.Errorf("lookup user %s: %w", handle, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("lookup user %s: status %d", handle, resp.StatusCode())
	}

	var parsed userResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("decode user response: %w", err)
	}
	if parsed.Data.ID == "" {
		return "", fmt.Errorf("user %s not found", handle)
	}

	// Two concurrent first lookups for one handle both land here; the
	// second write is identical, so last-wins is harmless.
	s.mu.Lock()
	s.userIDs[handle] = parsed.Data.ID
	s.mu.Unlock()
	return parsed.Data.ID, nil
}

func (s *Source) fetchTimelinePage(ctx context.Context, userID string, sinceID *string, paginationToken string) (*timelineResponse, string, error) {
	req := s.client.R().
		SetContext(ctx).
		SetPathParam("id", userID).
		SetQueryParams(map[string]string{
			"max_results":  fmt.Sprintf("%d", maxResultsPerPage),
			"tweet.fields": "created_at,public_metrics",
			"exclude":      "retweets,replies",
		})
	if sinceID != nil && *sinceID != "" {
		req.SetQueryParam("since_id", *sinceID)
	}
	if paginationToken != "" {
		req.SetQueryParam("pagination_token", paginationToken)
	}

	for {
		resp, err := req.Get("/users/{id}/tweets")
		if err != nil {
			return nil, "", fmt.Errorf("request timeline page: %w", err)
		}

		switch resp.StatusCode() {
		case http.StatusOK:
			var parsed timelineResponse
			if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
				return nil, "", fmt.Errorf("decode timeline response: %w", err)
			}
			return &parsed, parsed.Meta.NextToken, nil
		case http.StatusTooManyRequests:
			s.logger.Printf("%s: rate limited, waiting %s", SourceName, s.rateLimitWait)
			select {
			case <-time.After(s.rateLimitWait):
			case <-ctx.Done():
				return nil, "", ctx.Err()
			}
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, "", ingestion.ErrPlanLimited
		default:
			return nil, "", fmt.Errorf("timeline page: status %d", resp.StatusCode())
		}
	}
}
