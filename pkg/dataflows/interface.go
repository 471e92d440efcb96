package dataflows

import (
	"context"

	"github.com/dyike/PainRadar/models"
)

// RedditSource is the read-only view of Reddit the rest of the system uses.
type RedditSource interface {
	// CheckExists never fails: problems are reported in the snapshot's Error.
	CheckExists(ctx context.Context, name string) models.SubredditSnapshot
	FetchPosts(ctx context.Context, params models.FetchParams) ([]models.Post, error)
}

var _ RedditSource = (*RedditClient)(nil)
