package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/dataflows"
)

var ErrScrapeFailed = errors.New("scrape failed")

// Scraper is the deterministic first stage. It forwards the analysis
// parameters untouched; normalisation belongs to the adapter.
type Scraper struct {
	source dataflows.RedditSource
	now    func() time.Time
}

func NewScraper(source dataflows.RedditSource) *Scraper {
	return &Scraper{source: source, now: func() time.Time { return time.Now().UTC() }}
}

// Scrape returns the corpus of a subreddit. On failure the returned result is
// the tagged error variant and err wraps ErrScrapeFailed.
func (s *Scraper) Scrape(ctx context.Context, params models.AnalysisParams) (*models.ScrapeResult, error) {
	logger := log.WithFields(log.Fields{"stage": "scrape", "subreddit": params.Subreddit})

	posts, err := s.source.FetchPosts(ctx, params.FetchParams())
	if err != nil {
		logger.WithError(err).Warn("fetch posts failed")
		return &models.ScrapeResult{
			ScrapingSuccess: false,
			Subreddit:       params.Subreddit,
			ErrorMessage:    err.Error(),
		}, fmt.Errorf("%w: %v", ErrScrapeFailed, err)
	}

	comments := 0
	for _, p := range posts {
		comments += len(p.Comments)
	}
	logger.WithFields(log.Fields{"posts": len(posts), "comments": comments}).Info("subreddit scraped")

	return &models.ScrapeResult{
		ScrapingSuccess: true,
		Subreddit:       params.Subreddit,
		SortCriteria:    params.SortCriteria,
		TimeFilter:      params.TimeFilter,
		PostsCount:      len(posts),
		CommentsCount:   comments,
		Posts:           posts,
		ScrapedAt:       s.now(),
	}, nil
}
