package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/dyike/PainRadar/models"
)

func TestScraperPassesParamsThrough(t *testing.T) {
	source := &fakeSource{posts: samplePosts()}
	params := models.AnalysisParams{Subreddit: "smallbusiness", NumPosts: 80, CommentsLimit: 0, SortCriteria: "weird", TimeFilter: "week"}

	res, err := NewScraper(source).Scrape(context.Background(), params)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	want := models.FetchParams{Subreddit: "smallbusiness", Limit: 80, CommentLimit: 0, Sort: "weird", TimeFilter: "week"}
	if len(source.params) != 1 || source.params[0] != want {
		t.Fatalf("adapter received %+v, want %+v", source.params, want)
	}
	if !res.ScrapingSuccess || res.PostsCount != 2 || res.CommentsCount != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ScrapedAt.IsZero() || res.SortCriteria != "weird" || res.TimeFilter != "week" {
		t.Fatalf("missing metadata %+v", res)
	}
}

func TestScraperReportsFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("reddit answered 503")}
	res, err := NewScraper(source).Scrape(context.Background(), models.AnalysisParams{Subreddit: "golang"})
	if !errors.Is(err, ErrScrapeFailed) {
		t.Fatalf("expected ErrScrapeFailed, got %v", err)
	}
	if res == nil || res.ScrapingSuccess || res.ErrorMessage == "" || res.Subreddit != "golang" {
		t.Fatalf("expected tagged failure, got %+v", res)
	}
}
