package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dyike/PainRadar/models"
)

const painReplyJSON = "Here is the analysis:\n```json\n" + `{
  "analysis_success": true,
  "pains": [
    {"pain_type": "finding clients", "description": "No steady lead flow.", "frequency": 2, "avg_upvotes": 30, "avg_comments": 1, "avg_intensity": 6},
    {"pain_type": "invoicing", "description": "Chasing unpaid invoices.", "frequency": 3, "avg_upvotes": 120, "avg_comments": 3, "avg_intensity": 8},
    {"pain_type": "", "description": "ignored", "frequency": 1, "avg_upvotes": 1, "avg_comments": 1, "avg_intensity": 1}
  ],
  "exceptional_solutions": [
    {"comment_id": "c1", "pain_type": "invoicing", "intensity": 14, "solution_text": "Automate invoice reminders."},
    {"comment_id": "c2", "pain_type": "invoicing", "intensity": 3, "solution_text": "exactly ten points"},
    {"comment_id": "t1_c3", "pain_type": "finding clients", "intensity": 0, "solution_text": ""},
    {"comment_id": "made-up", "pain_type": "invoicing", "intensity": 5, "solution_text": "hallucinated"}
  ]
}` + "\n```"

func scraped() *models.ScrapeResult {
	return &models.ScrapeResult{ScrapingSuccess: true, Subreddit: "smallbusiness", PostsCount: 2, CommentsCount: 3, Posts: samplePosts()}
}

func TestPainAnalystScoresAndStores(t *testing.T) {
	llm := &scriptedCompleter{replies: []string{painReplyJSON}}
	store := newMemorySolutions()

	res, err := NewPainAnalyst(llm, store).Analyze(context.Background(), scraped())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !strings.Contains(llm.calls[0].input, `"id":"c1"`) {
		t.Fatalf("corpus not sent to the model: %s", llm.calls[0].input)
	}

	if len(res.TopPains) != 2 {
		t.Fatalf("expected 2 pains, got %+v", res.TopPains)
	}
	// invoicing: 0.4*3 + 0.2*120 + 0.1*3 + 0.3*8 = 27.9
	if res.TopPains[0].PainType != "invoicing" || res.TopPains[0].Score != 27.9 {
		t.Fatalf("unexpected top pain %+v", res.TopPains[0])
	}
	// finding clients: 0.8 + 6 + 0.1 + 1.8 = 8.7
	if res.TopPains[1].Score != 8.7 {
		t.Fatalf("unexpected second pain %+v", res.TopPains[1])
	}

	if res.SolutionsStored != 2 || len(store.rows) != 2 {
		t.Fatalf("expected c1 and c3 stored, got %d %+v", res.SolutionsStored, store.rows)
	}
	c1 := store.rows["c1"]
	if c1.Author != "helper" || c1.PostID != "p1" || c1.Score != 45 || c1.Intensity != 10 || c1.Subreddit != "smallbusiness" {
		t.Fatalf("solution not resolved against Reddit data: %+v", c1)
	}
	c3 := store.rows["c3"]
	if c3.Intensity != 1 || c3.SolutionText != "Cold email with a tight niche works." {
		t.Fatalf("unexpected c3 %+v", c3)
	}
	if _, ok := store.rows["c2"]; ok {
		t.Fatalf("comment with score 10 must not be stored")
	}
}

func TestPainAnalystPersistenceFailureIsNotFatal(t *testing.T) {
	llm := &scriptedCompleter{replies: []string{painReplyJSON}}
	store := newMemorySolutions()
	store.err = errors.New("disk full")

	res, err := NewPainAnalyst(llm, store).Analyze(context.Background(), scraped())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !res.AnalysisSuccess || res.SolutionsStored != 0 || len(res.TopPains) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestPainAnalystFailures(t *testing.T) {
	cases := []struct {
		name   string
		llm    *scriptedCompleter
		scrape *models.ScrapeResult
	}{
		{"failed scrape", &scriptedCompleter{}, &models.ScrapeResult{ScrapingSuccess: false}},
		{"model error", &scriptedCompleter{err: errors.New("timeout")}, scraped()},
		{"not json", &scriptedCompleter{replies: []string{"sorry, I cannot"}}, scraped()},
		{"model gives up", &scriptedCompleter{replies: []string{`{"analysis_success": false, "error_message": "too little data"}`}}, scraped()},
		{"no pains", &scriptedCompleter{replies: []string{`{"analysis_success": true, "pains": []}`}}, scraped()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := NewPainAnalyst(tc.llm, newMemorySolutions()).Analyze(context.Background(), tc.scrape)
			if !errors.Is(err, ErrAnalysisFailed) {
				t.Fatalf("expected ErrAnalysisFailed, got %v", err)
			}
			if res.AnalysisSuccess || res.ErrorMessage == "" {
				t.Fatalf("expected tagged failure, got %+v", res)
			}
		})
	}
}
