package graph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/internal/agents"
	"github.com/dyike/PainRadar/models"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, stage)
}

type fakeStages struct {
	rec       *recorder
	failAt    string
	block     bool
	gotParams models.AnalysisParams
	gotInput  agents.ReportInput
}

func (f *fakeStages) Scrape(ctx context.Context, params models.AnalysisParams) (*models.ScrapeResult, error) {
	f.rec.add(consts.ScrapeStage)
	f.gotParams = params
	if f.failAt == consts.ScrapeStage {
		return &models.ScrapeResult{Subreddit: params.Subreddit, ErrorMessage: "reddit down"}, errors.New("reddit down")
	}
	return &models.ScrapeResult{ScrapingSuccess: true, Subreddit: params.Subreddit, PostsCount: 2, CommentsCount: 4}, nil
}

func (f *fakeStages) Analyze(ctx context.Context, scrape *models.ScrapeResult) (*models.PainAnalysis, error) {
	f.rec.add(consts.PainAnalysisStage)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.failAt == consts.PainAnalysisStage {
		return &models.PainAnalysis{Subreddit: scrape.Subreddit}, errors.New("model unreachable")
	}
	return &models.PainAnalysis{AnalysisSuccess: true, Subreddit: scrape.Subreddit, TopPains: []models.PainPoint{{PainType: "billing", Score: 3}}}, nil
}

func (f *fakeStages) Recommend(ctx context.Context, analysis *models.PainAnalysis) (*models.Recommendations, error) {
	f.rec.add(consts.RecommendStage)
	if f.failAt == consts.RecommendStage {
		return nil, errors.New("invalid recommendations")
	}
	return &models.Recommendations{Subreddit: analysis.Subreddit, Recommendations: []models.RecommendationSet{{PainType: "billing"}}}, nil
}

func (f *fakeStages) Report(ctx context.Context, in agents.ReportInput) (models.FinalReport, error) {
	f.rec.add(consts.ReportStage)
	f.gotInput = in
	if f.failAt == consts.ReportStage {
		return models.FinalReport{}, errors.New("template broken")
	}
	return models.NewFinalReport("report for r/" + in.Scrape.Subreddit), nil
}

func newTestCoordinator(t *testing.T, f *fakeStages, opts ...CoordinatorOption) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(context.Background(), Stages{Scraper: f, PainAnalyst: f, Recommender: f, Reporter: f}, opts...)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return c
}

func TestCoordinatorRunsStagesInOrder(t *testing.T) {
	f := &fakeStages{rec: &recorder{}}
	params := models.AnalysisParams{Subreddit: "golang", NumPosts: 7, CommentsLimit: 3, SortCriteria: "hot", TimeFilter: "week"}

	res := newTestCoordinator(t, f).Run(context.Background(), params)
	if !res.Success || res.Report.String() != "report for r/golang" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.FailedStage != "" || res.ErrorMessage != "" {
		t.Fatalf("successful run carries failure info: %+v", res)
	}
	want := []string{consts.ScrapeStage, consts.PainAnalysisStage, consts.RecommendStage, consts.ReportStage}
	if len(f.rec.calls) != len(want) {
		t.Fatalf("stages run: %v", f.rec.calls)
	}
	for i := range want {
		if f.rec.calls[i] != want[i] {
			t.Fatalf("stage %d: got %s want %s", i, f.rec.calls[i], want[i])
		}
	}
	if f.gotParams != params {
		t.Fatalf("params changed on the way: %+v", f.gotParams)
	}
	if f.gotInput.Scrape == nil || f.gotInput.Analysis == nil || f.gotInput.Recommendations == nil {
		t.Fatalf("reporter did not receive the earlier stage outputs: %+v", f.gotInput)
	}
}

func TestCoordinatorStopsAtFirstFailure(t *testing.T) {
	cases := []struct {
		stage   string
		ran     int
		message string
	}{
		{consts.ScrapeStage, 1, "reddit down"},
		{consts.PainAnalysisStage, 2, "model unreachable"},
		{consts.RecommendStage, 3, "invalid recommendations"},
		{consts.ReportStage, 4, "template broken"},
	}
	for _, tc := range cases {
		t.Run(tc.stage, func(t *testing.T) {
			f := &fakeStages{rec: &recorder{}, failAt: tc.stage}
			res := newTestCoordinator(t, f).Run(context.Background(), models.AnalysisParams{Subreddit: "golang"})
			if res.Success || !res.Report.IsZero() {
				t.Fatalf("expected failure, got %+v", res)
			}
			if res.FailedStage != tc.stage || res.ErrorMessage != tc.message {
				t.Fatalf("got stage=%q message=%q", res.FailedStage, res.ErrorMessage)
			}
			if len(f.rec.calls) != tc.ran {
				t.Fatalf("later stages ran: %v", f.rec.calls)
			}
		})
	}
}

func TestCoordinatorTimeout(t *testing.T) {
	f := &fakeStages{rec: &recorder{}, block: true}
	res := newTestCoordinator(t, f, WithTimeout(50*time.Millisecond)).Run(context.Background(), models.AnalysisParams{Subreddit: "golang"})
	if res.Success {
		t.Fatalf("expected timeout failure")
	}
	if res.FailedStage != consts.PainAnalysisStage {
		t.Fatalf("expected the running stage to be blamed, got %q", res.FailedStage)
	}
	if res.ErrorMessage != "analysis timed out after 50ms" {
		t.Fatalf("unexpected message %q", res.ErrorMessage)
	}
}

func TestCoordinatorReportsProgress(t *testing.T) {
	events := make(chan ProgressEvent, 32)
	f := &fakeStages{rec: &recorder{}}
	c := newTestCoordinator(t, f, WithCallbacks(&LoggerCallback{Out: events}))

	if res := c.Run(context.Background(), models.AnalysisParams{Subreddit: "golang"}); !res.Success {
		t.Fatalf("run failed: %+v", res)
	}
	close(events)

	done := map[string]bool{}
	for ev := range events {
		if ev.Done {
			done[ev.Stage] = true
		}
	}
	for stage := range stageNames {
		if !done[stage] {
			t.Fatalf("no completion event for %s (got %v)", stage, done)
		}
	}
}

func TestNewCoordinatorNeedsAllStages(t *testing.T) {
	if _, err := NewCoordinator(context.Background(), Stages{}); err == nil {
		t.Fatalf("expected error without stages")
	}
}

func TestStageErrorMatches(t *testing.T) {
	root := errors.New("root")
	err := error(&StageError{Stage: consts.ScrapeStage, Err: root})
	if !errors.Is(err, ErrStageFailed) || !errors.Is(err, root) {
		t.Fatalf("StageError does not unwrap to both causes")
	}
}
