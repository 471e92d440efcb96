package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/internal/agents"
	"github.com/dyike/PainRadar/models"
)

var ErrStageFailed = errors.New("stage failed")

type Scraper interface {
	Scrape(ctx context.Context, params models.AnalysisParams) (*models.ScrapeResult, error)
}

type PainAnalyzer interface {
	Analyze(ctx context.Context, scrape *models.ScrapeResult) (*models.PainAnalysis, error)
}

type Recommender interface {
	Recommend(ctx context.Context, analysis *models.PainAnalysis) (*models.Recommendations, error)
}

// Stages are the four agents of an analysis, run in this order.
type Stages struct {
	Scraper     Scraper
	PainAnalyst PainAnalyzer
	Recommender Recommender
	Reporter    agents.Reporter
}

// StageError names the stage an analysis stopped at.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() []error { return []error{ErrStageFailed, e.Err} }

// runTrace follows one run so failures can be reported with the stage and
// root cause rather than the graph's wrapped error.
type runTrace struct {
	mu      sync.Mutex
	current string
	failure *StageError
}

type traceKey struct{}

func traceFrom(ctx context.Context) *runTrace {
	if t, ok := ctx.Value(traceKey{}).(*runTrace); ok {
		return t
	}
	return &runTrace{}
}

func (t *runTrace) enter(stage string) {
	t.mu.Lock()
	t.current = stage
	t.mu.Unlock()
}

func (t *runTrace) fail(stage string, err error) error {
	se := &StageError{Stage: stage, Err: err}
	t.mu.Lock()
	if t.failure == nil {
		t.failure = se
	}
	t.mu.Unlock()
	return se
}

// Coordinator runs the analysis graph
// START -> scrape -> pain_analysis -> recommendation -> report_generation -> END.
// The first stage error ends the run.
type Coordinator struct {
	runnable compose.Runnable[models.AnalysisParams, models.FinalReport]
	timeout  time.Duration
	handlers []callbacks.Handler
}

type CoordinatorOption func(*Coordinator)

func WithTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.timeout = d }
}

func WithCallbacks(handlers ...callbacks.Handler) CoordinatorOption {
	return func(c *Coordinator) { c.handlers = append(c.handlers, handlers...) }
}

func NewCoordinator(ctx context.Context, stages Stages, opts ...CoordinatorOption) (*Coordinator, error) {
	if stages.Scraper == nil || stages.PainAnalyst == nil || stages.Recommender == nil || stages.Reporter == nil {
		return nil, errors.New("all four stages are required")
	}
	c := &Coordinator{}
	for _, opt := range opts {
		opt(c)
	}

	g := compose.NewGraph[models.AnalysisParams, models.FinalReport](
		compose.WithGenLocalState(func(ctx context.Context) *models.WorkflowState {
			return &models.WorkflowState{}
		}),
	)

	_ = g.AddLambdaNode(consts.ScrapeStage, compose.InvokableLambda(
		func(ctx context.Context, params models.AnalysisParams) (*models.ScrapeResult, error) {
			trace := traceFrom(ctx)
			trace.enter(consts.ScrapeStage)
			res, err := stages.Scraper.Scrape(ctx, params)
			_ = compose.ProcessState[*models.WorkflowState](ctx, func(_ context.Context, st *models.WorkflowState) error {
				st.Params = params
				st.Scrape = res
				return nil
			})
			if err != nil {
				return nil, trace.fail(consts.ScrapeStage, err)
			}
			markDone(ctx, consts.ScrapeStage)
			return res, nil
		}), compose.WithNodeName(consts.ScrapeStage))

	_ = g.AddLambdaNode(consts.PainAnalysisStage, compose.InvokableLambda(
		func(ctx context.Context, scrape *models.ScrapeResult) (*models.PainAnalysis, error) {
			trace := traceFrom(ctx)
			trace.enter(consts.PainAnalysisStage)
			res, err := stages.PainAnalyst.Analyze(ctx, scrape)
			_ = compose.ProcessState[*models.WorkflowState](ctx, func(_ context.Context, st *models.WorkflowState) error {
				st.Analysis = res
				return nil
			})
			if err != nil {
				return nil, trace.fail(consts.PainAnalysisStage, err)
			}
			markDone(ctx, consts.PainAnalysisStage)
			return res, nil
		}), compose.WithNodeName(consts.PainAnalysisStage))

	_ = g.AddLambdaNode(consts.RecommendStage, compose.InvokableLambda(
		func(ctx context.Context, analysis *models.PainAnalysis) (*models.Recommendations, error) {
			trace := traceFrom(ctx)
			trace.enter(consts.RecommendStage)
			res, err := stages.Recommender.Recommend(ctx, analysis)
			if err != nil {
				return nil, trace.fail(consts.RecommendStage, err)
			}
			_ = compose.ProcessState[*models.WorkflowState](ctx, func(_ context.Context, st *models.WorkflowState) error {
				st.Recommendations = res
				return nil
			})
			markDone(ctx, consts.RecommendStage)
			return res, nil
		}), compose.WithNodeName(consts.RecommendStage))

	_ = g.AddLambdaNode(consts.ReportStage, compose.InvokableLambda(
		func(ctx context.Context, recs *models.Recommendations) (models.FinalReport, error) {
			trace := traceFrom(ctx)
			trace.enter(consts.ReportStage)
			var in agents.ReportInput
			_ = compose.ProcessState[*models.WorkflowState](ctx, func(_ context.Context, st *models.WorkflowState) error {
				in = agents.ReportInput{Scrape: st.Scrape, Analysis: st.Analysis, Recommendations: recs}
				return nil
			})
			report, err := stages.Reporter.Report(ctx, in)
			if err != nil {
				return models.FinalReport{}, trace.fail(consts.ReportStage, err)
			}
			_ = compose.ProcessState[*models.WorkflowState](ctx, func(_ context.Context, st *models.WorkflowState) error {
				st.Report = report
				return nil
			})
			markDone(ctx, consts.ReportStage)
			return report, nil
		}), compose.WithNodeName(consts.ReportStage))

	_ = g.AddEdge(compose.START, consts.ScrapeStage)
	_ = g.AddEdge(consts.ScrapeStage, consts.PainAnalysisStage)
	_ = g.AddEdge(consts.PainAnalysisStage, consts.RecommendStage)
	_ = g.AddEdge(consts.RecommendStage, consts.ReportStage)
	_ = g.AddEdge(consts.ReportStage, compose.END)

	r, err := g.Compile(ctx, compose.WithGraphName(consts.WorkflowGraph))
	if err != nil {
		return nil, fmt.Errorf("compile workflow: %w", err)
	}
	c.runnable = r
	return c, nil
}

func markDone(ctx context.Context, stage string) {
	_ = compose.ProcessState[*models.WorkflowState](ctx, func(_ context.Context, st *models.WorkflowState) error {
		st.Completed = append(st.Completed, stage)
		return nil
	})
}

// Run executes one analysis. It never returns an error: failures come back
// as an unsuccessful WorkflowResult naming the stage.
func (c *Coordinator) Run(ctx context.Context, params models.AnalysisParams) models.WorkflowResult {
	start := time.Now()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	trace := &runTrace{}
	ctx = context.WithValue(ctx, traceKey{}, trace)

	logger := log.WithField("subreddit", params.Subreddit)
	logger.WithFields(log.Fields{
		"num_posts":      params.NumPosts,
		"comments_limit": params.CommentsLimit,
		"sort":           params.SortCriteria,
		"time_filter":    params.TimeFilter,
	}).Info("analysis started")

	var opts []compose.Option
	if len(c.handlers) > 0 {
		opts = append(opts, compose.WithCallbacks(c.handlers...))
	}
	report, err := c.runnable.Invoke(ctx, params, opts...)
	result := models.WorkflowResult{Duration: time.Since(start)}
	if err != nil {
		result.FailedStage, result.ErrorMessage = describeFailure(ctx, trace, err, c.timeout)
		logger.WithFields(log.Fields{
			"stage":    result.FailedStage,
			"duration": result.Duration,
		}).Warn("analysis failed: ", result.ErrorMessage)
		return result
	}

	result.Success = true
	result.Report = report
	logger.WithField("duration", result.Duration).Info("analysis finished")
	return result
}

func describeFailure(ctx context.Context, trace *runTrace, err error, timeout time.Duration) (string, string) {
	trace.mu.Lock()
	defer trace.mu.Unlock()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return trace.current, fmt.Sprintf("analysis timed out after %s", timeout)
	}
	if trace.failure != nil {
		return trace.failure.Stage, trace.failure.Err.Error()
	}
	return trace.current, err.Error()
}
