package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/callbacks"
	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/internal/agents"
	"github.com/dyike/PainRadar/internal/graph"
	"github.com/dyike/PainRadar/internal/router"
	"github.com/dyike/PainRadar/internal/service"
	"github.com/dyike/PainRadar/internal/storage"
	"github.com/dyike/PainRadar/pkg/bridge"
	"github.com/dyike/PainRadar/pkg/dataflows"
)

// App is one fully wired instance of the system, built from a single config
// snapshot. A config change builds a new App instead of mutating this one.
type App struct {
	Config  config.Config
	BuiltAt time.Time
	Version uint64

	Store    storage.Store
	Reddit   *dataflows.RedditClient
	Workflow *graph.Coordinator
	Router   *router.Router
	Service  *service.ChatService
	Events   *bridge.Bridge

	mu       sync.RWMutex
	draining bool
	closed   bool
}

var appSeq atomic.Uint64

type buildOptions struct {
	events   *bridge.Bridge
	progress chan<- graph.ProgressEvent
	llm      agents.Completer
	locks    *service.SessionLocks
}

type BuildOption func(*buildOptions)

// WithEvents shares an event bridge across builds. Notices are published on it.
func WithEvents(b *bridge.Bridge) BuildOption {
	return func(o *buildOptions) { o.events = b }
}

// WithProgress receives stage progress of every analysis run by the App.
func WithProgress(ch chan<- graph.ProgressEvent) BuildOption {
	return func(o *buildOptions) { o.progress = ch }
}

// WithSessionLocks shares the session lock table across builds.
func WithSessionLocks(locks *service.SessionLocks) BuildOption {
	return func(o *buildOptions) { o.locks = locks }
}

// WithCompleter replaces the configured language model.
func WithCompleter(llm agents.Completer) BuildOption {
	return func(o *buildOptions) { o.llm = llm }
}

// unavailableModel stands in for the model when no API key is configured, so
// analyses fail at their first model call with a clear message.
var unavailableModel = agents.CompleterFunc(func(context.Context, string, string) (string, error) {
	return "", agents.ErrNoModel
})

func Build(ctx context.Context, cfg config.Config, opts ...BuildOption) (*App, error) {
	o := buildOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.events == nil {
		o.events = bridge.New()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DatabaseType, err)
	}

	llm, modelName := o.llm, cfg.ChatModel
	if llm == nil {
		llm, err = agents.NewCompleter(ctx, &cfg)
		switch {
		case errors.Is(err, agents.ErrNoModel):
			log.WithField("provider", cfg.LLMProvider).Warn("no API key configured: chat uses rules and analyses will fail at pain analysis")
			llm, modelName = nil, "none"
		case err != nil:
			_ = store.Close()
			return nil, err
		}
	}
	stageLLM := llm
	if stageLLM == nil {
		stageLLM = unavailableModel
	}

	reddit := dataflows.NewRedditClient(&cfg)

	handlers := []callbacks.Handler{&graph.LoggerCallback{Out: o.progress}}
	workflow, err := graph.NewCoordinator(ctx, graph.Stages{
		Scraper:     agents.NewScraper(reddit),
		PainAnalyst: agents.NewPainAnalyst(stageLLM, store),
		Recommender: agents.NewRecommender(stageLLM, cfg.ReportCurrency),
		Reporter:    agents.NewReporter(&cfg, llm),
	}, graph.WithTimeout(cfg.WorkflowTimeout()), graph.WithCallbacks(handlers...))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	routerOpts := []router.Option{
		router.WithAssistant(agents.NewAssistant(ctx, &cfg, llm, reddit, store)),
		router.WithNotifier(o.events),
	}
	if llm != nil {
		routerOpts = append(routerOpts, router.WithParser(router.NewLLMParser(llm)))
	}
	r := router.New(reddit, workflow, routerOpts...)

	svc := service.NewChatService(r, reddit, store,
		service.WithLocks(o.locks),
		service.WithAgents(modelName,
			consts.Agent_Router,
			consts.Agent_Scraper,
			consts.Agent_PainAnalyst,
			consts.Agent_Recommender,
			consts.Agent_Reporter,
		),
	)

	a := &App{
		Config:   cfg,
		BuiltAt:  time.Now(),
		Version:  appSeq.Add(1),
		Store:    store,
		Reddit:   reddit,
		Workflow: workflow,
		Router:   r,
		Service:  svc,
		Events:   o.events,
	}
	log.WithFields(log.Fields{
		"version":  a.Version,
		"database": store.Kind(),
		"model":    modelName,
	}).Info("app built")
	return a, nil
}

// Drain refuses new requests, waits for the ones holding the App, then waits
// for background analyses until ctx ends. Once the pinned requests are gone
// no new analysis can start, so the wait covers all of them.
func (a *App) Drain(ctx context.Context) error {
	a.mu.Lock()
	a.draining = true
	a.mu.Unlock()
	return a.Service.Wait(ctx)
}

// Close waits for requests holding the App and releases the store.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.Store.Close()
}

// acquire pins the App for one request. It fails once the App drains.
func (a *App) acquire() (release func(), ok bool) {
	a.mu.RLock()
	if a.closed || a.draining {
		a.mu.RUnlock()
		return nil, false
	}
	return a.mu.RUnlock, true
}
