package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/internal/logging"
	"github.com/dyike/PainRadar/internal/server"
	"github.com/dyike/PainRadar/internal/service"
	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/bridge"
)

const (
	TopicReloaded     = "app.reloaded"
	TopicReloadFailed = "app.reload_failed"
)

// Builder builds one App. opts carry what the Runtime shares across builds:
// the event bridge and the session locks.
type Builder func(ctx context.Context, cfg config.Config, opts ...BuildOption) (*App, error)

type Option func(*Runtime)

func WithBuilder(builder Builder) Option {
	return func(r *Runtime) {
		if builder != nil {
			r.builder = builder
		}
	}
}

func WithBridge(b *bridge.Bridge) Option {
	return func(r *Runtime) {
		if b != nil {
			r.events = b
		}
	}
}

// WithDrainTimeout bounds how long a replaced App may finish background work.
func WithDrainTimeout(d time.Duration) Option {
	return func(r *Runtime) { r.drain = d }
}

// Runtime serves requests from the current App and rebuilds it whenever the
// config file changes. A failed rebuild keeps the previous App.
type Runtime struct {
	cfgMgr *config.Manager
	app    atomic.Pointer[App]

	builder Builder
	events  *bridge.Bridge
	locks   *service.SessionLocks
	drain   time.Duration
	cancel  context.CancelFunc
}

var _ server.Backend = (*Runtime)(nil)

func NewRuntime(ctx context.Context, cfgMgr *config.Manager, opts ...Option) (*Runtime, error) {
	if cfgMgr == nil {
		return nil, errors.New("config manager is required")
	}

	rt := &Runtime{
		cfgMgr:  cfgMgr,
		builder: Build,
		events:  bridge.New(),
		locks:   service.NewSessionLocks(),
		drain:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(rt)
	}

	if err := rt.reload(ctx, cfgMgr.Get()); err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt.cancel = cancel
	if err := cfgMgr.Watch(watchCtx, func(cfg config.Config) {
		if err := rt.reload(watchCtx, cfg); err != nil {
			log.WithError(err).Error("app reload failed, keeping the previous one")
		}
	}); err != nil {
		cancel()
		rt.App().Close()
		return nil, err
	}
	return rt, nil
}

func (r *Runtime) App() *App { return r.app.Load() }

func (r *Runtime) Events() *bridge.Bridge { return r.events }

func (r *Runtime) UpdateConfigJSON(jsonStr string) error {
	return r.cfgMgr.UpdateFromJSON(jsonStr)
}

// Close stops watching the config and closes the current App after its
// background analyses finish or ctx ends.
func (r *Runtime) Close(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	a := r.App()
	if a == nil {
		return nil
	}
	if err := a.Drain(ctx); err != nil {
		log.WithError(err).Warn("background analyses still running at shutdown")
	}
	return a.Close()
}

func (r *Runtime) reload(ctx context.Context, cfg config.Config) error {
	logging.Configure(&cfg)
	next, err := r.builder(ctx, cfg, WithEvents(r.events), WithSessionLocks(r.locks))
	if err != nil {
		r.notifyFailure(err)
		return err
	}
	if prev := r.app.Swap(next); prev != nil {
		go r.retire(prev)
	}
	r.notifySuccess(next)
	return nil
}

// retire closes a replaced App once its background analyses are done. The
// store stays open past the drain timeout while any analysis still uses it.
func (r *Runtime) retire(prev *App) {
	ctx, cancel := context.WithTimeout(context.Background(), r.drain)
	defer cancel()
	if err := prev.Drain(ctx); err != nil {
		log.WithField("version", prev.Version).Warn("previous app still running analyses, closing it when they finish")
		_ = prev.Service.Wait(context.Background())
	}
	if err := prev.Close(); err != nil {
		log.WithError(err).WithField("version", prev.Version).Warn("close previous app")
	}
}

// current returns the live App pinned for one call.
func (r *Runtime) current() (*App, func()) {
	for {
		a := r.App()
		if release, ok := a.acquire(); ok {
			return a, release
		}
	}
}

func (r *Runtime) notifySuccess(a *App) {
	payload, _ := json.Marshal(map[string]any{
		"version":  a.Version,
		"built_at": a.BuiltAt.UTC().Format(time.RFC3339),
	})
	r.events.Notify(TopicReloaded, string(payload))
}

func (r *Runtime) notifyFailure(err error) {
	payload, _ := json.Marshal(map[string]string{
		"error": err.Error(),
	})
	r.events.Notify(TopicReloadFailed, string(payload))
}

func (r *Runtime) Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	a, release := r.current()
	defer release()
	return a.Service.Chat(ctx, req)
}

func (r *Runtime) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalyzeResponse, error) {
	a, release := r.current()
	defer release()
	return a.Service.Analyze(ctx, req)
}

func (r *Runtime) CheckSubreddit(ctx context.Context, name string) models.SubredditSnapshot {
	a, release := r.current()
	defer release()
	return a.Service.CheckSubreddit(ctx, name)
}

func (r *Runtime) StoredSolutions(ctx context.Context, subreddit string, limit int) ([]models.ExceptionalSolution, error) {
	a, release := r.current()
	defer release()
	return a.Service.StoredSolutions(ctx, subreddit, limit)
}

func (r *Runtime) History(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error) {
	a, release := r.current()
	defer release()
	return a.Service.History(ctx, sessionID, limit)
}

func (r *Runtime) ClearHistory(ctx context.Context, sessionID string) (int64, error) {
	a, release := r.current()
	defer release()
	return a.Service.ClearHistory(ctx, sessionID)
}

func (r *Runtime) Health(ctx context.Context) models.HealthResponse {
	a, release := r.current()
	defer release()
	return a.Service.Health(ctx)
}
