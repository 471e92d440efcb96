package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/models"
)

const (
	DefaultSolutionLimit = 10
	MaxSolutionLimit     = 100
)

var (
	ErrCommentIDRequired = errors.New("solution comment_id is required")
	ErrSessionRequired   = errors.New("session id is required")
)

// SolutionStore persists exceptional solutions keyed by comment id.
type SolutionStore interface {
	// UpsertSolution inserts or fully replaces the row for sol.CommentID and
	// writes the store-assigned ID and CreatedAt back into sol.
	UpsertSolution(ctx context.Context, sol *models.ExceptionalSolution) error
	// QuerySolutions filters by exact subreddit when non-empty and orders by
	// score, then recency.
	QuerySolutions(ctx context.Context, subreddit string, limit int) ([]models.ExceptionalSolution, error)
}

// HistoryStore keeps conversation turns. Callers serialize writes per session.
type HistoryStore interface {
	AppendTurn(ctx context.Context, turn *models.ConversationTurn) error
	// ListTurns returns the last limit turns (all when limit <= 0) oldest first.
	ListTurns(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error)
	ClearTurns(ctx context.Context, sessionID string) (int64, error)
}

type Store interface {
	SolutionStore
	HistoryStore
	// Init creates tables, indexes and collections. It is idempotent.
	Init(ctx context.Context) error
	Ping(ctx context.Context) error
	Kind() string
	Close() error
}

// New opens the backend selected by cfg.DatabaseType and initialises it.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.DatabaseType {
	case config.DatabaseSQLite, "":
		store, err = NewSQLiteStore(cfg.SQLitePath())
	case config.DatabasePostgres:
		store, err = NewPostgresStore(ctx, cfg.DatabaseURL)
	case config.DatabaseMongo:
		store, err = NewMongoStore(ctx, cfg.DatabaseURL, cfg.DatabaseName)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DatabaseType)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultSolutionLimit
	}
	if limit > MaxSolutionLimit {
		return MaxSolutionLimit
	}
	return limit
}

func validateSolution(sol *models.ExceptionalSolution) error {
	if sol == nil || sol.CommentID == "" {
		return ErrCommentIDRequired
	}
	return nil
}
