package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *PostgresStore) Kind() string { return config.DatabasePostgres }

func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Init(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS solutions (
			id BIGSERIAL PRIMARY KEY,
			comment_id TEXT NOT NULL UNIQUE,
			post_id TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			solution_text TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL DEFAULT 0,
			pain_type TEXT NOT NULL DEFAULT '',
			intensity INTEGER NOT NULL DEFAULT 0,
			subreddit TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_solutions_subreddit_score ON solutions(subreddit, score DESC, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS conversation_history (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_message TEXT NOT NULL DEFAULT '',
			agent_response TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_session_ts ON conversation_history(session_id, timestamp, id)`,
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UpsertSolution(ctx context.Context, sol *models.ExceptionalSolution) error {
	if err := validateSolution(sol); err != nil {
		return err
	}
	createdAt := s.now().Truncate(time.Microsecond)
	err := s.pool.QueryRow(ctx, `
INSERT INTO solutions (comment_id, post_id, author, solution_text, score, pain_type, intensity, subreddit, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (comment_id) DO UPDATE SET
    post_id = EXCLUDED.post_id,
    author = EXCLUDED.author,
    solution_text = EXCLUDED.solution_text,
    score = EXCLUDED.score,
    pain_type = EXCLUDED.pain_type,
    intensity = EXCLUDED.intensity,
    subreddit = EXCLUDED.subreddit,
    created_at = EXCLUDED.created_at
RETURNING id`,
		sol.CommentID, sol.PostID, sol.Author, sol.SolutionText, sol.Score, sol.PainType, sol.Intensity, sol.Subreddit, createdAt,
	).Scan(&sol.ID)
	if err != nil {
		return fmt.Errorf("upsert solution: %w", err)
	}
	sol.CreatedAt = createdAt
	return nil
}

func (s *PostgresStore) QuerySolutions(ctx context.Context, subreddit string, limit int) ([]models.ExceptionalSolution, error) {
	limit = normalizeLimit(limit)
	subreddit = strings.TrimSpace(subreddit)
	rows, err := s.pool.Query(ctx, `
SELECT id, comment_id, post_id, author, solution_text, score, pain_type, intensity, subreddit, created_at
FROM solutions
WHERE ($1 = '' OR subreddit = $1)
ORDER BY score DESC, created_at DESC, id DESC
LIMIT $2`, subreddit, limit)
	if err != nil {
		return nil, fmt.Errorf("query solutions: %w", err)
	}
	defer rows.Close()

	solutions := []models.ExceptionalSolution{}
	for rows.Next() {
		var sol models.ExceptionalSolution
		if err := rows.Scan(&sol.ID, &sol.CommentID, &sol.PostID, &sol.Author, &sol.SolutionText, &sol.Score,
			&sol.PainType, &sol.Intensity, &sol.Subreddit, &sol.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan solution: %w", err)
		}
		sol.CreatedAt = sol.CreatedAt.UTC()
		solutions = append(solutions, sol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query solutions rows: %w", err)
	}
	return solutions, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, turn *models.ConversationTurn) error {
	if strings.TrimSpace(turn.SessionID) == "" {
		return ErrSessionRequired
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	turn.Timestamp = turn.Timestamp.UTC().Truncate(time.Microsecond)
	err := s.pool.QueryRow(ctx, `
INSERT INTO conversation_history (session_id, user_message, agent_response, timestamp)
VALUES ($1, $2, $3, $4)
RETURNING id`, turn.SessionID, turn.UserMessage, turn.AgentResponse, turn.Timestamp).Scan(&turn.ID)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionRequired
	}
	// LIMIT NULL means no limit in postgres
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, session_id, user_message, agent_response, timestamp FROM (
    SELECT id, session_id, user_message, agent_response, timestamp
    FROM conversation_history
    WHERE session_id = $1
    ORDER BY timestamp DESC, id DESC
    LIMIT $2
) recent ORDER BY timestamp ASC, id ASC`, sessionID, lim)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	turns := []models.ConversationTurn{}
	for rows.Next() {
		var turn models.ConversationTurn
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.UserMessage, &turn.AgentResponse, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Timestamp = turn.Timestamp.UTC()
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list turns rows: %w", err)
	}
	return turns, nil
}

func (s *PostgresStore) ClearTurns(ctx context.Context, sessionID string) (int64, error) {
	if strings.TrimSpace(sessionID) == "" {
		return 0, ErrSessionRequired
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversation_history WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear turns: %w", err)
	}
	return tag.RowsAffected(), nil
}
