package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/sqlite"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SQLiteStore) Kind() string { return config.DatabaseSQLite }

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS solutions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    comment_id TEXT NOT NULL UNIQUE,
    post_id TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL DEFAULT '',
    solution_text TEXT NOT NULL DEFAULT '',
    score INTEGER NOT NULL DEFAULT 0,
    pain_type TEXT NOT NULL DEFAULT '',
    intensity INTEGER NOT NULL DEFAULT 0,
    subreddit TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_solutions_subreddit_score ON solutions(subreddit, score DESC, created_at DESC);

CREATE TABLE IF NOT EXISTS conversation_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    user_message TEXT NOT NULL DEFAULT '',
    agent_response TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_session_ts ON conversation_history(session_id, timestamp, id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertSolution(ctx context.Context, sol *models.ExceptionalSolution) error {
	if err := validateSolution(sol); err != nil {
		return err
	}
	createdAt := s.now()
	row := s.db.QueryRowContext(ctx, `
INSERT INTO solutions (comment_id, post_id, author, solution_text, score, pain_type, intensity, subreddit, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(comment_id) DO UPDATE SET
    post_id=excluded.post_id,
    author=excluded.author,
    solution_text=excluded.solution_text,
    score=excluded.score,
    pain_type=excluded.pain_type,
    intensity=excluded.intensity,
    subreddit=excluded.subreddit,
    created_at=excluded.created_at
RETURNING id
`, sol.CommentID, sol.PostID, sol.Author, sol.SolutionText, sol.Score, sol.PainType, sol.Intensity, sol.Subreddit,
		createdAt.Format(sqlite.TimeLayout))
	if err := row.Scan(&sol.ID); err != nil {
		return fmt.Errorf("upsert solution: %w", err)
	}
	sol.CreatedAt = createdAt.Truncate(time.Microsecond)
	return nil
}

func (s *SQLiteStore) QuerySolutions(ctx context.Context, subreddit string, limit int) ([]models.ExceptionalSolution, error) {
	limit = normalizeLimit(limit)
	subreddit = strings.TrimSpace(subreddit)
	rows, err := s.db.QueryContext(ctx, `
SELECT id, comment_id, post_id, author, solution_text, score, pain_type, intensity, subreddit, created_at
FROM solutions
WHERE (? = '' OR subreddit = ?)
ORDER BY score DESC, created_at DESC, id DESC
LIMIT ?
`, subreddit, subreddit, limit)
	if err != nil {
		return nil, fmt.Errorf("query solutions: %w", err)
	}
	defer rows.Close()

	solutions := []models.ExceptionalSolution{}
	for rows.Next() {
		var (
			sol       models.ExceptionalSolution
			createdAt string
		)
		if err := rows.Scan(&sol.ID, &sol.CommentID, &sol.PostID, &sol.Author, &sol.SolutionText, &sol.Score,
			&sol.PainType, &sol.Intensity, &sol.Subreddit, &createdAt); err != nil {
			return nil, fmt.Errorf("scan solution: %w", err)
		}
		sol.CreatedAt = parseTime(createdAt)
		solutions = append(solutions, sol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query solutions rows: %w", err)
	}
	return solutions, nil
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, turn *models.ConversationTurn) error {
	if strings.TrimSpace(turn.SessionID) == "" {
		return ErrSessionRequired
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	turn.Timestamp = turn.Timestamp.UTC().Truncate(time.Microsecond)
	res, err := s.db.ExecContext(ctx, `
INSERT INTO conversation_history (session_id, user_message, agent_response, timestamp)
VALUES (?, ?, ?, ?)
`, turn.SessionID, turn.UserMessage, turn.AgentResponse, turn.Timestamp.Format(sqlite.TimeLayout))
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		turn.ID = id
	}
	return nil
}

func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionRequired
	}
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, user_message, agent_response, timestamp FROM (
    SELECT id, session_id, user_message, agent_response, timestamp
    FROM conversation_history
    WHERE session_id = ?
    ORDER BY timestamp DESC, id DESC
    LIMIT ?
) ORDER BY timestamp ASC, id ASC
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	turns := []models.ConversationTurn{}
	for rows.Next() {
		var (
			turn models.ConversationTurn
			ts   string
		)
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.UserMessage, &turn.AgentResponse, &ts); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Timestamp = parseTime(ts)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list turns rows: %w", err)
	}
	return turns, nil
}

func (s *SQLiteStore) ClearTurns(ctx context.Context, sessionID string) (int64, error) {
	if strings.TrimSpace(sessionID) == "" {
		return 0, ErrSessionRequired
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversation_history WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear turns: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func parseTime(v string) time.Time {
	t, err := time.ParseInLocation(sqlite.TimeLayout, v, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
