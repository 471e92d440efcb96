package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/internal/agents"
	"github.com/dyike/PainRadar/internal/router"
	"github.com/dyike/PainRadar/internal/storage"
	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/dataflows"
)

var (
	ErrEmptyMessage     = errors.New("message is required")
	ErrInvalidSubreddit = errors.New("invalid subreddit name")
)

// AnalysisSessionPrefix names the sessions /analyze runs on.
const AnalysisSessionPrefix = "analysis_"

type ConversationRouter interface {
	Handle(ctx context.Context, sessionID, message string, history []models.ConversationTurn) (router.Reply, error)
	Start(ctx context.Context, sessionID string, params models.AnalysisParams) (router.Reply, error)
	Reset(sessionID string)
}

// ChatService is the application boundary shared by the HTTP server and the
// CLI. Every call touching a session runs under that session's lock, so the
// history read, the routing and the append happen as one step.
type ChatService struct {
	router  ConversationRouter
	checker router.SubredditChecker
	store   storage.Store
	locks   *SessionLocks
	window  int

	agentNames []string
	model      string

	wg sync.WaitGroup
}

type Option func(*ChatService)

// WithHistoryWindow sets how many past turns are handed to the router.
func WithHistoryWindow(n int) Option { return func(s *ChatService) { s.window = n } }

// WithAgents describes the running agents and model for health reports.
func WithAgents(model string, names ...string) Option {
	return func(s *ChatService) {
		s.model = model
		s.agentNames = names
	}
}

// WithLocks shares a session lock table with other services, so a session
// stays serialized while requests move from one App to the next.
func WithLocks(locks *SessionLocks) Option {
	return func(s *ChatService) {
		if locks != nil {
			s.locks = locks
		}
	}
}

func NewChatService(r ConversationRouter, checker router.SubredditChecker, store storage.Store, opts ...Option) *ChatService {
	s := &ChatService{
		router:  r,
		checker: checker,
		store:   store,
		locks:   NewSessionLocks(),
		window:  agents.HistoryWindow,
		model:   "none",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat routes one message. An empty session id starts a new session.
func (s *ChatService) Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return models.ChatResponse{}, ErrEmptyMessage
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	reply, err := s.exchange(ctx, sessionID, message, func(history []models.ConversationTurn) (router.Reply, error) {
		return s.router.Handle(ctx, sessionID, message, history)
	})
	if err != nil {
		return models.ChatResponse{}, err
	}
	return models.ChatResponse{
		Success:   true,
		Response:  reply.Response(),
		SessionID: sessionID,
		Notice:    reply.Notice,
	}, nil
}

// exchange loads the history, produces a reply and records the turn.
func (s *ChatService) exchange(ctx context.Context, sessionID, message string, respond func([]models.ConversationTurn) (router.Reply, error)) (router.Reply, error) {
	logger := log.WithField("session_id", sessionID)

	history, err := s.store.ListTurns(ctx, sessionID, s.window)
	if err != nil {
		logger.WithError(err).Warn("load history failed, continuing without it")
		history = nil
	}

	reply, err := respond(history)
	if err != nil {
		return router.Reply{}, err
	}

	turn := &models.ConversationTurn{
		SessionID:     sessionID,
		UserMessage:   message,
		AgentResponse: reply.Response(),
	}
	if err := s.store.AppendTurn(ctx, turn); err != nil {
		return router.Reply{}, fmt.Errorf("record turn: %w", err)
	}
	logger.WithField("state", reply.State).Debug("turn recorded")
	return reply, nil
}

// Analyze validates the request and runs the analysis in the background on
// the session analysis_<subreddit>. The report lands in that session's history.
func (s *ChatService) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalyzeResponse, error) {
	name := dataflows.NormalizeSubreddit(req.SubredditName)
	if !dataflows.ValidSubredditName(name) {
		return models.AnalyzeResponse{}, fmt.Errorf("%w: %q", ErrInvalidSubreddit, req.SubredditName)
	}
	requested := models.AnalysisParams{
		Subreddit:     name,
		NumPosts:      req.NumPosts,
		CommentsLimit: req.CommentsLimit,
		SortCriteria:  strings.ToLower(strings.TrimSpace(req.SortCriteria)),
		TimeFilter:    strings.ToLower(strings.TrimSpace(req.TimeFilter)),
	}
	params := requested.WithDefaults()
	sessionID := AnalysisSessionPrefix + strings.ToLower(name)
	message := describeRequest(requested)

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		unlock := s.locks.Lock(sessionID)
		defer unlock()

		_, err := s.exchange(bg, sessionID, message, func([]models.ConversationTurn) (router.Reply, error) {
			return s.router.Start(bg, sessionID, params)
		})
		if err != nil {
			log.WithError(err).WithField("session_id", sessionID).Error("background analysis failed")
		}
	}()

	return models.AnalyzeResponse{
		Success:    true,
		Message:    fmt.Sprintf("Analysis of r/%s started. %s", name, router.Notice),
		Subreddit:  name,
		SessionID:  sessionID,
		Parameters: params,
	}, nil
}

func describeRequest(p models.AnalysisParams) string {
	parts := []string{"analyze r/" + p.Subreddit}
	if p.NumPosts > 0 {
		parts = append(parts, fmt.Sprintf("%d posts", p.NumPosts))
	}
	if p.CommentsLimit > 0 {
		parts = append(parts, fmt.Sprintf("%d comments", p.CommentsLimit))
	}
	if p.SortCriteria != "" {
		parts = append(parts, "sort "+p.SortCriteria)
	}
	if p.TimeFilter != "" {
		parts = append(parts, "time "+p.TimeFilter)
	}
	return strings.Join(parts, ", ")
}

// Wait blocks until background analyses are done or ctx ends.
func (s *ChatService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChatService) CheckSubreddit(ctx context.Context, name string) models.SubredditSnapshot {
	return s.checker.CheckExists(ctx, name)
}

func (s *ChatService) StoredSolutions(ctx context.Context, subreddit string, limit int) ([]models.ExceptionalSolution, error) {
	return s.store.QuerySolutions(ctx, dataflows.NormalizeSubreddit(subreddit), limit)
}

func (s *ChatService) Health(ctx context.Context) models.HealthResponse {
	resp := models.HealthResponse{
		Status:       "healthy",
		Agents:       s.agentNames,
		Model:        s.model,
		Database:     "connected",
		DatabaseType: s.store.Kind(),
	}
	if err := s.store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "error: " + err.Error()
	}
	return resp
}
