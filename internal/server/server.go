package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/models"
)

// Backend is what the HTTP surface needs from the application.
type Backend interface {
	Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)
	Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalyzeResponse, error)
	CheckSubreddit(ctx context.Context, name string) models.SubredditSnapshot
	StoredSolutions(ctx context.Context, subreddit string, limit int) ([]models.ExceptionalSolution, error)
	History(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error)
	ClearHistory(ctx context.Context, sessionID string) (int64, error)
	Health(ctx context.Context) models.HealthResponse
}

// Server represents the web server
type Server struct {
	engine  *gin.Engine
	server  *http.Server
	backend Backend
}

// NewServer creates the gin engine and the http.Server listening on cfg.Addr().
func NewServer(backend Backend, cfg *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(RecoveryMiddleware())
	engine.Use(LoggerMiddleware())
	engine.Use(CORSMiddleware(cfg.AllowedOrigins))

	s := &Server{
		engine:  engine,
		backend: backend,
	}
	s.setupRoutes()

	// The write timeout stays open: /chat holds the connection for a whole analysis.
	s.server = &http.Server{
		Addr:           cfg.Addr(),
		Handler:        engine,
		ReadTimeout:    30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/check_subreddit", s.handleCheckSubreddit)
	s.engine.POST("/chat", s.handleChat)
	s.engine.GET("/chat/history", s.handleHistory)
	s.engine.POST("/analyze", s.handleAnalyze)
	s.engine.DELETE("/clear_history", s.handleClearHistory)
	s.engine.GET("/stored_solutions", s.handleStoredSolutions)
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	log.Infof("HTTP server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down HTTP server...")
	return s.server.Shutdown(ctx)
}
