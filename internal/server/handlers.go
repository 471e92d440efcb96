package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/models"
)

var errSessionID = errors.New("session_id is required")

// fail answers a validation or domain failure. These are not HTTP errors.
func fail(c *gin.Context, err error) {
	c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": consts.AppName + " API is running",
		"version": consts.Version,
		"status":  "healthy",
		"endpoints": []string{
			"GET /health",
			"POST /check_subreddit",
			"POST /chat",
			"GET /chat/history",
			"POST /analyze",
			"DELETE /clear_history",
			"GET /stored_solutions",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.backend.Health(c.Request.Context()))
}

func (s *Server) handleCheckSubreddit(c *gin.Context) {
	var req models.CheckSubredditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.SubredditName) == "" {
		fail(c, errors.New("subreddit_name is required"))
		return
	}
	snapshot := s.backend.CheckSubreddit(c.Request.Context(), req.SubredditName)
	c.JSON(http.StatusOK, models.CheckSubredditResponse{Success: snapshot.Exists, SubredditSnapshot: snapshot})
}

func (s *Server) handleChat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	resp, err := s.backend.Chat(c.Request.Context(), req)
	if err != nil {
		log.WithError(err).WithField("session_id", req.SessionID).Warn("chat failed")
		c.JSON(http.StatusOK, models.ChatResponse{Success: false, SessionID: req.SessionID, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistory(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		fail(c, errSessionID)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	turns, err := s.backend.History(c.Request.Context(), sessionID, limit)
	if err != nil {
		c.JSON(http.StatusOK, models.HistoryResponse{Success: false, SessionID: sessionID, History: []models.ConversationTurn{}, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.HistoryResponse{Success: true, SessionID: sessionID, History: turns, Count: len(turns)})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	resp, err := s.backend.Analyze(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusOK, models.AnalyzeResponse{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleClearHistory accepts the session id in a JSON body or the query string.
func (s *Server) handleClearHistory(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" && c.Request.ContentLength != 0 {
		var req models.ClearHistoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, fmt.Errorf("invalid request body: %w", err))
			return
		}
		sessionID = strings.TrimSpace(req.SessionID)
	}
	if sessionID == "" {
		fail(c, errSessionID)
		return
	}

	n, err := s.backend.ClearHistory(c.Request.Context(), sessionID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("History of session '%s' cleared (%d turns)", sessionID, n),
	})
}

func (s *Server) handleStoredSolutions(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			fail(c, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = v
	}
	solutions, err := s.backend.StoredSolutions(c.Request.Context(), c.Query("subreddit"), limit)
	if err != nil {
		c.JSON(http.StatusOK, models.StoredSolutionsResponse{Success: false, Solutions: []models.ExceptionalSolution{}, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StoredSolutionsResponse{Success: true, Solutions: solutions, Count: len(solutions)})
}
