package service

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/internal/storage"
	"github.com/dyike/PainRadar/models"
)

// History returns the turns of a session, oldest first. limit <= 0 means all.
func (s *ChatService) History(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, storage.ErrSessionRequired
	}
	return s.store.ListTurns(ctx, sessionID, limit)
}

// ClearHistory deletes the stored turns of a session and resets its
// conversation state. It waits for any exchange in flight on that session.
func (s *ChatService) ClearHistory(ctx context.Context, sessionID string) (int64, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return 0, storage.ErrSessionRequired
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	n, err := s.store.ClearTurns(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	s.router.Reset(sessionID)
	log.WithFields(log.Fields{"session_id": sessionID, "deleted": n}).Info("history cleared")
	return n, nil
}
