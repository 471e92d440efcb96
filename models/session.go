package models

import "time"

// ConversationTurn is one exchange of a chat session. Turns are append-only.
type ConversationTurn struct {
	ID            int64     `json:"-" bson:"-"`
	SessionID     string    `json:"session_id" bson:"session_id"`
	UserMessage   string    `json:"user_message" bson:"user_message"`
	AgentResponse string    `json:"agent_response" bson:"agent_response"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
}
