package models

import "time"

// ExceptionalSolution is a high-signal comment kept for later consultation.
// CommentID is the natural key; ID and CreatedAt are assigned by the store.
type ExceptionalSolution struct {
	ID           int64     `json:"id" bson:"_id"`
	CommentID    string    `json:"comment_id" bson:"comment_id"`
	PostID       string    `json:"post_id" bson:"post_id"`
	Author       string    `json:"author" bson:"author"`
	SolutionText string    `json:"solution_text" bson:"solution_text"`
	Score        int       `json:"score" bson:"score"`
	PainType     string    `json:"pain_type" bson:"pain_type"`
	Intensity    int       `json:"intensity" bson:"intensity"`
	Subreddit    string    `json:"subreddit" bson:"subreddit"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}
