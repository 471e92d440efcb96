package models

import "time"

// DeletedAuthor stands in for accounts Reddit no longer reports.
const DeletedAuthor = "[deleted]"

// SubredditSnapshot is the result of an existence check. It is built per
// request and never cached.
type SubredditSnapshot struct {
	Name            string `json:"subreddit"`
	Exists          bool   `json:"exists"`
	Title           string `json:"title,omitempty"`
	SubscriberCount int64  `json:"subscribers"`
	Description     string `json:"description,omitempty"`
	Error           string `json:"error,omitempty"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

type Post struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Score        int       `json:"score"`
	UpvoteRatio  float64   `json:"upvote_ratio"`
	CommentCount int       `json:"num_comments"`
	CreatedAt    time.Time `json:"created_at"`
	Permalink    string    `json:"url"`
	Body         string    `json:"selftext"`
	Comments     []Comment `json:"comments"`
}

// FetchParams drives one listing fetch. Out-of-range values are normalised by
// the adapter, not rejected.
type FetchParams struct {
	Subreddit    string `json:"subreddit"`
	Limit        int    `json:"limit"`
	Sort         string `json:"sort"`
	CommentLimit int    `json:"comment_limit"`
	TimeFilter   string `json:"time_filter"`
}
