package dataflows

import (
	"encoding/json"

	"github.com/dyike/PainRadar/config"
)

// Config is an alias for the main application config
type Config = config.Config

// RedditListing is the envelope Reddit wraps every collection in.
type RedditListing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string        `json:"after"`
		Before   string        `json:"before"`
		Children []RedditChild `json:"children"`
		Dist     int           `json:"dist"`
	} `json:"data"`
}

// RedditChild keeps its payload raw because the shape depends on Kind
// (t1 comment, t3 post, more stub).
type RedditChild struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// RedditPostData represents Reddit post data from API
type RedditPostData struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Selftext     string  `json:"selftext"`
	SelftextHTML *string `json:"selftext_html"`
	Permalink    string  `json:"permalink"`
	Subreddit    string  `json:"subreddit"`
	Author       string  `json:"author"`
	Score        int     `json:"score"`
	UpvoteRatio  float64 `json:"upvote_ratio"`
	NumComments  int     `json:"num_comments"`
	CreatedUTC   float64 `json:"created_utc"`
	Stickied     bool    `json:"stickied"`
}

type RedditCommentData struct {
	ID         string  `json:"id"`
	LinkID     string  `json:"link_id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	// Replies is "" when there are none, a listing otherwise.
	Replies json.RawMessage `json:"replies"`
}

type RedditAbout struct {
	Kind string `json:"kind"`
	Data struct {
		DisplayName       string `json:"display_name"`
		Title             string `json:"title"`
		PublicDescription string `json:"public_description"`
		Subscribers       int64  `json:"subscribers"`
		SubredditType     string `json:"subreddit_type"`
		Quarantine        bool   `json:"quarantine"`
	} `json:"data"`
}

// redditError is the body of 403/404 answers on subreddit endpoints.
type redditError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Error   int    `json:"error"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}
