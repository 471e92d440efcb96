package models

type CheckSubredditRequest struct {
	SubredditName string `json:"subreddit_name"`
}

type CheckSubredditResponse struct {
	Success bool `json:"success"`
	SubredditSnapshot
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type ChatResponse struct {
	Success   bool   `json:"success"`
	Response  string `json:"response,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Notice    string `json:"notice,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AnalyzeRequest mirrors AnalysisParams with the wire names of the public API.
// Zero values are replaced by the defaults.
type AnalyzeRequest struct {
	SubredditName string `json:"subreddit_name"`
	NumPosts      int    `json:"num_posts"`
	CommentsLimit int    `json:"comments_limit"`
	SortCriteria  string `json:"sort_criteria"`
	TimeFilter    string `json:"time_filter"`
}

type AnalyzeResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message,omitempty"`
	Subreddit  string         `json:"subreddit,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	Parameters AnalysisParams `json:"parameters"`
	Error      string         `json:"error,omitempty"`
}

type ClearHistoryRequest struct {
	SessionID string `json:"session_id"`
}

type StoredSolutionsResponse struct {
	Success   bool                  `json:"success"`
	Solutions []ExceptionalSolution `json:"solutions"`
	Count     int                   `json:"count"`
	Error     string                `json:"error,omitempty"`
}

type HistoryResponse struct {
	Success   bool               `json:"success"`
	SessionID string             `json:"session_id"`
	History   []ConversationTurn `json:"history"`
	Count     int                `json:"count"`
	Error     string             `json:"error,omitempty"`
}

type HealthResponse struct {
	Status       string   `json:"status"`
	Agents       []string `json:"agents"`
	Model        string   `json:"model"`
	Database     string   `json:"database"`
	DatabaseType string   `json:"database_type"`
}
