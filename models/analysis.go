package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/PainRadar/consts"
)

// AnalysisParams is what the router hands to the workflow coordinator.
type AnalysisParams struct {
	Subreddit     string `json:"subreddit"`
	NumPosts      int    `json:"num_posts"`
	CommentsLimit int    `json:"comments_limit"`
	SortCriteria  string `json:"sort_criteria"`
	TimeFilter    string `json:"time_filter"`
}

// WithDefaults fills every unset value with 5 posts, 5 comments, top, month.
func (p AnalysisParams) WithDefaults() AnalysisParams {
	if p.NumPosts <= 0 {
		p.NumPosts = consts.DefaultNumPosts
	}
	if p.CommentsLimit <= 0 {
		p.CommentsLimit = consts.DefaultCommentsLimit
	}
	if p.SortCriteria == "" {
		p.SortCriteria = consts.DefaultSort
	}
	if p.TimeFilter == "" {
		p.TimeFilter = consts.DefaultTimeFilter
	}
	return p
}

func (p AnalysisParams) FetchParams() FetchParams {
	return FetchParams{
		Subreddit:    p.Subreddit,
		Limit:        p.NumPosts,
		Sort:         p.SortCriteria,
		CommentLimit: p.CommentsLimit,
		TimeFilter:   p.TimeFilter,
	}
}

type ScrapeResult struct {
	ScrapingSuccess bool      `json:"scraping_success"`
	Subreddit       string    `json:"subreddit"`
	SortCriteria    string    `json:"sort_criteria,omitempty"`
	TimeFilter      string    `json:"time_filter,omitempty"`
	PostsCount      int       `json:"posts_count"`
	CommentsCount   int       `json:"comments_count"`
	Posts           []Post    `json:"posts,omitempty"`
	ScrapedAt       time.Time `json:"scraped_at"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

type ScoreComponents struct {
	Frequency float64 `json:"frequency_component"`
	Upvotes   float64 `json:"upvotes_component"`
	Comments  float64 `json:"comments_component"`
	Intensity float64 `json:"intensity_component"`
}

// PainScore keeps the rounded total and the individually rounded components
// side by side; they are not forced to agree.
type PainScore struct {
	Total      float64         `json:"total_score"`
	Components ScoreComponents `json:"components"`
}

// PainFinding is a pain candidate as described by the language model, before
// it is scored.
type PainFinding struct {
	PainType     string  `json:"pain_type"`
	Description  string  `json:"description"`
	Frequency    int     `json:"frequency"`
	AvgUpvotes   float64 `json:"avg_upvotes"`
	AvgComments  float64 `json:"avg_comments"`
	AvgIntensity float64 `json:"avg_intensity"`
}

// SolutionCandidate is a comment the model flagged as proposing a concrete fix.
type SolutionCandidate struct {
	CommentID    string `json:"comment_id"`
	PainType     string `json:"pain_type"`
	Intensity    int    `json:"intensity"`
	SolutionText string `json:"solution_text"`
}

type PainPoint struct {
	PainType    string    `json:"pain_type"`
	Score       float64   `json:"score"`
	Description string    `json:"description"`
	Frequency   int       `json:"frequency"`
	Breakdown   PainScore `json:"breakdown"`
}

type PainAnalysis struct {
	AnalysisSuccess bool        `json:"analysis_success"`
	Subreddit       string      `json:"subreddit"`
	TopPains        []PainPoint `json:"top_pains,omitempty"`
	SolutionsStored int         `json:"solutions_stored"`
	ErrorMessage    string      `json:"error_message,omitempty"`
}

const (
	SolutionSaaS     = "SaaS"
	SolutionDigital  = "digital product"
	SolutionContent  = "content"
	SolutionTraining = "training"
	SolutionMarket   = "marketing"

	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

var SolutionTypes = []string{SolutionSaaS, SolutionDigital, SolutionContent, SolutionTraining, SolutionMarket}

var Complexities = []string{ComplexityLow, ComplexityMedium, ComplexityHigh}

type Solution struct {
	Title             string `json:"title"`
	Type              string `json:"type"`
	Description       string `json:"description"`
	Complexity        string `json:"complexity"`
	EstimatedCost     Cost   `json:"estimated_cost"`
	EstimatedDuration string `json:"estimated_duration"`
}

type RecommendationSet struct {
	PainType  string     `json:"pain_type"`
	Solutions []Solution `json:"solutions"`
}

type Recommendations struct {
	Subreddit       string              `json:"subreddit"`
	Recommendations []RecommendationSet `json:"recommendations"`
}

var (
	costThousands = regexp.MustCompile(`(\d),(\d{3})`)
	costNumber    = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// Cost is an amount in the report currency. It accepts JSON numbers as well as
// loose strings such as "5,000 €" or "2000-4000" (the lower bound is kept).
type Cost struct {
	decimal.Decimal
}

func NewCost(v float64) Cost {
	return Cost{decimal.NewFromFloat(v)}
}

func (c *Cost) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		c.Decimal = decimal.Zero
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		s = raw
	}
	s = strings.ReplaceAll(s, " ", "")
	for costThousands.MatchString(s) {
		s = costThousands.ReplaceAllString(s, "$1$2")
	}
	num := costNumber.FindString(s)
	if num == "" {
		c.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return fmt.Errorf("parse cost %q: %w", raw, err)
	}
	c.Decimal = d
	return nil
}

func (c Cost) MarshalJSON() ([]byte, error) {
	return []byte(c.Decimal.String()), nil
}

// FinalReport is the rendered analysis. The text is fixed at construction and
// only readable afterwards.
type FinalReport struct {
	text string
}

func NewFinalReport(text string) FinalReport {
	return FinalReport{text: text}
}

func (r FinalReport) String() string { return r.text }

func (r FinalReport) IsZero() bool { return r.text == "" }

func (r FinalReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.text)
}

// WorkflowState is the per-run state carried through the analysis graph.
type WorkflowState struct {
	Params          AnalysisParams
	Scrape          *ScrapeResult
	Analysis        *PainAnalysis
	Recommendations *Recommendations
	Report          FinalReport
	Completed       []string
}

type WorkflowResult struct {
	Success      bool          `json:"success"`
	Report       FinalReport   `json:"report"`
	FailedStage  string        `json:"failed_stage,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration"`
}
