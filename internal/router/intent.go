package router

import (
	"context"
	"regexp"
	"slices"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/internal/agents"
	"github.com/dyike/PainRadar/internal/processing"
	"github.com/dyike/PainRadar/internal/utils"
	"github.com/dyike/PainRadar/pkg/dataflows"
)

type IntentKind string

const (
	IntentAnalyze       IntentKind = "analyze"
	IntentProvideParams IntentKind = "provide_params"
	IntentConfirm       IntentKind = "confirm"
	IntentUseDefaults   IntentKind = "use_defaults"
	IntentCancel        IntentKind = "cancel"
	IntentOther         IntentKind = "other"
)

// Intent is what a message asks for. Zero values mean "not stated".
type Intent struct {
	Kind          IntentKind `json:"intent"`
	Subreddit     string     `json:"subreddit"`
	NumPosts      int        `json:"num_posts"`
	CommentsLimit int        `json:"comments_limit"`
	SortCriteria  string     `json:"sort_criteria"`
	TimeFilter    string     `json:"time_filter"`
}

func (i Intent) hasParams() bool {
	return i.NumPosts > 0 || i.CommentsLimit > 0 || i.SortCriteria != "" || i.TimeFilter != ""
}

type IntentParser interface {
	Parse(ctx context.Context, message string) Intent
}

var (
	subredditRef     = regexp.MustCompile(`(?i)(?:^|[\s(])/?r/([A-Za-z0-9][A-Za-z0-9_]{1,20})\b`)
	subredditNamed   = regexp.MustCompile(`(?i)\bsubreddit\s+(?:r/)?([A-Za-z0-9][A-Za-z0-9_]{1,20})\b`)
	analyzeNamed     = regexp.MustCompile(`(?i)\banaly[sz]e\s+(?:r/)?([A-Za-z0-9][A-Za-z0-9_]{1,20})\b`)
	postsCount       = regexp.MustCompile(`(?i)\b(\d{1,4})\s*(?:posts?|threads?)\b`)
	commentsCount    = regexp.MustCompile(`(?i)\b(\d{1,4})\s*comments?\b`)
	sortWord         = regexp.MustCompile(`(?i)\b(top|new|hot|best|rising)\b`)
	timeWord         = regexp.MustCompile(`(?i)\b(hour|day|week|month|year)\b`)
	allTime          = regexp.MustCompile(`(?i)\ball[- ]?time\b`)
	cancelWords      = regexp.MustCompile(`(?i)\b(cancel|abort|stop|never ?mind|forget it)\b`)
	defaultWords     = regexp.MustCompile(`(?i)\b(defaults?|don'?t care|whatever|no preference|you choose|up to you)\b`)
	confirmWords     = regexp.MustCompile(`(?i)^\s*(yes|yep|yeah|y|ok|okay|sure|go|go ahead|start|let'?s go|confirm|do it)\b`)
	declineWords     = regexp.MustCompile(`(?i)^\s*(no|nope|skip|nah)\s*[.!]*\s*$`)
	analyzeWords     = regexp.MustCompile(`(?i)\b(analy[sz]e|analysis|scan|study)\b`)
	bareSubreddit    = regexp.MustCompile(`^\s*(?:r/)?([A-Za-z0-9][A-Za-z0-9_]{1,20})\s*[.!?]*\s*$`)
	notSubredditWord = []string{"the", "a", "an", "my", "this", "that", "it", "subreddit", "reddit", "community", "please", "some", "posts"}
)

// RuleParser extracts intents with regular expressions. It is the fallback of
// every other parser and works without a model.
type RuleParser struct{}

func (RuleParser) Parse(_ context.Context, message string) Intent {
	var in Intent

	if m := subredditRef.FindStringSubmatch(message); m != nil {
		in.Subreddit = m[1]
	} else if m := subredditNamed.FindStringSubmatch(message); m != nil {
		in.Subreddit = m[1]
	} else if m := analyzeNamed.FindStringSubmatch(message); m != nil && !slices.Contains(notSubredditWord, strings.ToLower(m[1])) {
		in.Subreddit = m[1]
	}

	if m := postsCount.FindStringSubmatch(message); m != nil {
		in.NumPosts, _ = strconv.Atoi(m[1])
	}
	if m := commentsCount.FindStringSubmatch(message); m != nil {
		in.CommentsLimit, _ = strconv.Atoi(m[1])
	}
	if m := sortWord.FindStringSubmatch(message); m != nil {
		in.SortCriteria = strings.ToLower(m[1])
	}
	if allTime.MatchString(message) {
		in.TimeFilter = consts.Time_All
	} else if m := timeWord.FindStringSubmatch(message); m != nil {
		in.TimeFilter = strings.ToLower(m[1])
	}

	switch {
	case cancelWords.MatchString(message):
		in.Kind = IntentCancel
	case defaultWords.MatchString(message) || declineWords.MatchString(message):
		in.Kind = IntentUseDefaults
	case confirmWords.MatchString(message):
		in.Kind = IntentConfirm
	case in.Subreddit != "" || analyzeWords.MatchString(message):
		in.Kind = IntentAnalyze
	case in.hasParams():
		in.Kind = IntentProvideParams
	default:
		in.Kind = IntentOther
	}
	return in
}

// bareName reads a message made of a single word as a subreddit name. It is
// only used while the router is waiting for one.
func bareName(message string) string {
	m := bareSubreddit.FindStringSubmatch(message)
	if m == nil || slices.Contains(notSubredditWord, strings.ToLower(m[1])) {
		return ""
	}
	if confirmWords.MatchString(message) || declineWords.MatchString(message) || cancelWords.MatchString(message) {
		return ""
	}
	return m[1]
}

// LLMParser asks the model for a JSON intent and falls back to the rules on
// any error or unusable reply.
type LLMParser struct {
	llm      agents.Completer
	prompt   string
	fallback IntentParser
}

func NewLLMParser(llm agents.Completer) *LLMParser {
	return &LLMParser{llm: llm, prompt: utils.MustLoadPrompt(utils.PromptIntent), fallback: RuleParser{}}
}

func (p *LLMParser) Parse(ctx context.Context, message string) Intent {
	reply, err := p.llm.Complete(ctx, p.prompt, message)
	if err != nil {
		log.WithError(err).Debug("intent model failed, using rules")
		return p.fallback.Parse(ctx, message)
	}
	var in Intent
	if err := processing.DecodeModelJSON(reply, &in); err != nil {
		log.WithError(err).Debug("intent reply unusable, using rules")
		return p.fallback.Parse(ctx, message)
	}
	return sanitize(in)
}

func sanitize(in Intent) Intent {
	switch in.Kind {
	case IntentAnalyze, IntentProvideParams, IntentConfirm, IntentUseDefaults, IntentCancel:
	default:
		in.Kind = IntentOther
	}
	in.Subreddit = dataflows.NormalizeSubreddit(in.Subreddit)
	if in.Subreddit != "" && !dataflows.ValidSubredditName(in.Subreddit) {
		in.Subreddit = ""
	}
	if in.NumPosts < 0 {
		in.NumPosts = 0
	}
	if in.CommentsLimit < 0 {
		in.CommentsLimit = 0
	}
	in.SortCriteria = strings.ToLower(strings.TrimSpace(in.SortCriteria))
	if !slices.Contains(consts.SortCriteria, in.SortCriteria) {
		in.SortCriteria = ""
	}
	in.TimeFilter = strings.ToLower(strings.TrimSpace(in.TimeFilter))
	if !slices.Contains(consts.TimeFilters, in.TimeFilter) {
		in.TimeFilter = ""
	}
	return in
}
