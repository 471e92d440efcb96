package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/internal/agents"
	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/bridge"
	"github.com/dyike/PainRadar/pkg/dataflows"
)

// Notice is sent once an analysis is confirmed and before it runs.
const Notice = "Your analysis is in progress, I will send you the results as soon as possible."

var ErrNoSession = errors.New("session id is required")

type SubredditChecker interface {
	CheckExists(ctx context.Context, name string) models.SubredditSnapshot
}

type WorkflowRunner interface {
	Run(ctx context.Context, params models.AnalysisParams) models.WorkflowResult
}

type Notifier interface {
	Notify(topic string, payload string)
}

// Reply is the outcome of one message. When Report is set it is the whole
// answer and is returned untouched.
type Reply struct {
	Text   string
	Notice string
	Report *models.FinalReport
	State  consts.RouterState
	Params *models.AnalysisParams
	Result *models.WorkflowResult
}

func (r Reply) Response() string {
	if r.Report != nil {
		return r.Report.String()
	}
	return r.Text
}

// given tracks which parameters the user stated explicitly.
type given struct {
	posts, comments, sort, time bool
}

type session struct {
	state  consts.RouterState
	params models.AnalysisParams
	given  given
}

type Router struct {
	mu       sync.Mutex
	sessions map[string]*session

	parser    IntentParser
	checker   SubredditChecker
	runner    WorkflowRunner
	assistant agents.Assistant
	notifier  Notifier
}

type Option func(*Router)

func WithParser(p IntentParser) Option { return func(r *Router) { r.parser = p } }

func WithAssistant(a agents.Assistant) Option { return func(r *Router) { r.assistant = a } }

func WithNotifier(n Notifier) Option { return func(r *Router) { r.notifier = n } }

func New(checker SubredditChecker, runner WorkflowRunner, opts ...Option) *Router {
	r := &Router{
		sessions:  make(map[string]*session),
		parser:    RuleParser{},
		checker:   checker,
		runner:    runner,
		assistant: agents.StaticAssistant{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State reports where a session currently is.
func (r *Router) State(sessionID string) consts.RouterState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		return s.state
	}
	return consts.State_Idle
}

// Reset forgets the conversation state of a session.
func (r *Router) Reset(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

func (r *Router) session(sessionID string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		s = &session{state: consts.State_Idle}
		r.sessions[sessionID] = s
	}
	return s
}

func (r *Router) setState(sessionID string, s *session, state consts.RouterState) {
	r.mu.Lock()
	from := s.state
	s.state = state
	r.mu.Unlock()
	log.WithFields(log.Fields{"session_id": sessionID, "from": from, "to": state}).Debug("router transition")
}

// Handle processes one user message. Callers serialize messages of the same
// session; different sessions may be handled concurrently.
func (r *Router) Handle(ctx context.Context, sessionID, message string, history []models.ConversationTurn) (Reply, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Reply{}, ErrNoSession
	}
	s := r.session(sessionID)
	intent := r.parser.Parse(ctx, message)

	switch r.State(sessionID) {
	case consts.State_CollectingParams:
		return r.collect(ctx, sessionID, s, message, intent)
	default:
		if intent.Kind == IntentCancel {
			return r.idle(sessionID, s, "There is no analysis in progress.")
		}
		if intent.Subreddit == "" && intent.Kind != IntentAnalyze {
			return r.converse(ctx, sessionID, s, message, history)
		}
		s.params = models.AnalysisParams{}
		s.given = given{}
		return r.collect(ctx, sessionID, s, message, intent)
	}
}

// Start runs an analysis whose parameters are already known, as the
// /analyze endpoint does. Missing values take the defaults.
func (r *Router) Start(ctx context.Context, sessionID string, params models.AnalysisParams) (Reply, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Reply{}, ErrNoSession
	}
	s := r.session(sessionID)
	name := dataflows.NormalizeSubreddit(params.Subreddit)
	snapshot := r.checker.CheckExists(ctx, name)
	if !snapshot.Exists {
		return r.idle(sessionID, s, notFoundText(name, snapshot))
	}
	s.params = params
	s.params.Subreddit = snapshot.Name
	s.params = s.params.WithDefaults()
	return r.run(ctx, sessionID, s)
}

func (r *Router) converse(ctx context.Context, sessionID string, s *session, message string, history []models.ConversationTurn) (Reply, error) {
	text, err := r.assistant.Reply(ctx, history, message)
	if err != nil {
		log.WithError(err).WithField("session_id", sessionID).Warn("assistant failed")
		text = agents.HelpText
	}
	return Reply{Text: text, State: s.state}, nil
}

func (r *Router) collect(ctx context.Context, sessionID string, s *session, message string, in Intent) (Reply, error) {
	if in.Kind == IntentCancel {
		return r.idle(sessionID, s, "Analysis cancelled. Name another subreddit whenever you like.")
	}

	name := in.Subreddit
	if name == "" && s.params.Subreddit == "" {
		name = bareName(message)
	}
	if name != "" && !strings.EqualFold(name, s.params.Subreddit) {
		snapshot := r.checker.CheckExists(ctx, name)
		if !snapshot.Exists {
			return r.idle(sessionID, s, notFoundText(name, snapshot))
		}
		s.params = models.AnalysisParams{Subreddit: snapshot.Name}
		s.given = given{}
	}
	merge(s, in)

	if s.params.Subreddit == "" {
		r.setState(sessionID, s, consts.State_CollectingParams)
		return Reply{Text: "Which subreddit should I analyse? For example: r/smallbusiness", State: s.state}, nil
	}

	if in.Kind == IntentUseDefaults || in.Kind == IntentConfirm || s.complete() {
		s.params = s.params.WithDefaults()
		return r.run(ctx, sessionID, s)
	}

	r.setState(sessionID, s, consts.State_CollectingParams)
	params := s.params
	return Reply{Text: askParams(s), State: s.state, Params: &params}, nil
}

func (r *Router) run(ctx context.Context, sessionID string, s *session) (Reply, error) {
	r.setState(sessionID, s, consts.State_Confirmed)
	params := s.params
	if r.notifier != nil {
		r.notifier.Notify(bridge.NoticeTopic(sessionID), Notice)
	}

	r.setState(sessionID, s, consts.State_AwaitingWorkflow)
	result := r.runner.Run(ctx, params)

	r.setState(sessionID, s, consts.State_Presenting)
	reply := Reply{Notice: Notice, Params: &params, Result: &result}
	if result.Success {
		report := result.Report
		reply.Report = &report
	} else {
		reply.Text = fmt.Sprintf("The analysis of r/%s failed during %s: %s", params.Subreddit, stageLabel(result.FailedStage), result.ErrorMessage)
	}

	s.params = models.AnalysisParams{}
	s.given = given{}
	r.setState(sessionID, s, consts.State_Idle)
	reply.State = consts.State_Idle
	return reply, nil
}

func (r *Router) idle(sessionID string, s *session, text string) (Reply, error) {
	s.params = models.AnalysisParams{}
	s.given = given{}
	r.setState(sessionID, s, consts.State_Idle)
	return Reply{Text: text, State: consts.State_Idle}, nil
}

func merge(s *session, in Intent) {
	if in.NumPosts > 0 {
		s.params.NumPosts = in.NumPosts
		s.given.posts = true
	}
	if in.CommentsLimit > 0 {
		s.params.CommentsLimit = in.CommentsLimit
		s.given.comments = true
	}
	if in.SortCriteria != "" {
		s.params.SortCriteria = in.SortCriteria
		s.given.sort = true
	}
	if in.TimeFilter != "" {
		s.params.TimeFilter = in.TimeFilter
		s.given.time = true
	}
}

// complete reports whether nothing is left to ask. The time window only
// matters for the top sort.
func (s *session) complete() bool {
	g := s.given
	if !g.posts || !g.comments || !g.sort {
		return false
	}
	return g.time || s.params.SortCriteria != consts.Sort_Top
}
