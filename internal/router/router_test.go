package router

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/models"
	"github.com/dyike/PainRadar/pkg/bridge"
)

type fakeChecker struct {
	known   map[string]bool
	checked []string
}

func (f *fakeChecker) CheckExists(_ context.Context, name string) models.SubredditSnapshot {
	f.checked = append(f.checked, name)
	if f.known[strings.ToLower(name)] {
		return models.SubredditSnapshot{Name: strings.ToLower(name), Exists: true}
	}
	return models.SubredditSnapshot{Name: name, Error: "subreddit not found"}
}

// timeline records notices and runs in the order they happen.
type timeline struct {
	mu     sync.Mutex
	events []string
}

func (tl *timeline) add(ev string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.events = append(tl.events, ev)
}

type fakeRunner struct {
	tl     *timeline
	result models.WorkflowResult
	params []models.AnalysisParams
}

func (f *fakeRunner) Run(_ context.Context, p models.AnalysisParams) models.WorkflowResult {
	f.tl.add("run")
	f.params = append(f.params, p)
	return f.result
}

type fakeNotifier struct {
	tl     *timeline
	topics []string
}

func (f *fakeNotifier) Notify(topic, payload string) {
	f.tl.add("notice:" + payload)
	f.topics = append(f.topics, topic)
}

type fakeAssistant struct{ got []string }

func (f *fakeAssistant) Reply(_ context.Context, history []models.ConversationTurn, message string) (string, error) {
	f.got = append(f.got, message)
	return "assistant says hi", nil
}

type fixture struct {
	router    *Router
	checker   *fakeChecker
	runner    *fakeRunner
	notifier  *fakeNotifier
	assistant *fakeAssistant
	tl        *timeline
}

const reportText = "Here is the analysis report for subreddit r/smallbusiness:\n  keep   this spacing  \n"

func newFixture() *fixture {
	tl := &timeline{}
	f := &fixture{
		checker:   &fakeChecker{known: map[string]bool{"smallbusiness": true, "startups": true}},
		runner:    &fakeRunner{tl: tl, result: models.WorkflowResult{Success: true, Report: models.NewFinalReport(reportText)}},
		notifier:  &fakeNotifier{tl: tl},
		assistant: &fakeAssistant{},
		tl:        tl,
	}
	f.router = New(f.checker, f.runner, WithNotifier(f.notifier), WithAssistant(f.assistant))
	return f
}

func (f *fixture) send(t *testing.T, session, msg string) Reply {
	t.Helper()
	reply, err := f.router.Handle(context.Background(), session, msg, nil)
	if err != nil {
		t.Fatalf("Handle(%q): %v", msg, err)
	}
	return reply
}

func TestRouterRunsWhenAllParamsGiven(t *testing.T) {
	f := newFixture()
	reply := f.send(t, "s1", "analyze r/smallbusiness with 10 posts, 3 comments, sorted by top of the week")

	if len(f.runner.params) != 1 {
		t.Fatalf("expected one run, got %d", len(f.runner.params))
	}
	want := models.AnalysisParams{Subreddit: "smallbusiness", NumPosts: 10, CommentsLimit: 3, SortCriteria: "top", TimeFilter: "week"}
	if f.runner.params[0] != want {
		t.Fatalf("ran with %+v, want %+v", f.runner.params[0], want)
	}
	if len(f.tl.events) != 2 || f.tl.events[0] != "notice:"+Notice || f.tl.events[1] != "run" {
		t.Fatalf("notice must precede the workflow: %v", f.tl.events)
	}
	if f.notifier.topics[0] != bridge.NoticeTopic("s1") {
		t.Fatalf("notice published on %s", f.notifier.topics[0])
	}
	if reply.Response() != reportText {
		t.Fatalf("report was altered: %q", reply.Response())
	}
	if reply.Notice != Notice || reply.State != consts.State_Idle || f.router.State("s1") != consts.State_Idle {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestRouterUnknownSubreddit(t *testing.T) {
	f := newFixture()
	reply := f.send(t, "s1", "please analyze r/doesnotexist123")

	if len(f.runner.params) != 0 || len(f.tl.events) != 0 {
		t.Fatalf("workflow must not run for a missing subreddit")
	}
	if !strings.HasPrefix(reply.Text, "r/doesnotexist123 does not exist or is not accessible.") || !strings.Contains(reply.Text, "subreddit not found") {
		t.Fatalf("unexpected text %q", reply.Text)
	}
	if reply.State != consts.State_Idle {
		t.Fatalf("expected idle, got %s", reply.State)
	}
}

func TestRouterCollectsMissingParams(t *testing.T) {
	f := newFixture()
	reply := f.send(t, "s1", "analyze r/smallbusiness with 20 posts")
	if reply.State != consts.State_CollectingParams || f.router.State("s1") != consts.State_CollectingParams {
		t.Fatalf("expected collecting state, got %s", reply.State)
	}
	if strings.Contains(reply.Text, "how many posts") || !strings.Contains(reply.Text, "comments per post") || !strings.Contains(reply.Text, "rising:") {
		t.Fatalf("question should only ask for missing values and explain sorting: %q", reply.Text)
	}

	reply = f.send(t, "s1", "hot please")
	if reply.State != consts.State_CollectingParams {
		t.Fatalf("comments still missing, expected to keep collecting: %s", reply.State)
	}
	if strings.Contains(reply.Text, "period for top") {
		t.Fatalf("period is irrelevant for hot: %q", reply.Text)
	}

	reply = f.send(t, "s1", "use the defaults for the rest")
	want := models.AnalysisParams{Subreddit: "smallbusiness", NumPosts: 20, CommentsLimit: 5, SortCriteria: "hot", TimeFilter: "month"}
	if len(f.runner.params) != 1 || f.runner.params[0] != want {
		t.Fatalf("ran with %+v, want %+v", f.runner.params, want)
	}
	if reply.Response() != reportText {
		t.Fatalf("unexpected response %q", reply.Response())
	}
}

func TestRouterDeclineUsesDefaults(t *testing.T) {
	f := newFixture()
	f.send(t, "s1", "can you analyze r/startups?")
	f.send(t, "s1", "no")
	want := models.AnalysisParams{Subreddit: "startups", NumPosts: 5, CommentsLimit: 5, SortCriteria: "top", TimeFilter: "month"}
	if len(f.runner.params) != 1 || f.runner.params[0] != want {
		t.Fatalf("ran with %+v, want defaults %+v", f.runner.params, want)
	}
}

func TestRouterAsksForSubreddit(t *testing.T) {
	f := newFixture()
	reply := f.send(t, "s1", "I would like an analysis")
	if reply.State != consts.State_CollectingParams || !strings.Contains(reply.Text, "Which subreddit") {
		t.Fatalf("unexpected reply %+v", reply)
	}
	reply = f.send(t, "s1", "smallbusiness")
	if reply.State != consts.State_CollectingParams || !strings.Contains(reply.Text, "r/smallbusiness is available") {
		t.Fatalf("bare name not taken as subreddit: %+v", reply)
	}
	f.send(t, "s1", "yes")
	if len(f.runner.params) != 1 || f.runner.params[0].Subreddit != "smallbusiness" {
		t.Fatalf("unexpected runs %+v", f.runner.params)
	}
}

func TestRouterCancel(t *testing.T) {
	f := newFixture()
	f.send(t, "s1", "analyze r/startups")
	reply := f.send(t, "s1", "cancel")
	if reply.State != consts.State_Idle || len(f.runner.params) != 0 {
		t.Fatalf("cancel did not return to idle: %+v", reply)
	}
}

func TestRouterOtherMessagesGoToAssistant(t *testing.T) {
	f := newFixture()
	reply := f.send(t, "s1", "hello, what can you do?")
	if reply.Text != "assistant says hi" || len(f.assistant.got) != 1 {
		t.Fatalf("assistant not consulted: %+v", reply)
	}
	if len(f.checker.checked) != 0 {
		t.Fatalf("no subreddit should be checked")
	}
}

func TestRouterWorkflowFailure(t *testing.T) {
	f := newFixture()
	f.runner.result = models.WorkflowResult{FailedStage: consts.PainAnalysisStage, ErrorMessage: "model unreachable"}
	reply := f.send(t, "s1", "analyze r/startups, defaults are fine")

	if reply.Report != nil {
		t.Fatalf("no report expected on failure")
	}
	if reply.Text != "The analysis of r/startups failed during pain analysis: model unreachable" {
		t.Fatalf("unexpected text %q", reply.Text)
	}
	if f.router.State("s1") != consts.State_Idle {
		t.Fatalf("router must return to idle")
	}
}

func TestRouterSessionsAreIndependent(t *testing.T) {
	f := newFixture()
	f.send(t, "a", "analyze r/startups")
	if f.router.State("a") != consts.State_CollectingParams || f.router.State("b") != consts.State_Idle {
		t.Fatalf("sessions leaked state")
	}
	f.router.Reset("a")
	if f.router.State("a") != consts.State_Idle {
		t.Fatalf("reset did not clear the session")
	}
}

func TestRouterStart(t *testing.T) {
	f := newFixture()
	reply, err := f.router.Start(context.Background(), "analysis_startups", models.AnalysisParams{Subreddit: "r/startups", NumPosts: 8})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	want := models.AnalysisParams{Subreddit: "startups", NumPosts: 8, CommentsLimit: 5, SortCriteria: "top", TimeFilter: "month"}
	if len(f.runner.params) != 1 || f.runner.params[0] != want {
		t.Fatalf("ran with %+v", f.runner.params)
	}
	if reply.Response() != reportText {
		t.Fatalf("unexpected response %q", reply.Response())
	}

	reply, _ = f.router.Start(context.Background(), "analysis_x", models.AnalysisParams{Subreddit: "nowhere"})
	if !strings.Contains(reply.Text, "does not exist") || len(f.runner.params) != 1 {
		t.Fatalf("missing subreddit must not run: %+v", reply)
	}
}

func TestRouterRequiresSession(t *testing.T) {
	f := newFixture()
	if _, err := f.router.Handle(context.Background(), " ", "hi", nil); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
