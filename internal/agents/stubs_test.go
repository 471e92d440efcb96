package agents

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dyike/PainRadar/models"
)

// scriptedCompleter replays canned replies in order and records every call.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   []completion
}

type completion struct {
	system string
	input  string
}

func (s *scriptedCompleter) Complete(_ context.Context, system, input string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, completion{system, input})
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply left")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

type memorySolutions struct {
	mu   sync.Mutex
	rows map[string]models.ExceptionalSolution
	err  error
}

func newMemorySolutions() *memorySolutions {
	return &memorySolutions{rows: map[string]models.ExceptionalSolution{}}
}

func (m *memorySolutions) UpsertSolution(_ context.Context, sol *models.ExceptionalSolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	sol.ID = int64(len(m.rows) + 1)
	sol.CreatedAt = time.Now().UTC()
	m.rows[sol.CommentID] = *sol
	return nil
}

func (m *memorySolutions) QuerySolutions(context.Context, string, int) ([]models.ExceptionalSolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ExceptionalSolution, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

type fakeSource struct {
	posts  []models.Post
	err    error
	params []models.FetchParams
}

func (f *fakeSource) CheckExists(_ context.Context, name string) models.SubredditSnapshot {
	return models.SubredditSnapshot{Name: name, Exists: true}
}

func (f *fakeSource) FetchPosts(_ context.Context, p models.FetchParams) ([]models.Post, error) {
	f.params = append(f.params, p)
	return f.posts, f.err
}

func samplePosts() []models.Post {
	return []models.Post{
		{
			ID: "p1", Title: "Invoicing is a nightmare", Author: "owner1", Score: 120, CommentCount: 3,
			Comments: []models.Comment{
				{ID: "c1", PostID: "p1", Author: "helper", Body: "Use a recurring invoice template and automate reminders.", Score: 45},
				{ID: "c2", PostID: "p1", Author: "lurker", Body: "same here", Score: 10},
			},
		},
		{
			ID: "p2", Title: "Where do you find clients?", Author: "owner2", Score: 30, CommentCount: 1,
			Comments: []models.Comment{
				{ID: "c3", PostID: "p2", Author: "marketer", Body: "Cold email with a tight niche works.", Score: 11},
			},
		},
	}
}
