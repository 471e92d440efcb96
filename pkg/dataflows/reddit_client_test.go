package dataflows

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dyike/PainRadar/config"
	"github.com/dyike/PainRadar/models"
)

type fakeReddit struct {
	mu       sync.Mutex
	requests []*http.Request
	server   *httptest.Server
}

func newFakeReddit(t *testing.T) *fakeReddit {
	t.Helper()
	f := &fakeReddit{}
	mux := http.NewServeMux()
	mux.HandleFunc("/r/golang/about.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"kind":"t5","data":{"display_name":"golang","title":"The Go Programming Language",
			"public_description":"`+strings.Repeat("g", 250)+`","subscribers":250000,"subreddit_type":"public"}}`)
	})
	mux.HandleFunc("/r/secretclub/about.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"reason":"private","message":"Forbidden","error":403}`)
	})
	mux.HandleFunc("/r/gone/about.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"reason":"banned","message":"Not Found","error":404}`)
	})
	mux.HandleFunc("/r/nothere/about.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"kind":"Listing","data":{"children":[]}}`)
	})
	mux.HandleFunc("/r/golang/", func(w http.ResponseWriter, r *http.Request) {
		var children []string
		for i := 1; i <= 3; i++ {
			children = append(children, fmt.Sprintf(`{"kind":"t3","data":{"id":"p%d","title":"Post %d","author":"",
				"selftext":"","selftext_html":"<div class=\"md\"><p>Hello <b>world</b> %d</p><p>second</p></div>",
				"permalink":"/r/golang/comments/p%d/x/","score":%d,"upvote_ratio":0.9,"num_comments":4,"created_utc":1700000000}}`,
				i, i, i, i, i*10))
		}
		writeJSON(w, http.StatusOK, `{"kind":"Listing","data":{"children":[`+strings.Join(children, ",")+`]}}`)
	})
	mux.HandleFunc("/comments/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/comments/"), ".json")
		writeJSON(w, http.StatusOK, `[{"kind":"Listing","data":{"children":[]}},
			{"kind":"Listing","data":{"children":[
				{"kind":"t1","data":{"id":"`+id+`c1","author":"alice","body":"use a queue","score":15,"created_utc":1700000100,
					"replies":{"kind":"Listing","data":{"children":[
						{"kind":"t1","data":{"id":"`+id+`c3","author":"carol","body":"nested","score":2,"created_utc":1700000300,"replies":""}}]}}}},
				{"kind":"t1","data":{"id":"`+id+`cx","author":"[deleted]","body":"","score":0,"created_utc":1700000150,"replies":""}},
				{"kind":"t1","data":{"id":"`+id+`c2","author":"","body":"same here","score":3,"created_utc":1700000200,"replies":""}},
				{"kind":"more","data":{"count":12,"children":["a","b"]}}
			]}}]`)
	})

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Clone(context.Background()))
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeReddit) find(prefix string) *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return r
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func testClient(t *testing.T, baseURL string) *RedditClient {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.RedditBaseURL = baseURL
	cfg.RedditRetries = 0
	return NewRedditClient(cfg)
}

func TestCheckExists(t *testing.T) {
	fake := newFakeReddit(t)
	client := testClient(t, fake.server.URL)
	ctx := context.Background()

	snap := client.CheckExists(ctx, "r/golang")
	if !snap.Exists || snap.Error != "" {
		t.Fatalf("expected golang to exist, got %+v", snap)
	}
	if snap.SubscriberCount != 250000 || snap.Title != "The Go Programming Language" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if got := len([]rune(snap.Description)); got != 203 || !strings.HasSuffix(snap.Description, "...") {
		t.Fatalf("description not truncated to 200 runes: %d", got)
	}
	if ua := fake.find("/r/golang/about.json").Header.Get("User-Agent"); ua != "RedditAnalysisSaaS/1.0" {
		t.Fatalf("unexpected user agent %q", ua)
	}

	cases := map[string]string{
		"secretclub": "subreddit is private",
		"gone":       "subreddit is banned",
		"nothere":    "subreddit not found",
		"bad name!":  ErrInvalidSubreddit.Error(),
	}
	for name, wantErr := range cases {
		snap := client.CheckExists(ctx, name)
		if snap.Exists {
			t.Fatalf("%s: expected exists=false", name)
		}
		if snap.Error != wantErr {
			t.Fatalf("%s: expected error %q, got %q", name, wantErr, snap.Error)
		}
	}
}

func TestCheckExistsUnreachable(t *testing.T) {
	client := testClient(t, "http://127.0.0.1:1")
	snap := client.CheckExists(context.Background(), "golang")
	if snap.Exists || snap.Error == "" {
		t.Fatalf("expected soft failure, got %+v", snap)
	}
}

func TestFetchPosts(t *testing.T) {
	fake := newFakeReddit(t)
	client := testClient(t, fake.server.URL)

	posts, err := client.FetchPosts(context.Background(), models.FetchParams{
		Subreddit:    "golang",
		Limit:        2,
		Sort:         "top",
		CommentLimit: 3,
		TimeFilter:   "week",
	})
	if err != nil {
		t.Fatalf("FetchPosts: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}

	listing := fake.find("/r/golang/top.json")
	if listing == nil {
		t.Fatalf("top listing not requested")
	}
	if got := listing.URL.Query().Get("t"); got != "week" {
		t.Fatalf("expected time filter week, got %q", got)
	}
	if got := listing.URL.Query().Get("limit"); got != "2" {
		t.Fatalf("expected limit 2, got %q", got)
	}

	p := posts[0]
	if p.Author != models.DeletedAuthor {
		t.Fatalf("expected deleted author sentinel, got %q", p.Author)
	}
	if p.Body != "Hello world 1\nsecond" {
		t.Fatalf("unexpected body from html: %q", p.Body)
	}
	if p.Permalink != "https://reddit.com/r/golang/comments/p1/x/" {
		t.Fatalf("unexpected permalink %q", p.Permalink)
	}

	// breadth first, empty bodies skipped
	if len(p.Comments) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(p.Comments))
	}
	wantIDs := []string{"p1c1", "p1c2", "p1c3"}
	for i, c := range p.Comments {
		if c.ID != wantIDs[i] {
			t.Fatalf("comment %d: expected %s, got %s", i, wantIDs[i], c.ID)
		}
		if c.PostID != "p1" {
			t.Fatalf("comment %s has post id %q", c.ID, c.PostID)
		}
	}
	if p.Comments[1].Author != models.DeletedAuthor {
		t.Fatalf("expected deleted sentinel for blank comment author, got %q", p.Comments[1].Author)
	}
}

func TestFetchPostsUnknownSortFallsBackToNew(t *testing.T) {
	fake := newFakeReddit(t)
	client := testClient(t, fake.server.URL)

	if _, err := client.FetchPosts(context.Background(), models.FetchParams{
		Subreddit: "golang", Limit: 1, Sort: "controversial", CommentLimit: 1, TimeFilter: "year",
	}); err != nil {
		t.Fatalf("FetchPosts: %v", err)
	}
	req := fake.find("/r/golang/new.json")
	if req == nil {
		t.Fatalf("expected fallback to new listing")
	}
	if req.URL.Query().Has("t") {
		t.Fatalf("time filter must only be sent for top")
	}
}

func TestFetchPostsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, `{}`)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)
	_, err := client.FetchPosts(context.Background(), models.FetchParams{Subreddit: "golang"})
	if err == nil || !strings.Contains(err.Error(), ErrUpstream.Error()) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestNormalizeFetchParams(t *testing.T) {
	cases := []struct {
		in   models.FetchParams
		want models.FetchParams
	}{
		{
			in:   models.FetchParams{Subreddit: " r/Go ", Limit: 500, CommentLimit: 51, Sort: "TOP", TimeFilter: "Week"},
			want: models.FetchParams{Subreddit: "Go", Limit: 50, CommentLimit: 50, Sort: "top", TimeFilter: "week"},
		},
		{
			in:   models.FetchParams{Subreddit: "go", Limit: 0, CommentLimit: -1, Sort: "weird", TimeFilter: "decade"},
			want: models.FetchParams{Subreddit: "go", Limit: 5, CommentLimit: 5, Sort: "new", TimeFilter: "month"},
		},
	}
	for _, tc := range cases {
		if got := NormalizeFetchParams(tc.in); got != tc.want {
			t.Fatalf("NormalizeFetchParams(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestOAuthTokenIsReused(t *testing.T) {
	var tokenCalls int
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tokenCalls++
		mu.Unlock()
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_grant"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/r/golang/about.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			writeJSON(w, http.StatusUnauthorized, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"kind":"t5","data":{"display_name":"golang","subscribers":1}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.RedditOAuthURL = srv.URL
	cfg.RedditAuthURL = srv.URL + "/api/v1/access_token"
	cfg.RedditClientID = "id"
	cfg.RedditSecret = "secret"
	cfg.RedditRetries = 0
	client := NewRedditClient(cfg)

	for i := 0; i < 3; i++ {
		if snap := client.CheckExists(context.Background(), "golang"); !snap.Exists {
			t.Fatalf("expected exists with oauth, got %+v", snap)
		}
	}
	if tokenCalls != 1 {
		t.Fatalf("expected one token request, got %d", tokenCalls)
	}
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText("&lt;div class=\"md\"&gt;&lt;ul&gt;&lt;li&gt;one&lt;/li&gt;&lt;li&gt;two  items&lt;/li&gt;&lt;/ul&gt;&lt;/div&gt;")
	if got != "one\ntwo items" {
		t.Fatalf("unexpected text %q", got)
	}
}
