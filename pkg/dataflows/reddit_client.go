package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/consts"
	"github.com/dyike/PainRadar/models"
)

var (
	ErrInvalidSubreddit = errors.New("invalid subreddit name")
	ErrUpstream         = errors.New("reddit upstream failure")
	ErrAuth             = errors.New("reddit authentication failed")
)

const (
	maxBodyRunes        = 1000
	maxDescriptionRunes = 200
)

var subredditName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_]{1,20}$`)

// RedditClient handles Reddit API operations. With client credentials it
// talks to the OAuth host, otherwise to the public JSON endpoints.
type RedditClient struct {
	client   *resty.Client
	baseURL  string
	oauthURL string
	authURL  string
	clientID string
	secret   string

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewRedditClient creates a new Reddit client
func NewRedditClient(cfg *Config) *RedditClient {
	client := resty.New()
	client.SetTimeout(cfg.RequestTimeout())
	client.SetHeader("User-Agent", cfg.RedditUserAgent)
	client.SetRetryCount(cfg.RedditRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	return &RedditClient{
		client:   client,
		baseURL:  strings.TrimRight(cfg.RedditBaseURL, "/"),
		oauthURL: strings.TrimRight(cfg.RedditOAuthURL, "/"),
		authURL:  cfg.RedditAuthURL,
		clientID: cfg.RedditClientID,
		secret:   cfg.RedditSecret,
	}
}

// NormalizeSubreddit strips the r/ prefix and surrounding noise users type.
func NormalizeSubreddit(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	if len(name) > 2 && strings.EqualFold(name[:2], "r/") {
		name = name[2:]
	}
	return strings.Trim(name, "/ ")
}

func ValidSubredditName(name string) bool {
	return subredditName.MatchString(name)
}

// NormalizeFetchParams applies the adapter's clamping rules: counts are capped
// at 50 and non-positive counts fall back to the defaults, unknown sort
// criteria behave as "new" and unknown time windows as "month".
func NormalizeFetchParams(p models.FetchParams) models.FetchParams {
	p.Subreddit = NormalizeSubreddit(p.Subreddit)
	p.Limit = clamp(p.Limit, consts.DefaultNumPosts, consts.MaxPosts)
	p.CommentLimit = clamp(p.CommentLimit, consts.DefaultCommentsLimit, consts.MaxComments)

	p.Sort = strings.ToLower(strings.TrimSpace(p.Sort))
	if !slices.Contains(consts.SortCriteria, p.Sort) {
		p.Sort = consts.Sort_New
	}
	p.TimeFilter = strings.ToLower(strings.TrimSpace(p.TimeFilter))
	if !slices.Contains(consts.TimeFilters, p.TimeFilter) {
		p.TimeFilter = consts.DefaultTimeFilter
	}
	return p
}

func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// CheckExists looks the subreddit up. Private, banned and missing
// communities all come back with Exists=false and a reason in Error.
func (rc *RedditClient) CheckExists(ctx context.Context, name string) models.SubredditSnapshot {
	name = NormalizeSubreddit(name)
	snap := models.SubredditSnapshot{Name: name}
	if !ValidSubredditName(name) {
		snap.Error = ErrInvalidSubreddit.Error()
		return snap
	}

	resp, err := rc.get(ctx, fmt.Sprintf("/r/%s/about.json", name), url.Values{"raw_json": {"1"}})
	if err != nil {
		snap.Error = err.Error()
		return snap
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusNotFound:
		snap.Error = describeRedditError(resp)
		return snap
	default:
		snap.Error = fmt.Sprintf("%v: status %d", ErrUpstream, resp.StatusCode())
		return snap
	}

	var about RedditAbout
	if err := json.Unmarshal(resp.Body(), &about); err != nil || about.Kind != "t5" {
		// unknown names are redirected to a search listing
		snap.Error = "subreddit not found"
		return snap
	}
	if about.Data.SubredditType == "private" {
		snap.Error = "subreddit is private"
		return snap
	}
	if about.Data.Quarantine {
		snap.Error = "subreddit is quarantined"
		return snap
	}

	if about.Data.DisplayName != "" {
		snap.Name = about.Data.DisplayName
	}
	snap.Exists = true
	snap.Title = about.Data.Title
	snap.SubscriberCount = about.Data.Subscribers
	snap.Description = truncateRunes(about.Data.PublicDescription, maxDescriptionRunes)
	return snap
}

func describeRedditError(resp *resty.Response) string {
	var body redditError
	_ = json.Unmarshal(resp.Body(), &body)
	switch body.Reason {
	case "private":
		return "subreddit is private"
	case "banned":
		return "subreddit is banned"
	case "quarantined":
		return "subreddit is quarantined"
	}
	if resp.StatusCode() == http.StatusForbidden {
		return "subreddit is not accessible"
	}
	return "subreddit not found"
}

// FetchPosts returns up to params.Limit posts, each carrying up to
// params.CommentLimit comments. Comments are fetched post by post.
func (rc *RedditClient) FetchPosts(ctx context.Context, params models.FetchParams) ([]models.Post, error) {
	params = NormalizeFetchParams(params)
	if !ValidSubredditName(params.Subreddit) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubreddit, params.Subreddit)
	}

	query := url.Values{
		"limit":    {strconv.Itoa(params.Limit)},
		"raw_json": {"1"},
	}
	if params.Sort == consts.Sort_Top {
		query.Set("t", params.TimeFilter)
	}

	resp, err := rc.get(ctx, fmt.Sprintf("/r/%s/%s.json", params.Subreddit, params.Sort), query)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: listing r/%s returned status %d", ErrUpstream, params.Subreddit, resp.StatusCode())
	}

	var listing RedditListing
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, fmt.Errorf("%w: parse listing: %v", ErrUpstream, err)
	}

	posts := make([]models.Post, 0, params.Limit)
	for _, child := range listing.Data.Children {
		if len(posts) >= params.Limit {
			break
		}
		if child.Kind != "t3" { // t3 is the Reddit kind for posts
			continue
		}
		var data RedditPostData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: parse post: %v", ErrUpstream, err)
		}

		post := convertPost(data)
		comments, err := rc.fetchComments(ctx, data.ID, params.CommentLimit)
		if err != nil {
			return nil, err
		}
		post.Comments = comments
		posts = append(posts, post)
	}

	log.WithFields(log.Fields{
		"subreddit": params.Subreddit,
		"sort":      params.Sort,
		"posts":     len(posts),
	}).Debug("reddit posts fetched")
	return posts, nil
}

func (rc *RedditClient) fetchComments(ctx context.Context, postID string, limit int) ([]models.Comment, error) {
	query := url.Values{
		"limit":    {strconv.Itoa(min(limit*2, 100))},
		"raw_json": {"1"},
	}
	resp, err := rc.get(ctx, fmt.Sprintf("/comments/%s.json", postID), query)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: comments of %s returned status %d", ErrUpstream, postID, resp.StatusCode())
	}

	// [post listing, comment listing]
	var listings []RedditListing
	if err := json.Unmarshal(resp.Body(), &listings); err != nil {
		return nil, fmt.Errorf("%w: parse comments: %v", ErrUpstream, err)
	}
	if len(listings) < 2 {
		return []models.Comment{}, nil
	}
	return flattenComments(postID, listings[1].Data.Children, limit), nil
}

// flattenComments walks the reply tree breadth first and keeps the first
// limit comments that have a body. "more" stubs are not expanded.
func flattenComments(postID string, roots []RedditChild, limit int) []models.Comment {
	out := make([]models.Comment, 0, limit)
	queue := append([]RedditChild(nil), roots...)
	for len(queue) > 0 && len(out) < limit {
		child := queue[0]
		queue = queue[1:]
		if child.Kind != "t1" {
			continue
		}
		var data RedditCommentData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			continue
		}
		if len(data.Replies) > 0 && data.Replies[0] == '{' {
			var replies RedditListing
			if err := json.Unmarshal(data.Replies, &replies); err == nil {
				queue = append(queue, replies.Data.Children...)
			}
		}
		if strings.TrimSpace(data.Body) == "" {
			continue
		}
		out = append(out, models.Comment{
			ID:        data.ID,
			PostID:    postID,
			Author:    authorOrDeleted(data.Author),
			Body:      data.Body,
			Score:     data.Score,
			CreatedAt: time.Unix(int64(data.CreatedUTC), 0).UTC(),
		})
	}
	return out
}

func convertPost(data RedditPostData) models.Post {
	body := data.Selftext
	if body == "" && data.SelftextHTML != nil {
		body = HTMLToText(*data.SelftextHTML)
	}
	return models.Post{
		ID:           data.ID,
		Title:        data.Title,
		Author:       authorOrDeleted(data.Author),
		Score:        data.Score,
		UpvoteRatio:  data.UpvoteRatio,
		CommentCount: data.NumComments,
		CreatedAt:    time.Unix(int64(data.CreatedUTC), 0).UTC(),
		Permalink:    "https://reddit.com" + data.Permalink,
		Body:         truncateRunes(body, maxBodyRunes),
		Comments:     []models.Comment{},
	}
}

func authorOrDeleted(author string) string {
	if author == "" {
		return models.DeletedAuthor
	}
	return author
}

// get issues a GET against the anonymous host, or the OAuth host with a
// bearer token when credentials are configured.
func (rc *RedditClient) get(ctx context.Context, path string, query url.Values) (*resty.Response, error) {
	req := rc.client.R().SetContext(ctx).SetQueryParamsFromValues(query)
	base := rc.baseURL
	if rc.clientID != "" && rc.secret != "" {
		token, err := rc.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.SetAuthToken(token)
		base = rc.oauthURL
	}

	resp, err := req.Get(base + path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return resp, nil
}

func (rc *RedditClient) accessToken(ctx context.Context) (string, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.token != "" && time.Now().Before(rc.tokenExp) {
		return rc.token, nil
	}

	var tok tokenResponse
	resp, err := rc.client.R().
		SetContext(ctx).
		SetBasicAuth(rc.clientID, rc.secret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&tok).
		Post(rc.authURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if resp.StatusCode() != http.StatusOK || tok.AccessToken == "" {
		reason := tok.Error
		if reason == "" {
			reason = resp.Status()
		}
		return "", fmt.Errorf("%w: %s", ErrAuth, reason)
	}

	rc.token = tok.AccessToken
	// refresh a minute early
	rc.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return rc.token, nil
}
