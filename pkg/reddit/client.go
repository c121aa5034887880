package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"lemmylink/pkg/constants"
	"lemmylink/pkg/reddit/types"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	commentPageLimit      = 500
	moreChildrenBatchSize = 100
	maxExpansionRequests  = 50
	tokenRefreshMargin    = constants.DefaultTokenRefreshMarginSec * time.Second
)

// Config holds the credentials and endpoints of a script-type Reddit app
type Config struct {
	ClientID          string
	ClientSecret      string
	Username          string
	Password          string
	UserAgent         string
	APIBaseURL        string
	AuthURL           string
	WebBaseURL        string
	RequestsPerMinute int
	Timeout           time.Duration
}

// APIError is returned for any non-success response from Reddit
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reddit API error: status %d from %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

// Client talks to the Reddit OAuth API as a single bot account
type Client struct {
	cfg     Config
	client  *http.Client
	logger  *logrus.Logger
	limiter *rate.Limiter

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewClient(cfg Config, httpClient *http.Client, logger *logrus.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultHTTPTimeoutSec * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = constants.DefaultRedditRequestsPerMinute
	}
	cfg.APIBaseURL = strings.TrimSuffix(cfg.APIBaseURL, "/")
	cfg.WebBaseURL = strings.TrimSuffix(cfg.WebBaseURL, "/")

	return &Client{
		cfg:     cfg,
		client:  httpClient,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), constants.DefaultRedditBurst),
	}
}

// Username is the bot account the client acts as
func (c *Client) Username() string {
	return c.cfg.Username
}

// Authenticate fetches a fresh access token using the password grant
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.cfg.Username},
		"password":   {c.cfg.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &APIError{StatusCode: 0, Endpoint: c.cfg.AuthURL, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Endpoint: c.cfg.AuthURL, Body: truncate(string(body))}
	}

	var token types.TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.Error != "" || token.AccessToken == "" {
		return &APIError{StatusCode: http.StatusUnauthorized, Endpoint: c.cfg.AuthURL, Body: token.Error}
	}

	c.accessToken = token.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	c.logger.WithField("expires_in", token.ExpiresIn).Debug("Obtained Reddit access token")
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken == "" || time.Now().Add(tokenRefreshMargin).After(c.expiresAt) {
		if err := c.authenticateLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.accessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

// do performs an authenticated API call and decodes the JSON response into out.
// A 401 invalidates the token and the call is retried once.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values, out interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		status, err := c.doOnce(ctx, method, path, query, form, out)
		if status == http.StatusUnauthorized && attempt == 0 {
			c.logger.Debug("Reddit token rejected, re-authenticating")
			c.invalidateToken()
			continue
		}
		return err
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, query, form url.Values, out interface{}) (int, error) {
	token, err := c.token(ctx)
	if err != nil {
		return 0, err
	}

	endpoint := c.cfg.APIBaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &APIError{StatusCode: 0, Endpoint: path, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Endpoint: path, Body: truncate(string(bodyBytes))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// GetComments returns every comment of a thread, expanding "load more" and
// "continue this thread" placeholders until the tree is complete or the
// expansion budget is spent.
func (c *Client) GetComments(ctx context.Context, threadID string) ([]types.Comment, error) {
	threadID = types.StripKind(threadID)

	var listings []types.Listing
	query := url.Values{
		"limit":    {fmt.Sprint(commentPageLimit)},
		"sort":     {"old"},
		"raw_json": {"1"},
	}
	if err := c.do(ctx, http.MethodGet, "/comments/"+threadID, query, nil, &listings); err != nil {
		return nil, err
	}
	if len(listings) < 2 {
		return nil, fmt.Errorf("unexpected comments response for thread %s: %d listings", threadID, len(listings))
	}

	w := &treeWalker{
		client:   c,
		threadID: threadID,
		seen:     mapset.NewThreadUnsafeSet[string](),
	}
	w.walk(listings[1].Data.Children)

	requests := 0
	for (len(w.moreIDs) > 0 || len(w.continueParents) > 0) && requests < maxExpansionRequests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		requests++

		if len(w.moreIDs) > 0 {
			n := moreChildrenBatchSize
			if n > len(w.moreIDs) {
				n = len(w.moreIDs)
			}
			batch := w.moreIDs[:n]
			w.moreIDs = w.moreIDs[n:]
			if err := w.expandMore(ctx, batch); err != nil {
				return nil, err
			}
			continue
		}

		parent := w.continueParents[0]
		w.continueParents = w.continueParents[1:]
		if err := w.expandContinue(ctx, parent); err != nil {
			return nil, err
		}
	}

	if len(w.moreIDs) > 0 || len(w.continueParents) > 0 {
		c.logger.WithFields(logrus.Fields{
			"thread_id":          threadID,
			"unexpanded_more":    len(w.moreIDs),
			"unexpanded_threads": len(w.continueParents),
		}).Warn("Comment expansion budget exhausted; some comments were not loaded")
	}

	return w.comments, nil
}

type treeWalker struct {
	client          *Client
	threadID        string
	seen            mapset.Set[string]
	comments        []types.Comment
	moreIDs         []string
	continueParents []string
}

func (w *treeWalker) walk(children []types.Thing) {
	for _, child := range children {
		switch child.Kind {
		case types.KindComment:
			var data types.CommentData
			if err := json.Unmarshal(child.Data, &data); err != nil {
				w.client.logger.WithError(err).Warn("Skipping undecodable Reddit comment")
				continue
			}
			if w.seen.Add(data.ID) {
				w.comments = append(w.comments, w.client.toComment(data, w.threadID))
			}
			if replies, ok := data.RepliesListing(); ok {
				w.walk(replies.Data.Children)
			}
		case types.KindMore:
			var more types.MoreData
			if err := json.Unmarshal(child.Data, &more); err != nil {
				continue
			}
			if len(more.Children) == 0 {
				if more.ParentID != "" {
					w.continueParents = append(w.continueParents, types.StripKind(more.ParentID))
				}
				continue
			}
			for _, id := range more.Children {
				if !w.seen.Contains(id) {
					w.moreIDs = append(w.moreIDs, id)
				}
			}
		}
	}
}

func (w *treeWalker) expandMore(ctx context.Context, ids []string) error {
	query := url.Values{
		"api_type": {"json"},
		"link_id":  {types.KindLink + "_" + w.threadID},
		"children": {strings.Join(ids, ",")},
		"raw_json": {"1"},
	}

	var resp types.ThingsResponse
	if err := w.client.do(ctx, http.MethodGet, "/api/morechildren", query, nil, &resp); err != nil {
		return err
	}
	w.walk(resp.JSON.Data.Things)
	return nil
}

func (w *treeWalker) expandContinue(ctx context.Context, parentID string) error {
	query := url.Values{
		"comment":  {parentID},
		"limit":    {fmt.Sprint(commentPageLimit)},
		"raw_json": {"1"},
	}

	var listings []types.Listing
	if err := w.client.do(ctx, http.MethodGet, "/comments/"+w.threadID, query, nil, &listings); err != nil {
		return err
	}
	if len(listings) >= 2 {
		w.walk(listings[1].Data.Children)
	}
	return nil
}

// Reply posts text as a reply to the thing identified by fullname (t3_ for a thread, t1_ for a comment)
func (c *Client) Reply(ctx context.Context, fullname, text string) (*types.Comment, error) {
	form := url.Values{
		"api_type": {"json"},
		"thing_id": {fullname},
		"text":     {text},
	}

	var resp types.ThingsResponse
	if err := c.do(ctx, http.MethodPost, "/api/comment", nil, form, &resp); err != nil {
		return nil, err
	}

	if len(resp.JSON.Errors) > 0 {
		status := http.StatusBadRequest
		if len(resp.JSON.Errors[0]) > 0 && fmt.Sprint(resp.JSON.Errors[0][0]) == "RATELIMIT" {
			status = http.StatusTooManyRequests
		}
		return nil, &APIError{StatusCode: status, Endpoint: "/api/comment", Body: fmt.Sprint(resp.JSON.Errors)}
	}

	for _, thing := range resp.JSON.Data.Things {
		if thing.Kind != types.KindComment {
			continue
		}
		var data types.CommentData
		if err := json.Unmarshal(thing.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to decode created comment: %w", err)
		}
		comment := c.toComment(data, types.StripKind(data.LinkID))
		return &comment, nil
	}

	return nil, fmt.Errorf("reddit returned no comment for reply to %s", fullname)
}

// NewPosts lists the newest submissions of a subreddit, newest first
func (c *Client) NewPosts(ctx context.Context, subreddit string, limit int) ([]types.Post, error) {
	var listing types.Listing
	query := url.Values{"limit": {fmt.Sprint(limit)}, "raw_json": {"1"}}
	if err := c.do(ctx, http.MethodGet, "/r/"+subreddit+"/new", query, nil, &listing); err != nil {
		return nil, err
	}

	posts := make([]types.Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != types.KindLink {
			continue
		}
		var data types.LinkData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			continue
		}
		posts = append(posts, types.Post{
			ID:         data.ID,
			Title:      data.Title,
			Selftext:   data.Selftext,
			Author:     data.Author,
			Permalink:  c.absoluteURL(data.Permalink),
			URL:        data.URL,
			CreatedUTC: types.UnixTime(data.CreatedUTC),
		})
	}
	return posts, nil
}

// NewComments lists the newest comments across a subreddit, newest first
func (c *Client) NewComments(ctx context.Context, subreddit string, limit int) ([]types.StreamComment, error) {
	var listing types.Listing
	query := url.Values{"limit": {fmt.Sprint(limit)}, "raw_json": {"1"}}
	if err := c.do(ctx, http.MethodGet, "/r/"+subreddit+"/comments", query, nil, &listing); err != nil {
		return nil, err
	}

	comments := make([]types.StreamComment, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != types.KindComment {
			continue
		}
		var data types.CommentData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			continue
		}
		comments = append(comments, types.StreamComment{
			Comment:       c.toComment(data, types.StripKind(data.LinkID)),
			LinkTitle:     data.LinkTitle,
			LinkPermalink: c.absoluteURL(data.LinkPermalink),
			LinkURL:       data.LinkURL,
		})
	}
	return comments, nil
}

func (c *Client) toComment(data types.CommentData, threadID string) types.Comment {
	return types.Comment{
		ID:         data.ID,
		ThreadID:   threadID,
		ParentID:   data.ParentID,
		Author:     data.Author,
		Body:       data.Body,
		Permalink:  c.absoluteURL(data.Permalink),
		CreatedUTC: types.UnixTime(data.CreatedUTC),
	}
}

// absoluteURL turns a site-relative permalink into a full URL
func (c *Client) absoluteURL(permalink string) string {
	if permalink == "" || strings.HasPrefix(permalink, "http://") || strings.HasPrefix(permalink, "https://") {
		return permalink
	}
	return c.cfg.WebBaseURL + permalink
}

func truncate(s string) string {
	if len(s) > constants.MaxErrorBodyLogLength {
		return s[:constants.MaxErrorBodyLogLength] + "..."
	}
	return s
}
