package lemmy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"lemmylink/pkg/constants"
	"lemmylink/pkg/lemmy/types"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	commentPageSize = 50
	maxCommentPages = 100
)

// APIError is returned for any non-success response from a Lemmy instance
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lemmy API error: status %d from %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// Config holds the instance URL and bot credentials
type Config struct {
	BaseURL           string
	Username          string
	Password          string
	RequestsPerSecond int
	Timeout           time.Duration
}

// Client talks to the Lemmy v3 HTTP API as a single bot account
type Client struct {
	cfg     Config
	client  *http.Client
	logger  *logrus.Logger
	limiter *rate.Limiter

	mu  sync.RWMutex
	jwt string
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
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = constants.DefaultLemmyRequestsPerSecond
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &Client{
		cfg:     cfg,
		client:  httpClient,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(time.Second/time.Duration(cfg.RequestsPerSecond)), cfg.RequestsPerSecond),
	}
}

func (c *Client) Username() string {
	return c.cfg.Username
}

// BaseURL is the instance root, without a trailing slash
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// PostURL is the browser URL of a post
func (c *Client) PostURL(postID int64) string {
	return fmt.Sprintf("%s/post/%d", c.cfg.BaseURL, postID)
}

// Login exchanges the configured credentials for a JWT
func (c *Client) Login(ctx context.Context) error {
	var resp types.LoginResponse
	req := types.LoginRequest{UsernameOrEmail: c.cfg.Username, Password: c.cfg.Password}
	if _, err := c.doOnce(ctx, http.MethodPost, "/api/v3/user/login", nil, req, &resp, ""); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message == "incorrect_login" {
			apiErr.StatusCode = http.StatusUnauthorized
		}
		return err
	}
	if resp.JWT == "" {
		return &APIError{StatusCode: http.StatusUnauthorized, Endpoint: "/api/v3/user/login", Message: "no jwt in login response"}
	}

	c.mu.Lock()
	c.jwt = resp.JWT
	c.mu.Unlock()

	c.logger.WithField("username", c.cfg.Username).Debug("Logged in to Lemmy")
	return nil
}

// do performs an authenticated call, logging in first if needed and once more on a 401
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	relogged := false
	for {
		c.mu.RLock()
		jwt := c.jwt
		c.mu.RUnlock()

		if jwt == "" {
			if err := c.Login(ctx); err != nil {
				return err
			}
			relogged = true
			continue
		}

		status, err := c.doOnce(ctx, method, path, query, payload, out, jwt)
		if status == http.StatusUnauthorized && !relogged {
			c.logger.Debug("Lemmy session rejected, logging in again")
			c.mu.Lock()
			if c.jwt == jwt {
				c.jwt = ""
			}
			c.mu.Unlock()
			continue
		}
		return err
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, payload, out interface{}, jwt string) (int, error) {
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if jwt != "" {
		req.Header.Set("Authorization", "Bearer "+jwt)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &APIError{StatusCode: 0, Endpoint: path, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		msg := string(bodyBytes)
		var errResp types.ErrorResponse
		status := resp.StatusCode
		if json.Unmarshal(bodyBytes, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
			if strings.HasPrefix(errResp.Error, "couldnt_find_") {
				status = http.StatusNotFound
			}
		}
		return status, &APIError{StatusCode: status, Endpoint: path, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// CreatePost creates a post in a community and returns its id
func (c *Client) CreatePost(ctx context.Context, communityID int64, name, body string) (int64, error) {
	var resp types.PostResponse
	req := types.CreatePostRequest{CommunityID: communityID, Name: name, Body: body}
	if err := c.do(ctx, http.MethodPost, "/api/v3/post", nil, req, &resp); err != nil {
		return 0, err
	}
	return resp.PostView.Post.ID, nil
}

// CreateComment posts a comment on a post, optionally as a reply to parentID
func (c *Client) CreateComment(ctx context.Context, postID int64, content string, parentID *int64) (*types.CommentView, error) {
	var resp types.CommentResponse
	req := types.CreateCommentRequest{PostID: postID, Content: content, ParentID: parentID}
	if err := c.do(ctx, http.MethodPost, "/api/v3/comment", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp.CommentView, nil
}

// ListComments returns every comment on a post, oldest first.
// A post that does not exist yields an empty list.
func (c *Client) ListComments(ctx context.Context, postID int64) ([]types.CommentView, error) {
	var all []types.CommentView

	for page := 1; page <= maxCommentPages; page++ {
		query := url.Values{
			"post_id": {strconv.FormatInt(postID, 10)},
			"limit":   {strconv.Itoa(commentPageSize)},
			"page":    {strconv.Itoa(page)},
			"sort":    {"Old"},
			"type_":   {"All"},
		}

		var resp types.CommentListResponse
		if err := c.do(ctx, http.MethodGet, "/api/v3/comment/list", query, nil, &resp); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				c.logger.WithField("post_id", postID).Debug("Lemmy post not found, treating as no comments")
				return nil, nil
			}
			return nil, err
		}

		all = append(all, resp.Comments...)
		if len(resp.Comments) < commentPageSize {
			return all, nil
		}
	}

	c.logger.WithField("post_id", postID).Warn("Lemmy comment pagination limit reached")
	return all, nil
}
