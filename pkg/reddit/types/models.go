package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Thing kinds used by the Reddit API
const (
	KindComment = "t1"
	KindLink    = "t3"
	KindListing = "Listing"
	KindMore    = "more"
)

// TokenResponse is returned by the OAuth2 access_token endpoint
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	Error       string `json:"error,omitempty"`
}

// Thing is the generic kind/data envelope every Reddit object is wrapped in
type Thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Listing is a page of things
type Listing struct {
	Kind string      `json:"kind"`
	Data ListingData `json:"data"`
}

type ListingData struct {
	Children []Thing `json:"children"`
	After    string  `json:"after"`
	Before   string  `json:"before"`
}

// CommentData is the payload of a t1 thing
type CommentData struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Author        string          `json:"author"`
	Body          string          `json:"body"`
	Permalink     string          `json:"permalink"`
	ParentID      string          `json:"parent_id"`
	LinkID        string          `json:"link_id"`
	CreatedUTC    float64         `json:"created_utc"`
	Replies       json.RawMessage `json:"replies"`
	LinkTitle     string          `json:"link_title,omitempty"`
	LinkPermalink string          `json:"link_permalink,omitempty"`
	LinkURL       string          `json:"link_url,omitempty"`
}

// RepliesListing decodes the nested replies, which Reddit sends as "" when there are none
func (c CommentData) RepliesListing() (*Listing, bool) {
	raw := strings.TrimSpace(string(c.Replies))
	if raw == "" || raw == `""` || raw == "null" {
		return nil, false
	}
	var listing Listing
	if err := json.Unmarshal(c.Replies, &listing); err != nil {
		return nil, false
	}
	return &listing, true
}

// MoreData is the payload of a "more" placeholder in a comment tree.
// An empty Children list marks a "continue this thread" link.
type MoreData struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID string   `json:"parent_id"`
	Count    int      `json:"count"`
	Depth    int      `json:"depth"`
	Children []string `json:"children"`
}

// LinkData is the payload of a t3 thing (a submission)
type LinkData struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	URL        string  `json:"url"`
	CreatedUTC float64 `json:"created_utc"`
}

// ThingsResponse is the api_type=json envelope used by /api/comment and /api/morechildren
type ThingsResponse struct {
	JSON struct {
		Errors [][]interface{} `json:"errors"`
		Data   struct {
			Things []Thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// Comment is a flattened comment returned by the client
type Comment struct {
	ID         string
	ThreadID   string
	ParentID   string
	Author     string
	Body       string
	Permalink  string
	CreatedUTC time.Time
}

// Post is a submission returned by the subreddit stream
type Post struct {
	ID         string
	Title      string
	Selftext   string
	Author     string
	Permalink  string
	URL        string
	CreatedUTC time.Time
}

// StreamComment is a comment from the subreddit comment stream with its parent submission
type StreamComment struct {
	Comment
	LinkTitle     string
	LinkPermalink string
	LinkURL       string
}

// UnixTime converts Reddit's float seconds to time.Time
func UnixTime(sec float64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

// StripKind removes a t1_/t3_ style prefix from a fullname
func StripKind(fullname string) string {
	if len(fullname) > 3 && fullname[0] == 't' && fullname[2] == '_' {
		return fullname[3:]
	}
	return fullname
}
