package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"lemmylink/pkg/reddit/types"

	"github.com/gorilla/mux"
)

const fakeRedditToken = "integration-token"

// RedditComment is a comment held by the fake Reddit API
type RedditComment struct {
	ID       string
	ThreadID string
	ParentID string
	Author   string
	Body     string
	Created  time.Time
}

// RedditPost is a submission held by the fake Reddit API
type RedditPost struct {
	ID       string
	Title    string
	Selftext string
	Author   string
	URL      string
	Created  time.Time
}

// FakeReddit serves the part of the Reddit OAuth API the bridge calls,
// backed by in-memory posts and comments.
type FakeReddit struct {
	server    *httptest.Server
	subreddit string
	botUser   string

	mu       sync.Mutex
	nextID   int
	posts    []*RedditPost
	comments []*RedditComment
	requests map[string]int
	failures map[string]int
}

func NewFakeReddit(subreddit, botUser string) *FakeReddit {
	f := &FakeReddit{
		subreddit: subreddit,
		botUser:   botUser,
		requests:  make(map[string]int),
		failures:  make(map[string]int),
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/access_token", f.track("token", f.handleToken)).Methods(http.MethodPost)
	router.HandleFunc("/comments/{id}", f.track("comments", f.handleComments)).Methods(http.MethodGet)
	router.HandleFunc("/api/comment", f.track("reply", f.handleReply)).Methods(http.MethodPost)
	router.HandleFunc("/r/{sub}/new", f.track("new_posts", f.handleNewPosts)).Methods(http.MethodGet)
	router.HandleFunc("/r/{sub}/comments", f.track("new_comments", f.handleNewComments)).Methods(http.MethodGet)

	f.server = httptest.NewServer(router)
	return f
}

func (f *FakeReddit) URL() string {
	return f.server.URL
}

func (f *FakeReddit) Close() {
	f.server.Close()
}

// AddPost publishes a submission and returns its id
func (f *FakeReddit) AddPost(author, title, selftext string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.newIDLocked()
	f.posts = append(f.posts, &RedditPost{
		ID:       id,
		Title:    title,
		Selftext: selftext,
		Author:   author,
		URL:      f.permalink(id, ""),
		Created:  time.Now().UTC(),
	})
	return id
}

// AddComment writes a comment on a thread and returns its id
func (f *FakeReddit) AddComment(threadID, author, body string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addCommentLocked(threadID, types.KindLink+"_"+threadID, author, body).ID
}

// Comments returns the comments of a thread in creation order
func (f *FakeReddit) Comments(threadID string) []RedditComment {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []RedditComment
	for _, c := range f.comments {
		if c.ThreadID == threadID {
			out = append(out, *c)
		}
	}
	return out
}

// CommentsBy returns every comment written by author
func (f *FakeReddit) CommentsBy(author string) []RedditComment {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []RedditComment
	for _, c := range f.comments {
		if c.Author == author {
			out = append(out, *c)
		}
	}
	return out
}

// Requests is the number of calls made to a named endpoint
func (f *FakeReddit) Requests(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[endpoint]
}

// FailNext makes the next n calls to endpoint answer 500
func (f *FakeReddit) FailNext(endpoint string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[endpoint] = n
}

func (f *FakeReddit) track(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests[endpoint]++
		fail := f.failures[endpoint] > 0
		if fail {
			f.failures[endpoint]--
		}
		f.mu.Unlock()

		if fail {
			http.Error(w, `{"message": "Internal Server Error", "error": 500}`, http.StatusInternalServerError)
			return
		}
		if endpoint != "token" && r.Header.Get("Authorization") != "bearer "+fakeRedditToken {
			http.Error(w, `{"message": "Unauthorized", "error": 401}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (f *FakeReddit) handleToken(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := r.BasicAuth(); !ok {
		http.Error(w, `{"error": "invalid_client"}`, http.StatusUnauthorized)
		return
	}
	writeFakeJSON(w, types.TokenResponse{
		AccessToken: fakeRedditToken,
		TokenType:   "bearer",
		ExpiresIn:   3600,
		Scope:       "*",
	})
}

func (f *FakeReddit) handleComments(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]

	f.mu.Lock()
	defer f.mu.Unlock()

	post := f.postLocked(threadID)
	if post == nil {
		http.Error(w, `{"message": "Not Found", "error": 404}`, http.StatusNotFound)
		return
	}

	var children []types.Thing
	for _, c := range f.comments {
		if c.ThreadID == threadID {
			children = append(children, f.commentThing(c))
		}
	}

	writeFakeJSON(w, []types.Listing{
		{Kind: types.KindListing, Data: types.ListingData{Children: []types.Thing{f.postThing(post)}}},
		{Kind: types.KindListing, Data: types.ListingData{Children: children}},
	})
}

func (f *FakeReddit) handleReply(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	thingID := r.PostForm.Get("thing_id")
	text := r.PostForm.Get("text")

	f.mu.Lock()
	defer f.mu.Unlock()

	var resp types.ThingsResponse
	threadID := ""
	switch {
	case strings.HasPrefix(thingID, types.KindLink+"_"):
		if f.postLocked(types.StripKind(thingID)) != nil {
			threadID = types.StripKind(thingID)
		}
	case strings.HasPrefix(thingID, types.KindComment+"_"):
		for _, c := range f.comments {
			if c.ID == types.StripKind(thingID) {
				threadID = c.ThreadID
			}
		}
	}
	if threadID == "" {
		resp.JSON.Errors = [][]interface{}{{"THREAD_LOCKED", "that thread does not exist", "parent"}}
		writeFakeJSON(w, resp)
		return
	}

	created := f.addCommentLocked(threadID, thingID, f.botUser, text)
	resp.JSON.Data.Things = []types.Thing{f.commentThing(created)}
	writeFakeJSON(w, resp)
}

func (f *FakeReddit) handleNewPosts(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	children := make([]types.Thing, 0, len(f.posts))
	for i := len(f.posts) - 1; i >= 0; i-- {
		children = append(children, f.postThing(f.posts[i]))
	}
	writeFakeJSON(w, types.Listing{Kind: types.KindListing, Data: types.ListingData{Children: children}})
}

func (f *FakeReddit) handleNewComments(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	children := make([]types.Thing, 0, len(f.comments))
	for i := len(f.comments) - 1; i >= 0; i-- {
		children = append(children, f.commentThing(f.comments[i]))
	}
	writeFakeJSON(w, types.Listing{Kind: types.KindListing, Data: types.ListingData{Children: children}})
}

func (f *FakeReddit) addCommentLocked(threadID, parentFullname, author, body string) *RedditComment {
	c := &RedditComment{
		ID:       f.newIDLocked(),
		ThreadID: threadID,
		ParentID: parentFullname,
		Author:   author,
		Body:     body,
		Created:  time.Now().UTC(),
	}
	f.comments = append(f.comments, c)
	return c
}

func (f *FakeReddit) newIDLocked() string {
	f.nextID++
	return fmt.Sprintf("rd%d", f.nextID)
}

func (f *FakeReddit) postLocked(id string) *RedditPost {
	for _, p := range f.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *FakeReddit) permalink(threadID, commentID string) string {
	if commentID == "" {
		return fmt.Sprintf("/r/%s/comments/%s/_/", f.subreddit, threadID)
	}
	return fmt.Sprintf("/r/%s/comments/%s/_/%s/", f.subreddit, threadID, commentID)
}

func (f *FakeReddit) postThing(p *RedditPost) types.Thing {
	return mustThing(types.KindLink, types.LinkData{
		ID:         p.ID,
		Name:       types.KindLink + "_" + p.ID,
		Title:      p.Title,
		Selftext:   p.Selftext,
		Author:     p.Author,
		Permalink:  f.permalink(p.ID, ""),
		URL:        f.server.URL + p.URL,
		CreatedUTC: float64(p.Created.Unix()),
	})
}

func (f *FakeReddit) commentThing(c *RedditComment) types.Thing {
	data := types.CommentData{
		ID:         c.ID,
		Name:       types.KindComment + "_" + c.ID,
		Author:     c.Author,
		Body:       c.Body,
		Permalink:  f.permalink(c.ThreadID, c.ID),
		ParentID:   c.ParentID,
		LinkID:     types.KindLink + "_" + c.ThreadID,
		CreatedUTC: float64(c.Created.Unix()),
		Replies:    json.RawMessage(`""`),
	}
	if post := f.postLocked(c.ThreadID); post != nil {
		data.LinkTitle = post.Title
		data.LinkPermalink = f.permalink(post.ID, "")
		data.LinkURL = f.server.URL + post.URL
	}
	return mustThing(types.KindComment, data)
}

func mustThing(kind string, data interface{}) types.Thing {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(fmt.Sprintf("marshal %s thing: %v", kind, err))
	}
	return types.Thing{Kind: kind, Data: raw}
}

func writeFakeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
