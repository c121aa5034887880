package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"lemmylink/pkg/lemmy/types"

	"github.com/gorilla/mux"
)

const fakeLemmyJWT = "integration-jwt"

// FakeLemmy serves the part of the Lemmy v3 API the bridge calls,
// backed by in-memory posts and comments.
type FakeLemmy struct {
	server   *httptest.Server
	username string
	password string

	mu       sync.Mutex
	nextID   int64
	posts    map[int64]*types.Post
	comments []*types.CommentView
	requests map[string]int
	failures map[string]int
}

func NewFakeLemmy(username, password string) *FakeLemmy {
	f := &FakeLemmy{
		username: username,
		password: password,
		nextID:   1000,
		posts:    make(map[int64]*types.Post),
		requests: make(map[string]int),
		failures: make(map[string]int),
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/v3/user/login", f.track("login", false, f.handleLogin)).Methods(http.MethodPost)
	router.HandleFunc("/api/v3/post", f.track("create_post", true, f.handleCreatePost)).Methods(http.MethodPost)
	router.HandleFunc("/api/v3/comment", f.track("create_comment", true, f.handleCreateComment)).Methods(http.MethodPost)
	router.HandleFunc("/api/v3/comment/list", f.track("list_comments", true, f.handleListComments)).Methods(http.MethodGet)

	f.server = httptest.NewServer(router)
	return f
}

func (f *FakeLemmy) URL() string {
	return f.server.URL
}

func (f *FakeLemmy) Close() {
	f.server.Close()
}

// AddComment writes a comment on a post as author and returns its id
func (f *FakeLemmy) AddComment(postID int64, author, content string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strconv.FormatInt(f.addCommentLocked(postID, author, content).Comment.ID, 10)
}

// RemovePost deletes a post and its comments, as a moderator would
func (f *FakeLemmy) RemovePost(postID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.posts, postID)
	kept := f.comments[:0]
	for _, c := range f.comments {
		if c.Comment.PostID != postID {
			kept = append(kept, c)
		}
	}
	f.comments = kept
}

// Posts returns every post created on the instance
func (f *FakeLemmy) Posts() []types.Post {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]types.Post, 0, len(f.posts))
	for _, p := range f.posts {
		out = append(out, *p)
	}
	return out
}

// Comments returns the comments of a post in creation order
func (f *FakeLemmy) Comments(postID int64) []types.CommentView {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []types.CommentView
	for _, c := range f.comments {
		if c.Comment.PostID == postID {
			out = append(out, *c)
		}
	}
	return out
}

// Requests is the number of calls made to a named endpoint
func (f *FakeLemmy) Requests(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[endpoint]
}

// FailNext makes the next n calls to endpoint answer 500
func (f *FakeLemmy) FailNext(endpoint string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[endpoint] = n
}

func (f *FakeLemmy) track(endpoint string, authenticated bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests[endpoint]++
		fail := f.failures[endpoint] > 0
		if fail {
			f.failures[endpoint]--
		}
		f.mu.Unlock()

		if fail {
			writeLemmyError(w, http.StatusInternalServerError, "unknown")
			return
		}
		if authenticated && r.Header.Get("Authorization") != "Bearer "+fakeLemmyJWT {
			writeLemmyError(w, http.StatusUnauthorized, "not_logged_in")
			return
		}
		next(w, r)
	}
}

func (f *FakeLemmy) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLemmyError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if req.UsernameOrEmail != f.username || req.Password != f.password {
		writeLemmyError(w, http.StatusBadRequest, "incorrect_login")
		return
	}
	writeFakeJSON(w, types.LoginResponse{JWT: fakeLemmyJWT})
}

func (f *FakeLemmy) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req types.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLemmyError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	post := &types.Post{
		ID:          f.nextID,
		Name:        req.Name,
		Body:        req.Body,
		CommunityID: req.CommunityID,
		ApID:        fmt.Sprintf("%s/post/%d", f.server.URL, f.nextID),
	}
	f.posts[post.ID] = post
	writeFakeJSON(w, types.PostResponse{PostView: types.PostView{Post: *post}})
}

func (f *FakeLemmy) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req types.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLemmyError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.posts[req.PostID]; !ok {
		writeLemmyError(w, http.StatusBadRequest, "couldnt_find_post")
		return
	}
	view := f.addCommentLocked(req.PostID, f.username, req.Content)
	writeFakeJSON(w, types.CommentResponse{CommentView: *view})
}

func (f *FakeLemmy) handleListComments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	postID, err := strconv.ParseInt(q.Get("post_id"), 10, 64)
	if err != nil {
		writeLemmyError(w, http.StatusBadRequest, "invalid_post_id")
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, _ := strconv.Atoi(q.Get("page"))
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.posts[postID]; !ok {
		writeLemmyError(w, http.StatusBadRequest, "couldnt_find_post")
		return
	}

	var all []types.CommentView
	for _, c := range f.comments {
		if c.Comment.PostID == postID {
			all = append(all, *c)
		}
	}

	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	writeFakeJSON(w, types.CommentListResponse{Comments: all[start:end]})
}

func (f *FakeLemmy) addCommentLocked(postID int64, author, content string) *types.CommentView {
	f.nextID++
	view := &types.CommentView{
		Comment: types.Comment{
			ID:        f.nextID,
			PostID:    postID,
			Content:   content,
			ApID:      fmt.Sprintf("%s/comment/%d", f.server.URL, f.nextID),
			Path:      fmt.Sprintf("0.%d", f.nextID),
			Published: time.Now().UTC(),
		},
		Creator: types.Person{
			ID:      int64(len(author)),
			Name:    author,
			ActorID: fmt.Sprintf("%s/u/%s", f.server.URL, author),
			Local:   true,
		},
	}
	f.comments = append(f.comments, view)
	return view
}

func writeLemmyError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: code})
}
