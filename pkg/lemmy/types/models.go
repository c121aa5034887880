package types

import "time"

type LoginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

type LoginResponse struct {
	JWT string `json:"jwt"`
}

type CreatePostRequest struct {
	CommunityID int64  `json:"community_id"`
	Name        string `json:"name"`
	Body        string `json:"body,omitempty"`
}

type CreateCommentRequest struct {
	PostID   int64  `json:"post_id"`
	Content  string `json:"content"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

type Post struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Body        string `json:"body"`
	CommunityID int64  `json:"community_id"`
	ApID        string `json:"ap_id"`
}

type PostView struct {
	Post Post `json:"post"`
}

type PostResponse struct {
	PostView PostView `json:"post_view"`
}

type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	Content   string    `json:"content"`
	ApID      string    `json:"ap_id"`
	Path      string    `json:"path"`
	Published time.Time `json:"published"`
	Deleted   bool      `json:"deleted"`
	Removed   bool      `json:"removed"`
}

type Person struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	ActorID string `json:"actor_id"`
	Local   bool   `json:"local"`
}

type CommentView struct {
	Comment Comment `json:"comment"`
	Creator Person  `json:"creator"`
}

type CommentResponse struct {
	CommentView CommentView `json:"comment_view"`
}

type CommentListResponse struct {
	Comments []CommentView `json:"comments"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
