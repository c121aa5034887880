package models

import "time"

// Comment is a platform-neutral view of a comment returned by an adapter
type Comment struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Author    string    `json:"author"`
	AuthorURL string    `json:"authorUrl,omitempty"`
	Body      string    `json:"body"`
	Permalink string    `json:"permalink,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type TargetKind string

const (
	TargetThread  TargetKind = "thread"
	TargetComment TargetKind = "comment"
)

// ReplyTarget is the thread or comment a reply is attached to
type ReplyTarget struct {
	ID   string     `json:"id"`
	Kind TargetKind `json:"kind"`
}
