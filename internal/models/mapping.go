package models

import "time"

// SyncDirection records which way a comment was replicated
type SyncDirection string

const (
	DirectionOriginToMirror SyncDirection = "origin_to_mirror"
	DirectionMirrorToOrigin SyncDirection = "mirror_to_origin"
)

// ThreadMapping links a bridged origin thread to the thread created for it on the mirror platform
type ThreadMapping struct {
	ID              int64     `json:"id"`
	OriginThreadID  string    `json:"originThreadId"`
	OriginTriggerID string    `json:"originTriggerId"`
	MirrorThreadID  string    `json:"mirrorThreadId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// CommentMapping links a comment to the copy the bridge posted on the other platform.
// OriginCommentID is the id on whichever platform the comment was written.
type CommentMapping struct {
	ID              int64         `json:"id"`
	OriginCommentID string        `json:"originCommentId"`
	MirrorCommentID string        `json:"mirrorCommentId"`
	Direction       SyncDirection `json:"direction"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// StoreStats summarizes the mapping store contents
type StoreStats struct {
	ThreadMappings  int `json:"threadMappings"`
	CommentMappings int `json:"commentMappings"`
}
