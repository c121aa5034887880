package service

import (
	"context"

	"lemmylink/internal/models"
)

// OriginPlatform is the platform where triggers are observed
type OriginPlatform interface {
	ListComments(ctx context.Context, threadID string) ([]models.Comment, error)
	CreateReply(ctx context.Context, target models.ReplyTarget, text string) (*models.Comment, error)
	StreamThreads(ctx context.Context) <-chan models.ThreadTrigger
	StreamComments(ctx context.Context) <-chan models.CommentTrigger
	SelfHandle() string
	Name() string
}

// MirrorPlatform is the platform bridged threads are created on.
// ListComments returns an empty list, not an error, for a missing thread.
type MirrorPlatform interface {
	Login(ctx context.Context) error
	CreateThread(ctx context.Context, communityID int64, title, body string) (string, error)
	CreateComment(ctx context.Context, threadID, text string, parentID *string) (string, error)
	ListComments(ctx context.Context, threadID string) ([]models.Comment, error)
	ThreadURL(threadID string) string
	SelfHandle() string
	Name() string
}

// MappingStore defines the persistence operations the bridge needs.
// Lookups return nil, nil when nothing matches.
type MappingStore interface {
	CreateThreadMapping(ctx context.Context, originThreadID, originTriggerID, mirrorThreadID string) (*models.ThreadMapping, error)
	AllThreadMappings(ctx context.Context) ([]*models.ThreadMapping, error)
	MappingByOriginThread(ctx context.Context, originThreadID string) (*models.ThreadMapping, error)
	CreateCommentMapping(ctx context.Context, originCommentID, mirrorCommentID string, direction models.SyncDirection) (*models.CommentMapping, error)
	CommentMappingByEitherID(ctx context.Context, id string) (*models.CommentMapping, error)
	Stats(ctx context.Context) (*models.StoreStats, error)
}

// TriggerHandler receives triggers detected on the origin stream
type TriggerHandler interface {
	HandleTrigger(ctx context.Context, trigger models.Trigger)
}
