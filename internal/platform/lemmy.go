package platform

import (
	"context"
	"fmt"
	"strconv"

	"lemmylink/internal/models"
	"lemmylink/pkg/lemmy/types"

	"github.com/sirupsen/logrus"
)

const lemmyName = "lemmy"

// LemmyClient is the subset of the Lemmy API client the adapter needs
type LemmyClient interface {
	Username() string
	Login(ctx context.Context) error
	PostURL(postID int64) string
	CreatePost(ctx context.Context, communityID int64, name, body string) (int64, error)
	CreateComment(ctx context.Context, postID int64, content string, parentID *int64) (*types.CommentView, error)
	ListComments(ctx context.Context, postID int64) ([]types.CommentView, error)
}

// Lemmy is the mirror platform adapter. Lemmy ids are integers; they are
// exchanged with the rest of the bridge as decimal strings.
type Lemmy struct {
	client LemmyClient
	logger *logrus.Logger
}

func NewLemmy(client LemmyClient, logger *logrus.Logger) *Lemmy {
	if logger == nil {
		logger = logrus.New()
	}
	return &Lemmy{client: client, logger: logger}
}

func (l *Lemmy) Name() string {
	return lemmyName
}

func (l *Lemmy) SelfHandle() string {
	return l.client.Username()
}

func (l *Lemmy) Login(ctx context.Context) error {
	return classify(lemmyName, "login", l.client.Login(ctx))
}

func (l *Lemmy) ThreadURL(threadID string) string {
	id, err := strconv.ParseInt(threadID, 10, 64)
	if err != nil {
		return ""
	}
	return l.client.PostURL(id)
}

// CreateThread creates a post and returns its id, or "" if the instance returned none
func (l *Lemmy) CreateThread(ctx context.Context, communityID int64, title, body string) (string, error) {
	id, err := l.client.CreatePost(ctx, communityID, title, body)
	if err != nil {
		return "", classify(lemmyName, "create post", err)
	}
	if id == 0 {
		return "", nil
	}
	return strconv.FormatInt(id, 10), nil
}

// CreateComment posts a comment and returns its id, or "" if the instance returned none
func (l *Lemmy) CreateComment(ctx context.Context, threadID, text string, parentID *string) (string, error) {
	postID, err := parseID("post", threadID)
	if err != nil {
		return "", err
	}

	var parent *int64
	if parentID != nil {
		p, err := parseID("comment", *parentID)
		if err != nil {
			return "", err
		}
		parent = &p
	}

	view, err := l.client.CreateComment(ctx, postID, text, parent)
	if err != nil {
		return "", classify(lemmyName, "create comment", err)
	}
	if view == nil || view.Comment.ID == 0 {
		return "", nil
	}
	return strconv.FormatInt(view.Comment.ID, 10), nil
}

// ListComments returns the live comments of a post; a missing post yields none
func (l *Lemmy) ListComments(ctx context.Context, threadID string) ([]models.Comment, error) {
	postID, err := parseID("post", threadID)
	if err != nil {
		return nil, err
	}

	views, err := l.client.ListComments(ctx, postID)
	if err != nil {
		return nil, classify(lemmyName, "list comments", err)
	}

	comments := make([]models.Comment, 0, len(views))
	for _, v := range views {
		if v.Comment.Deleted || v.Comment.Removed {
			continue
		}
		comments = append(comments, models.Comment{
			ID:        strconv.FormatInt(v.Comment.ID, 10),
			ThreadID:  threadID,
			Author:    v.Creator.Name,
			AuthorURL: v.Creator.ActorID,
			Body:      v.Comment.Content,
			Permalink: v.Comment.ApID,
			CreatedAt: v.Comment.Published,
		})
	}
	return comments, nil
}

func parseID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid lemmy %s id %q: %w", kind, id, err)
	}
	return n, nil
}
