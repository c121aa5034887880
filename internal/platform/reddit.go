package platform

import (
	"context"
	"fmt"

	"lemmylink/internal/models"
	"lemmylink/pkg/reddit"
	"lemmylink/pkg/reddit/types"

	"github.com/sirupsen/logrus"
)

const redditName = "reddit"

// RedditClient is the subset of the Reddit API client the adapter needs
type RedditClient interface {
	Username() string
	Authenticate(ctx context.Context) error
	GetComments(ctx context.Context, threadID string) ([]types.Comment, error)
	Reply(ctx context.Context, fullname, text string) (*types.Comment, error)
	StreamPosts(ctx context.Context, subreddit string, opts reddit.StreamOptions) <-chan types.Post
	StreamComments(ctx context.Context, subreddit string, opts reddit.StreamOptions) <-chan types.StreamComment
}

// Reddit is the origin platform adapter
type Reddit struct {
	client    RedditClient
	subreddit string
	opts      reddit.StreamOptions
	logger    *logrus.Logger
}

func NewReddit(client RedditClient, subreddit string, opts reddit.StreamOptions, logger *logrus.Logger) *Reddit {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reddit{
		client:    client,
		subreddit: subreddit,
		opts:      opts,
		logger:    logger,
	}
}

func (r *Reddit) Name() string {
	return redditName
}

func (r *Reddit) SelfHandle() string {
	return r.client.Username()
}

// Authenticate fetches an access token so bad credentials fail at startup
func (r *Reddit) Authenticate(ctx context.Context) error {
	return classify(redditName, "authenticate", r.client.Authenticate(ctx))
}

// ListComments returns every comment of a thread with placeholders expanded
func (r *Reddit) ListComments(ctx context.Context, threadID string) ([]models.Comment, error) {
	raw, err := r.client.GetComments(ctx, threadID)
	if err != nil {
		return nil, classify(redditName, "list comments", err)
	}

	comments := make([]models.Comment, 0, len(raw))
	for _, c := range raw {
		comments = append(comments, redditComment(c))
	}
	return comments, nil
}

// CreateReply posts text under a thread or a comment
func (r *Reddit) CreateReply(ctx context.Context, target models.ReplyTarget, text string) (*models.Comment, error) {
	var fullname string
	switch target.Kind {
	case models.TargetThread:
		fullname = types.KindLink + "_" + types.StripKind(target.ID)
	case models.TargetComment:
		fullname = types.KindComment + "_" + types.StripKind(target.ID)
	default:
		return nil, fmt.Errorf("unknown reply target kind %q", target.Kind)
	}

	created, err := r.client.Reply(ctx, fullname, text)
	if err != nil {
		return nil, classify(redditName, "create reply", err)
	}

	comment := redditComment(*created)
	return &comment, nil
}

// StreamThreads emits new submissions of the watched subreddit as thread triggers.
// Filtering on the trigger phrase is left to the caller.
func (r *Reddit) StreamThreads(ctx context.Context) <-chan models.ThreadTrigger {
	posts := r.client.StreamPosts(ctx, r.subreddit, r.opts)
	out := make(chan models.ThreadTrigger)

	go func() {
		defer close(out)
		for p := range posts {
			trigger := models.ThreadTrigger{
				ID:        p.ID,
				Title:     p.Title,
				Body:      p.Selftext,
				Author:    p.Author,
				Permalink: p.Permalink,
				URL:       p.URL,
			}
			select {
			case out <- trigger:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// StreamComments emits new comments of the watched subreddit as comment triggers
func (r *Reddit) StreamComments(ctx context.Context) <-chan models.CommentTrigger {
	comments := r.client.StreamComments(ctx, r.subreddit, r.opts)
	out := make(chan models.CommentTrigger)

	go func() {
		defer close(out)
		for c := range comments {
			threadURL := c.LinkURL
			if threadURL == "" {
				threadURL = c.LinkPermalink
			}
			trigger := models.CommentTrigger{
				ID:        c.ID,
				Body:      c.Body,
				Author:    c.Author,
				Permalink: c.Permalink,
				Thread: models.ThreadRef{
					ID:    c.ThreadID,
					Title: c.LinkTitle,
					URL:   threadURL,
				},
			}
			select {
			case out <- trigger:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func redditComment(c types.Comment) models.Comment {
	authorURL := ""
	if c.Author != "" && c.Author != "[deleted]" {
		authorURL = "https://www.reddit.com/user/" + c.Author
	}
	return models.Comment{
		ID:        c.ID,
		ThreadID:  c.ThreadID,
		Author:    c.Author,
		AuthorURL: authorURL,
		Body:      c.Body,
		Permalink: c.Permalink,
		CreatedAt: c.CreatedUTC,
	}
}
