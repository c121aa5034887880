package platform

import (
	"context"

	"lemmylink/pkg/lemmy/types"
	"lemmylink/pkg/reddit"
	rtypes "lemmylink/pkg/reddit/types"

	"github.com/stretchr/testify/mock"
)

type mockRedditClient struct {
	mock.Mock
}

func (m *mockRedditClient) Username() string {
	return m.Called().String(0)
}

func (m *mockRedditClient) Authenticate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockRedditClient) GetComments(ctx context.Context, threadID string) ([]rtypes.Comment, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rtypes.Comment), args.Error(1)
}

func (m *mockRedditClient) Reply(ctx context.Context, fullname, text string) (*rtypes.Comment, error) {
	args := m.Called(ctx, fullname, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rtypes.Comment), args.Error(1)
}

func (m *mockRedditClient) StreamPosts(ctx context.Context, subreddit string, opts reddit.StreamOptions) <-chan rtypes.Post {
	args := m.Called(ctx, subreddit, opts)
	return args.Get(0).(chan rtypes.Post)
}

func (m *mockRedditClient) StreamComments(ctx context.Context, subreddit string, opts reddit.StreamOptions) <-chan rtypes.StreamComment {
	args := m.Called(ctx, subreddit, opts)
	return args.Get(0).(chan rtypes.StreamComment)
}

type mockLemmyClient struct {
	mock.Mock
}

func (m *mockLemmyClient) Username() string {
	return m.Called().String(0)
}

func (m *mockLemmyClient) Login(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockLemmyClient) PostURL(postID int64) string {
	return m.Called(postID).String(0)
}

func (m *mockLemmyClient) CreatePost(ctx context.Context, communityID int64, name, body string) (int64, error) {
	args := m.Called(ctx, communityID, name, body)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLemmyClient) CreateComment(ctx context.Context, postID int64, content string, parentID *int64) (*types.CommentView, error) {
	args := m.Called(ctx, postID, content, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CommentView), args.Error(1)
}

func (m *mockLemmyClient) ListComments(ctx context.Context, postID int64) ([]types.CommentView, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CommentView), args.Error(1)
}
