package service

import (
	"context"

	"lemmylink/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockOrigin struct {
	mock.Mock
	threads  chan models.ThreadTrigger
	comments chan models.CommentTrigger
}

func (m *mockOrigin) ListComments(ctx context.Context, threadID string) ([]models.Comment, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *mockOrigin) CreateReply(ctx context.Context, target models.ReplyTarget, text string) (*models.Comment, error) {
	args := m.Called(ctx, target, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *mockOrigin) StreamThreads(ctx context.Context) <-chan models.ThreadTrigger {
	return m.threads
}

func (m *mockOrigin) StreamComments(ctx context.Context) <-chan models.CommentTrigger {
	return m.comments
}

func (m *mockOrigin) SelfHandle() string {
	return "bot"
}

func (m *mockOrigin) Name() string {
	return "reddit"
}

type mockMirror struct {
	mock.Mock
}

func (m *mockMirror) Login(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockMirror) CreateThread(ctx context.Context, communityID int64, title, body string) (string, error) {
	args := m.Called(ctx, communityID, title, body)
	return args.String(0), args.Error(1)
}

func (m *mockMirror) CreateComment(ctx context.Context, threadID, text string, parentID *string) (string, error) {
	args := m.Called(ctx, threadID, text, parentID)
	return args.String(0), args.Error(1)
}

func (m *mockMirror) ListComments(ctx context.Context, threadID string) ([]models.Comment, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *mockMirror) ThreadURL(threadID string) string {
	return "https://lemmy.example/post/" + threadID
}

func (m *mockMirror) SelfHandle() string {
	return "lemmybot"
}

func (m *mockMirror) Name() string {
	return "lemmy"
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateThreadMapping(ctx context.Context, originThreadID, originTriggerID, mirrorThreadID string) (*models.ThreadMapping, error) {
	args := m.Called(ctx, originThreadID, originTriggerID, mirrorThreadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ThreadMapping), args.Error(1)
}

func (m *mockStore) AllThreadMappings(ctx context.Context) ([]*models.ThreadMapping, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ThreadMapping), args.Error(1)
}

func (m *mockStore) MappingByOriginThread(ctx context.Context, originThreadID string) (*models.ThreadMapping, error) {
	args := m.Called(ctx, originThreadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ThreadMapping), args.Error(1)
}

func (m *mockStore) CreateCommentMapping(ctx context.Context, originCommentID, mirrorCommentID string, direction models.SyncDirection) (*models.CommentMapping, error) {
	args := m.Called(ctx, originCommentID, mirrorCommentID, direction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CommentMapping), args.Error(1)
}

func (m *mockStore) CommentMappingByEitherID(ctx context.Context, id string) (*models.CommentMapping, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CommentMapping), args.Error(1)
}

func (m *mockStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoreStats), args.Error(1)
}

type recordingHandler struct {
	mock.Mock
}

func (h *recordingHandler) HandleTrigger(ctx context.Context, trigger models.Trigger) {
	h.Called(ctx, trigger)
}
