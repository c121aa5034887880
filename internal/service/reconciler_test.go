package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lemmylink/internal/database"
	apperrors "lemmylink/internal/errors"
	"lemmylink/internal/metrics"
	"lemmylink/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var noParent = (*string)(nil)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "lemmylink.db"), 1000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval:     time.Hour,
		CycleTimeout: 10 * time.Second,
		OriginSelf:   "bot",
		MirrorSelf:   "lemmybot",
	}
}

func newTestReconciler(origin OriginPlatform, mirror MirrorPlatform, store MappingStore, cfg ReconcilerConfig) (*Reconciler, *metrics.Registry) {
	reg := metrics.NewRegistry()
	return NewReconciler(origin, mirror, store, cfg, quietLogger()).WithMetrics(reg), reg
}

func TestRunCycle_ConcreteScenario(t *testing.T) {
	origin := &mockOrigin{}
	mirror := &mockMirror{}
	store := &mockStore{}

	alice := models.Comment{ID: "c1", ThreadID: "abc123", Author: "alice", Body: "hi", Permalink: "https://www.reddit.com/r/test/comments/abc123/_/c1/"}
	botAck := models.Comment{ID: "c2", ThreadID: "abc123", Author: "bot", Body: "ack"}

	store.On("AllThreadMappings", mock.Anything).Return([]*models.ThreadMapping{
		{ID: 1, OriginThreadID: "abc123", MirrorThreadID: "42"},
	}, nil)
	store.On("CommentMappingByEitherID", mock.Anything, "c1").Return(nil, nil)
	store.On("CommentMappingByEitherID", mock.Anything, "c2").Return(nil, nil)
	store.On("CreateCommentMapping", mock.Anything, "c1", "1001", models.DirectionOriginToMirror).
		Return(&models.CommentMapping{ID: 1, OriginCommentID: "c1", MirrorCommentID: "1001"}, nil).Once()
	store.On("Stats", mock.Anything).Return(&models.StoreStats{ThreadMappings: 1, CommentMappings: 1}, nil)

	origin.On("ListComments", mock.Anything, "abc123").Return([]models.Comment{alice, botAck}, nil)
	mirror.On("CreateComment", mock.Anything, "42", FormatMirrorComment(alice), noParent).Return("1001", nil).Once()
	mirror.On("ListComments", mock.Anything, "42").Return([]models.Comment{}, nil)

	r, reg := newTestReconciler(origin, mirror, store, testReconcilerConfig())
	stats := r.RunCycle(context.Background())

	assert.NoError(t, stats.Err)
	assert.Equal(t, 1, stats.OriginToMirror)
	assert.Equal(t, 0, stats.MirrorToOrigin)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Failures)
	assert.NotEmpty(t, stats.CycleID)

	mirror.AssertNumberOfCalls(t, "CreateComment", 1)
	store.AssertNumberOfCalls(t, "CreateCommentMapping", 1)
	store.AssertNotCalled(t, "CreateCommentMapping", mock.Anything, "c2", mock.Anything, mock.Anything)
	origin.AssertNotCalled(t, "CreateReply", mock.Anything, mock.Anything, mock.Anything)

	labels := map[string]string{LogFieldDirection: string(models.DirectionOriginToMirror)}
	assert.Equal(t, float64(1), reg.CounterValue(metrics.CommentsReplicated, labels))
	assert.Equal(t, float64(1), reg.GaugeValue(metrics.CommentMappingsGauge, nil))
}

func TestRunCycle_PartialFailureIsolation(t *testing.T) {
	origin := &mockOrigin{}
	mirror := &mockMirror{}
	store := &mockStore{}

	store.On("AllThreadMappings", mock.Anything).Return([]*models.ThreadMapping{
		{ID: 1, OriginThreadID: "t1", MirrorThreadID: "m1"},
		{ID: 2, OriginThreadID: "t2", MirrorThreadID: "m2"},
		{ID: 3, OriginThreadID: "t3", MirrorThreadID: "m3"},
	}, nil)
	store.On("CommentMappingByEitherID", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("CreateCommentMapping", mock.Anything, mock.Anything, mock.Anything, models.DirectionOriginToMirror).
		Return(&models.CommentMapping{}, nil)
	store.On("Stats", mock.Anything).Return(&models.StoreStats{}, nil)

	first := models.Comment{ID: "a1", Author: "alice", Body: "one"}
	third := models.Comment{ID: "c3", Author: "carol", Body: "three"}
	origin.On("ListComments", mock.Anything, "t1").Return([]models.Comment{first}, nil)
	origin.On("ListComments", mock.Anything, "t2").Return(nil, apperrors.NewTransientAPIError("reddit", "list comments", errors.New("connection reset")))
	origin.On("ListComments", mock.Anything, "t3").Return([]models.Comment{third}, nil)

	mirror.On("CreateComment", mock.Anything, "m1", FormatMirrorComment(first), noParent).Return("101", nil).Once()
	mirror.On("CreateComment", mock.Anything, "m3", FormatMirrorComment(third), noParent).Return("303", nil).Once()
	mirror.On("ListComments", mock.Anything, mock.Anything).Return([]models.Comment{}, nil)

	r, reg := newTestReconciler(origin, mirror, store, testReconcilerConfig())
	stats := r.RunCycle(context.Background())

	assert.Equal(t, 2, stats.OriginToMirror)
	assert.Equal(t, 1, stats.FetchFailures)
	mirror.AssertExpectations(t)
	store.AssertCalled(t, "CreateCommentMapping", mock.Anything, "a1", "101", models.DirectionOriginToMirror)
	store.AssertCalled(t, "CreateCommentMapping", mock.Anything, "c3", "303", models.DirectionOriginToMirror)

	labels := map[string]string{LogFieldDirection: string(models.DirectionOriginToMirror)}
	assert.Equal(t, float64(1), reg.CounterValue(metrics.MappingFetchFailures, labels))
}

func TestRunCycle_MirrorNotFoundIsEmpty(t *testing.T) {
	origin := &mockOrigin{}
	mirror := &mockMirror{}
	store := &mockStore{}

	store.On("AllThreadMappings", mock.Anything).Return([]*models.ThreadMapping{
		{ID: 1, OriginThreadID: "abc123", MirrorThreadID: "42"},
	}, nil)
	store.On("Stats", mock.Anything).Return(&models.StoreStats{ThreadMappings: 1}, nil)
	origin.On("ListComments", mock.Anything, "abc123").Return([]models.Comment{}, nil)
	mirror.On("ListComments", mock.Anything, "42").Return(nil, apperrors.NewNotFoundError("lemmy", "post", "42"))

	r, _ := newTestReconciler(origin, mirror, store, testReconcilerConfig())
	stats := r.RunCycle(context.Background())

	assert.NoError(t, stats.Err)
	assert.Equal(t, 0, stats.FetchFailures)
	assert.Equal(t, 0, stats.Failures)
	assert.Equal(t, 0, stats.Replicated())
	origin.AssertNotCalled(t, "CreateReply", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "CreateCommentMapping", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_MirrorToOrigin(t *testing.T) {
	origin := &mockOrigin{}
	mirror := &mockMirror{}
	store := &mockStore{}

	carol := models.Comment{
		ID:        "501",
		Author:    "carol",
		AuthorURL: "https://lemmy.example/u/carol",
		Body:      "hello from lemmy",
		Permalink: "https://lemmy.example/comment/501",
	}
	target := models.ReplyTarget{ID: "abc123", Kind: models.TargetThread}

	store.On("AllThreadMappings", mock.Anything).Return([]*models.ThreadMapping{
		{ID: 1, OriginThreadID: "abc123", MirrorThreadID: "42"},
	}, nil)
	store.On("CommentMappingByEitherID", mock.Anything, "501").Return(nil, nil)
	store.On("CreateCommentMapping", mock.Anything, "501", "r9", models.DirectionMirrorToOrigin).
		Return(&models.CommentMapping{}, nil).Once()
	store.On("Stats", mock.Anything).Return(&models.StoreStats{}, nil)

	origin.On("ListComments", mock.Anything, "abc123").Return([]models.Comment{}, nil)
	origin.On("CreateReply", mock.Anything, target, FormatOriginComment(carol)).Return(&models.Comment{ID: "r9"}, nil).Once()
	mirror.On("ListComments", mock.Anything, "42").Return([]models.Comment{carol}, nil)

	r, _ := newTestReconciler(origin, mirror, store, testReconcilerConfig())
	stats := r.RunCycle(context.Background())

	assert.Equal(t, 1, stats.MirrorToOrigin)
	origin.AssertExpectations(t)
	store.AssertExpectations(t)
	mirror.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_SelfEchoIsCaseInsensitive(t *testing.T) {
	origin := &mockOrigin{}
	mirror := &mockMirror{}
	store := &mockStore{}

	store.On("AllThreadMappings", mock.Anything).Return([]*models.ThreadMapping{
		{ID: 1, OriginThreadID: "abc123", MirrorThreadID: "42"},
	}, nil)
	store.On("CommentMappingByEitherID", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("Stats", mock.Anything).Return(&models.StoreStats{}, nil)
	origin.On("ListComments", mock.Anything, "abc123").Return([]models.Comment{{ID: "c9", Author: "BoT", Body: "LemmyLink bot here!"}}, nil)
	mirror.On("ListComments", mock.Anything, "42").Return([]models.Comment{{ID: "77", Author: "LemmyBot", Body: "From Reddit user /u/alice"}}, nil)

	r, _ := newTestReconciler(origin, mirror, store, testReconcilerConfig())
	stats := r.RunCycle(context.Background())

	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 0, stats.Replicated())
	mirror.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	origin.AssertNotCalled(t, "CreateReply", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_CommentFailuresDoNotStopMapping(t *testing.T) {
	origin := &mockOrigin{}
	mirror := &mockMirror{}
	store := &mockStore{}

	broken := models.Comment{ID: "c1", Author: "alice", Body: "first"}
	noID := models.Comment{ID: "c2", Author: "bob", Body: "second"}
	fine := models.Comment{ID: "c3", Author: "carol", Body: "third"}

	store.On("AllThreadMappings", mock.Anything).Return([]*models.ThreadMapping{
		{ID: 1, OriginThreadID: "abc123", MirrorThreadID: "42"},
	}, nil)
	store.On("CommentMappingByEitherID", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("CreateCommentMapping", mock.Anything, "c3", "303", models.DirectionOriginToMirror).Return(&models.CommentMapping{}, nil).Once()
	store.On("Stats", mock.Anything).Return(&models.StoreStats{}, nil)

	origin.On("ListComments", mock.Anything, "abc123").Return([]models.Comment{broken, noID, fine}, nil)
	mirror.On("CreateComment", mock.Anything, "42", FormatMirrorComment(broken), noParent).
		Return("", apperrors.NewAPIError("lemmy", "create comment", 500, errors.New("internal error")))
	mirror.On("CreateComment", mock.Anything, "42", FormatMirrorComment(noID), noParent).Return("", nil)
	mirror.On("CreateComment", mock.Anything, "42", FormatMirrorComment(fine), noParent).Return("303", nil)
	mirror.On("ListComments", mock.Anything, "42").Return([]models.Comment{}, nil)

	r, reg := newTestReconciler(origin, mirror, store, testReconcilerConfig())
	stats := r.RunCycle(context.Background())

	assert.Equal(t, 1, stats.OriginToMirror)
	assert.Equal(t, 2, stats.Failures)
	store.AssertNumberOfCalls(t, "CreateCommentMapping", 1)

	labels := map[string]string{LogFieldDirection: string(models.DirectionOriginToMirror)}
	assert.Equal(t, float64(2), reg.CounterValue(metrics.CommentReplicationFailures, labels))
}

func TestRunCycle_DedupLookupErrorSkipsWrite(t *testing.T) {
	origin := &mockOrigin{}
	mirror := &mockMirror{}
	store := &mockStore{}

	store.On("AllThreadMappings", mock.Anything).Return([]*models.ThreadMapping{
		{ID: 1, OriginThreadID: "abc123", MirrorThreadID: "42"},
	}, nil)
	store.On("CommentMappingByEitherID", mock.Anything, "c1").Return(nil, apperrors.NewStoreError("get comment mapping", errors.New("disk I/O error")))
	store.On("Stats", mock.Anything).Return(&models.StoreStats{}, nil)
	origin.On("ListComments", mock.Anything, "abc123").Return([]models.Comment{{ID: "c1", Author: "alice", Body: "hi"}}, nil)
	mirror.On("ListComments", mock.Anything, "42").Return([]models.Comment{}, nil)

	r, _ := newTestReconciler(origin, mirror, store, testReconcilerConfig())
	stats := r.RunCycle(context.Background())

	assert.Equal(t, 1, stats.Failures)
	mirror.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_EmptyStore(t *testing.T) {
	origin := &mockOrigin{}
	mirror := &mockMirror{}
	store := &mockStore{}
	store.On("AllThreadMappings", mock.Anything).Return([]*models.ThreadMapping{}, nil)

	r, _ := newTestReconciler(origin, mirror, store, testReconcilerConfig())
	stats := r.RunCycle(context.Background())

	assert.NoError(t, stats.Err)
	assert.Equal(t, 0, stats.Mappings)
	origin.AssertNotCalled(t, "ListComments", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Stats", mock.Anything)
}

func TestRunCycle_StoreFailureSkipsCycle(t *testing.T) {
	store := &mockStore{}
	store.On("AllThreadMappings", mock.Anything).Return(nil, apperrors.NewStoreError("list thread mappings", errors.New("database is locked")))

	r, reg := newTestReconciler(&mockOrigin{}, &mockMirror{}, store, testReconcilerConfig())
	stats := r.RunCycle(context.Background())

	assert.Error(t, stats.Err)
	assert.Equal(t, float64(1), reg.CounterValue(metrics.ReconcileCycleFailures, nil))
}

func TestRunCycle_ParallelMappings(t *testing.T) {
	origin := &mockOrigin{}
	mirror := &mockMirror{}
	store := &mockStore{}

	mappings := []*models.ThreadMapping{
		{ID: 1, OriginThreadID: "t1", MirrorThreadID: "m1"},
		{ID: 2, OriginThreadID: "t2", MirrorThreadID: "m2"},
		{ID: 3, OriginThreadID: "t3", MirrorThreadID: "m3"},
		{ID: 4, OriginThreadID: "t4", MirrorThreadID: "m4"},
	}
	store.On("AllThreadMappings", mock.Anything).Return(mappings, nil)
	store.On("CommentMappingByEitherID", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("CreateCommentMapping", mock.Anything, mock.Anything, mock.Anything, models.DirectionOriginToMirror).Return(&models.CommentMapping{}, nil)
	store.On("Stats", mock.Anything).Return(&models.StoreStats{}, nil)
	for _, m := range mappings {
		origin.On("ListComments", mock.Anything, m.OriginThreadID).Return([]models.Comment{{ID: "c-" + m.OriginThreadID, Author: "alice", Body: "hi"}}, nil)
		mirror.On("CreateComment", mock.Anything, m.MirrorThreadID, mock.Anything, noParent).Return("x-"+m.MirrorThreadID, nil).Once()
		mirror.On("ListComments", mock.Anything, m.MirrorThreadID).Return([]models.Comment{}, nil)
	}

	cfg := testReconcilerConfig()
	cfg.MaxConcurrentMappings = 3
	r, _ := newTestReconciler(origin, mirror, store, cfg)
	stats := r.RunCycle(context.Background())

	assert.Equal(t, 4, stats.OriginToMirror)
	mirror.AssertExpectations(t)
}

func TestRunCycle_IdempotentAgainstRealStore(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	_, err := db.CreateThreadMapping(ctx, "abc123", "abc123", "42")
	require.NoError(t, err)

	origin := &mockOrigin{}
	mirror := &mockMirror{}

	alice := models.Comment{ID: "c1", Author: "alice", Body: "hi"}
	origin.On("ListComments", mock.Anything, "abc123").Return([]models.Comment{alice}, nil)
	mirror.On("CreateComment", mock.Anything, "42", FormatMirrorComment(alice), noParent).Return("1001", nil).Once()
	mirror.On("ListComments", mock.Anything, "42").Return([]models.Comment{}, nil)

	r, _ := newTestReconciler(origin, mirror, db, testReconcilerConfig())
	first := r.RunCycle(ctx)
	second := r.RunCycle(ctx)

	assert.Equal(t, 1, first.OriginToMirror)
	assert.Equal(t, 0, second.OriginToMirror)
	assert.Equal(t, 1, second.Skipped)
	mirror.AssertNumberOfCalls(t, "CreateComment", 1)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CommentMappings)
}

func TestRunCycle_DirectionSymmetryAgainstRealStore(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	_, err := db.CreateThreadMapping(ctx, "abc123", "abc123", "42")
	require.NoError(t, err)

	origin := &mockOrigin{}
	mirror := &mockMirror{}

	carol := models.Comment{ID: "501", Author: "carol", Body: "hello from lemmy"}
	// The reply the bridge posted shows up in the origin listing. Its author
	// is not the bot handle here so only the shared dedup lookup protects it.
	echoed := models.Comment{ID: "r9", Author: "moderator", Body: FormatOriginComment(carol)}

	origin.On("ListComments", mock.Anything, "abc123").Return([]models.Comment{}, nil).Once()
	origin.On("ListComments", mock.Anything, "abc123").Return([]models.Comment{echoed}, nil)
	origin.On("CreateReply", mock.Anything, models.ReplyTarget{ID: "abc123", Kind: models.TargetThread}, FormatOriginComment(carol)).
		Return(&models.Comment{ID: "r9"}, nil).Once()
	mirror.On("ListComments", mock.Anything, "42").Return([]models.Comment{carol}, nil)

	r, _ := newTestReconciler(origin, mirror, db, testReconcilerConfig())
	first := r.RunCycle(ctx)
	second := r.RunCycle(ctx)

	assert.Equal(t, 1, first.MirrorToOrigin)
	assert.Equal(t, 0, second.Replicated())
	mirror.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	origin.AssertNumberOfCalls(t, "CreateReply", 1)

	mapping, err := db.CommentMappingByEitherID(ctx, "r9")
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.Equal(t, "501", mapping.OriginCommentID)
	assert.Equal(t, models.DirectionMirrorToOrigin, mapping.Direction)
}

func TestRunCycle_MappingRecordedAfterCycleTimeout(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	_, err := db.CreateThreadMapping(ctx, "abc123", "abc123", "42")
	require.NoError(t, err)

	origin := &mockOrigin{}
	mirror := &mockMirror{}

	alice := models.Comment{ID: "c1", Author: "alice", Body: "slow"}
	origin.On("ListComments", mock.Anything, "abc123").Return([]models.Comment{alice}, nil)
	// The post outlives the cycle deadline but still succeeds remotely
	mirror.On("CreateComment", mock.Anything, "42", FormatMirrorComment(alice), noParent).
		Return("1001", nil).After(80 * time.Millisecond).Once()
	mirror.On("ListComments", mock.Anything, "42").Return([]models.Comment{}, nil).Maybe()

	cfg := testReconcilerConfig()
	cfg.CycleTimeout = 50 * time.Millisecond
	r, _ := newTestReconciler(origin, mirror, db, cfg)

	first := r.RunCycle(ctx)
	assert.Equal(t, 1, first.OriginToMirror)
	assert.Equal(t, 0, first.Failures)

	mapping, err := db.CommentMappingByEitherID(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.Equal(t, "1001", mapping.MirrorCommentID)

	second := r.RunCycle(ctx)
	assert.Equal(t, 0, second.OriginToMirror)
	assert.Equal(t, 1, second.Skipped)
	mirror.AssertNumberOfCalls(t, "CreateComment", 1)
}

// blockingStore holds the first AllThreadMappings call until release is closed
type blockingStore struct {
	mockStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) AllThreadMappings(ctx context.Context) ([]*models.ThreadMapping, error) {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return []*models.ThreadMapping{}, nil
}

func TestReconciler_IsRunningDuringStopDrain(t *testing.T) {
	store := &blockingStore{started: make(chan struct{}), release: make(chan struct{})}
	r, _ := newTestReconciler(&mockOrigin{}, &mockMirror{}, store, testReconcilerConfig())
	require.NoError(t, r.Start(context.Background()))

	select {
	case <-store.started:
	case <-time.After(time.Second):
		t.Fatal("first cycle did not start")
	}

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	// IsRunning answers while Stop waits for the in-flight cycle
	assert.Eventually(t, func() bool {
		answered := make(chan bool, 1)
		go func() { answered <- r.IsRunning() }()
		select {
		case running := <-answered:
			return !running
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, time.Second, 5*time.Millisecond)

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight cycle finished")
	default:
	}

	close(store.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestReconciler_StartStop(t *testing.T) {
	store := &mockStore{}
	store.On("AllThreadMappings", mock.Anything).Return([]*models.ThreadMapping{}, nil)

	r, reg := newTestReconciler(&mockOrigin{}, &mockMirror{}, store, testReconcilerConfig())
	assert.False(t, r.IsRunning())

	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.IsRunning())
	assert.Error(t, r.Start(context.Background()))

	// the first cycle runs immediately, well before the hour-long interval
	assert.Eventually(t, func() bool {
		_, ok := reg.GetAllMetrics().Timers[metrics.ReconcileCycleDuration]
		return ok
	}, time.Second, 10*time.Millisecond)

	r.Stop()
	assert.False(t, r.IsRunning())
	r.Stop()
}

func TestReconciler_RunsOnInterval(t *testing.T) {
	store := &mockStore{}
	store.On("AllThreadMappings", mock.Anything).Return([]*models.ThreadMapping{}, nil)

	cfg := testReconcilerConfig()
	cfg.Interval = 20 * time.Millisecond
	r, reg := newTestReconciler(&mockOrigin{}, &mockMirror{}, store, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.RunForever(ctx) }()

	assert.Eventually(t, func() bool {
		snapshot := reg.GetAllMetrics()
		timer, ok := snapshot.Timers[metrics.ReconcileCycleDuration]
		return ok && timer.Count >= 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunForever did not return after cancellation")
	}
	assert.False(t, r.IsRunning())
}

func TestReconcilerConfigFrom(t *testing.T) {
	cfg := ReconcilerConfigFrom(models.SyncConfig{IntervalSec: 30, CycleTimeoutSec: 90, MaxConcurrentMappings: 2}, "bot", "lemmybot")
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 90*time.Second, cfg.CycleTimeout)
	assert.Equal(t, 2, cfg.MaxConcurrentMappings)
	assert.Equal(t, "bot", cfg.OriginSelf)
	assert.Equal(t, "lemmybot", cfg.MirrorSelf)

	r := NewReconciler(nil, nil, nil, ReconcilerConfig{}, nil)
	assert.Equal(t, 60*time.Second, r.config.Interval)
	assert.Equal(t, 300*time.Second, r.config.CycleTimeout)
	assert.Equal(t, 1, r.config.MaxConcurrentMappings)
}
