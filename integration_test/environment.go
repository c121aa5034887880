package integration

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"lemmylink/internal/database"
	"lemmylink/internal/metrics"
	"lemmylink/internal/models"
	"lemmylink/internal/platform"
	"lemmylink/internal/service"
	"lemmylink/pkg/lemmy"
	"lemmylink/pkg/reddit"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	TestSubreddit   = "lemmylinktest"
	RedditBotUser   = "lemmylink_bot"
	LemmyBotUser    = "lemmylink"
	LemmyBotPass    = "integration-password"
	TestCommunityID = 7
	TestTrigger     = "LemmyLink!"
)

// TestEnvironment wires the real clients, adapters and services against
// fake Reddit and Lemmy servers and a temporary sqlite store.
type TestEnvironment struct {
	t *testing.T

	Reddit  *FakeReddit
	Lemmy   *FakeLemmy
	DB      *database.Database
	Metrics *metrics.Registry

	Origin     *platform.Reddit
	Mirror     *platform.Lemmy
	Initiator  *service.Initiator
	Reconciler *service.Reconciler

	logger  *logrus.Logger
	cleanup []func()
}

func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	env := &TestEnvironment{
		t:       t,
		Metrics: metrics.NewRegistry(),
		logger:  logger,
	}

	env.setupDatabase()
	env.setupPlatforms()
	env.setupServices()

	t.Cleanup(env.Cleanup)
	return env
}

func (env *TestEnvironment) setupDatabase() {
	db, err := database.New(filepath.Join(env.t.TempDir(), "lemmylink.db"), 1000)
	require.NoError(env.t, err)
	env.DB = db
	env.cleanup = append(env.cleanup, func() { _ = db.Close() })
}

func (env *TestEnvironment) setupPlatforms() {
	env.Reddit = NewFakeReddit(TestSubreddit, RedditBotUser)
	env.Lemmy = NewFakeLemmy(LemmyBotUser, LemmyBotPass)
	env.cleanup = append(env.cleanup, env.Reddit.Close, env.Lemmy.Close)

	redditClient := reddit.NewClient(reddit.Config{
		ClientID:          "integration-client",
		ClientSecret:      "integration-secret",
		Username:          RedditBotUser,
		Password:          "hunter2",
		UserAgent:         "lemmylink-integration/1.0",
		APIBaseURL:        env.Reddit.URL(),
		AuthURL:           env.Reddit.URL() + "/api/v1/access_token",
		WebBaseURL:        env.Reddit.URL(),
		RequestsPerMinute: 60000,
		Timeout:           5 * time.Second,
	}, nil, env.logger)

	lemmyClient := lemmy.NewClient(lemmy.Config{
		BaseURL:           env.Lemmy.URL(),
		Username:          LemmyBotUser,
		Password:          LemmyBotPass,
		RequestsPerSecond: 1000,
		Timeout:           5 * time.Second,
	}, nil, env.logger)

	env.Origin = platform.NewReddit(redditClient, TestSubreddit, reddit.StreamOptions{
		PollInterval: 20 * time.Millisecond,
		BufferSize:   16,
		SeenCapacity: 100,
	}, env.logger)
	env.Mirror = platform.NewLemmy(lemmyClient, env.logger)
}

func (env *TestEnvironment) setupServices() {
	env.Initiator = service.NewInitiator(env.Origin, env.Mirror, env.DB, TestCommunityID, env.logger).
		WithMetrics(env.Metrics)
	env.Reconciler = service.NewReconciler(env.Origin, env.Mirror, env.DB, service.ReconcilerConfig{
		Interval:     time.Hour,
		CycleTimeout: 10 * time.Second,
		OriginSelf:   RedditBotUser,
		MirrorSelf:   LemmyBotUser,
	}, env.logger).WithMetrics(env.Metrics)
}

// Cleanup tears down servers and the store in reverse order of creation
func (env *TestEnvironment) Cleanup() {
	for i := len(env.cleanup) - 1; i >= 0; i-- {
		env.cleanup[i]()
	}
	env.cleanup = nil
}

// NewListener builds a trigger listener reading the fake subreddit streams
func (env *TestEnvironment) NewListener() *service.TriggerListener {
	return service.NewTriggerListener(env.Origin, env.Initiator, TestTrigger, env.logger).WithMetrics(env.Metrics)
}

// Bridge runs a comment trigger through the initiator and returns the resulting mapping
func (env *TestEnvironment) Bridge(threadID, triggerCommentID string) *models.ThreadMapping {
	env.t.Helper()

	var trigger models.CommentTrigger
	for _, c := range env.Reddit.Comments(threadID) {
		if c.ID == triggerCommentID {
			trigger = models.CommentTrigger{
				ID:        c.ID,
				Body:      c.Body,
				Author:    c.Author,
				Permalink: env.Reddit.URL() + "/r/" + TestSubreddit + "/comments/" + threadID + "/_/" + c.ID + "/",
				Thread: models.ThreadRef{
					ID:    threadID,
					Title: "Integration thread",
					URL:   env.Reddit.URL() + "/r/" + TestSubreddit + "/comments/" + threadID + "/_/",
				},
			}
		}
	}
	require.NotEmpty(env.t, trigger.ID, "trigger comment %s not found on thread %s", triggerCommentID, threadID)

	env.Initiator.HandleTrigger(context.Background(), trigger)

	mapping, err := env.DB.MappingByOriginThread(context.Background(), threadID)
	require.NoError(env.t, err)
	require.NotNil(env.t, mapping, "thread %s was not bridged", threadID)
	return mapping
}

// MirrorPostID parses the numeric Lemmy post id of a mapping
func (env *TestEnvironment) MirrorPostID(mapping *models.ThreadMapping) int64 {
	env.t.Helper()
	id, err := strconv.ParseInt(mapping.MirrorThreadID, 10, 64)
	require.NoError(env.t, err)
	return id
}

// WaitForCondition polls condition until it holds or timeout passes
func (env *TestEnvironment) WaitForCondition(condition func() bool, timeout, checkInterval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(checkInterval)
	}
	return condition()
}
