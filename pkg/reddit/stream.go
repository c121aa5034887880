package reddit

import (
	"context"
	"time"

	"lemmylink/pkg/constants"
	"lemmylink/pkg/reddit/types"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

const streamPageSize = 100

// StreamOptions controls subreddit polling
type StreamOptions struct {
	PollInterval time.Duration
	// SkipExisting drops everything present on the first poll so only new items are emitted
	SkipExisting bool
	BufferSize   int
	SeenCapacity int
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = constants.DefaultStreamPollIntervalSec * time.Second
	}
	if o.BufferSize <= 0 {
		o.BufferSize = constants.DefaultStreamBufferSize
	}
	if o.SeenCapacity <= 0 {
		o.SeenCapacity = constants.DefaultSeenCapacity
	}
	return o
}

// StreamPosts polls a subreddit for new submissions. The channel is closed when ctx is cancelled.
func (c *Client) StreamPosts(ctx context.Context, subreddit string, opts StreamOptions) <-chan types.Post {
	fetch := func(ctx context.Context) ([]types.Post, error) {
		return c.NewPosts(ctx, subreddit, streamPageSize)
	}
	id := func(p types.Post) string { return p.ID }
	return runStream(ctx, c.logger.WithField("stream", "posts"), opts.withDefaults(), fetch, id)
}

// StreamComments polls a subreddit for new comments. The channel is closed when ctx is cancelled.
func (c *Client) StreamComments(ctx context.Context, subreddit string, opts StreamOptions) <-chan types.StreamComment {
	fetch := func(ctx context.Context) ([]types.StreamComment, error) {
		return c.NewComments(ctx, subreddit, streamPageSize)
	}
	id := func(sc types.StreamComment) string { return sc.ID }
	return runStream(ctx, c.logger.WithField("stream", "comments"), opts.withDefaults(), fetch, id)
}

// runStream polls fetch, which returns items newest first, and emits unseen items oldest first
func runStream[T any](ctx context.Context, logger *logrus.Entry, opts StreamOptions, fetch func(context.Context) ([]T, error), idOf func(T) string) <-chan T {
	out := make(chan T, opts.BufferSize)
	seen := newBoundedSet(opts.SeenCapacity)

	go func() {
		defer close(out)

		primed := !opts.SkipExisting
		ticker := time.NewTicker(opts.PollInterval)
		defer ticker.Stop()

		for {
			items, err := fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.WithError(err).Warn("Failed to poll subreddit")
			} else if !primed {
				for _, item := range items {
					seen.Add(idOf(item))
				}
				primed = true
				logger.WithField("skipped", len(items)).Debug("Stream primed, existing items skipped")
			} else {
				for i := len(items) - 1; i >= 0; i-- {
					if !seen.Add(idOf(items[i])) {
						continue
					}
					select {
					case out <- items[i]:
					case <-ctx.Done():
						return
					}
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}

// boundedSet remembers the most recent ids up to a fixed capacity
type boundedSet struct {
	capacity int
	set      mapset.Set[string]
	order    []string
}

func newBoundedSet(capacity int) *boundedSet {
	return &boundedSet{
		capacity: capacity,
		set:      mapset.NewThreadUnsafeSetWithSize[string](capacity),
		order:    make([]string, 0, capacity),
	}
}

// Add records id and reports whether it was new
func (b *boundedSet) Add(id string) bool {
	if !b.set.Add(id) {
		return false
	}
	b.order = append(b.order, id)
	if len(b.order) > b.capacity {
		oldest := b.order[0]
		b.order = b.order[1:]
		b.set.Remove(oldest)
	}
	return true
}

func (b *boundedSet) Len() int {
	return b.set.Cardinality()
}
