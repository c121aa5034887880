package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"lemmylink/internal/constants"
	"lemmylink/internal/database"
	apperrors "lemmylink/internal/errors"
	"lemmylink/internal/metrics"
	"lemmylink/internal/models"
	"lemmylink/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ReconcilerConfig controls the reconciliation driver.
// OriginSelf and MirrorSelf are the bridge's own handles; comments they
// authored are never replicated.
type ReconcilerConfig struct {
	Interval              time.Duration
	CycleTimeout          time.Duration
	MaxConcurrentMappings int
	OriginSelf            string
	MirrorSelf            string
}

// ReconcilerConfigFrom builds the driver settings from the sync config section
func ReconcilerConfigFrom(cfg models.SyncConfig, originSelf, mirrorSelf string) ReconcilerConfig {
	return ReconcilerConfig{
		Interval:              time.Duration(cfg.IntervalSec) * time.Second,
		CycleTimeout:          time.Duration(cfg.CycleTimeoutSec) * time.Second,
		MaxConcurrentMappings: cfg.MaxConcurrentMappings,
		OriginSelf:            originSelf,
		MirrorSelf:            mirrorSelf,
	}
}

// CycleStats summarizes one reconciliation cycle
type CycleStats struct {
	CycleID        string
	Mappings       int
	OriginToMirror int
	MirrorToOrigin int
	Skipped        int
	Failures       int
	FetchFailures  int
	Duration       time.Duration
	Err            error
}

// Replicated is the number of comments copied in either direction
func (s CycleStats) Replicated() int {
	return s.OriginToMirror + s.MirrorToOrigin
}

type mappingResult struct {
	replicated  int
	skipped     int
	failures    int
	fetchFailed bool
}

// Reconciler copies unseen comments between every bridged thread pair on a fixed interval
type Reconciler struct {
	origin  OriginPlatform
	mirror  MirrorPlatform
	store   MappingStore
	config  ReconcilerConfig
	logger  *logrus.Logger
	errLog  *apperrors.Logger
	metrics *metrics.Registry

	cycleMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

func NewReconciler(origin OriginPlatform, mirror MirrorPlatform, store MappingStore, config ReconcilerConfig, logger *logrus.Logger) *Reconciler {
	if logger == nil {
		logger = logrus.New()
	}
	if config.Interval <= 0 {
		config.Interval = constants.DefaultSyncIntervalSec * time.Second
	}
	if config.CycleTimeout <= 0 {
		config.CycleTimeout = constants.DefaultCycleTimeoutSec * time.Second
	}
	if config.MaxConcurrentMappings <= 0 {
		config.MaxConcurrentMappings = constants.DefaultMaxConcurrentMappings
	}
	return &Reconciler{
		origin:  origin,
		mirror:  mirror,
		store:   store,
		config:  config,
		logger:  logger,
		errLog:  apperrors.NewLogger(logger),
		metrics: metrics.GetRegistry(),
	}
}

// WithMetrics records metrics into reg instead of the global registry
func (r *Reconciler) WithMetrics(reg *metrics.Registry) *Reconciler {
	if reg != nil {
		r.metrics = reg
	}
	return r
}

// Start runs a cycle immediately and then one per interval until Stop
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("reconciler is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go r.loop(loopCtx)

	r.logger.WithFields(logrus.Fields{
		"interval":                r.config.Interval.String(),
		"max_concurrent_mappings": r.config.MaxConcurrentMappings,
	}).Info("Reconciler started")

	return nil
}

// Stop cancels the driver and waits for the in-flight cycle to finish
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	r.logger.Info("Stopping reconciler...")
	cancel()
	r.wg.Wait()
	r.logger.Info("Reconciler stopped")
}

// IsRunning returns whether the driver is active
func (r *Reconciler) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// RunForever drives cycles until ctx is cancelled, then waits for the in-flight cycle
func (r *Reconciler) RunForever(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	r.Stop()
	return nil
}

func (r *Reconciler) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.runDetached(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runDetached(ctx)
		}
	}
}

// recordContext bounds a mapping write that follows a successful remote
// post. It ignores the caller's deadline so the copy is never left unmapped.
func recordContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), time.Duration(constants.DefaultMappingWriteTimeoutSec)*time.Second)
}

// runDetached runs a cycle that is not cancelled by Stop, so a remote post
// that succeeds always gets its mapping recorded.
func (r *Reconciler) runDetached(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	r.RunCycle(context.WithoutCancel(ctx))
}

// RunCycle performs one full reconciliation pass over every thread mapping.
// Concurrent calls are serialized.
func (r *Reconciler) RunCycle(ctx context.Context) (stats CycleStats) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	start := time.Now()
	stats.CycleID = tracing.NewCycleID()

	ctx, cancel := context.WithTimeout(tracing.WithCycleID(ctx, stats.CycleID), r.config.CycleTimeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, tracing.SpanReconcileCycle, attribute.String(LogFieldCycleID, stats.CycleID))
	defer span.End()

	log := r.logger.WithField(LogFieldCycleID, stats.CycleID)

	defer func() {
		stats.Duration = time.Since(start)
		r.metrics.RecordTimer(metrics.ReconcileCycleDuration, stats.Duration, nil, "Duration of reconciliation cycles")
	}()

	mappings, err := r.store.AllThreadMappings(ctx)
	if err != nil {
		stats.Err = err
		tracing.RecordError(ctx, err)
		r.metrics.IncrementCounter(metrics.ReconcileCycleFailures, nil, "Reconciliation cycles skipped because mappings could not be loaded")
		r.errLog.LogError(err, "Failed to load thread mappings, skipping cycle", logrus.Fields{LogFieldCycleID: stats.CycleID})
		return stats
	}

	stats.Mappings = len(mappings)
	if len(mappings) == 0 {
		log.Debug("No thread mappings, nothing to reconcile")
		return stats
	}

	for _, direction := range []models.SyncDirection{models.DirectionOriginToMirror, models.DirectionMirrorToOrigin} {
		r.runPass(ctx, mappings, direction, &stats)
	}

	r.updateGauges(ctx)

	span.SetAttributes(
		attribute.Int("mappings", stats.Mappings),
		attribute.Int(LogFieldReplicated, stats.Replicated()),
		attribute.Int(LogFieldFailures, stats.Failures),
	)

	log.WithFields(logrus.Fields{
		LogFieldCount:      stats.Mappings,
		"origin_to_mirror": stats.OriginToMirror,
		"mirror_to_origin": stats.MirrorToOrigin,
		LogFieldSkipped:    stats.Skipped,
		LogFieldFailures:   stats.Failures,
		"fetch_failures":   stats.FetchFailures,
		LogFieldDuration:   time.Since(start).Milliseconds(),
	}).Info("Completed reconciliation cycle")

	return stats
}

// runPass replicates one direction for every mapping, in parallel when configured
func (r *Reconciler) runPass(ctx context.Context, mappings []*models.ThreadMapping, direction models.SyncDirection, stats *CycleStats) {
	var mu sync.Mutex
	collect := func(res mappingResult) {
		mu.Lock()
		defer mu.Unlock()
		if direction == models.DirectionOriginToMirror {
			stats.OriginToMirror += res.replicated
		} else {
			stats.MirrorToOrigin += res.replicated
		}
		stats.Skipped += res.skipped
		stats.Failures += res.failures
		if res.fetchFailed {
			stats.FetchFailures++
		}
	}

	if r.config.MaxConcurrentMappings <= 1 {
		for _, mapping := range mappings {
			if ctx.Err() != nil {
				r.logger.WithField(LogFieldDirection, direction).Warn("Cycle timeout reached, leaving remaining mappings for next cycle")
				return
			}
			collect(r.syncMapping(ctx, mapping, direction))
		}
		return
	}

	sem := make(chan struct{}, r.config.MaxConcurrentMappings)
	var wg sync.WaitGroup
	for _, mapping := range mappings {
		if ctx.Err() != nil {
			r.logger.WithField(LogFieldDirection, direction).Warn("Cycle timeout reached, leaving remaining mappings for next cycle")
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(m *models.ThreadMapping) {
			defer wg.Done()
			defer func() { <-sem }()
			collect(r.syncMapping(ctx, m, direction))
		}(mapping)
	}
	wg.Wait()
}

// syncMapping copies every unseen comment of one thread pair in one direction
func (r *Reconciler) syncMapping(ctx context.Context, mapping *models.ThreadMapping, direction models.SyncDirection) mappingResult {
	var res mappingResult

	ctx, span := tracing.StartSpan(ctx, tracing.SpanSyncMapping,
		attribute.String(LogFieldOriginThreadID, mapping.OriginThreadID),
		attribute.String(LogFieldMirrorThreadID, mapping.MirrorThreadID),
		attribute.String(LogFieldDirection, string(direction)),
	)
	defer span.End()

	fields := logrus.Fields{
		LogFieldCycleID:        tracing.GetCycleID(ctx),
		LogFieldOriginThreadID: mapping.OriginThreadID,
		LogFieldMirrorThreadID: mapping.MirrorThreadID,
		LogFieldDirection:      string(direction),
	}
	labels := map[string]string{LogFieldDirection: string(direction)}

	comments, err := r.fetch(ctx, mapping, direction)
	if err != nil {
		res.fetchFailed = true
		tracing.RecordError(ctx, err)
		r.metrics.IncrementCounter(metrics.MappingFetchFailures, labels, "Thread comment fetches that failed")
		r.errLog.LogRetryableError(err, "Failed to fetch comments, skipping mapping this cycle", fields)
		return res
	}

	self := r.config.OriginSelf
	if direction == models.DirectionMirrorToOrigin {
		self = r.config.MirrorSelf
	}

	for _, c := range comments {
		if ctx.Err() != nil {
			r.logger.WithFields(fields).Warn("Cycle timeout reached, leaving remaining comments for next cycle")
			break
		}

		entry := r.logger.WithFields(fields).WithFields(logrus.Fields{
			LogFieldCommentID: c.ID,
			LogFieldAuthor:    c.Author,
		})

		existing, err := r.store.CommentMappingByEitherID(ctx, c.ID)
		if err != nil {
			res.failures++
			r.errLog.LogError(err, "Failed to check comment mapping, skipping comment", fields, logrus.Fields{LogFieldCommentID: c.ID})
			continue
		}
		if existing != nil {
			res.skipped++
			continue
		}
		if self != "" && strings.EqualFold(c.Author, self) {
			res.skipped++
			entry.Debug("Skipping comment: authored by the bridge")
			continue
		}

		newID, err := r.replicate(ctx, mapping, direction, c)
		if err == nil && newID == "" {
			err = errors.New("platform returned no comment id")
		}
		if err != nil {
			res.failures++
			r.metrics.IncrementCounter(metrics.CommentReplicationFailures, labels, "Comments that could not be replicated")
			r.errLog.LogRetryableError(err, "Failed to replicate comment", fields, logrus.Fields{LogFieldCommentID: c.ID})
			continue
		}

		entry = entry.WithField(LogFieldMirrorCommentID, newID)
		recordCtx, cancel := recordContext(ctx)
		_, err = r.store.CreateCommentMapping(recordCtx, c.ID, newID, direction)
		cancel()
		if err != nil {
			res.failures++
			if errors.Is(err, database.ErrCommentAlreadyMapped) {
				entry.Warn("Comment was mapped concurrently, replicated copy may be duplicated")
			} else {
				r.errLog.LogError(err, "Replicated comment but failed to record mapping", fields,
					logrus.Fields{LogFieldCommentID: c.ID, LogFieldMirrorCommentID: newID})
			}
			continue
		}

		res.replicated++
		r.metrics.IncrementCounter(metrics.CommentsReplicated, labels, "Comments replicated between platforms")
		logBody(ctx, entry, c.Body).Info("Replicated comment")
	}

	return res
}

func (r *Reconciler) fetch(ctx context.Context, mapping *models.ThreadMapping, direction models.SyncDirection) ([]models.Comment, error) {
	if direction == models.DirectionOriginToMirror {
		return r.origin.ListComments(ctx, mapping.OriginThreadID)
	}

	comments, err := r.mirror.ListComments(ctx, mapping.MirrorThreadID)
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	return comments, err
}

func (r *Reconciler) replicate(ctx context.Context, mapping *models.ThreadMapping, direction models.SyncDirection, c models.Comment) (string, error) {
	if direction == models.DirectionOriginToMirror {
		return r.mirror.CreateComment(ctx, mapping.MirrorThreadID, FormatMirrorComment(c), nil)
	}

	target := models.ReplyTarget{ID: mapping.OriginThreadID, Kind: models.TargetThread}
	reply, err := r.origin.CreateReply(ctx, target, FormatOriginComment(c))
	if err != nil {
		return "", err
	}
	if reply == nil {
		return "", nil
	}
	return reply.ID, nil
}

func (r *Reconciler) updateGauges(ctx context.Context) {
	stats, err := r.store.Stats(ctx)
	if err != nil {
		r.errLog.LogWarn(err, "Failed to read mapping counts")
		return
	}
	if stats == nil {
		return
	}
	r.metrics.SetGauge(metrics.ThreadMappingsGauge, float64(stats.ThreadMappings), nil, "Bridged thread pairs")
	r.metrics.SetGauge(metrics.CommentMappingsGauge, float64(stats.CommentMappings), nil, "Replicated comments")
}
