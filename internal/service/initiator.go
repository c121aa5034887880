package service

import (
	"context"
	"errors"

	"lemmylink/internal/database"
	apperrors "lemmylink/internal/errors"
	"lemmylink/internal/metrics"
	"lemmylink/internal/models"
	"lemmylink/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Bridge failure stages reported in logs and the bridge_failures_total metric
const (
	StagePrecheck    = "precheck"
	StageCreate      = "create_thread"
	StageRecord      = "record_mapping"
	StageAcknowledge = "acknowledge"
)

// Initiator creates the mirror thread for a trigger, records the thread
// mapping and acknowledges on the origin platform.
type Initiator struct {
	origin      OriginPlatform
	mirror      MirrorPlatform
	store       MappingStore
	communityID int64
	logger      *logrus.Logger
	errLog      *apperrors.Logger
	metrics     *metrics.Registry
}

func NewInitiator(origin OriginPlatform, mirror MirrorPlatform, store MappingStore, communityID int64, logger *logrus.Logger) *Initiator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Initiator{
		origin:      origin,
		mirror:      mirror,
		store:       store,
		communityID: communityID,
		logger:      logger,
		errLog:      apperrors.NewLogger(logger),
		metrics:     metrics.GetRegistry(),
	}
}

// WithMetrics records metrics into reg instead of the global registry
func (i *Initiator) WithMetrics(reg *metrics.Registry) *Initiator {
	if reg != nil {
		i.metrics = reg
	}
	return i
}

// HandleTrigger bridges the trigger's thread. Failures are logged, never returned.
func (i *Initiator) HandleTrigger(ctx context.Context, trigger models.Trigger) {
	kind := triggerKind(trigger)
	if kind == "" {
		i.logger.WithField(LogFieldTriggerKind, "unknown").Error("Skipping trigger: unsupported trigger type")
		return
	}

	originThreadID := trigger.OriginThreadID()
	ctx, span := tracing.StartSpan(ctx, tracing.SpanHandleTrigger,
		attribute.String(LogFieldTriggerID, trigger.TriggerID()),
		attribute.String(LogFieldTriggerKind, kind),
		attribute.String(LogFieldOriginThreadID, originThreadID),
	)
	defer span.End()

	fields := logrus.Fields{
		LogFieldTriggerID:      trigger.TriggerID(),
		LogFieldTriggerKind:    kind,
		LogFieldOriginThreadID: originThreadID,
		LogFieldAuthor:         trigger.AuthorHandle(),
	}

	if originThreadID == "" {
		i.logger.WithFields(fields).Error("Skipping trigger: no origin thread id")
		return
	}

	existing, err := i.store.MappingByOriginThread(ctx, originThreadID)
	if err != nil {
		i.fail(ctx, StagePrecheck, err, "Failed to check for an existing bridge", fields)
		return
	}
	if existing != nil {
		fields[LogFieldMirrorThreadID] = existing.MirrorThreadID
		tracing.AddSpanAttributes(ctx, attribute.String(LogFieldMirrorThreadID, existing.MirrorThreadID), attribute.Bool("already_bridged", true))
		i.logger.WithFields(fields).Info("Thread already bridged, acknowledging with existing mirror thread")
		i.acknowledge(ctx, trigger, existing.MirrorThreadID, fields)
		return
	}

	mirrorThreadID, err := i.mirror.CreateThread(ctx, i.communityID, ThreadTitle(trigger), ThreadBody(trigger))
	if err != nil {
		i.fail(ctx, StageCreate, err, "Failed to create mirror thread", fields)
		return
	}
	if mirrorThreadID == "" {
		i.fail(ctx, StageCreate, errors.New("mirror returned no thread id"), "Failed to create mirror thread", fields)
		return
	}
	fields[LogFieldMirrorThreadID] = mirrorThreadID

	recordCtx, cancel := recordContext(ctx)
	defer cancel()

	if _, err := i.store.CreateThreadMapping(recordCtx, originThreadID, trigger.TriggerID(), mirrorThreadID); err != nil {
		if !errors.Is(err, database.ErrThreadAlreadyMapped) {
			i.fail(ctx, StageRecord, err, "Failed to record thread mapping", fields)
			return
		}

		winner, lookupErr := i.store.MappingByOriginThread(recordCtx, originThreadID)
		if lookupErr != nil || winner == nil {
			if lookupErr == nil {
				lookupErr = err
			}
			i.fail(ctx, StageRecord, lookupErr, "Failed to load existing thread mapping", fields)
			return
		}
		i.logger.WithFields(fields).WithField("winning_mirror_thread_id", winner.MirrorThreadID).
			Warn("Thread was bridged concurrently, mirror thread left orphaned")
		mirrorThreadID = winner.MirrorThreadID
		fields[LogFieldMirrorThreadID] = mirrorThreadID
	} else {
		i.metrics.IncrementCounter(metrics.BridgesCreated, nil, "Mirror threads created for triggers")
		i.logger.WithFields(fields).Info("Created mirror thread")
	}

	tracing.AddSpanAttributes(ctx, attribute.String(LogFieldMirrorThreadID, mirrorThreadID))
	i.acknowledge(ctx, trigger, mirrorThreadID, fields)
}

func (i *Initiator) acknowledge(ctx context.Context, trigger models.Trigger, mirrorThreadID string, fields logrus.Fields) {
	reply, err := i.origin.CreateReply(ctx, trigger.ReplyTarget(), AckReply(i.mirror.ThreadURL(mirrorThreadID)))
	if err != nil {
		i.fail(ctx, StageAcknowledge, err, "Failed to post acknowledgment reply", fields)
		return
	}

	entry := i.logger.WithFields(fields)
	if reply != nil {
		entry = entry.WithField(LogFieldCommentID, reply.ID)
	}
	entry.Info("Posted acknowledgment reply")
}

func (i *Initiator) fail(ctx context.Context, stage string, err error, message string, fields logrus.Fields) {
	tracing.RecordError(ctx, err, attribute.String(LogFieldStage, stage))
	i.metrics.IncrementCounter(metrics.BridgeFailures, map[string]string{LogFieldStage: stage}, "Bridge attempts that failed, by stage")
	i.errLog.LogRetryableError(err, message, fields, logrus.Fields{LogFieldStage: stage})
}

func triggerKind(trigger models.Trigger) string {
	switch trigger.(type) {
	case models.ThreadTrigger:
		return "thread"
	case models.CommentTrigger:
		return "comment"
	}
	return ""
}
