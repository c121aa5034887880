package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"lemmylink/internal/constants"
	"lemmylink/internal/metrics"
	"lemmylink/internal/models"

	"github.com/sirupsen/logrus"
)

const triggerHandleTimeout = 2 * time.Minute

// TriggerListener watches the origin streams for the trigger phrase and
// hands matches to the initiator one at a time.
type TriggerListener struct {
	origin  OriginPlatform
	handler TriggerHandler
	logger  *logrus.Logger
	metrics *metrics.Registry

	mu     sync.RWMutex
	phrase string
}

func NewTriggerListener(origin OriginPlatform, handler TriggerHandler, phrase string, logger *logrus.Logger) *TriggerListener {
	if logger == nil {
		logger = logrus.New()
	}
	if phrase == "" {
		phrase = constants.DefaultTriggerPhrase
	}
	return &TriggerListener{
		origin:  origin,
		handler: handler,
		logger:  logger,
		metrics: metrics.GetRegistry(),
		phrase:  phrase,
	}
}

// WithMetrics records metrics into reg instead of the global registry
func (l *TriggerListener) WithMetrics(reg *metrics.Registry) *TriggerListener {
	if reg != nil {
		l.metrics = reg
	}
	return l
}

// SetTriggerPhrase replaces the phrase for subsequent items. Empty is ignored.
func (l *TriggerListener) SetTriggerPhrase(phrase string) {
	if phrase == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phrase = phrase
}

// TriggerPhrase returns the active phrase
func (l *TriggerListener) TriggerPhrase() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phrase
}

// Matches reports whether text contains the trigger phrase. The match is case-sensitive.
func (l *TriggerListener) Matches(text string) bool {
	return strings.Contains(text, l.TriggerPhrase())
}

// Run consumes both origin streams until ctx is cancelled or both close
func (l *TriggerListener) Run(ctx context.Context) {
	threads := l.origin.StreamThreads(ctx)
	comments := l.origin.StreamComments(ctx)

	l.logger.WithFields(logrus.Fields{
		LogFieldPlatform: l.origin.Name(),
		"trigger_phrase": l.TriggerPhrase(),
	}).Info("Trigger listener started")
	defer l.logger.Info("Trigger listener stopped")

	for threads != nil || comments != nil {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-threads:
			if !ok {
				threads = nil
				continue
			}
			if l.Matches(t.Title) || l.Matches(t.Body) {
				l.dispatch(ctx, t)
			}
		case c, ok := <-comments:
			if !ok {
				comments = nil
				continue
			}
			if l.Matches(c.Body) {
				l.dispatch(ctx, c)
			}
		}
	}
}

// dispatch hands a trigger to the initiator. The handler gets a context that
// survives shutdown so a half-created bridge is still recorded.
func (l *TriggerListener) dispatch(ctx context.Context, trigger models.Trigger) {
	entry := l.logger.WithFields(logrus.Fields{
		LogFieldTriggerID:      trigger.TriggerID(),
		LogFieldTriggerKind:    triggerKind(trigger),
		LogFieldOriginThreadID: trigger.OriginThreadID(),
		LogFieldAuthor:         trigger.AuthorHandle(),
	})

	if self := l.origin.SelfHandle(); self != "" && strings.EqualFold(trigger.AuthorHandle(), self) {
		entry.Debug("Skipping trigger: authored by the bridge")
		return
	}

	l.metrics.IncrementCounter(metrics.TriggersDetected, map[string]string{"kind": triggerKind(trigger)}, "Trigger phrases detected on the origin platform")
	entry.Info("Trigger detected")

	handleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), triggerHandleTimeout)
	defer cancel()
	l.handler.HandleTrigger(handleCtx, trigger)
}
