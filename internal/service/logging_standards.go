package service

// Standard field names for structured log entries. Use these instead of
// ad-hoc keys so log queries work across the listener, initiator and
// reconciler.
const (
	// Identifiers
	LogFieldCycleID         = "cycle_id"
	LogFieldTriggerID       = "trigger_id"
	LogFieldTriggerKind     = "trigger_kind"
	LogFieldOriginThreadID  = "origin_thread_id"
	LogFieldMirrorThreadID  = "mirror_thread_id"
	LogFieldCommentID       = "comment_id"
	LogFieldMirrorCommentID = "mirror_comment_id"

	// Service and operation fields
	LogFieldComponent = "component"
	LogFieldOperation = "operation"
	LogFieldStage     = "stage"
	LogFieldPlatform  = "platform"
	LogFieldDirection = "direction"
	LogFieldAuthor    = "author"

	// Performance and results
	LogFieldDuration   = "duration_ms"
	LogFieldCount      = "count"
	LogFieldReplicated = "replicated"
	LogFieldFailures   = "failures"
	LogFieldSkipped    = "skipped"
	LogFieldExcerpt    = "excerpt"
)

// Log level usage
//
// DEBUG: per-comment decisions (skipped as echo, already mapped), empty cycles.
// INFO: bridges created, comments replicated, cycle summaries, start/stop.
// WARN: transient platform failures, orphaned mirror threads, a mapping
// that could not be fetched this cycle.
// ERROR: failed bridge stages, store failures, replication that succeeded
// remotely but could not be recorded.
//
// Message patterns: "Starting [operation]", "Failed to [operation]",
// "Skipping [item]: [reason]".
