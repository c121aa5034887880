package constants

// Default reconciliation configuration values
const (
	DefaultSyncIntervalSec        = 60
	DefaultCycleTimeoutSec        = 300
	DefaultMaxConcurrentMappings  = 1
	DefaultTriggerPhrase          = "LemmyLink!"
	DefaultRedditPollIntervalSec  = 10
	DefaultRetryBackoffMs         = 1000
	DefaultMaxBackoffMs           = 60000
	DefaultMaxAttempts            = 5
	DefaultServerPort             = 8082
	DefaultDatabasePath           = "lemmylink.db"
	DefaultDatabaseBusyTimeoutMs  = 5000
	DefaultDatabaseRetryAttempts  = 3
	DefaultGracefulShutdownSec    = 30
	DefaultServerReadTimeoutSec   = 15
	DefaultServerWriteTimeoutSec  = 15
	DefaultServerIdleTimeoutSec   = 60
	DefaultMappingWriteTimeoutSec = 10
)

// Platform defaults
const (
	DefaultRedditAPIBaseURL = "https://oauth.reddit.com"
	DefaultRedditAuthURL    = "https://www.reddit.com/api/v1/access_token"
	DefaultRedditWebBaseURL = "https://www.reddit.com"
	DefaultRedditUserAgent  = "lemmylink:bridge:v1.0 (by /u/lemmylink)"
)

// Text limits
const (
	MirrorTitleMaxRunes      = 200
	CommentTitleExcerptRunes = 50
	TitleEllipsis            = "..."
)
