package constants

// Default timeout values used by client packages
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultTokenRefreshMarginSec = 60
)

// Rate limits applied when a client config leaves them unset
const (
	DefaultRedditRequestsPerMinute = 60
	DefaultRedditBurst             = 5
	DefaultLemmyRequestsPerSecond  = 5
)

// Subreddit stream defaults
const (
	DefaultStreamPollIntervalSec = 10
	DefaultStreamBufferSize      = 16
	DefaultSeenCapacity          = 1000
)

// MaxErrorBodyLogLength caps how much of an error response is kept in an APIError
const MaxErrorBodyLogLength = 512
