package models

// Config holds the application configuration
type Config struct {
	Reddit   RedditConfig   `json:"reddit"`
	Lemmy    LemmyConfig    `json:"lemmy"`
	Sync     SyncConfig     `json:"sync"`
	Database DatabaseConfig `json:"database"`
	Retry    RetryConfig    `json:"retry"`
	Server   ServerConfig   `json:"server"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"log_level"`
}

// RedditConfig holds the origin platform settings
type RedditConfig struct {
	ClientID          string `json:"client_id"`
	ClientSecret      string `json:"client_secret"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	UserAgent         string `json:"user_agent"`
	Subreddit         string `json:"subreddit"`
	APIBaseURL        string `json:"api_base_url"`
	AuthURL           string `json:"auth_url"`
	WebBaseURL        string `json:"web_base_url"`
	PollIntervalSec   int    `json:"pollIntervalSec"`
	RequestsPerMinute int    `json:"requestsPerMinute"`
	TimeoutSec        int    `json:"timeoutSec"`
}

// LemmyConfig holds the mirror platform settings
type LemmyConfig struct {
	BaseURL           string `json:"base_url"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	CommunityID       int64  `json:"community_id"`
	RequestsPerSecond int    `json:"requestsPerSecond"`
	TimeoutSec        int    `json:"timeoutSec"`
}

// SyncConfig controls trigger detection and the reconciliation driver
type SyncConfig struct {
	IntervalSec           int    `json:"intervalSec"`
	CycleTimeoutSec       int    `json:"cycleTimeoutSec"`
	MaxConcurrentMappings int    `json:"maxConcurrentMappings"`
	TriggerPhrase         string `json:"trigger_phrase"`
	SkipExisting          *bool  `json:"skipExisting,omitempty"`
}

// ShouldSkipExisting reports whether streams ignore items that predate startup.
// Unset means true.
func (s SyncConfig) ShouldSkipExisting() bool {
	return s.SkipExisting == nil || *s.SkipExisting
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path          string `json:"path"`
	BusyTimeoutMs int    `json:"busyTimeoutMs"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// ServerConfig controls the health and metrics endpoint
type ServerConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// TracingConfig mirrors tracing.TracingConfig for JSON decoding
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
