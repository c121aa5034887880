package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"lemmylink/internal/constants"
	"lemmylink/internal/models"
	"lemmylink/internal/security"
	"lemmylink/internal/tracing"
	clientconstants "lemmylink/pkg/constants"

	"github.com/joho/godotenv"
)

var (
	ErrMissingRedditCredentials = models.ConfigError{Message: "missing Reddit credentials (client_id, client_secret, username, password)"}
	ErrMissingSubreddit         = models.ConfigError{Message: "missing Reddit subreddit"}
	ErrMissingLemmyURL          = models.ConfigError{Message: "missing Lemmy base URL"}
	ErrMissingLemmyCredentials  = models.ConfigError{Message: "missing Lemmy credentials (username, password)"}
	ErrMissingCommunityID       = models.ConfigError{Message: "missing Lemmy community_id"}
)

// LoadEnvFile loads KEY=value pairs from path into the process environment.
// A missing file is not an error; variables already set are not overwritten.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	// Secrets usually arrive through the environment, so overrides go first
	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Reddit.ClientID == "" || c.Reddit.ClientSecret == "" || c.Reddit.Username == "" || c.Reddit.Password == "" {
		return ErrMissingRedditCredentials
	}
	c.Reddit.Subreddit = strings.TrimPrefix(strings.TrimSpace(c.Reddit.Subreddit), "r/")
	if c.Reddit.Subreddit == "" {
		return ErrMissingSubreddit
	}
	if c.Lemmy.BaseURL == "" {
		return ErrMissingLemmyURL
	}
	c.Lemmy.BaseURL = strings.TrimRight(c.Lemmy.BaseURL, "/")
	if c.Lemmy.Username == "" || c.Lemmy.Password == "" {
		return ErrMissingLemmyCredentials
	}
	if c.Lemmy.CommunityID <= 0 {
		return ErrMissingCommunityID
	}

	if c.Reddit.UserAgent == "" {
		c.Reddit.UserAgent = constants.DefaultRedditUserAgent
	}
	if c.Reddit.APIBaseURL == "" {
		c.Reddit.APIBaseURL = constants.DefaultRedditAPIBaseURL
	}
	if c.Reddit.AuthURL == "" {
		c.Reddit.AuthURL = constants.DefaultRedditAuthURL
	}
	if c.Reddit.WebBaseURL == "" {
		c.Reddit.WebBaseURL = constants.DefaultRedditWebBaseURL
	}
	if c.Reddit.PollIntervalSec <= 0 {
		c.Reddit.PollIntervalSec = constants.DefaultRedditPollIntervalSec
	}
	if c.Reddit.RequestsPerMinute <= 0 {
		c.Reddit.RequestsPerMinute = clientconstants.DefaultRedditRequestsPerMinute
	}
	if c.Reddit.TimeoutSec <= 0 {
		c.Reddit.TimeoutSec = clientconstants.DefaultHTTPTimeoutSec
	}

	if c.Lemmy.RequestsPerSecond <= 0 {
		c.Lemmy.RequestsPerSecond = clientconstants.DefaultLemmyRequestsPerSecond
	}
	if c.Lemmy.TimeoutSec <= 0 {
		c.Lemmy.TimeoutSec = clientconstants.DefaultHTTPTimeoutSec
	}

	if c.Sync.IntervalSec <= 0 {
		c.Sync.IntervalSec = constants.DefaultSyncIntervalSec
	}
	if c.Sync.CycleTimeoutSec <= 0 {
		c.Sync.CycleTimeoutSec = constants.DefaultCycleTimeoutSec
	}
	if c.Sync.MaxConcurrentMappings <= 0 {
		c.Sync.MaxConcurrentMappings = constants.DefaultMaxConcurrentMappings
	}
	if c.Sync.TriggerPhrase == "" {
		c.Sync.TriggerPhrase = constants.DefaultTriggerPhrase
	}

	if c.Database.Path == "" {
		c.Database.Path = constants.DefaultDatabasePath
	}
	if c.Database.BusyTimeoutMs <= 0 {
		c.Database.BusyTimeoutMs = constants.DefaultDatabaseBusyTimeoutMs
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.Port > 65535 {
		return models.ConfigError{Message: fmt.Sprintf("invalid server port: %d", c.Server.Port)}
	}

	tracingDefaults := tracing.DefaultTracingConfig()
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = tracingDefaults.ServiceName
	}
	if c.Tracing.ServiceVersion == "" {
		c.Tracing.ServiceVersion = tracingDefaults.ServiceVersion
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = tracingDefaults.Environment
	}
	if c.Tracing.OTLPEndpoint == "" && !c.Tracing.UseStdout {
		c.Tracing.OTLPEndpoint = tracingDefaults.OTLPEndpoint
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return models.ConfigError{Message: fmt.Sprintf("tracing sample_rate must be within [0,1], got %v", c.Tracing.SampleRate)}
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		c.Reddit.ClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		c.Reddit.ClientSecret = v
	}
	if v := os.Getenv("REDDIT_USERNAME"); v != "" {
		c.Reddit.Username = v
	}
	if v := os.Getenv("REDDIT_PASSWORD"); v != "" {
		c.Reddit.Password = v
	}

	if v := os.Getenv("LEMMY_BASE_URL"); v != "" {
		c.Lemmy.BaseURL = v
	}
	if v := os.Getenv("LEMMY_USERNAME"); v != "" {
		c.Lemmy.Username = v
	}
	if v := os.Getenv("LEMMY_PASSWORD"); v != "" {
		c.Lemmy.Password = v
	}

	if path := os.Getenv("LEMMYLINK_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if phrase := os.Getenv("LEMMYLINK_TRIGGER_PHRASE"); phrase != "" {
		c.Sync.TriggerPhrase = phrase
	}
}
