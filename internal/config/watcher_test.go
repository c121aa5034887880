package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"lemmylink/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigWatcher(t *testing.T) {
	logger := logrus.New()
	watcher := NewConfigWatcher("config.json", logger)

	assert.Equal(t, "config.json", watcher.configPath)
	assert.Equal(t, logger, watcher.logger)
	assert.Equal(t, defaultWatchInterval, watcher.interval)
	assert.Empty(t, watcher.callbacks)
	assert.Nil(t, watcher.GetConfig())
}

func TestConfigWatcher_Start_InvalidPath(t *testing.T) {
	watcher := NewConfigWatcher(filepath.Join(t.TempDir(), "missing.json"), nil)
	err := watcher.Start(context.Background())
	assert.Error(t, err)
}

func TestConfigWatcher_ReloadsAndNotifies(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, validConfigJSON)

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	watcher := NewConfigWatcher(path, logger)
	watcher.interval = 10 * time.Millisecond

	var mu sync.Mutex
	var phrases []string
	watcher.OnConfigChange(func(c *models.Config) {
		mu.Lock()
		phrases = append(phrases, c.Sync.TriggerPhrase)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Start(ctx) }()

	require.Eventually(t, func() bool { return watcher.GetConfig() != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "LemmyLink!", watcher.GetConfig().Sync.TriggerPhrase)

	updated := strings.Replace(validConfigJSON, `"intervalSec": 30`, `"intervalSec": 30, "trigger_phrase": "Mirror!"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0600))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(phrases) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "Mirror!", phrases[0])
	mu.Unlock()
	assert.Equal(t, "Mirror!", watcher.GetConfig().Sync.TriggerPhrase)

	cancel()
	assert.NoError(t, <-done)
}

func TestConfigWatcher_CallbackPanicRecovered(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, validConfigJSON)
	watcher := NewConfigWatcher(path, nil)

	called := false
	watcher.OnConfigChange(func(*models.Config) { panic("boom") })
	watcher.OnConfigChange(func(*models.Config) { called = true })

	assert.NotPanics(t, watcher.reloadConfig)
	assert.True(t, called)
}
