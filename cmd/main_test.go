package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/newsagent/pkg/store"
)

func TestParseFlags(t *testing.T) {
	opts := parseFlags([]string{
		"-config", "news.yaml",
		"-feed-url", "https://example.com/rss",
		"-store-dir", "/tmp/mem",
		"-watch", "5m",
		"-serve", ":9090",
	})

	assert.Equal(t, Options{
		ConfigPath: "news.yaml",
		FeedURL:    "https://example.com/rss",
		StoreDir:   "/tmp/mem",
		Watch:      5 * time.Minute,
		Serve:      ":9090",
	}, opts)
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feed:\n  url: https://example.com/a.rss\n"), 0o644))

	cfg, err := loadConfig(Options{
		ConfigPath: path,
		FeedURL:    "https://example.com/b.rss",
		StoreDir:   "custom",
		Watch:      time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b.rss", cfg.Feed.URL)
	assert.Equal(t, "custom", cfg.Memory.Dir)
	assert.Equal(t, time.Minute, cfg.Pipeline.WatchInterval)
	assert.Empty(t, cfg.Server.Addr)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feed:\n  url: https://example.com/a.rss\n"), 0o644))

	_, err := loadConfig(Options{ConfigPath: path, FeedURL: "not a url"})
	assert.Error(t, err)
}

func TestBuildPersister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memory:\n  backend: file\n"), 0o644))

	cfg, err := loadConfig(Options{ConfigPath: path, StoreDir: t.TempDir()})
	require.NoError(t, err)

	p, err := buildPersister(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &store.FilePersister{}, p)

	cfg.Memory.Backend = "redis"
	_, err = buildPersister(context.Background(), cfg)
	assert.Error(t, err)
}
