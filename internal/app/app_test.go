package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/babelchat-server/internal/config"
	"github.com/vovakirdan/babelchat-server/internal/log"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.DatabasePath = ":memory:"
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.LanguagePolicy = config.LanguageCached

	application, err := New(&cfg, log.Nop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if application.cache == nil {
		t.Fatalf("expected cached language policy to install a cache")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("app did not stop")
	}
}

func TestNewRejectsBadRedisURL(t *testing.T) {
	cfg := testConfig()
	cfg.BusBackend = config.BusRedis
	cfg.RedisURL = "not a url"

	_, err := New(&cfg, log.Nop())
	if err == nil || !strings.Contains(err.Error(), "redis_url") {
		t.Fatalf("expected redis_url error, got %v", err)
	}
}
