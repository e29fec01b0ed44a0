package redisbus

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var testRedisURL string

// TestMain points integration tests at BABELCHAT_TEST_REDIS_URL, or at a
// throwaway container when Docker is available. Without either they skip.
func TestMain(m *testing.M) {
	flag.Parse()

	testRedisURL = os.Getenv("BABELCHAT_TEST_REDIS_URL")
	var container *tcredis.RedisContainer
	if testRedisURL == "" && !testing.Short() {
		c, url, err := startRedis(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis container unavailable, skipping integration tests: %v\n", err)
		}
		container, testRedisURL = c, url
	}

	code := m.Run()

	if container != nil {
		_ = container.Terminate(context.Background())
	}
	os.Exit(code)
}

func startRedis(ctx context.Context) (c *tcredis.RedisContainer, url string, err error) {
	// testcontainers panics when no Docker host can be found.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker: %v", r)
		}
	}()

	c, err = tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, "", err
	}
	url, err = c.ConnectionString(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, "", err
	}
	return c, url, nil
}
