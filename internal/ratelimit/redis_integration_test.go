package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLimiterIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	client := startRedis(t)
	ctx := context.Background()

	clock := newClock()
	lim := NewRedis(client, Limits{PerMinute: 2, PerHour: 3}, clock.now)

	for i := 0; i < 2; i++ {
		if err := lim.Allow(ctx, "demo"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		clock.advance(time.Second)
	}
	err := lim.Allow(ctx, "demo")
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) || exceeded.Window != WindowMinute {
		t.Fatalf("expected minute rejection, got %v", err)
	}
	if exceeded.RetryAfter != 58*time.Second {
		t.Fatalf("expected 58s wait, got %s", exceeded.RetryAfter)
	}

	rem, err := lim.Remaining(ctx, "demo")
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if rem.PerMinute != 0 || rem.PerHour != 1 {
		t.Fatalf("unexpected remaining %+v", rem)
	}

	clock.advance(time.Minute)
	if err := lim.Allow(ctx, "demo"); err != nil {
		t.Fatalf("expected allow after minute window: %v", err)
	}
	clock.advance(time.Minute)
	err = lim.Allow(ctx, "demo")
	if !errors.As(err, &exceeded) || exceeded.Window != WindowHour {
		t.Fatalf("expected hourly rejection, got %v", err)
	}
}
