package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/sweetpotato0/agentgate/config"
)

// Remote backends run only when a server is configured, e.g.
// REDIS_ADDR=localhost:6379 go test ./state/store/...

func uniqueKey(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis store tests")
	}
	s, err := NewRedisStore(context.Background(), config.RedisConfig{Addr: addr, Prefix: "agentgate-test:"})
	if err != nil {
		t.Skipf("Failed to connect to Redis: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s, uniqueKey("wallet"))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set, skipping PostgreSQL store tests")
	}
	s, err := NewPostgresStore(context.Background(), config.PostgresConfig{DSN: dsn, Table: "agent_state_test"})
	if err != nil {
		t.Skipf("Failed to connect to PostgreSQL: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s, uniqueKey("wallet"))
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set, skipping MongoDB store tests")
	}
	s, err := NewMongoStore(context.Background(), config.MongoConfig{URI: uri, Database: "agentgate_test", Collection: "state_test"})
	if err != nil {
		t.Skipf("Failed to connect to MongoDB: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s, uniqueKey("wallet"))
}
