package testutils

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TestSecret is a signing key long enough to pass config validation.
const TestSecret = "test-secret-test-secret-test-secret-32"

// Sign computes the hex HMAC-SHA256 of message the way the billing platform
// does. It is deliberately independent of the services package.
func Sign(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedWebhook returns body together with its X-Signature value.
func SignedWebhook(secret, body string) ([]byte, string) {
	raw := []byte(body)
	return raw, Sign(secret, raw)
}

// TestRedis returns a client on the test database, skipping the test when
// no Redis server is reachable.
func TestRedis(t testing.TB) *redis.Client {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{
		Addr: getEnv("TEST_REDIS_ADDR", "localhost:6379"),
		DB:   1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		t.Skipf("redis not available: %v", err)
	}

	rdb.FlushDB(context.Background())
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return rdb
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// RandomID returns a random identifier for testing
func RandomID() string {
	return uuid.NewString()
}
