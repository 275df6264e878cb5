package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitora-app/fitora_backend/models"
)

func newTestRedisStore(t *testing.T) (*RedisOTPStore, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisOTPStore(client), client
}

func testRecord(identity, code string, attempts int) models.OTPRecord {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.OTPRecord{
		Identity:  identity,
		Code:      code,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(5 * time.Minute),
		Attempts:  attempts,
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)

	record := testRecord("user@example.com", "123456", 2)
	store.Put(record)

	got, ok := store.Get("user@example.com")
	require.True(t, ok)
	assert.Equal(t, record.Identity, got.Identity)
	assert.Equal(t, record.Code, got.Code)
	assert.Equal(t, record.Attempts, got.Attempts)
	assert.False(t, got.Verified)
	assert.True(t, record.ExpiresAt.Equal(got.ExpiresAt))
}

func TestRedisStoreGetMissing(t *testing.T) {
	store, _ := newTestRedisStore(t)

	_, ok := store.Get("nobody@example.com")
	assert.False(t, ok)
}

func TestRedisStoreTreatsBadPayloadAsAbsent(t *testing.T) {
	store, client := newTestRedisStore(t)

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "otp:user@example.com", "{not json", 0).Err())

	_, ok := store.Get("user@example.com")
	assert.False(t, ok)
}

func TestRedisStorePutClampsExpiredTTL(t *testing.T) {
	store, client := newTestRedisStore(t)

	record := testRecord("user@example.com", "123456", 0)
	record.ExpiresAt = time.Now().Add(-time.Minute)
	store.Put(record)

	// An already-expired record still lands in Redis, but with the minimum
	// TTL so it cannot linger without an expiry.
	ttl, err := client.TTL(context.Background(), "otp:user@example.com").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Second, ttl)
}

func TestRedisStoreCompareAndPut(t *testing.T) {
	store, _ := newTestRedisStore(t)

	record := testRecord("user@example.com", "111111", 0)
	record.ExpiresAt = time.Now().Add(5 * time.Minute)
	store.Put(record)

	updated := record
	updated.Attempts = 1

	// Stale expectations must not overwrite.
	assert.False(t, store.CompareAndPut(updated, "222222", 0))
	assert.False(t, store.CompareAndPut(updated, "111111", 5))

	got, ok := store.Get("user@example.com")
	require.True(t, ok)
	assert.Equal(t, 0, got.Attempts)

	// Matching expectations replace the record.
	assert.True(t, store.CompareAndPut(updated, "111111", 0))
	got, ok = store.Get("user@example.com")
	require.True(t, ok)
	assert.Equal(t, 1, got.Attempts)

	// A second writer with the old view lost the race.
	assert.False(t, store.CompareAndPut(updated, "111111", 0))
}

func TestRedisStoreCompareAndPutAbsentKey(t *testing.T) {
	store, _ := newTestRedisStore(t)

	record := testRecord("user@example.com", "111111", 1)
	assert.False(t, store.CompareAndPut(record, "111111", 0))

	_, ok := store.Get("user@example.com")
	assert.False(t, ok)
}

// Two service instances sharing one Redis must enforce the attempt budget
// between them: every wrong attempt past the cap is rejected, never counted
// as a fresh mismatch.
func TestRedisStoreAttemptCapAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)

	newInstance := func() (*OTPService, *redis.Client) {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return NewOTPService(NewRedisOTPStore(client), OTPConfig{
			TTL:         5 * time.Minute,
			MaxAttempts: 5,
		}), client
	}

	svcA, _ := newInstance()
	svcB, _ := newInstance()

	code, err := svcA.Issue("user@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	const workersPerInstance = 20

	var mu sync.Mutex
	mismatches := 0

	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, svc := range []*OTPService{svcA, svcB} {
		for i := 0; i < workersPerInstance; i++ {
			wg.Add(1)
			go func(s *OTPService) {
				defer wg.Done()
				<-start
				result := s.Verify("user@example.com", wrong, false)
				if strings.Contains(result.Message, "attempts remaining") {
					mu.Lock()
					mismatches++
					mu.Unlock()
				}
			}(svc)
		}
	}
	close(start)
	wg.Wait()

	// Exactly five attempts are counted between the two instances; the rest
	// see the cap or the purged record.
	assert.Equal(t, 5, mismatches)

	_, ok := svcB.Peek("user@example.com")
	assert.False(t, ok)
}
