// services/otp_redis_store.go
package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fitora-app/fitora_backend/models"
)

// RedisOTPStore keeps OTP records in Redis so multiple instances can share
// OTP state. Keys carry a TTL matching the record expiry, so Redis reclaims
// stale records on its own. A failed read is reported as absent, which the
// service treats the same as an expired record. CompareAndPut makes the
// verify state transitions atomic across instances: the record is replaced
// server-side only while the stored code and attempt count still match what
// the caller read, so concurrent wrong attempts from different instances
// cannot lose counter updates.
type RedisOTPStore struct {
	client *redis.Client
	prefix string
}

// compareAndPutScript replaces the record only if the stored code and attempt
// count match ARGV[1] and ARGV[2]. The existing TTL is preserved.
var compareAndPutScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
	return 0
end
local record = cjson.decode(data)
if record.code ~= ARGV[1] or record.attempts ~= tonumber(ARGV[2]) then
	return 0
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl <= 0 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[3], 'PX', ttl)
return 1
`)

// NewRedisOTPStore creates a Redis-backed OTP store.
func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{
		client: client,
		prefix: "otp:",
	}
}

func (r *RedisOTPStore) key(identity string) string {
	return r.prefix + identity
}

func (r *RedisOTPStore) Get(identity string) (models.OTPRecord, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := r.client.Get(ctx, r.key(identity)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Redis OTP get error for %s: %v", identity, err)
		}
		return models.OTPRecord{}, false
	}

	var record models.OTPRecord
	if err := json.Unmarshal(data, &record); err != nil {
		log.Printf("Redis OTP decode error for %s: %v", identity, err)
		return models.OTPRecord{}, false
	}
	return record, true
}

func (r *RedisOTPStore) Put(record models.OTPRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(record)
	if err != nil {
		log.Printf("Redis OTP encode error for %s: %v", record.Identity, err)
		return
	}

	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	if err := r.client.Set(ctx, r.key(record.Identity), data, ttl).Err(); err != nil {
		log.Printf("Redis OTP set error for %s: %v", record.Identity, err)
	}
}

// CompareAndPut implements the shared-store contract: the record is replaced
// atomically, and only while the stored code and attempt count still match
// the expectations. When Redis itself is unreachable the write degrades to a
// plain Put so the caller does not spin; the in-process mutex still
// serializes local callers in that case.
func (r *RedisOTPStore) CompareAndPut(record models.OTPRecord, expectedCode string, expectedAttempts int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(record)
	if err != nil {
		log.Printf("Redis OTP encode error for %s: %v", record.Identity, err)
		return true
	}

	res, err := compareAndPutScript.Run(ctx, r.client, []string{r.key(record.Identity)}, expectedCode, expectedAttempts, data).Int()
	if err != nil {
		log.Printf("Redis OTP compare-and-put error for %s: %v", record.Identity, err)
		r.Put(record)
		return true
	}
	return res == 1
}

func (r *RedisOTPStore) Delete(identity string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Del(ctx, r.key(identity)).Err(); err != nil {
		log.Printf("Redis OTP delete error for %s: %v", identity, err)
	}
}
