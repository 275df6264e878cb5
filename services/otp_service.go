// services/otp_service.go
package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fitora-app/fitora_backend/models"
)

const (
	otpCodeMin = 100000
	otpCodeMax = 999999
)

// OTPConfig holds the tunable parameters of the OTP service.
type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
}

// DefaultOTPConfig returns the reference configuration (5 minute validity,
// 5 verification attempts), overridable through OTP_TTL_SECONDS and
// OTP_MAX_ATTEMPTS environment variables.
func DefaultOTPConfig() OTPConfig {
	cfg := OTPConfig{
		TTL:         5 * time.Minute,
		MaxAttempts: 5,
	}

	if ttlStr := os.Getenv("OTP_TTL_SECONDS"); ttlStr != "" {
		if ttl, err := strconv.Atoi(ttlStr); err == nil && ttl > 0 {
			cfg.TTL = time.Duration(ttl) * time.Second
		}
	}

	if maxStr := os.Getenv("OTP_MAX_ATTEMPTS"); maxStr != "" {
		if max, err := strconv.Atoi(maxStr); err == nil && max > 0 {
			cfg.MaxAttempts = max
		}
	}

	return cfg
}

// OTPStore is the storage backend for OTP records. Implementations do not
// need to provide read-modify-write atomicity; OTPService serializes access.
type OTPStore interface {
	Get(identity string) (models.OTPRecord, bool)
	Put(record models.OTPRecord)
	Delete(identity string)
}

// expirableStore is implemented by stores that can drop expired records in
// bulk. Backends with native TTL support (Redis) reclaim on their own.
type expirableStore interface {
	DeleteExpired(now time.Time) int
}

// sharedStore is implemented by stores that other processes write to
// concurrently. CompareAndPut must replace the record atomically, and only
// while the stored code and attempt count still match the expectations the
// caller read; otherwise it reports false and the caller re-reads.
type sharedStore interface {
	CompareAndPut(record models.OTPRecord, expectedCode string, expectedAttempts int) bool
}

// OTPService manages issuance, verification and consumption of one-time
// passcodes, one record per identity.
type OTPService struct {
	store OTPStore
	cfg   OTPConfig

	mu sync.Mutex

	// Injectable for deterministic tests.
	now  func() time.Time
	rand io.Reader
}

// NewOTPService creates an OTP service on top of the given store.
func NewOTPService(store OTPStore, cfg OTPConfig) *OTPService {
	return &OTPService{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		rand:  rand.Reader,
	}
}

// normalizeIdentity trims and lowercases the identity so that the same email
// address always maps to the same record.
func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// GenerateCode produces a random 6-digit code, uniform over
// [100000, 999999]. Pure generation, no storage side effects.
func (s *OTPService) GenerateCode() (string, error) {
	n, err := rand.Int(s.rand, big.NewInt(otpCodeMax-otpCodeMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return strconv.FormatInt(n.Int64()+otpCodeMin, 10), nil
}

// Issue generates a fresh code for the identity and stores it, replacing any
// existing record. The latest code always wins. The code is returned so the
// caller decides how to deliver it.
func (s *OTPService) Issue(identity string) (string, error) {
	identity = normalizeIdentity(identity)
	if identity == "" {
		return "", errors.New("identity is required")
	}

	code, err := s.GenerateCode()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.store.Put(models.OTPRecord{
		Identity:  identity,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TTL),
		Attempts:  0,
		Verified:  false,
	})

	return code, nil
}

// Verify checks the input code against the stored record. Expiry is checked
// on every read, so the background sweep is never load-bearing. When
// consumeOnSuccess is false a matching record is retained in verified state
// and keeps verifying until it expires or is consumed; the password reset
// flow needs that across two round trips.
func (s *OTPService) Verify(identity, inputCode string, consumeOnSuccess bool) models.VerifyResult {
	identity = normalizeIdentity(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	// The mutex serializes callers within this process. A shared store is
	// also written to by other processes, so state transitions go through
	// putChecked and the loop restarts whenever another writer got there
	// first; each restart re-reads and re-checks from scratch.
	for {
		record, ok := s.store.Get(identity)
		if !ok {
			return models.VerifyResult{Valid: false, Message: "OTP does not exist or has expired. Please request a new code."}
		}

		if s.now().After(record.ExpiresAt) {
			s.store.Delete(identity)
			return models.VerifyResult{Valid: false, Message: "OTP does not exist or has expired. Please request a new code."}
		}

		if record.Attempts >= s.cfg.MaxAttempts {
			s.store.Delete(identity)
			return models.VerifyResult{Valid: false, Message: "Too many failed attempts. Please request a new code."}
		}

		if inputCode != record.Code {
			updated := record
			updated.Attempts++
			if !s.putChecked(updated, record.Code, record.Attempts) {
				continue
			}
			remaining := s.cfg.MaxAttempts - updated.Attempts
			return models.VerifyResult{Valid: false, Message: fmt.Sprintf("Invalid OTP. %d attempts remaining.", remaining)}
		}

		if consumeOnSuccess {
			s.store.Delete(identity)
		} else {
			updated := record
			updated.Verified = true
			if !s.putChecked(updated, record.Code, record.Attempts) {
				continue
			}
		}

		return models.VerifyResult{Valid: true, Message: "OTP is valid."}
	}
}

// putChecked stores the record, using compare-and-set when the store is
// shared with other processes. A false return means the stored record changed
// since it was read and the caller must start over.
func (s *OTPService) putChecked(record models.OTPRecord, expectedCode string, expectedAttempts int) bool {
	if ss, ok := s.store.(sharedStore); ok {
		return ss.CompareAndPut(record, expectedCode, expectedAttempts)
	}
	s.store.Put(record)
	return true
}

// Peek returns a copy of the live record, or absent. It never mutates state;
// an expired record is reported absent even though it has not been purged.
func (s *OTPService) Peek(identity string) (models.OTPRecord, bool) {
	identity = normalizeIdentity(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.store.Get(identity)
	if !ok || s.now().After(record.ExpiresAt) {
		return models.OTPRecord{}, false
	}
	return record, true
}

// Consume removes the record for the identity. Deleting an absent identity is
// a no-op. Called after the dependent action (password change) succeeds.
func (s *OTPService) Consume(identity string) {
	identity = normalizeIdentity(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Delete(identity)
}

// PurgeExpired drops expired records from stores that support bulk cleanup.
// Memory reclamation only; verification re-checks expiry regardless.
func (s *OTPService) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if es, ok := s.store.(expirableStore); ok {
		return es.DeleteExpired(s.now())
	}
	return 0
}

// MemoryOTPStore keeps OTP records in a process-local map. State lives for
// the process lifetime only; multi-instance deployments should use
// RedisOTPStore instead.
type MemoryOTPStore struct {
	mu      sync.RWMutex
	records map[string]models.OTPRecord
}

// NewMemoryOTPStore creates an empty in-memory store.
func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{
		records: make(map[string]models.OTPRecord),
	}
}

func (m *MemoryOTPStore) Get(identity string) (models.OTPRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[identity]
	return record, ok
}

func (m *MemoryOTPStore) Put(record models.OTPRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.Identity] = record
}

func (m *MemoryOTPStore) Delete(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, identity)
}

// DeleteExpired removes every record past its expiry and reports how many
// were dropped.
func (m *MemoryOTPStore) DeleteExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for identity, record := range m.records {
		if now.After(record.ExpiresAt) {
			delete(m.records, identity)
			purged++
		}
	}
	return purged
}
