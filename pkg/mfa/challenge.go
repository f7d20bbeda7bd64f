package mfa

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/81adi8/erp-sub005/pkg/cache"
	"github.com/81adi8/erp-sub005/pkg/config"
	"github.com/81adi8/erp-sub005/pkg/observability"
)

// Challenge consumption failures. All four look identical to the caller on
// purpose; handlers map every one of them to the same MFA_INVALID response.
var (
	ErrChallengeNotFound = errors.New("mfa challenge not found or expired")
	ErrChallengeUsed     = errors.New("mfa challenge already used")
	ErrChallengeIP       = errors.New("mfa challenge ip mismatch")
	ErrChallengeDevice   = errors.New("mfa challenge device mismatch")
)

// usedGraceTTL keeps a mismatch-burned record around briefly so a second
// guess hits "already used" instead of "not found" racing a re-issue.
const usedGraceTTL = 30 * time.Second

// challengeRecord is the stored shape of a pending challenge. The client IP
// is hashed before storage; the raw IP never touches the cache.
type challengeRecord struct {
	UserID     string    `json:"userId"`
	SessionID  string    `json:"sessionId"`
	SchemaName string    `json:"schemaName"`
	IPHash     string    `json:"ipHash,omitempty"`
	DeviceHash string    `json:"deviceHash,omitempty"`
	IssuedAt   time.Time `json:"issuedAt"`
	Used       bool      `json:"used"`
}

// ChallengeResult is what a successfully consumed challenge hands back to
// the session-issuance step.
type ChallengeResult struct {
	UserID     string
	SessionID  string
	SchemaName string
	IssuedAt   time.Time
}

// ChallengeService issues and consumes the single-use challenge token that
// bridges password verification and full session issuance. Records live only
// in the distributed store, never in L1, so consumption is atomic across
// instances.
type ChallengeService struct {
	store   cache.Store
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewChallengeService wires the challenge service over the distributed store.
func NewChallengeService(store cache.Store, cfg config.MFAConfig, logger *observability.Logger, metrics *observability.Metrics) *ChallengeService {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	return &ChallengeService{
		store:   store,
		ttl:     cfg.ChallengeTTL,
		logger:  logger,
		metrics: metrics,
	}
}

// Issue creates a challenge bound to the caller's IP and device fingerprint
// and returns the opaque token. ip and deviceHash may be empty; empty
// bindings are simply not enforced on consume.
func (s *ChallengeService) Issue(ctx context.Context, userID, sessionID, schemaName, ip, deviceHash string) (string, error) {
	token, err := generateChallengeToken()
	if err != nil {
		return "", err
	}

	record := challengeRecord{
		UserID:     userID,
		SessionID:  sessionID,
		SchemaName: schemaName,
		IPHash:     hashBinding(ip),
		DeviceHash: deviceHash,
		IssuedAt:   time.Now().UTC(),
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode mfa challenge: %w", err)
	}

	if err := s.store.Set(ctx, cache.MFAChallengeKey(token), string(encoded), s.ttl); err != nil {
		return "", fmt.Errorf("store mfa challenge: %w", err)
	}

	s.record("issue", "ok")
	return token, nil
}

// Consume redeems a challenge exactly once. The record is atomically removed
// from the store before any validation result is returned, so a racing
// duplicate attempt can never also succeed. On an IP or device mismatch the
// record is re-stored marked used with a short grace TTL, then rejected,
// closing the window for a second guess.
func (s *ChallengeService) Consume(ctx context.Context, token, ip, deviceHash string) (*ChallengeResult, error) {
	key := cache.MFAChallengeKey(token)

	raw, ok, err := s.store.GetDel(ctx, key)
	if err != nil {
		s.record("consume", "store_error")
		return nil, fmt.Errorf("load mfa challenge: %w", err)
	}
	if !ok {
		s.record("consume", "not_found")
		return nil, ErrChallengeNotFound
	}

	var record challengeRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		s.record("consume", "corrupt")
		return nil, fmt.Errorf("decode mfa challenge: %w", err)
	}

	if record.Used {
		s.record("consume", "already_used")
		return nil, ErrChallengeUsed
	}

	if record.IPHash != "" && record.IPHash != hashBinding(ip) {
		s.burn(ctx, key, record)
		s.record("consume", "ip_mismatch")
		return nil, ErrChallengeIP
	}
	if record.DeviceHash != "" && record.DeviceHash != deviceHash {
		s.burn(ctx, key, record)
		s.record("consume", "device_mismatch")
		return nil, ErrChallengeDevice
	}

	s.record("consume", "ok")
	return &ChallengeResult{
		UserID:     record.UserID,
		SessionID:  record.SessionID,
		SchemaName: record.SchemaName,
		IssuedAt:   record.IssuedAt,
	}, nil
}

// burn writes the record back marked used so the next attempt fails as
// "already used" instead of opening a fresh guess.
func (s *ChallengeService) burn(ctx context.Context, key string, record challengeRecord) {
	record.Used = true
	encoded, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, key, string(encoded), usedGraceTTL); err != nil {
		s.logger.WithError(err).Warn("failed to mark mfa challenge used")
	}
}

func (s *ChallengeService) record(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.MFAChallengesTotal.WithLabelValues(operation, outcome).Inc()
	}
}

// generateChallengeToken returns 32 random bytes hex-encoded.
func generateChallengeToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate challenge token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// hashBinding hashes a client binding value (IP) for storage. Empty in,
// empty out, so absent bindings stay unenforced.
func hashBinding(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
