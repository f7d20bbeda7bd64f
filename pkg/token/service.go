package token

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/81adi8/erp-sub005/pkg/config"
	"github.com/81adi8/erp-sub005/pkg/observability"
)

// Class identifies which signing-key pair a token belongs to.
type Class string

const (
	ClassAccess  Class = "access"
	ClassRefresh Class = "refresh"
)

// keyPair is one class's signing state. The whole struct is swapped
// atomically on rotation, so verifiers see either the fully-old or the
// fully-new pair.
type keyPair struct {
	active    []byte
	previous  []byte
	rotatedAt time.Time
}

// Service signs and verifies access and refresh tokens with independent
// dual-key pairs per class. Signing always uses the active key; verification
// retries the previous key only on signature-class failures, covering the
// rotation overlap window.
type Service struct {
	cfg      config.TokenConfig
	provider SecretProvider
	logger   *observability.Logger
	metrics  *observability.Metrics

	// rotateMu serializes the read-modify-write mutators (Rotate,
	// ClearPrevious, SweepExpiredKeys). Sign and verify stay lock-free on
	// the atomic pointers.
	rotateMu sync.Mutex

	access  atomic.Pointer[keyPair]
	refresh atomic.Pointer[keyPair]
}

// NewService loads the initial active keys from the secret provider. There is
// no previous key at boot.
func NewService(cfg config.TokenConfig, provider SecretProvider, logger *observability.Logger, metrics *observability.Metrics) (*Service, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}

	s := &Service{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		metrics:  metrics,
	}

	accessSecret, err := provider.GetSecret(cfg.AccessKeyName)
	if err != nil {
		return nil, fmt.Errorf("load access signing key: %w", err)
	}
	refreshSecret, err := provider.GetSecret(cfg.RefreshKeyName)
	if err != nil {
		return nil, fmt.Errorf("load refresh signing key: %w", err)
	}

	s.access.Store(&keyPair{active: accessSecret})
	s.refresh.Store(&keyPair{active: refreshSecret})
	return s, nil
}

// SignAccess issues an access token for a user, stamping issuer, expiry and
// the mandatory tokenType claim.
func (s *Service) SignAccess(userID, tenantID, sessionID string, mfa bool, roles []string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:    userID,
		TenantID:  tenantID,
		SessionID: sessionID,
		TokenType: TypeAccess,
		MFA:       mfa,
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
			ID:        uuid.NewString(),
		},
	}
	return s.sign(ClassAccess, claims)
}

// SignRefresh issues a refresh token for a session. tokenFamily persists
// across rotations of the same session's refresh token.
func (s *Service) SignRefresh(sessionID, tokenFamily string, rotationCount int) (string, error) {
	if tokenFamily == "" {
		tokenFamily = uuid.NewString()
	}
	now := time.Now()
	claims := RefreshClaims{
		SessionID:     sessionID,
		TokenFamily:   tokenFamily,
		RotationCount: rotationCount,
		TokenType:     TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTTL)),
			ID:        uuid.NewString(),
		},
	}
	return s.sign(ClassRefresh, claims)
}

// VerifyAccess verifies an access token and enforces the tokenType claim.
func (s *Service) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.verify(ClassAccess, tokenString, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeAccess {
		s.recordVerification(ClassAccess, "type_mismatch")
		return nil, fmt.Errorf("%w: got %q, want %q", ErrTokenType, claims.TokenType, TypeAccess)
	}
	s.recordVerification(ClassAccess, "ok")
	return claims, nil
}

// VerifyRefresh verifies a refresh token and enforces the tokenType claim.
func (s *Service) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.verify(ClassRefresh, tokenString, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeRefresh {
		s.recordVerification(ClassRefresh, "type_mismatch")
		return nil, fmt.Errorf("%w: got %q, want %q", ErrTokenType, claims.TokenType, TypeRefresh)
	}
	s.recordVerification(ClassRefresh, "ok")
	return claims, nil
}

// Rotate mints a new active key for a class, demoting the current active key
// to previous. The swap is a single pointer store, so concurrent verifiers
// never see a half-updated pair. The previous key stays valid until the
// overlap window closes (see SweepExpiredKeys).
func (s *Service) Rotate(class Class) error {
	s.rotateMu.Lock()
	defer s.rotateMu.Unlock()

	name := s.keyName(class)
	secret, err := s.provider.GenerateSecret(name)
	if err != nil {
		return fmt.Errorf("generate %s signing key: %w", class, err)
	}

	slot := s.slot(class)
	old := slot.Load()
	slot.Store(&keyPair{
		active:    secret,
		previous:  old.active,
		rotatedAt: time.Now(),
	})

	if s.metrics != nil {
		s.metrics.KeyRotationsTotal.WithLabelValues(string(class)).Inc()
	}
	s.logger.WithField("class", string(class)).Info("signing key rotated")
	return nil
}

// ClearPrevious drops a class's previous key immediately. Tokens signed under
// it stop verifying at once; use after a suspected key compromise.
func (s *Service) ClearPrevious(class Class) {
	s.rotateMu.Lock()
	defer s.rotateMu.Unlock()

	slot := s.slot(class)
	cur := slot.Load()
	if cur.previous == nil {
		return
	}
	slot.Store(&keyPair{active: cur.active})
	s.logger.WithField("class", string(class)).Info("previous signing key cleared")
}

// SweepExpiredKeys clears previous keys whose overlap window has closed. The
// window per class is the larger of the configured rotation overlap and the
// class's own token TTL, so every token signed under the old key has expired
// before the key is dropped. Returns the number of keys cleared.
func (s *Service) SweepExpiredKeys(now time.Time) int {
	s.rotateMu.Lock()
	defer s.rotateMu.Unlock()

	cleared := 0
	for _, class := range []Class{ClassAccess, ClassRefresh} {
		slot := s.slot(class)
		cur := slot.Load()
		if cur.previous == nil {
			continue
		}
		window := s.cfg.RotationOverlap
		if ttl := s.classTTL(class); ttl > window {
			window = ttl
		}
		if now.Before(cur.rotatedAt.Add(window)) {
			continue
		}
		slot.Store(&keyPair{active: cur.active})
		cleared++
		s.logger.WithField("class", string(class)).Info("previous signing key expired and dropped")
	}
	return cleared
}

func (s *Service) sign(class Class, claims jwt.Claims) (string, error) {
	pair := s.slot(class).Load()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(pair.active)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", class, err)
	}
	return signed, nil
}

// verify tries the active key first; on a signature-class failure only, it
// retries once with the previous key if one is configured. Semantic failures
// propagate immediately and the original error is kept when both keys fail.
func (s *Service) verify(class Class, tokenString string, claims jwt.Claims) error {
	pair := s.slot(class).Load()

	err := s.tryVerify(tokenString, claims, pair.active)
	if err == nil {
		return nil
	}
	if signatureFailure(err) && pair.previous != nil {
		if retryErr := s.tryVerify(tokenString, claims, pair.previous); retryErr == nil {
			return nil
		}
	}

	outcome := "invalid"
	if isExpired(err) {
		outcome = "expired"
		err = fmt.Errorf("%w: %v", ErrTokenExpired, err)
	} else {
		err = fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	s.recordVerification(class, outcome)
	return err
}

func (s *Service) tryVerify(tokenString string, claims jwt.Claims, secret []byte) error {
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(s.cfg.Issuer), jwt.WithExpirationRequired())
	return err
}

func isExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

func (s *Service) slot(class Class) *atomic.Pointer[keyPair] {
	if class == ClassRefresh {
		return &s.refresh
	}
	return &s.access
}

func (s *Service) keyName(class Class) string {
	if class == ClassRefresh {
		return s.cfg.RefreshKeyName
	}
	return s.cfg.AccessKeyName
}

func (s *Service) classTTL(class Class) time.Duration {
	if class == ClassRefresh {
		return s.cfg.RefreshTTL
	}
	return s.cfg.AccessTTL
}

func (s *Service) recordVerification(class Class, outcome string) {
	if s.metrics != nil {
		s.metrics.TokenVerificationsTotal.WithLabelValues(string(class), outcome).Inc()
	}
}
