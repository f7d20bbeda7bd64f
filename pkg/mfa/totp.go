package mfa

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/81adi8/erp-sub005/pkg/cache"
	"github.com/81adi8/erp-sub005/pkg/config"
	"github.com/81adi8/erp-sub005/pkg/observability"
)

var (
	// ErrSetupNotFound means no TOTP enrollment is pending for the user.
	ErrSetupNotFound = errors.New("mfa setup not found or expired")

	// ErrCodeInvalid means a TOTP or backup code failed verification.
	ErrCodeInvalid = errors.New("mfa code invalid")
)

// setupRecord is a pending TOTP enrollment, held only in the distributed
// store until the user confirms the first code.
type setupRecord struct {
	Secret    string    `json:"secret"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// Enrollment is the outcome of a confirmed TOTP setup. BackupCodes is the
// one-time plaintext view; only Hashes may be persisted.
type Enrollment struct {
	Secret      string
	BackupCodes []string
	Hashes      []string
}

// TOTPService manages TOTP enrollment and verification plus bcrypt-hashed
// backup codes.
type TOTPService struct {
	store   cache.Store
	cfg     config.MFAConfig
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewTOTPService wires the TOTP service over the distributed store.
func NewTOTPService(store cache.Store, cfg config.MFAConfig, logger *observability.Logger, metrics *observability.Metrics) *TOTPService {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	return &TOTPService{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// BeginSetup mints a new TOTP secret for a user and parks it in the store
// until confirmed. Returns the otpauth:// provisioning URL for the QR code.
func (s *TOTPService) BeginSetup(ctx context.Context, userID, accountName string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.TOTPIssuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}

	record := setupRecord{
		Secret:    key.Secret(),
		URL:       key.URL(),
		CreatedAt: time.Now().UTC(),
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode mfa setup: %w", err)
	}
	if err := s.store.Set(ctx, cache.MFASetupKey(userID), string(encoded), s.cfg.SetupTTL); err != nil {
		return "", fmt.Errorf("store mfa setup: %w", err)
	}

	s.record("setup_begin", "ok")
	return key.URL(), nil
}

// ConfirmSetup verifies the user's first code against the pending secret.
// On success the pending record is atomically consumed and a fresh set of
// backup codes is minted; the caller persists the secret and the hashes.
func (s *TOTPService) ConfirmSetup(ctx context.Context, userID, code string) (*Enrollment, error) {
	key := cache.MFASetupKey(userID)

	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load mfa setup: %w", err)
	}
	if !ok {
		s.record("setup_confirm", "not_found")
		return nil, ErrSetupNotFound
	}

	var record setupRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode mfa setup: %w", err)
	}

	if !totp.Validate(code, record.Secret) {
		s.record("setup_confirm", "invalid_code")
		return nil, ErrCodeInvalid
	}

	// Consume the pending record only after the code checked out; the
	// GetDel guards against a racing duplicate confirmation.
	if _, ok, err := s.store.GetDel(ctx, key); err != nil || !ok {
		if err != nil {
			return nil, fmt.Errorf("consume mfa setup: %w", err)
		}
		s.record("setup_confirm", "already_consumed")
		return nil, ErrSetupNotFound
	}

	codes, hashes, err := s.generateBackupCodes()
	if err != nil {
		return nil, err
	}

	s.record("setup_confirm", "ok")
	return &Enrollment{
		Secret:      record.Secret,
		BackupCodes: codes,
		Hashes:      hashes,
	}, nil
}

// VerifyCode checks a TOTP code against an enrolled secret.
func (s *TOTPService) VerifyCode(secret, code string) error {
	if !totp.Validate(code, secret) {
		s.record("verify", "invalid_code")
		return ErrCodeInvalid
	}
	s.record("verify", "ok")
	return nil
}

// VerifyBackupCode compares a backup code against the stored bcrypt hashes
// and returns the index of the consumed hash; the caller removes that hash
// from persistence so each code works once.
func (s *TOTPService) VerifyBackupCode(hashes []string, code string) (int, error) {
	for i, hash := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil {
			s.record("backup_verify", "ok")
			return i, nil
		}
	}
	s.record("backup_verify", "invalid_code")
	return -1, ErrCodeInvalid
}

// generateBackupCodes mints the configured number of 8-byte hex codes and
// their bcrypt hashes.
func (s *TOTPService) generateBackupCodes() ([]string, []string, error) {
	n := s.cfg.BackupCodes
	if n <= 0 {
		n = 10
	}

	codes := make([]string, 0, n)
	hashes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		raw := make([]byte, 8)
		if _, err := rand.Read(raw); err != nil {
			return nil, nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		code := hex.EncodeToString(raw)

		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to hash backup code: %w", err)
		}
		codes = append(codes, code)
		hashes = append(hashes, string(hash))
	}
	return codes, hashes, nil
}

func (s *TOTPService) record(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.MFAChallengesTotal.WithLabelValues(operation, outcome).Inc()
	}
}
