package mfa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/81adi8/erp-sub005/pkg/cache"
	"github.com/81adi8/erp-sub005/pkg/config"
)

func newTestTOTPService(t *testing.T) (*TOTPService, cache.Store) {
	t.Helper()
	store := cache.NewMemoryStore()
	cfg := config.MFAConfig{
		SetupTTL:    10 * time.Minute,
		TOTPIssuer:  "erp-test",
		BackupCodes: 4,
	}
	return NewTOTPService(store, cfg, nil, nil), store
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("failed to generate totp code: %v", err)
	}
	return code
}

func pendingSecret(t *testing.T, store cache.Store, userID string) string {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), cache.MFASetupKey(userID))
	if err != nil || !ok {
		t.Fatalf("expected pending setup record, ok=%v err=%v", ok, err)
	}
	// The record is JSON; pull the secret field without depending on its shape.
	start := strings.Index(raw, `"secret":"`)
	if start < 0 {
		t.Fatalf("no secret in setup record: %s", raw)
	}
	rest := raw[start+len(`"secret":"`):]
	return rest[:strings.Index(rest, `"`)]
}

func TestTOTP_SetupFlow(t *testing.T) {
	svc, store := newTestTOTPService(t)
	ctx := context.Background()

	url, err := svc.BeginSetup(ctx, "user-1", "user@north.example.com")
	if err != nil {
		t.Fatalf("begin setup failed: %v", err)
	}
	if !strings.HasPrefix(url, "otpauth://totp/") {
		t.Errorf("unexpected provisioning URL: %s", url)
	}
	if !strings.Contains(url, "erp-test") {
		t.Errorf("issuer missing from provisioning URL: %s", url)
	}

	secret := pendingSecret(t, store, "user-1")
	enrollment, err := svc.ConfirmSetup(ctx, "user-1", currentCode(t, secret))
	if err != nil {
		t.Fatalf("confirm setup failed: %v", err)
	}
	if enrollment.Secret != secret {
		t.Error("enrollment secret does not match the pending secret")
	}
	if len(enrollment.BackupCodes) != 4 || len(enrollment.Hashes) != 4 {
		t.Errorf("expected 4 backup codes and hashes, got %d/%d", len(enrollment.BackupCodes), len(enrollment.Hashes))
	}

	// The pending record is consumed; a second confirmation fails.
	if _, err := svc.ConfirmSetup(ctx, "user-1", currentCode(t, secret)); !errors.Is(err, ErrSetupNotFound) {
		t.Errorf("expected setup-not-found on second confirm, got %v", err)
	}
}

func TestTOTP_ConfirmSetupRejectsBadCode(t *testing.T) {
	svc, store := newTestTOTPService(t)
	ctx := context.Background()

	if _, err := svc.BeginSetup(ctx, "user-1", "user@north.example.com"); err != nil {
		t.Fatalf("begin setup failed: %v", err)
	}

	if _, err := svc.ConfirmSetup(ctx, "user-1", "000000"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected invalid code, got %v", err)
	}

	// A bad code does not consume the pending setup.
	secret := pendingSecret(t, store, "user-1")
	if _, err := svc.ConfirmSetup(ctx, "user-1", currentCode(t, secret)); err != nil {
		t.Errorf("valid code after a bad attempt should succeed: %v", err)
	}
}

func TestTOTP_ConfirmWithoutSetup(t *testing.T) {
	svc, _ := newTestTOTPService(t)

	if _, err := svc.ConfirmSetup(context.Background(), "ghost", "123456"); !errors.Is(err, ErrSetupNotFound) {
		t.Errorf("expected setup-not-found, got %v", err)
	}
}

func TestTOTP_VerifyCode(t *testing.T) {
	svc, store := newTestTOTPService(t)
	ctx := context.Background()

	if _, err := svc.BeginSetup(ctx, "user-1", "user@north.example.com"); err != nil {
		t.Fatalf("begin setup failed: %v", err)
	}
	secret := pendingSecret(t, store, "user-1")

	if err := svc.VerifyCode(secret, currentCode(t, secret)); err != nil {
		t.Errorf("valid code rejected: %v", err)
	}
	if err := svc.VerifyCode(secret, "000000"); !errors.Is(err, ErrCodeInvalid) {
		t.Errorf("expected invalid code, got %v", err)
	}
}

func TestTOTP_BackupCodes(t *testing.T) {
	svc, store := newTestTOTPService(t)
	ctx := context.Background()

	if _, err := svc.BeginSetup(ctx, "user-1", "user@north.example.com"); err != nil {
		t.Fatalf("begin setup failed: %v", err)
	}
	secret := pendingSecret(t, store, "user-1")
	enrollment, err := svc.ConfirmSetup(ctx, "user-1", currentCode(t, secret))
	if err != nil {
		t.Fatalf("confirm setup failed: %v", err)
	}

	idx, err := svc.VerifyBackupCode(enrollment.Hashes, enrollment.BackupCodes[2])
	if err != nil {
		t.Fatalf("backup code rejected: %v", err)
	}
	if idx != 2 {
		t.Errorf("expected matched index 2, got %d", idx)
	}

	if _, err := svc.VerifyBackupCode(enrollment.Hashes, "not-a-code"); !errors.Is(err, ErrCodeInvalid) {
		t.Errorf("expected invalid code, got %v", err)
	}

	// Plaintext codes never equal their stored hashes.
	for i, code := range enrollment.BackupCodes {
		if code == enrollment.Hashes[i] {
			t.Fatal("backup code stored in plaintext")
		}
	}
}
