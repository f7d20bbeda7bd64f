package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("IDENTITYD_POSTGRES_URL", "postgres://localhost:5432/identity?sslmode=disable")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected default environment %q, got %q", EnvDevelopment, cfg.Environment)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Cache.L1TTL != 2*time.Second {
		t.Errorf("expected default L1 TTL 2s, got %s", cfg.Cache.L1TTL)
	}
	if cfg.Token.AccessTTL != 15*time.Minute {
		t.Errorf("expected default access TTL 15m, got %s", cfg.Token.AccessTTL)
	}
}

func TestLoad_MissingPostgresURL(t *testing.T) {
	t.Setenv("IDENTITYD_POSTGRES_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when postgres URL is missing")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("IDENTITYD_ENV", EnvStaging)
	t.Setenv("IDENTITYD_CACHE_L1_TTL", "500ms")
	t.Setenv("IDENTITYD_ACCESS_TOKEN_TTL", "10m")
	t.Setenv("IDENTITYD_REDIS_POOL_SIZE", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Environment != EnvStaging {
		t.Errorf("expected staging environment, got %s", cfg.Environment)
	}
	if cfg.Cache.L1TTL != 500*time.Millisecond {
		t.Errorf("expected L1 TTL 500ms, got %s", cfg.Cache.L1TTL)
	}
	if cfg.Token.AccessTTL != 10*time.Minute {
		t.Errorf("expected access TTL 10m, got %s", cfg.Token.AccessTTL)
	}
	if cfg.Redis.PoolSize != 25 {
		t.Errorf("expected redis pool size 25, got %d", cfg.Redis.PoolSize)
	}
}

func TestValidate_L1TTLExceedsL2(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("IDENTITYD_CACHE_L1_TTL", "1h")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when L1 TTL exceeds L2 TTL")
	}
}

func TestValidate_ProductionRequiresInternalKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("IDENTITYD_ENV", EnvProduction)
	t.Setenv("IDENTITYD_INTERNAL_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when production lacks internal key")
	}

	t.Setenv("IDENTITYD_INTERNAL_KEY", "ops-key")
	if _, err := Load(); err != nil {
		t.Fatalf("expected valid production config, got %v", err)
	}
}

func TestValidate_OverlapCoversAccessTTL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("IDENTITYD_KEY_ROTATION_OVERLAP", "1m")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when rotation overlap is shorter than access TTL")
	}
}
