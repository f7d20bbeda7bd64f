package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"
)

// SecretProvider supplies signing secrets by key name. Implementations must
// be safe for concurrent use; rotation calls GenerateSecret under traffic.
type SecretProvider interface {
	// GetSecret returns the current secret for a named key, or ErrNoSecret
	// if none is configured.
	GetSecret(name string) ([]byte, error)

	// GenerateSecret mints a fresh high-entropy secret for a named key and
	// records it as the current one.
	GenerateSecret(name string) ([]byte, error)
}

// EnvSecretProvider reads initial secrets from environment variables and
// keeps generated rotations in memory. The env variable name is the key name
// upper-cased with dashes replaced by underscores, e.g. jwt-access-secret
// reads JWT_ACCESS_SECRET.
type EnvSecretProvider struct {
	mu        sync.RWMutex
	generated map[string][]byte
}

// NewEnvSecretProvider creates an env-backed secret provider.
func NewEnvSecretProvider() *EnvSecretProvider {
	return &EnvSecretProvider{generated: make(map[string][]byte)}
}

func envVarName(keyName string) string {
	return strings.ToUpper(strings.ReplaceAll(keyName, "-", "_"))
}

// GetSecret returns a previously generated secret, falling back to the
// environment.
func (p *EnvSecretProvider) GetSecret(name string) ([]byte, error) {
	p.mu.RLock()
	secret, ok := p.generated[name]
	p.mu.RUnlock()
	if ok {
		return secret, nil
	}
	if value := os.Getenv(envVarName(name)); value != "" {
		return []byte(value), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSecret, name)
}

// GenerateSecret mints 48 random bytes, base64-encoded so the secret survives
// any future round-trip through env/config as printable text.
func (p *EnvSecretProvider) GenerateSecret(name string) ([]byte, error) {
	raw := make([]byte, 48)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := []byte(base64.RawURLEncoding.EncodeToString(raw))
	p.mu.Lock()
	p.generated[name] = secret
	p.mu.Unlock()
	return secret, nil
}

// StaticSecretProvider serves fixed secrets, used in tests and single-node
// development setups.
type StaticSecretProvider struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

// NewStaticSecretProvider creates a provider over a fixed secret map.
func NewStaticSecretProvider(secrets map[string]string) *StaticSecretProvider {
	m := make(map[string][]byte, len(secrets))
	for name, value := range secrets {
		m[name] = []byte(value)
	}
	return &StaticSecretProvider{secrets: m}
}

// GetSecret returns the configured secret for name.
func (p *StaticSecretProvider) GetSecret(name string) ([]byte, error) {
	p.mu.RLock()
	secret, ok := p.secrets[name]
	p.mu.RUnlock()
	if ok {
		return secret, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSecret, name)
}

// GenerateSecret mints a fresh random secret and stores it under name.
func (p *StaticSecretProvider) GenerateSecret(name string) ([]byte, error) {
	raw := make([]byte, 48)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := []byte(base64.RawURLEncoding.EncodeToString(raw))
	p.mu.Lock()
	p.secrets[name] = secret
	p.mu.Unlock()
	return secret, nil
}
