package token

import "github.com/golang-jwt/jwt/v5"

// Token classes. Every token carries its class in the tokenType claim and a
// token of one class never verifies where the other is expected.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// AccessClaims are the claims of a short-lived access token.
type AccessClaims struct {
	UserID    string   `json:"userId"`
	TenantID  string   `json:"tid,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
	TokenType string   `json:"tokenType"`
	MFA       bool     `json:"mfa,omitempty"`
	Roles     []string `json:"roles,omitempty"`

	jwt.RegisteredClaims
}

// RefreshClaims are the claims of a longer-lived refresh token. TokenFamily
// ties a chain of rotated refresh tokens together so reuse of an old member
// can revoke the whole family.
type RefreshClaims struct {
	SessionID     string `json:"sessionId"`
	TokenFamily   string `json:"tokenFamily"`
	RotationCount int    `json:"rotationCount"`
	TokenType     string `json:"tokenType"`

	jwt.RegisteredClaims
}
