package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenType means the token verified cryptographically but its
	// tokenType claim does not match the expected class. Never retried
	// against the previous key.
	ErrTokenType = errors.New("token type mismatch")

	// ErrTokenExpired means the token verified cryptographically but is past
	// its expiry. Never retried against the previous key.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid covers malformed tokens and bad signatures after both
	// keys have been tried.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrNoSecret means the secret provider could not supply a signing key.
	ErrNoSecret = errors.New("signing secret unavailable")
)

// signatureFailure reports whether a verify error is a signature-class
// failure, the only class worth retrying against the previous key. Semantic
// failures (wrong type, expired, malformed claims) fail the same way under
// any key.
func signatureFailure(err error) bool {
	return errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
		errors.Is(err, jwt.ErrSignatureInvalid)
}
