// Package mfa implements the second factor between password verification and
// session issuance.
//
// ChallengeService issues an opaque single-use token bound to the caller's
// hashed IP and device fingerprint; consumption atomically deletes the record
// before reporting success, so exactly one redemption can ever win. A binding
// mismatch burns the challenge rather than leaving it open to a second guess.
// TOTPService handles authenticator enrollment, code verification and
// bcrypt-hashed backup codes.
package mfa
