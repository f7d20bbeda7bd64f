package mfa

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Credentials is a user's persisted MFA state.
type Credentials struct {
	TOTPSecret  string
	BackupCodes []string // bcrypt hashes, one consumed per use
	Enabled     bool
}

// CredentialStore persists MFA enrollments and user role assignments.
type CredentialStore interface {
	// GetCredentials returns (nil, nil) when the user has no enrollment.
	GetCredentials(ctx context.Context, userID string) (*Credentials, error)

	// SaveEnrollment stores a confirmed enrollment, replacing any previous one.
	SaveEnrollment(ctx context.Context, userID, secret string, backupHashes []string) error

	// ConsumeBackupCode removes one backup code hash by index.
	ConsumeBackupCode(ctx context.Context, userID string, index int) error

	// GetUserRoles returns the role slugs assigned to a user, for stamping
	// into freshly issued access tokens.
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
}

// SQLCredentialStore implements CredentialStore over database/sql.
type SQLCredentialStore struct {
	db *sql.DB
}

// NewSQLCredentialStore creates a credential store over an open handle.
func NewSQLCredentialStore(db *sql.DB) *SQLCredentialStore {
	return &SQLCredentialStore{db: db}
}

// GetCredentials returns the user's MFA enrollment
func (s *SQLCredentialStore) GetCredentials(ctx context.Context, userID string) (*Credentials, error) {
	query := `
		SELECT totp_secret, backup_codes, enabled
		FROM user_mfa
		WHERE user_id = $1
	`

	var creds Credentials
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&creds.TOTPSecret,
		pq.Array(&creds.BackupCodes),
		&creds.Enabled,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mfa credentials lookup failed: %w", err)
	}
	return &creds, nil
}

// SaveEnrollment stores a confirmed enrollment
func (s *SQLCredentialStore) SaveEnrollment(ctx context.Context, userID, secret string, backupHashes []string) error {
	query := `
		INSERT INTO user_mfa (user_id, totp_secret, backup_codes, enabled, enrolled_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET totp_secret = $2, backup_codes = $3, enabled = TRUE, enrolled_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, userID, secret, pq.Array(backupHashes)); err != nil {
		return fmt.Errorf("mfa enrollment save failed: %w", err)
	}
	return nil
}

// ConsumeBackupCode removes one backup code hash by its array index
func (s *SQLCredentialStore) ConsumeBackupCode(ctx context.Context, userID string, index int) error {
	// Postgres arrays are 1-based.
	query := `
		UPDATE user_mfa
		SET backup_codes = backup_codes[:$2-1] || backup_codes[$2+1:]
		WHERE user_id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, userID, index+1); err != nil {
		return fmt.Errorf("backup code consume failed: %w", err)
	}
	return nil
}

// GetUserRoles returns the role slugs assigned to a user
func (s *SQLCredentialStore) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT r.slug
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.slug
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("user roles query failed: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}
