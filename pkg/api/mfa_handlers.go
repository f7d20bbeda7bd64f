package api

import (
	"errors"
	"net/http"

	"github.com/81adi8/erp-sub005/pkg/httputil"
	"github.com/81adi8/erp-sub005/pkg/mfa"
	"github.com/81adi8/erp-sub005/pkg/middleware"
	"github.com/81adi8/erp-sub005/pkg/observability"
	"github.com/81adi8/erp-sub005/pkg/tenant"
)

type verifyMFARequest struct {
	ChallengeToken string `json:"challengeToken"`
	Code           string `json:"code"`
	DeviceHash     string `json:"deviceHash,omitempty"`
}

type verifyMFAResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// verifyMFA completes the second factor: it consumes the single-use
// challenge, checks the TOTP code (or a backup code), and issues the full
// session token pair. Every failure mode maps to the same MFA_INVALID so a
// caller cannot probe which part failed.
func (s *Server) verifyMFA(w http.ResponseWriter, r *http.Request) {
	var req verifyMFARequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.ChallengeToken == "" || req.Code == "" {
		httputil.WriteBadRequest(w, "challengeToken and code are required")
		return
	}

	logger := observability.FromContext(r.Context())
	identity := tenant.FromContext(r)

	result, err := s.challenges.Consume(r.Context(), req.ChallengeToken, httputil.ClientIP(r), req.DeviceHash)
	if err != nil {
		logger.WithError(err).Warn("mfa challenge consumption failed")
		httputil.WriteErrorCode(w, http.StatusUnauthorized, httputil.CodeMFAInvalid, "invalid or expired challenge")
		return
	}

	creds, err := s.credentials.GetCredentials(r.Context(), result.UserID)
	if err != nil {
		logger.WithError(err).Error("mfa credential lookup failed")
		httputil.WriteInternalError(w)
		return
	}
	if creds == nil || !creds.Enabled {
		httputil.WriteErrorCode(w, http.StatusUnauthorized, httputil.CodeMFAInvalid, "invalid code")
		return
	}

	if err := s.totp.VerifyCode(creds.TOTPSecret, req.Code); err != nil {
		// Fall back to backup codes; a consumed backup code is removed so
		// it never works twice.
		idx, backupErr := s.totp.VerifyBackupCode(creds.BackupCodes, req.Code)
		if backupErr != nil {
			httputil.WriteErrorCode(w, http.StatusUnauthorized, httputil.CodeMFAInvalid, "invalid code")
			return
		}
		if err := s.credentials.ConsumeBackupCode(r.Context(), result.UserID, idx); err != nil {
			logger.WithError(err).Error("backup code consumption failed")
			httputil.WriteInternalError(w)
			return
		}
	}

	roles, err := s.credentials.GetUserRoles(r.Context(), result.UserID)
	if err != nil {
		logger.WithError(err).Error("user role lookup failed")
		httputil.WriteInternalError(w)
		return
	}

	tenantID := ""
	if identity != nil {
		tenantID = identity.ID()
	}

	access, err := s.tokens.SignAccess(result.UserID, tenantID, result.SessionID, true, roles)
	if err != nil {
		logger.WithError(err).Error("access token signing failed")
		httputil.WriteInternalError(w)
		return
	}
	refresh, err := s.tokens.SignRefresh(result.SessionID, "", 0)
	if err != nil {
		logger.WithError(err).Error("refresh token signing failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, verifyMFAResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

type beginSetupResponse struct {
	ProvisioningURL string `json:"provisioningUrl"`
}

// beginMFASetup starts TOTP enrollment for the authenticated user.
func (s *Server) beginMFASetup(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	url, err := s.totp.BeginSetup(r.Context(), authCtx.UserID, authCtx.UserID)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("mfa setup failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, beginSetupResponse{ProvisioningURL: url})
}

type confirmSetupRequest struct {
	Code string `json:"code"`
}

type confirmSetupResponse struct {
	BackupCodes []string `json:"backupCodes"`
}

// confirmMFASetup verifies the first code and persists the enrollment. The
// plaintext backup codes appear in this response and nowhere else.
func (s *Server) confirmMFASetup(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req confirmSetupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Code == "" {
		httputil.WriteBadRequest(w, "code is required")
		return
	}

	enrollment, err := s.totp.ConfirmSetup(r.Context(), authCtx.UserID, req.Code)
	if err != nil {
		if errors.Is(err, mfa.ErrSetupNotFound) || errors.Is(err, mfa.ErrCodeInvalid) {
			httputil.WriteErrorCode(w, http.StatusBadRequest, httputil.CodeMFAInvalid, "invalid code or expired setup")
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("mfa setup confirmation failed")
		httputil.WriteInternalError(w)
		return
	}

	if err := s.credentials.SaveEnrollment(r.Context(), authCtx.UserID, enrollment.Secret, enrollment.Hashes); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("mfa enrollment persistence failed")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, confirmSetupResponse{BackupCodes: enrollment.BackupCodes})
}
