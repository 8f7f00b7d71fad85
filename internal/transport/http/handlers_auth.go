package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	identityservice "netra-apex/backend/internal/identity/service"
)

// Authenticator is the auth service surface the HTTP layer uses.
type Authenticator interface {
	Register(ctx context.Context, email, password, name string) (*identityservice.AuthResult, error)
	Login(ctx context.Context, email, password, ip string) (*identityservice.AuthResult, error)
	DevLogin(ctx context.Context, email, ip string) (*identityservice.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*identityservice.AuthResult, error)
	Logout(ctx context.Context, refreshToken, sessionID string) error
}

type authHandler struct {
	auth Authenticator
	log  *zap.Logger
}

type registerRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type devLoginRequest struct {
	Email string `json:"email" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	OrgID        string `json:"org_id,omitempty"`
}

func (h *authHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	result, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, identityservice.ErrEmailAlreadyRegistered):
			writeError(w, http.StatusConflict, "email already registered", "")
		case errors.Is(err, identityservice.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		default:
			h.log.Error("register failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "registration failed", "")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"user_id": result.UserID,
		"email":   result.Email,
	})
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	result, err := h.auth.Login(r.Context(), req.Email, req.Password, GetClientIP(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, identityservice.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "too many login attempts", "")
		case errors.Is(err, identityservice.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials", "")
		default:
			h.log.Error("login failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "login failed", "")
		}
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(result))
}

// devLogin issues tokens without a password. The service refuses it outside
// development and testing environments.
func (h *authHandler) devLogin(w http.ResponseWriter, r *http.Request) {
	var req devLoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	result, err := h.auth.DevLogin(r.Context(), req.Email, GetClientIP(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, identityservice.ErrDevLoginDisabled):
			writeError(w, http.StatusForbidden, "dev login is not available in this environment", "")
		case errors.Is(err, identityservice.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		default:
			h.log.Error("dev login failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "login failed", "")
		}
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(result))
}

// verify reports whether the presented access token is valid. It sits behind
// the auth middleware, so reaching the handler means the token checked out.
func (h *authHandler) verify(w http.ResponseWriter, r *http.Request) {
	identity, ok := GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid authorization", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   true,
		"email":   identity.Email,
		"user_id": identity.UserID,
	})
}

func (h *authHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	result, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, identityservice.ErrRefreshTokenReuse):
			writeError(w, http.StatusUnauthorized, "refresh token reuse detected", "all sessions for this account have been revoked")
		case errors.Is(err, identityservice.ErrInvalidRefreshToken):
			writeError(w, http.StatusUnauthorized, "invalid or expired refresh token", "")
		default:
			h.log.Error("refresh failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "refresh failed", "")
		}
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(result))
}

// logout revokes the caller's session. It accepts a refresh token in the
// body; without one, it revokes the session carried by the access token.
func (h *authHandler) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request", err.Error())
			return
		}
	}
	sessionID := ""
	if identity, ok := GetIdentity(r.Context()); ok {
		sessionID = identity.SessionID
	}
	if err := h.auth.Logout(r.Context(), req.RefreshToken, sessionID); err != nil {
		h.log.Error("logout failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "logout failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func toTokenResponse(result *identityservice.AuthResult) tokenResponse {
	expiresIn := int64(time.Until(result.ExpiresAt).Round(time.Second).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return tokenResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
		UserID:       result.UserID,
		Email:        result.Email,
		OrgID:        result.OrgID,
	}
}
