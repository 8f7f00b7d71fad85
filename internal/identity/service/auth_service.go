package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	identitydomain "netra-apex/backend/internal/identity/domain"
	membershiprepo "netra-apex/backend/internal/membership/repository"
	"netra-apex/backend/internal/security"
	sessiondomain "netra-apex/backend/internal/session/domain"
	userdomain "netra-apex/backend/internal/user/domain"
)

// Sentinel errors for the auth service; the HTTP layer maps them to status codes.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse      = errors.New("refresh token reuse detected; all sessions revoked")
	ErrRateLimited            = errors.New("too many login attempts")
	ErrDevLoginDisabled       = errors.New("dev login is not available in this environment")
)

// AuthResult holds the outcome of Register (user/email only), Login, DevLogin, or Refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	Email        string
	OrgID        string
	SessionID    string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllSessionsByUser(ctx context.Context, userID string) error
	UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// MembershipRepo is the minimal membership repository needed by the auth service.
type MembershipRepo = membershiprepo.Repository

// LoginLimiter throttles login attempts per email+IP. Allow returns false when
// the caller is over the limit. Implementations must fail open on
// infrastructure errors so Redis outages do not lock everyone out.
type LoginLimiter interface {
	Allow(ctx context.Context, email, ip string) (bool, error)
}

// AuditLogger records auth events (login, login_failure, logout) best-effort.
type AuditLogger interface {
	LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string)
}

// AuthService implements register, login, dev login, refresh, and logout.
type AuthService struct {
	userRepo        UserRepo
	identityRepo    IdentityRepo
	sessionRepo     SessionRepo
	membershipRepo  MembershipRepo
	hasher          *security.Hasher
	tokens          *security.TokenProvider
	limiter         LoginLimiter
	audit           AuditLogger
	refreshTTL      time.Duration
	devLoginEnabled bool
}

// NewAuthService returns an AuthService with the given dependencies.
// limiter and audit may be nil; then rate limiting and audit logging are skipped.
func NewAuthService(
	userRepo UserRepo,
	identityRepo IdentityRepo,
	sessionRepo SessionRepo,
	membershipRepo MembershipRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	limiter LoginLimiter,
	audit AuditLogger,
	refreshTTL time.Duration,
	devLoginEnabled bool,
) *AuthService {
	return &AuthService{
		userRepo:        userRepo,
		identityRepo:    identityRepo,
		sessionRepo:     sessionRepo,
		membershipRepo:  membershipRepo,
		hasher:          hasher,
		tokens:          tokens,
		limiter:         limiter,
		audit:           audit,
		refreshTTL:      refreshTTL,
		devLoginEnabled: devLoginEnabled,
	}
}

// Register creates a user and local identity with the given email and password.
// Returns AuthResult with UserID and Email only; the caller logs in to get tokens.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	userID := uuid.New().String()
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:        userID,
		Email:     email,
		Name:      strings.TrimSpace(name),
		Status:    userdomain.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	identity := &identitydomain.Identity{
		ID:           uuid.New().String(),
		UserID:       userID,
		Provider:     identitydomain.IdentityProviderLocal,
		ProviderID:   email,
		PasswordHash: hashed,
		CreatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.identityRepo.Create(ctx, identity); err != nil {
		return nil, err
	}
	return &AuthResult{UserID: userID, Email: email}, nil
}

// Login authenticates with email/password and returns an access/refresh token
// pair backed by a new session. The user's default (oldest) org membership
// provides the org claim; users without any membership log in with no org.
// Returns ErrRateLimited when the email+IP pair is over the attempt budget.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, email, ip)
		if err == nil && !ok {
			s.logEvent(ctx, "", "", "login_rate_limited", "auth", email)
			return nil, ErrRateLimited
		}
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		s.logEvent(ctx, "", "", "login_failure", "auth", email)
		return nil, ErrInvalidCredentials
	}
	ident, err := s.identityRepo.GetByUserAndProvider(ctx, user.ID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return nil, err
	}
	if ident == nil || ident.PasswordHash == "" {
		s.logEvent(ctx, "", user.ID, "login_failure", "auth", email)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(password)); err != nil {
		s.logEvent(ctx, "", user.ID, "login_failure", "auth", email)
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, user.ID, email, ip, "login")
}

// DevLogin issues tokens for the given email without a password, provisioning
// the user if needed. Only permitted when the service runs in development or
// testing; otherwise returns ErrDevLoginDisabled (HTTP 403).
func (s *AuthService) DevLogin(ctx context.Context, email, ip string) (*AuthResult, error) {
	if !s.devLoginEnabled {
		return nil, ErrDevLoginDisabled
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		now := time.Now().UTC()
		user = &userdomain.User{
			ID:        uuid.New().String(),
			Email:     email,
			Status:    userdomain.UserStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
	}
	return s.startSession(ctx, user.ID, email, ip, "dev_login")
}

// Refresh validates the refresh token, rotates it, and returns new tokens.
// A jti mismatch on a live session means the token was already rotated:
// all of the user's sessions are revoked and ErrRefreshTokenReuse returned.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	sessionID, jti, userID, orgID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.RevokedAt != nil {
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshJti != jti {
		_ = s.sessionRepo.RevokeAllSessionsByUser(ctx, userID)
		s.logEvent(ctx, orgID, userID, "refresh_reuse_detected", "auth", "")
		return nil, ErrRefreshTokenReuse
	}
	if sess.RefreshTokenHash != "" && !security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, ErrInvalidRefreshToken
	}
	email, err := s.emailForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_ = s.sessionRepo.UpdateLastSeen(ctx, sessionID, now)
	newRefresh, newJti, _, err := s.tokens.IssueRefresh(sessionID, userID, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.UpdateRefreshToken(ctx, sessionID, newJti, security.HashRefreshToken(newRefresh)); err != nil {
		return nil, err
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(security.Identity{
		UserID: userID, Email: email, OrgID: orgID, SessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    accessExp,
		UserID:       userID,
		Email:        email,
		OrgID:        orgID,
		SessionID:    sessionID,
	}, nil
}

// Logout revokes the session identified by the refresh token or by sessionID
// (from a validated access token). Access tokens themselves stay valid until
// expiry; clients discard them. Invalid tokens are a no-op, not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken, sessionID string) error {
	if refreshToken != "" {
		sid, _, userID, orgID, err := s.tokens.ValidateRefresh(refreshToken)
		if err != nil {
			return nil
		}
		s.logEvent(ctx, orgID, userID, "logout", "auth", "")
		return s.sessionRepo.Revoke(ctx, sid)
	}
	if sessionID == "" {
		return nil
	}
	return s.sessionRepo.Revoke(ctx, sessionID)
}

func (s *AuthService) startSession(ctx context.Context, userID, email, ip, action string) (*AuthResult, error) {
	orgID := ""
	memberships, err := s.membershipRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(memberships) > 0 {
		orgID = memberships[0].OrgID
	}
	sessionID := uuid.New().String()
	expiresAt := time.Now().UTC().Add(s.refreshTTL)
	refreshToken, jti, _, err := s.tokens.IssueRefresh(sessionID, userID, orgID)
	if err != nil {
		return nil, err
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(security.Identity{
		UserID: userID, Email: email, OrgID: orgID, SessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}
	sess := &sessiondomain.Session{
		ID:               sessionID,
		UserID:           userID,
		OrgID:            orgID,
		ExpiresAt:        expiresAt,
		IPAddress:        ip,
		RefreshJti:       jti,
		RefreshTokenHash: security.HashRefreshToken(refreshToken),
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.logEvent(ctx, orgID, userID, action, "auth", "")
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExp,
		UserID:       userID,
		Email:        email,
		OrgID:        orgID,
		SessionID:    sessionID,
	}, nil
}

func (s *AuthService) emailForUser(ctx context.Context, userID string) (string, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", nil
	}
	return u.Email, nil
}

func (s *AuthService) logEvent(ctx context.Context, orgID, userID, action, resource, metadata string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, orgID, userID, action, resource, metadata)
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("%w: password must be at least 12 characters", ErrInvalidInput)
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("%w: password must contain at least one uppercase letter", ErrInvalidInput)
	}
	if !hasLower {
		return fmt.Errorf("%w: password must contain at least one lowercase letter", ErrInvalidInput)
	}
	if !hasNumber {
		return fmt.Errorf("%w: password must contain at least one number", ErrInvalidInput)
	}
	if !hasSymbol {
		return fmt.Errorf("%w: password must contain at least one symbol", ErrInvalidInput)
	}
	return nil
}
