package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testProvider(accessTTL time.Duration) *TokenProvider {
	return NewTokenProvider([]byte("unit-test-secret"), "netra-auth", "netra-api", accessTTL, time.Hour)
}

func TestIssueAndValidateAccess(t *testing.T) {
	p := testProvider(30 * time.Minute)
	token, jti, expiresAt, err := p.IssueAccess(Identity{
		UserID:    "user-1",
		Email:     "dev@netra.ai",
		OrgID:     "org-1",
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if jti == "" {
		t.Error("jti should not be empty")
	}
	if until := time.Until(expiresAt); until < 29*time.Minute || until > 31*time.Minute {
		t.Errorf("expiresAt %v not ~30m out", expiresAt)
	}

	id, err := p.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if id.UserID != "user-1" || id.Email != "dev@netra.ai" || id.OrgID != "org-1" || id.SessionID != "sess-1" {
		t.Errorf("identity = %+v", id)
	}
}

func TestValidateAccess_ExpiredToken(t *testing.T) {
	p := testProvider(-time.Minute)
	// NewTokenProvider clamps non-positive TTLs, so build an expired token directly.
	now := time.Now().UTC().Add(-2 * time.Hour)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "netra-auth",
			Audience:  jwt.ClaimStrings{"netra-api"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Email:  "dev@netra.ai",
		UserID: "user-1",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unit-test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := p.ValidateAccess(token); err != ErrInvalidToken {
		t.Fatalf("ValidateAccess(expired) = %v, want ErrInvalidToken", err)
	}
}

func TestValidateAccess_WrongSecret(t *testing.T) {
	p := testProvider(time.Minute)
	token, _, _, err := p.IssueAccess(Identity{UserID: "u", Email: "e@x.io"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	other := NewTokenProvider([]byte("different-secret"), "netra-auth", "netra-api", time.Minute, time.Hour)
	if _, err := other.ValidateAccess(token); err != ErrInvalidToken {
		t.Fatalf("ValidateAccess with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestValidateAccess_WrongIssuerOrAudience(t *testing.T) {
	p := testProvider(time.Minute)
	token, _, _, _ := p.IssueAccess(Identity{UserID: "u", Email: "e@x.io"})

	badIss := NewTokenProvider([]byte("unit-test-secret"), "other-issuer", "netra-api", time.Minute, time.Hour)
	if _, err := badIss.ValidateAccess(token); err != ErrInvalidToken {
		t.Fatalf("wrong issuer = %v, want ErrInvalidToken", err)
	}
	badAud := NewTokenProvider([]byte("unit-test-secret"), "netra-auth", "other-api", time.Minute, time.Hour)
	if _, err := badAud.ValidateAccess(token); err != ErrInvalidToken {
		t.Fatalf("wrong audience = %v, want ErrInvalidToken", err)
	}
}

func TestValidateAccess_Garbage(t *testing.T) {
	p := testProvider(time.Minute)
	for _, bad := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := p.ValidateAccess(bad); err != ErrInvalidToken {
			t.Errorf("ValidateAccess(%q) = %v, want ErrInvalidToken", bad, err)
		}
	}
}

func TestIssueAndValidateRefresh(t *testing.T) {
	p := testProvider(time.Minute)
	token, jti, _, err := p.IssueRefresh("sess-9", "user-9", "org-9")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	sessionID, gotJti, userID, orgID, err := p.ValidateRefresh(token)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if sessionID != "sess-9" || userID != "user-9" || orgID != "org-9" || gotJti != jti {
		t.Errorf("got sess=%s jti=%s user=%s org=%s", sessionID, gotJti, userID, orgID)
	}
}

func TestRefreshJTIsAreUnique(t *testing.T) {
	p := testProvider(time.Minute)
	_, jti1, _, _ := p.IssueRefresh("s", "u", "o")
	_, jti2, _, _ := p.IssueRefresh("s", "u", "o")
	if jti1 == jti2 {
		t.Fatal("consecutive refresh tokens should carry distinct jtis")
	}
}
