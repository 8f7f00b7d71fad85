package security

import (
	"errors"
	"strings"
	"testing"
)

// Low-cost parameters keep the argon2 tests fast.
func testHasher() *Hasher { return NewHasher(8*1024, 1, 1) }

func TestHasher_HashAndCompare(t *testing.T) {
	h := testHasher()
	password := []byte("correct horse battery staple!1A")
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=") {
		t.Fatalf("hash is not a PHC argon2id string: %q", hash)
	}
	if err := h.Compare(hash, password); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongPassword(t *testing.T) {
	h := testHasher()
	hash, _ := h.Hash([]byte("secret123456!Aa"))
	if err := h.Compare(hash, []byte("wrong")); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Compare with wrong password = %v, want ErrPasswordMismatch", err)
	}
}

func TestHasher_SaltVariesPerHash(t *testing.T) {
	h := testHasher()
	h1, _ := h.Hash([]byte("same-password-1A!x"))
	h2, _ := h.Hash([]byte("same-password-1A!x"))
	if h1 == h2 {
		t.Fatal("two hashes of the same password should differ (random salt)")
	}
}

func TestHasher_CompareUsesEmbeddedParams(t *testing.T) {
	// Hash with one parameter set, verify with a Hasher holding different ones.
	hash, err := NewHasher(16*1024, 2, 1).Hash([]byte("parameterized-pw-9Z#"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := NewHasher(0, 0, 0).Compare(hash, []byte("parameterized-pw-9Z#")); err != nil {
		t.Fatalf("Compare with different hasher params: %v", err)
	}
}

func TestHasher_InvalidHash(t *testing.T) {
	h := testHasher()
	for _, bad := range []string{
		"",
		"$2a$12$notargon",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
	} {
		if err := h.Compare(bad, []byte("whatever")); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("Compare(%q) = %v, want ErrInvalidHash", bad, err)
		}
	}
}

func TestHasher_EmptyPassword(t *testing.T) {
	if _, err := testHasher().Hash(nil); err == nil {
		t.Fatal("Hash of empty password should fail")
	}
}

func TestNewHasher_Defaults(t *testing.T) {
	h := NewHasher(0, 0, 0)
	if h.Memory != 64*1024 || h.Iterations != 3 || h.Parallelism != 2 {
		t.Errorf("NewHasher(0,0,0) = %+v, want 64MiB/3/2 defaults", h)
	}
}
