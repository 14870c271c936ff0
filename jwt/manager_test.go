package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519 key generation failed: %v", err)
	}
	return pub, priv
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestIssueAndVerify(t *testing.T) {
	pub, priv := newEdKeys(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	m, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Now:           fixedClock(now),
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, expiresAt, err := m.Issue("user-1", "sid-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if !expiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.UID != "user-1" || claims.SID != "sid-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	pub, priv := newEdKeys(t)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Minute

	clock := issuedAt
	m, err := NewManager(Config{
		AccessTTL:     ttl,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Now:           func() time.Time { return clock },
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, _, err := m.Issue("user-1", "sid-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	// One second before expiry the token still verifies.
	clock = issuedAt.Add(ttl - time.Second)
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("expected token to verify before expiry, got %v", err)
	}

	// At the exact expiry instant it no longer does.
	clock = issuedAt.Add(ttl)
	if _, err := m.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid at expiry, got %v", err)
	}
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	for _, tok := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJub25lIn0.e30."} {
		if _, err := m.Verify(tok); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid for %q, got %v", tok, err)
		}
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	pubA, privA := newEdKeys(t)
	pubB, privB := newEdKeys(t)

	signer, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    privA,
		PublicKey:     pubA,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	verifier, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    privB,
		PublicKey:     pubB,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, _, err := signer.Issue("user-1", "sid-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign signature, got %v", err)
	}
}

func TestVerifyKeySetByKid(t *testing.T) {
	pubOld, privOld := newEdKeys(t)
	pubNew, privNew := newEdKeys(t)

	oldSigner, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    privOld,
		PublicKey:     pubOld,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pubOld},
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	// After rotation the new manager still verifies k1-signed tokens.
	rotated, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    privNew,
		PublicKey:     pubNew,
		KeyID:         "k2",
		VerifyKeys: map[string][]byte{
			"k1": pubOld,
			"k2": pubNew,
		},
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	oldToken, _, err := oldSigner.Issue("user-1", "sid-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := rotated.Verify(oldToken); err != nil {
		t.Fatalf("expected grace-window verification to succeed, got %v", err)
	}

	newToken, _, err := rotated.Issue("user-1", "sid-2")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := rotated.Verify(newToken); err != nil {
		t.Fatalf("expected current-key verification to succeed, got %v", err)
	}
}

func TestHS256RoundTrip(t *testing.T) {
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("a-shared-secret-of-decent-length"),
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, _, err := m.Issue("user-9", "sid-9")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.UID != "user-9" {
		t.Fatalf("unexpected uid %q", claims.UID)
	}
}

func TestNewManagerRejectsMissingKey(t *testing.T) {
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected missing hs256 key to be rejected")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519}); err == nil {
		t.Fatal("expected missing ed25519 keys to be rejected")
	}
}
