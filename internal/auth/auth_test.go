package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/famousai/pitchlive/internal/auth"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims auth.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestVerifyValidToken(t *testing.T) {
	t.Parallel()

	v := auth.NewVerifier(testSecret, nil)
	token := signToken(t, testSecret, auth.Claims{
		Email: "Viewer@Example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	p, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.ID != "user-123" {
		t.Fatalf("ID = %q, want user-123", p.ID)
	}
	if p.Email != "viewer@example.com" {
		t.Fatalf("Email = %q, want lowercased", p.Email)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	t.Parallel()

	v := auth.NewVerifier(testSecret, nil)

	expired := signToken(t, testSecret, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	wrongKey := signToken(t, "other-secret", auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"},
	})
	noSubject := signToken(t, testSecret, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	for name, token := range map[string]string{
		"expired":    expired,
		"wrong key":  wrongKey,
		"no subject": noSubject,
		"malformed":  "not-a-jwt",
		"empty":      "",
	} {
		if _, err := v.Verify(token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("%s: Verify = %v, want ErrInvalidToken", name, err)
		}
	}
}

// TestVerifyRejectsEverythingWithoutSecret guards against forged tokens
// when no signing secret is configured: HS256 will happily validate a
// token signed with the empty key, so the verifier must not try.
func TestVerifyRejectsEverythingWithoutSecret(t *testing.T) {
	t.Parallel()

	v := auth.NewVerifier("", nil)
	forged := signToken(t, "", auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "attacker",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	if _, err := v.Verify(forged); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("Verify = %v, want ErrInvalidToken", err)
	}
}

func TestIsModerator(t *testing.T) {
	t.Parallel()

	open := auth.NewVerifier(testSecret, nil)
	if !open.IsModerator(auth.Principal{Email: "anyone@example.com"}) {
		t.Fatal("empty allowlist should allow every authenticated user")
	}

	restricted := auth.NewVerifier(testSecret, []string{" Mod@Example.com ", ""})
	if !restricted.IsModerator(auth.Principal{Email: "mod@example.com"}) {
		t.Fatal("allowlisted email rejected")
	}
	if restricted.IsModerator(auth.Principal{Email: "viewer@example.com"}) {
		t.Fatal("non-allowlisted email accepted")
	}
}

func TestFromAuthorizationHeader(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"Basic dXNlcg==", ""},
		{"", ""},
		{"Bearer ", ""},
	}
	for _, tc := range cases {
		if got := auth.FromAuthorizationHeader(tc.header); got != tc.want {
			t.Errorf("FromAuthorizationHeader(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
