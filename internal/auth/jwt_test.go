package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestManager(now time.Time) *Manager {
	m := NewManager(testSecret)
	m.now = fixedClock(now)
	return m
}

func TestIssueAndVerify(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := newTestManager(issuedAt)

	token, err := m.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	t.Run("valid inside window", func(t *testing.T) {
		m.now = fixedClock(issuedAt.Add(59 * time.Minute))

		got, err := m.Verify(token)
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if got != "user-123" {
			t.Fatalf("expected user-123, got %q", got)
		}
	})

	t.Run("expiry is exactly one hour", func(t *testing.T) {
		claims, err := newTestManager(issuedAt).VerifyAccessToken(token)
		if err != nil {
			t.Fatalf("VerifyAccessToken returned error: %v", err)
		}
		lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
		if lifetime != 3600*time.Second {
			t.Fatalf("expected 3600s lifetime, got %s", lifetime)
		}
		if claims.Subject != "user-123" {
			t.Fatalf("expected subject user-123, got %q", claims.Subject)
		}
	})

	t.Run("expired after window", func(t *testing.T) {
		m.now = fixedClock(issuedAt.Add(time.Hour + time.Second))

		_, err := m.Verify(token)
		if !errors.Is(err, ErrExpired) {
			t.Fatalf("expected ErrExpired, got %v", err)
		}
	})
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Now()
	token, err := newTestManager(now).Issue("user-123")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	other := NewManager("another-secret")
	other.now = fixedClock(now)

	_, err = other.Verify(token)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	now := time.Now()
	m := newTestManager(now)

	token, err := m.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "user-999",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-999",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("attacker"))
	if err != nil {
		t.Fatalf("signing forged token: %v", err)
	}

	// original header+signature with the forged payload
	orig := strings.Split(token, ".")
	fake := strings.Split(forged, ".")
	spliced := orig[0] + "." + fake[1] + "." + orig[2]

	_, err = m.Verify(spliced)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	m := newTestManager(time.Now())

	for _, raw := range []string{"abc", "a.b", "Bearer x.y.z", "not.a.token"} {
		_, err := m.Verify(raw)
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("%q: expected ErrMalformed, got %v", raw, err)
		}
	}

	if _, err := m.Verify(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("empty token: expected ErrMissingToken, got %v", err)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	now := time.Now()
	m := newTestManager(now)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UserID: "user-123",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for HS512, got %v", err)
	}
}

func TestVerify_MissingExpiryOrSubject(t *testing.T) {
	now := time.Now()
	m := newTestManager(now)

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           "user-123",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"},
	}).SignedString([]byte(testSecret))

	if _, err := m.Verify(noExp); !errors.Is(err, ErrMalformed) {
		t.Fatalf("missing exp: expected ErrMalformed, got %v", err)
	}

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString([]byte(testSecret))

	if _, err := m.Verify(noSubject); !errors.Is(err, ErrMalformed) {
		t.Fatalf("missing subject: expected ErrMalformed, got %v", err)
	}
}

func TestKind(t *testing.T) {
	cases := map[error]string{
		ErrMissingToken:        "missing_token",
		ErrMalformed:           "malformed",
		ErrExpired:             "expired",
		ErrInvalidSignature:    "invalid_signature",
		errors.New("whatever"): "unknown",
	}

	for err, want := range cases {
		if got := Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}
