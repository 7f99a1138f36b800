// Token lifecycle tests: issuance, expiry window, tampering.
package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, now time.Time) *TokenService {
	t.Helper()
	s, err := NewTokenService([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return s.WithClock(func() time.Time { return now })
}

// TestIssueAndVerify round-trips identity claims through a token.
func TestIssueAndVerify(t *testing.T) {
	s := newTestService(t, time.Now())
	tok, err := s.Issue("alice", "Alice A.", "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if c.Login != "alice" || c.DisplayName != "Alice A." || c.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", c)
	}
}

// TestTokenExpiryWindow accepts a token at T+59m and rejects it at T+61m.
func TestTokenExpiryWindow(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestService(t, issued)
	tok, err := s.Issue("alice", "Alice", "operator")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	s.WithClock(func() time.Time { return issued.Add(59 * time.Minute) })
	if _, err := s.Verify(tok); err != nil {
		t.Fatalf("Verify at T+59m: %v", err)
	}

	s.WithClock(func() time.Time { return issued.Add(61 * time.Minute) })
	if _, err := s.Verify(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("Verify at T+61m: want ErrExpired, got %v", err)
	}
}

// TestVerifyRejectsTampering distinguishes malformed from missing tokens.
func TestVerifyRejectsTampering(t *testing.T) {
	s := newTestService(t, time.Now())
	tok, err := s.Issue("alice", "Alice", "operator")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := s.Verify(tok + "x"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("want ErrMalformed for tampered token, got %v", err)
	}
	if _, err := s.Verify(""); !errors.Is(err, ErrNoToken) {
		t.Fatalf("want ErrNoToken for empty token, got %v", err)
	}

	other, err := NewTokenService([]byte("different-key"))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	if _, err := other.Verify(tok); !errors.Is(err, ErrMalformed) {
		t.Fatalf("want ErrMalformed for wrong key, got %v", err)
	}
}
