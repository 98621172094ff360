package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/rental-marketplace/backend/internal/clock"
)

func TestTokens_IssueVerify(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens := NewTokens("a-very-secret-signing-key", time.Hour, clock.NewFixed(now))

	signed, err := tokens.Issue("user-1", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := tokens.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokens_Rejects(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := NewTokens("a-very-secret-signing-key", time.Hour, clock.NewFixed(now))
	signed, err := issuer.Issue("user-1", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name     string
		verifier *Tokens
		token    string
	}{
		{"empty", issuer, ""},
		{"garbage", issuer, "not.a.jwt"},
		{"wrong secret", NewTokens("another-signing-key-entirely", time.Hour, clock.NewFixed(now)), signed},
		{"expired", NewTokens("a-very-secret-signing-key", time.Hour, clock.NewFixed(now.Add(2*time.Hour))), signed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.verifier.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
