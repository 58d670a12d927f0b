package utils

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, _, err := GenerateToken(42, "employee", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("user id = %d, want 42", claims.UserID)
	}
	if claims.Role != "employee" {
		t.Errorf("role = %q, want employee", claims.Role)
	}
}

func TestParseExpiredToken(t *testing.T) {
	token, _, err := GenerateToken(1, "customer", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := ParseToken(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestParseGarbageToken(t *testing.T) {
	if _, err := ParseToken("not-a-token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}
