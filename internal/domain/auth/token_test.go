package auth

import (
	"strings"
	"testing"
	"time"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	helper := NewSessionToken("test-secret")

	token, err := helper.GenerateToken("session-42")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	valid, sessionID, err := helper.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken error: %v", err)
	}
	if !valid || sessionID != "session-42" {
		t.Fatalf("unexpected verification result: valid=%v session=%s", valid, sessionID)
	}
}

func TestSessionTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewSessionToken("secret-a").GenerateToken("session-1")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if valid, _, err := NewSessionToken("secret-b").VerifyToken(token); valid || err == nil {
		t.Fatalf("expected verification to fail with wrong secret")
	}
}

func TestSessionTokenRejectsTampered(t *testing.T) {
	helper := NewSessionToken("test-secret")

	token, err := helper.GenerateToken("session-1")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	valid, _, err := helper.VerifyToken(token + "x")
	if valid {
		t.Fatal("expected tampered token to be rejected")
	}
	if err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSessionTokenWithTTLIgnoresNonPositive(t *testing.T) {
	helper := NewSessionToken("test-secret").WithTTL(-time.Minute)
	if helper.ttl != 12*time.Hour {
		t.Fatalf("expected default ttl to survive, got %v", helper.ttl)
	}

	helper.WithTTL(time.Hour)
	if helper.ttl != time.Hour {
		t.Fatalf("expected ttl override, got %v", helper.ttl)
	}
}

func TestSessionTokenRequiresSecret(t *testing.T) {
	helper := NewSessionToken("")
	if _, err := helper.GenerateToken("session-1"); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, _, err := helper.VerifyToken("whatever"); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
