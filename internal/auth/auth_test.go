package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewManager("test-secret")
	token, err := m.GenerateToken("user-1", "gerente", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "gerente" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestExpiredToken(t *testing.T) {
	m := NewManager("test-secret")
	token, err := m.GenerateToken("user-1", "analista", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.ParseToken(token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := NewManager("secret-a").GenerateToken("user-1", "admin", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewManager("secret-b").ParseToken(token); err == nil {
		t.Fatal("expected parse to fail with wrong secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	m := NewManager("x")
	hash, err := m.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := m.ComparePassword(hash, "hunter2"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := m.ComparePassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch")
	}
}
