package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenSigner_SignAndVerify_RoundTrip(t *testing.T) {
	signer := NewTokenSigner("test-secret")
	expiresAt := time.Now().Add(1 * time.Hour)

	token, err := signer.SignDataToken("user-123", expiresAt)
	if err != nil {
		t.Fatalf("SignDataToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := signer.VerifyDataToken(token)
	if err != nil {
		t.Fatalf("VerifyDataToken() error = %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
	}
	if claims.Role != "authenticated" {
		t.Errorf("Role = %q, want %q", claims.Role, "authenticated")
	}
	// expは秒精度で埋め込まれる
	if claims.ExpiresAt.Unix() != expiresAt.Unix() {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Unix(), expiresAt.Unix())
	}
}

func TestTokenSigner_Verify_ExpiredToken(t *testing.T) {
	signer := NewTokenSigner("test-secret")

	token, err := signer.SignDataToken("user-123", time.Now().Add(-1*time.Minute))
	if err != nil {
		t.Fatalf("SignDataToken() error = %v", err)
	}

	_, err = signer.VerifyDataToken(token)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed for expired token, got %v", err)
	}
}

func TestTokenSigner_Verify_WrongSecret(t *testing.T) {
	signer := NewTokenSigner("test-secret")
	other := NewTokenSigner("other-secret")

	token, err := signer.SignDataToken("user-123", time.Now().Add(1*time.Hour))
	if err != nil {
		t.Fatalf("SignDataToken() error = %v", err)
	}

	_, err = other.VerifyDataToken(token)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed for wrong secret, got %v", err)
	}
}

func TestTokenSigner_Verify_TamperedToken(t *testing.T) {
	signer := NewTokenSigner("test-secret")

	token, err := signer.SignDataToken("user-123", time.Now().Add(1*time.Hour))
	if err != nil {
		t.Fatalf("SignDataToken() error = %v", err)
	}

	// ペイロード部分を改ざんする
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token format: %d parts", len(parts))
	}
	tampered := parts[0] + ".eyJzdWIiOiJhdHRhY2tlciJ9." + parts[2]

	_, err = signer.VerifyDataToken(tampered)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed for tampered token, got %v", err)
	}
}

func TestTokenSigner_Verify_MalformedToken(t *testing.T) {
	signer := NewTokenSigner("test-secret")

	for _, token := range []string{"", "not-a-jwt", "a.b", "a.b.c.d"} {
		_, err := signer.VerifyDataToken(token)
		if !errors.Is(err, ErrVerificationFailed) {
			t.Errorf("VerifyDataToken(%q) = %v, want ErrVerificationFailed", token, err)
		}
	}
}
