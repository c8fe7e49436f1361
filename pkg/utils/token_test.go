package utils

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := "supersecret"

	token, err := GenerateToken(42, secret, time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if claims.BusinessID != 42 {
		t.Errorf("Expected BusinessID 42, got %d", claims.BusinessID)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(42, "secret-a", time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := ValidateToken(token, "secret-b"); err == nil {
		t.Errorf("Expected validation to fail with the wrong secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken(42, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := ValidateToken(token, "secret"); err == nil {
		t.Errorf("Expected validation to fail for an expired token")
	}
}
