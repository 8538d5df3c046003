package auth

import (
	"testing"
)

func TestGenerateAndValidateToken(t *testing.T) {
	InitJWT("unit-test-secret")

	token, err := GenerateToken(42, "tester")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "tester" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	InitJWT("unit-test-secret")

	token, err := GenerateToken(7, "honest")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := ValidateToken(token + "x"); err == nil {
		t.Error("tampered token must not validate")
	}

	InitJWT("rotated-secret")
	if _, err := ValidateToken(token); err == nil {
		t.Error("token signed with the old secret must not validate")
	}
}
