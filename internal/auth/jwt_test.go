package auth_test

import (
	"testing"

	"github.com/nvijayanand79/tracklite-sub001/internal/auth"
)

func TestGenerateAndValidateStaffToken(t *testing.T) {
	secret := "test-secret"

	token, err := auth.GenerateStaffToken(secret, "admin@example.com", "Admin User", "admin")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.Email != "admin@example.com" {
		t.Errorf("email: got %v, want admin@example.com", claims.Email)
	}
	if claims.FullName != "Admin User" {
		t.Errorf("full name: got %v, want Admin User", claims.FullName)
	}
	if claims.Role != "admin" {
		t.Errorf("role: got %v, want admin", claims.Role)
	}
	if claims.Subject != "admin@example.com" {
		t.Errorf("subject: got %v, want admin@example.com", claims.Subject)
	}
}

func TestGenerateOwnerTokenWithPhone(t *testing.T) {
	token, err := auth.GenerateOwnerToken("secret", "9876543210", "", "owner", "tracking")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.Phone != "9876543210" {
		t.Errorf("phone: got %v, want 9876543210", claims.Phone)
	}
	if claims.Subject != "9876543210" {
		t.Errorf("subject: got %v, want 9876543210", claims.Subject)
	}
	if claims.Role != "owner" {
		t.Errorf("role: got %v, want owner", claims.Role)
	}
	if claims.Scope != "tracking" {
		t.Errorf("scope: got %v, want tracking", claims.Scope)
	}
}

func TestGenerateOwnerTokenWithEmail(t *testing.T) {
	token, err := auth.GenerateOwnerToken("secret", "", "owner@example.com", "owner", "tracking")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.Subject != "owner@example.com" {
		t.Errorf("subject: got %v, want owner@example.com", claims.Subject)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateStaffToken("secret-a", "a@b.com", "A B", "admin")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateToken("secret-b", token)
	if err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}
