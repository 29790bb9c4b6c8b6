package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/pkg/config"
	"github.com/novagile/wareflow-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "wareflow-test",
		ExpirationMinutes: 15,
	}
}

func TestMintAndParseRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	now := time.Now()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleSupervisor,
	})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user %s got %s", userID, claims.UserID)
	}
	if claims.Role != enums.UserRoleSupervisor {
		t.Fatalf("expected supervisor role got %s", claims.Role)
	}
	if claims.ID == "" {
		t.Fatal("expected generated jti")
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
}

func TestMintRejectsInvalidInputs(t *testing.T) {
	now := time.Now()
	payload := AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	tests := []struct {
		name    string
		cfg     config.JWTConfig
		payload AccessTokenPayload
	}{
		{name: "missing secret", cfg: config.JWTConfig{Issuer: "x", ExpirationMinutes: 5}, payload: payload},
		{name: "missing issuer", cfg: config.JWTConfig{Secret: "x", ExpirationMinutes: 5}, payload: payload},
		{name: "zero expiry", cfg: config.JWTConfig{Secret: "x", Issuer: "x"}, payload: payload},
		{name: "invalid role", cfg: testJWTConfig(), payload: AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRole("GHOST")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MintAccessToken(tt.cfg, now, tt.payload); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	past := time.Now().Add(-time.Hour)

	token, err := MintAccessToken(cfg, past, AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleEmployee})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleEmployee})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch to fail validation")
	}
}
