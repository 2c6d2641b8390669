package app

import (
	"testing"

	"github.com/driftboard/presenced/internal/auth"
	"github.com/driftboard/presenced/internal/config"
)

func TestBuildVerifierRemote(t *testing.T) {
	cfg := config.Default()
	cfg.VerifyBaseURL = "https://api.example"

	v, err := buildVerifier(cfg)
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}
	if _, ok := v.(*auth.HTTPVerifier); !ok {
		t.Fatalf("expected HTTP verifier, got %T", v)
	}
}

func TestBuildVerifierToken(t *testing.T) {
	cfg := config.Default()
	cfg.AuthMode = config.AuthModeToken
	cfg.JWTSecret = "secret"

	v, err := buildVerifier(cfg)
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}
	if _, ok := v.(*auth.JWTVerifier); !ok {
		t.Fatalf("expected JWT verifier, got %T", v)
	}
}

func TestBuildVerifierUnknownMode(t *testing.T) {
	cfg := config.Default()
	cfg.AuthMode = "ldap"

	if _, err := buildVerifier(cfg); err == nil {
		t.Fatal("expected error for unknown auth mode")
	}
}
