package main

import (
	"testing"

	"omset/backend/internal/config"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := map[string]config.Config{
		"short secret":   {AuthSecret: "short", AdminUsername: "admin", AdminPassword: "k0pi-Tubruk!"},
		"no credential":  {AuthSecret: strongSecret, AdminUsername: "admin"},
		"empty username": {AuthSecret: strongSecret, AdminPassword: "k0pi-Tubruk!"},
		"weak password":  {AuthSecret: strongSecret, AdminUsername: "admin", AdminPassword: "admin123"},
	}
	for name, cfg := range cases {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("%s: expected config to be rejected", name)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: strongSecret, AdminUsername: "admin", AdminPassword: "k0pi-Tubruk!"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}

	err = validateSecurityConfig(config.Config{
		AuthSecret:        strongSecret,
		AdminUsername:     "admin",
		AdminPasswordHash: "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z9ZkXvH0D5uJ0o8d9QjzGJ8a",
	})
	if err != nil {
		t.Fatalf("expected hash-only config to pass, got %v", err)
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	weak := []string{"short", "password", "ADMIN123", "aaaaaaaaa", "abcdefgh", "87654321"}
	for _, pw := range weak {
		if err := validatePasswordStrength(pw); err == nil {
			t.Fatalf("expected %q to be rejected", pw)
		}
	}
	if err := validatePasswordStrength("warung-Sejahtera-7"); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
}
