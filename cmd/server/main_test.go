package main

import (
	"strings"
	"testing"

	"comandero/backend/internal/config"
)

func TestValidateSecurityConfig(t *testing.T) {
	if err := validateSecurityConfig(config.Config{AuthSecret: "short"}); err == nil {
		t.Fatalf("short AUTH_SECRET accepted")
	}
	if err := validateSecurityConfig(config.Config{AuthSecret: strings.Repeat("x", 32)}); err != nil {
		t.Fatalf("valid AUTH_SECRET rejected: %v", err)
	}
}
