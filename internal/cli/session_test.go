package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aura-interview/backend/internal/auth"
)

func runTokenCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	err := runToken(cmd, args)
	return strings.TrimSpace(out.String()), err
}

func TestTokenCandidate(t *testing.T) {
	t.Setenv("CANDIDATE_TOKEN_SECRET", "cli-test-secret")
	sessionID := uuid.New()

	token, err := runTokenCmd(t, "candidate", sessionID.String())
	if err != nil {
		t.Fatalf("runToken: %v", err)
	}
	claims, err := auth.NewJWTService("cli-test-secret", 1).Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Role != auth.RoleCandidate || !claims.Allows(sessionID) {
		t.Errorf("claims = %+v, want candidate bound to %s", claims, sessionID)
	}
	if claims.Allows(uuid.New()) {
		t.Error("candidate token allowed a different session")
	}
}

func TestTokenReviewer(t *testing.T) {
	t.Setenv("CANDIDATE_TOKEN_SECRET", "cli-test-secret")

	token, err := runTokenCmd(t, "reviewer")
	if err != nil {
		t.Fatalf("runToken: %v", err)
	}
	claims, err := auth.NewJWTService("cli-test-secret", 1).Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Role != auth.RoleReviewer {
		t.Errorf("role = %q, want reviewer", claims.Role)
	}
}

func TestTokenErrors(t *testing.T) {
	t.Setenv("CANDIDATE_TOKEN_SECRET", "cli-test-secret")
	tests := []struct {
		name string
		args []string
	}{
		{"candidate without session", []string{"candidate"}},
		{"candidate with bad session", []string{"candidate", "not-a-uuid"}},
		{"unknown role", []string{"admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runTokenCmd(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Setenv("CANDIDATE_TOKEN_SECRET", "")
	if _, err := runTokenCmd(t, "reviewer"); err == nil {
		t.Error("expected error without a secret")
	}
}

func TestPurgeAudioArgs(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	if err := runPurgeAudio(cmd, []string{"not-a-uuid"}); err == nil {
		t.Error("expected error for a bad session id")
	}
	err := runPurgeAudio(cmd, []string{uuid.NewString()})
	if err == nil || !strings.Contains(err.Error(), "AWS_REGION") {
		t.Errorf("err = %v, want missing region", err)
	}
}
