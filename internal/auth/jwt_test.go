package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCandidateTokenScopedToSession(t *testing.T) {
	svc := NewJWTService("secret", 1)
	sid := uuid.New()

	token, err := svc.GenerateCandidate(sid)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Role != RoleCandidate || claims.SessionID != sid {
		t.Fatalf("claims = %+v", claims)
	}
	if !claims.Allows(sid) {
		t.Fatalf("candidate should access own session")
	}
	if claims.Allows(uuid.New()) {
		t.Fatalf("candidate must not access another session")
	}
}

func TestReviewerTokenAllowsAnySession(t *testing.T) {
	svc := NewJWTService("secret", 1)
	token, err := svc.GenerateReviewer()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !claims.Allows(uuid.New()) {
		t.Fatalf("reviewer should access any session")
	}
}

func TestValidateRejectsWrongSecretAndExpired(t *testing.T) {
	token, _ := NewJWTService("one", 1).GenerateCandidate(uuid.New())
	if _, err := NewJWTService("two", 1).Validate(token); err != ErrInvalidToken {
		t.Fatalf("wrong secret: err = %v", err)
	}

	svc := NewJWTService("secret", 1)
	token, _ = svc.GenerateCandidate(uuid.New())
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Validate(token); err != ErrInvalidToken {
		t.Fatalf("expired: err = %v", err)
	}
}
