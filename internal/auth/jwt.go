package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Token roles.
const (
	// RoleCandidate may only access the session named in its claims.
	RoleCandidate = "candidate"
	// RoleReviewer may read reports and trigger re-scoring for any session.
	RoleReviewer = "reviewer"
)

// Claims holds interview link claims.
type Claims struct {
	SessionID uuid.UUID `json:"session_id,omitempty"`
	Role      string    `json:"role"`
	jwt.RegisteredClaims
}

// JWTService handles token generation and validation.
type JWTService struct {
	secret      []byte
	expireHours int
	now         func() time.Time
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, expireHours int) *JWTService {
	return &JWTService{
		secret:      []byte(secret),
		expireHours: expireHours,
		now:         time.Now,
	}
}

// GenerateCandidate creates a link token scoped to one session.
func (s *JWTService) GenerateCandidate(sessionID uuid.UUID) (string, error) {
	return s.generate(sessionID, RoleCandidate)
}

// GenerateReviewer creates a token for reviewers.
func (s *JWTService) GenerateReviewer() (string, error) {
	return s.generate(uuid.Nil, RoleReviewer)
}

func (s *JWTService) generate(sessionID uuid.UUID, role string) (string, error) {
	now := s.now()
	claims := Claims{
		SessionID: sessionID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a JWT, returning claims or error.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Allows reports whether the claims grant access to sessionID.
func (c *Claims) Allows(sessionID uuid.UUID) bool {
	switch c.Role {
	case RoleReviewer:
		return true
	case RoleCandidate:
		return c.SessionID == sessionID
	default:
		return false
	}
}
