package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type StaffRole string

const (
	RoleAdmin   StaffRole = "ADMIN"
	RoleWaiter  StaffRole = "WAITER"
	RoleKitchen StaffRole = "KITCHEN"
)

func (r StaffRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleWaiter, RoleKitchen:
		return true
	}
	return false
}

type Claims struct {
	StaffID string    `json:"staffId"`
	Role    StaffRole `json:"role"`
	Name    *string   `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func ParseBearerToken(authHeader string) string {
	parts := strings.Split(strings.TrimSpace(authHeader), " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func VerifyAccessToken(tokenString string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token required")
	}
	if secret == "" {
		return nil, errors.New("token secret is not configured")
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, errors.New("token expired")
	}
	if strings.TrimSpace(claims.StaffID) == "" {
		return nil, errors.New("token has no staff id")
	}
	if !claims.Role.Valid() {
		return nil, errors.New("token has an unknown role")
	}
	return claims, nil
}

// IssueAccessToken signs an HS256 staff token. The service only verifies
// tokens; this is used by tooling and tests.
func IssueAccessToken(staffID string, role StaffRole, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		StaffID: staffID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staffID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
