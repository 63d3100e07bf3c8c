package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in token claims.
const (
	RoleStudent  = "student"
	RoleLecturer = "lecturer"
)

// Identity is the authenticated caller as seen by the services.
type Identity struct {
	ID            string
	Name          string
	Role          string
	StudentNumber string
}

// Claims is the JWT payload. StudentNumber is only set for student tokens.
type Claims struct {
	Role          string `json:"role"`
	Name          string `json:"name"`
	StudentNumber string `json:"student_no,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts claims to the service-facing identity.
func (c Claims) Identity() Identity {
	return Identity{
		ID:            c.Subject,
		Name:          c.Name,
		Role:          c.Role,
		StudentNumber: c.StudentNumber,
	}
}

// Issue signs an HS256 access token for the given identity.
func Issue(id Identity, issuer, key string, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := Claims{
		Role:          id.Role,
		Name:          id.Name,
		StudentNumber: id.StudentNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse validates a token and returns its claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
