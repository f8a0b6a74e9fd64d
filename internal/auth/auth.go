// Package auth issues and verifies the operator tokens that guard the
// maintenance switches.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"
	RoleOwner = "owner"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient role")
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	issuer string
	secret []byte
	now    func() time.Time
}

func NewService(issuer string, secret []byte) *Service {
	return &Service{issuer: issuer, secret: secret, now: time.Now}
}

// Issue signs an HS256 token for subject with the given role.
func (s *Service) Issue(subject, role string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	now := s.now().UTC()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// Verify parses token and checks signature, expiry and issuer.
func (s *Service) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// RequireOperator verifies token and checks that it carries an admin or owner role.
func (s *Service) RequireOperator(token string) (*Claims, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin && claims.Role != RoleOwner {
		return nil, ErrForbidden
	}
	return claims, nil
}
