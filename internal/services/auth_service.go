package services

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var ErrBadCreds = errors.New("invalid admin token")

// SessionTTL is the lifetime of an admin session token.
const SessionTTL = 30 * 24 * time.Hour

const adminSubject = "admin"

// AuthService exchanges the shared admin token for a signed session token.
// TokenHash (bcrypt) takes precedence over the plain Token.
type AuthService struct {
	Token     string
	TokenHash string
	Secret    []byte
	Clock     Clock
}

func NewAuthService(token, tokenHash, secret string) *AuthService {
	return &AuthService{Token: token, TokenHash: tokenHash, Secret: []byte(secret)}
}

// Configured reports whether an admin can log in at all.
func (s *AuthService) Configured() bool {
	return len(s.Secret) > 0 && (s.TokenHash != "" || s.Token != "")
}

func (s *AuthService) checkToken(token string) bool {
	if token == "" {
		return false
	}
	if s.TokenHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.TokenHash), []byte(token)) == nil
	}
	return s.Token != "" && subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) == 1
}

// Login returns a session token and its expiry.
func (s *AuthService) Login(token string) (string, time.Time, error) {
	if !s.Configured() || !s.checkToken(strings.TrimSpace(token)) {
		return "", time.Time{}, ErrBadCreds
	}
	now := s.Clock.now()
	exp := now.Add(SessionTTL)
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks a session token's signature, expiry and subject.
func (s *AuthService) Verify(raw string) error {
	if len(s.Secret) == 0 || raw == "" {
		return ErrBadCreds
	}
	var claims jwt.RegisteredClaims
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	tok, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return s.Secret, nil })
	if err != nil || !tok.Valid || claims.Subject != adminSubject {
		return ErrBadCreds
	}
	return nil
}
