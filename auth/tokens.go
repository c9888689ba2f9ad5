// tokens.go - Signed tokens for sessions, email verification and password reset

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose separates login tokens from single-use email tokens so one can
// never be replayed as the other.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeVerify  Purpose = "verify"
	PurposeReset   Purpose = "reset"
)

const (
	VerifyTokenTTL = 24 * time.Hour
	ResetTokenTTL  = 10 * time.Minute
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	Purpose Purpose `json:"purpose"`
	Email   string  `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 tokens.
type TokenService struct {
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, sessionTTL time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), sessionTTL: sessionTTL, now: time.Now}
}

// IssueSession returns a bearer token whose subject is the user id.
func (s *TokenService) IssueSession(userID string) (string, error) {
	return s.sign(Claims{
		Purpose:          PurposeSession,
		RegisteredClaims: s.registered(userID, s.sessionTTL),
	})
}

// ParseSession validates a bearer token and returns the user id.
func (s *TokenService) ParseSession(token string) (string, error) {
	claims, err := s.parse(token, PurposeSession)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// IssueEmailToken returns a token bound to an email address for the given purpose.
func (s *TokenService) IssueEmailToken(email string, purpose Purpose, ttl time.Duration) (string, error) {
	return s.sign(Claims{
		Purpose:          purpose,
		Email:            email,
		RegisteredClaims: s.registered("", ttl),
	})
}

// ParseEmailToken validates a purpose token and returns the email it was issued for.
func (s *TokenService) ParseEmailToken(token string, purpose Purpose) (string, error) {
	claims, err := s.parse(token, purpose)
	if err != nil {
		return "", err
	}
	if claims.Email == "" {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}

func (s *TokenService) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(raw string, purpose Purpose) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
