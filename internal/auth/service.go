// Package auth implements the admin login: a single configured admin
// account checked with bcrypt, and short-lived HS256 session tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	AdminEmail   string
	PasswordHash []byte // bcrypt
	Secret       []byte
	TTL          time.Duration
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Login checks the credentials and issues a session token. It gives up with
// ctx.Err() if the caller went away before the hash comparison finished.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" || len(s.PasswordHash) == 0 {
		return Session{}, ErrInvalidCredentials
	}

	done := make(chan error, 1)
	go func() {
		done <- bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(password))
	}()

	var hashErr error
	select {
	case <-ctx.Done():
		return Session{}, ctx.Err()
	case hashErr = <-done:
	}

	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(strings.ToLower(s.AdminEmail))) == 1
	if hashErr != nil || !emailOK {
		return Session{}, ErrInvalidCredentials
	}

	token, exp, err := GenerateToken(s.Secret, email, RoleAdmin, s.now(), s.TTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp}, nil
}

// Verify parses a bearer token and requires the admin role.
func (s *Service) Verify(token string) (*Claims, error) {
	claims, err := ParseToken(s.Secret, token)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword produces the value expected in ADMIN_PASSWORD_HASH. A cost of
// zero means bcrypt.DefaultCost.
func HashPassword(password string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}
