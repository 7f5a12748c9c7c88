package auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnknownSubscriber  = errors.New("subscriber not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is not active")
	ErrInternalError      = errors.New("internal Server Error")
)

// Credentials is what the login check needs to know about a subscriber.
type Credentials struct {
	Subject      Subject
	PasswordHash string
	Active       bool
}

// CredentialStore resolves a login email. Unknown emails return ErrUnknownSubscriber.
type CredentialStore interface {
	Credentials(ctx context.Context, email string) (*Credentials, error)
}

// Session is an issued access token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Subject   Subject
}

type Service interface {
	Login(ctx context.Context, email, password string) (*Session, error)
}

type service struct {
	store      CredentialStore
	jwtManager JWTManagerInterface
}

func NewAuthService(store CredentialStore, jwtManager JWTManagerInterface) Service {
	return &service{
		store:      store,
		jwtManager: jwtManager,
	}
}

// Login re-issues a token for a subscriber whose stored token expired or was cleared.
func (s *service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	creds, err := s.store.Credentials(ctx, email)
	if err != nil && !errors.Is(err, ErrUnknownSubscriber) {
		log.Printf("[Auth] credential lookup for %s failed: %v", email, err)
		return nil, ErrInternalError
	}
	if creds == nil || !doPasswordsMatch(creds.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !creds.Active {
		return nil, ErrInactiveAccount
	}

	token, expiresAt, err := s.jwtManager.GenerateAccessJWT(creds.Subject)
	if err != nil {
		log.Printf("[Auth] issuing token for %s failed: %v", creds.Subject.UserID, err)
		return nil, ErrInternalError
	}
	return &Session{Token: token, ExpiresAt: expiresAt, Subject: creds.Subject}, nil
}

func doPasswordsMatch(hashedPassword, currPassword string) bool {
	err := bcrypt.CompareHashAndPassword(
		[]byte(hashedPassword), []byte(currPassword))
	return err == nil
}
