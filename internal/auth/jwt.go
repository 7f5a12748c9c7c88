package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	ErrInvalidJWTToken = errors.New("JWT token is invalid")
	ErrExpiredJWTToken = errors.New("JWT token is expired")
	ErrMissingClaims   = errors.New("JWT token is missing required claims")
	ErrMissingSecret   = errors.New("JWT secret is not set")
)

const defaultJWTDuration = 24 * time.Hour

type JWTManagerInterface interface {
	GenerateAccessJWT(subject Subject) (string, time.Time, error)
	ValidateAccessToken(tokenString string) (*SubscriberClaims, error)
}

// Subject identifies the subscriber a token is issued for.
type Subject struct {
	UserID string
	Email  string
	Plan   string
}

type SubscriberClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Plan   string `json:"plan"`
	jwt.StandardClaims
}

// Complete reports whether every claim the client relies on for auto-login is present.
func (c *SubscriberClaims) Complete() bool {
	return c.UserID != "" && c.Email != "" && c.Plan != "" && c.ExpiresAt != 0
}

type JWTManager struct {
	secret   string
	duration time.Duration
	now      func() time.Time
}

func NewJWTManager(secret string, duration time.Duration) (JWTManagerInterface, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if duration <= 0 {
		duration = defaultJWTDuration
	}
	return &JWTManager{
		secret:   secret,
		duration: duration,
		now:      time.Now,
	}, nil
}

func (j *JWTManager) GenerateAccessJWT(subject Subject) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.duration)
	claims := &SubscriberClaims{
		UserID: subject.UserID,
		Email:  subject.Email,
		Plan:   subject.Plan,
		StandardClaims: jwt.StandardClaims{
			Subject:   subject.UserID,
			IssuedAt:  now.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (j *JWTManager) ValidateAccessToken(tokenString string) (*SubscriberClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SubscriberClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidJWTToken
		}
		return []byte(j.secret), nil
	})

	if err != nil {
		var validationErr *jwt.ValidationError
		if errors.As(err, &validationErr) {
			if validationErr.Errors&(jwt.ValidationErrorExpired) != 0 {
				return nil, ErrExpiredJWTToken
			}
		}
		return nil, ErrInvalidJWTToken
	}

	claims, ok := token.Claims.(*SubscriberClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidJWTToken
	}
	if !claims.Complete() {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

// ParseUnverified reads the claims of a token the client cannot verify (it never holds the
// signing secret) and applies the checks that decide whether the token is kept.
func ParseUnverified(tokenString string, now time.Time) (*SubscriberClaims, error) {
	claims := &SubscriberClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidJWTToken
	}
	if !claims.Complete() {
		return nil, ErrMissingClaims
	}
	if !claims.VerifyExpiresAt(now.Unix(), true) {
		return nil, ErrExpiredJWTToken
	}
	return claims, nil
}
