package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sebuszqo/PlanCheckout/internal/auth"
	emailService "github.com/sebuszqo/PlanCheckout/internal/email"
)

const (
	maxEmailLength    = 254
	minPasswordLength = 8
	bcryptCost        = 12
)

var (
	ErrInvalidEmail       = errors.New("email address is not valid")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrMissingPlan        = errors.New("plan name is required")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrTxRefAlreadyUsed   = errors.New("transaction already bound to an account")
	ErrInternalError      = errors.New("internal Server Error")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PasswordHash string    `json:"-"`
	PlanName     string    `json:"planName"`
	TxRef        string    `json:"txRef"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Registration is a subscriber account backed by a settled payment.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	PlanName  string
	TxRef     string
}

type Service interface {
	RegisterSubscriber(ctx context.Context, reg Registration) (*User, error)
	GetUserByID(ctx context.Context, userID string) (*User, error)
	Exists(ctx context.Context, userID string) (bool, error)
	Credentials(ctx context.Context, email string) (*auth.Credentials, error)
	EmailRegistered(ctx context.Context, email string) (bool, error)
}

type service struct {
	repo         Repository
	emailService emailService.EmailSender
}

func NewUserService(repo Repository, emailService emailService.EmailSender) Service {
	return &service{
		repo:         repo,
		emailService: emailService,
	}
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(hashed), err
}

func generateTemporaryPassword() (string, error) {
	raw := make([]byte, 9)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("could not generate password: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

func validateEmailAddress(email string) error {
	if len(email) > maxEmailLength {
		return ErrInvalidEmail
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// RegisterSubscriber creates the account and queues the confirmation mail. When no
// password is given a temporary one is generated and sent with the confirmation.
func (s *service) RegisterSubscriber(ctx context.Context, reg Registration) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	if err := validateEmailAddress(email); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reg.PlanName) == "" {
		return nil, ErrMissingPlan
	}

	password := reg.Password
	var temporary string
	if password == "" {
		generated, err := generateTemporaryPassword()
		if err != nil {
			log.Printf("[User] %v", err)
			return nil, ErrInternalError
		}
		password, temporary = generated, generated
	} else if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	existing, err := s.repo.getUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		log.Printf("[User] lookup of %s failed: %v", email, err)
		return nil, ErrInternalError
	}
	if existing != nil {
		return nil, ErrEmailAlreadyExists
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		log.Printf("[User] hashing password failed: %v", err)
		return nil, ErrInternalError
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		PasswordHash: passwordHash,
		PlanName:     reg.PlanName,
		TxRef:        reg.TxRef,
		IsActive:     true,
	}
	if err := s.repo.createUser(ctx, user); err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) || errors.Is(err, ErrTxRefAlreadyUsed) {
			return nil, err
		}
		log.Printf("[User] creating %s failed: %v", email, err)
		return nil, ErrInternalError
	}

	if s.emailService != nil {
		s.emailService.QueueEmail(user.Email, emailService.SubscriptionConfirmationData{
			FirstName:         user.FirstName,
			PlanName:          user.PlanName,
			TxRef:             user.TxRef,
			TemporaryPassword: temporary,
		})
	}
	return user, nil
}

func (s *service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	return s.repo.getUserByID(ctx, userID)
}

func (s *service) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := s.repo.getUserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Credentials backs the login endpoint.
func (s *service) Credentials(ctx context.Context, email string) (*auth.Credentials, error) {
	user, err := s.repo.getUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return nil, auth.ErrUnknownSubscriber
	}
	if err != nil {
		return nil, err
	}
	return &auth.Credentials{
		Subject:      auth.Subject{UserID: user.ID, Email: user.Email, Plan: user.PlanName},
		PasswordHash: user.PasswordHash,
		Active:       user.IsActive,
	}, nil
}

func (s *service) EmailRegistered(ctx context.Context, email string) (bool, error) {
	_, err := s.repo.getUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
