package registration

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sebuszqo/PlanCheckout/internal/payment/api"
	"github.com/sebuszqo/PlanCheckout/internal/payment/domain"
	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
	"github.com/sebuszqo/PlanCheckout/internal/payment/verification"
)

var (
	ErrNotConfirmed = errors.New("payment is not confirmed")
	ErrInProgress   = errors.New("registration already in progress for this transaction")
	ErrAlreadyBound = errors.New("transaction already used for a registration")
)

type Registrar interface {
	VerifyRegistration(ctx context.Context, req api.RegistrationRequest) (*api.RegistrationResponse, error)
}

type TokenSaver interface {
	Save(token string) error
}

type Account struct {
	UserID    string
	Email     string
	PlanName  string
	TxRef     string
	Token     string
	ExpiresAt time.Time
	// Local is set when the backend could not confirm a demo payment and the account
	// exists only on this client.
	Local bool
}

// Binder turns a confirmed payment into an account. Each txRef is submitted at most once
// at a time and never again after it succeeded.
type Binder struct {
	registrar Registrar
	tokens    TokenSaver

	mu       sync.Mutex
	inFlight map[string]struct{}
	bound    map[string]*Account
}

func NewBinder(registrar Registrar, tokens TokenSaver) *Binder {
	return &Binder{
		registrar: registrar,
		tokens:    tokens,
		inFlight:  make(map[string]struct{}),
		bound:     make(map[string]*Account),
	}
}

func (b *Binder) Bind(ctx context.Context, res *verification.Result, fields domain.AccountFields) (*Account, error) {
	if res == nil || res.Intent.TxRef == "" {
		return nil, ErrNotConfirmed
	}
	if err := domain.ValidateEmail(fields.Email); err != nil {
		return nil, err
	}
	txRef := res.Intent.TxRef

	if err := b.reserve(txRef); err != nil {
		return nil, err
	}

	req := api.RegistrationRequest{
		TxRef:     txRef,
		Email:     strings.TrimSpace(fields.Email),
		PlanName:  res.Intent.PlanName,
		Password:  fields.Password,
		FirstName: strings.TrimSpace(fields.FirstName),
		LastName:  strings.TrimSpace(fields.LastName),
	}
	resp, err := b.registrar.VerifyRegistration(ctx, req)
	if err != nil {
		if res.IsDemo() {
			log.Printf("[Registration] backend could not register demo payment %s (%v), continuing with a local account", txRef, err)
			account := &Account{
				Email:    req.Email,
				PlanName: req.PlanName,
				TxRef:    txRef,
				Local:    true,
			}
			b.commit(txRef, account)
			return account, nil
		}
		b.release(txRef)
		log.Printf("[Registration] registration for %s failed: %v", txRef, err)
		if payErrors.IsGatewayError(err) {
			return nil, err
		}
		return nil, payErrors.NewGatewayError("verify-registration", err.Error(), 0)
	}

	account := &Account{
		UserID:   resp.UserID,
		Email:    firstNonEmpty(resp.Email, req.Email),
		PlanName: firstNonEmpty(resp.PlanName, req.PlanName),
		TxRef:    txRef,
		Token:    resp.Token,
	}
	if resp.ExpiresAt > 0 {
		account.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	}
	b.commit(txRef, account)

	if account.Token != "" && b.tokens != nil {
		if err := b.tokens.Save(account.Token); err != nil {
			log.Printf("[Registration] account %s created but token could not be stored: %v", account.UserID, err)
		}
	}
	log.Printf("[Registration] account %s registered on plan %s with %s", account.UserID, account.PlanName, txRef)
	return account, nil
}

func (b *Binder) reserve(txRef string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.bound[txRef]; ok {
		return ErrAlreadyBound
	}
	if _, ok := b.inFlight[txRef]; ok {
		return ErrInProgress
	}
	b.inFlight[txRef] = struct{}{}
	return nil
}

func (b *Binder) commit(txRef string, account *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inFlight, txRef)
	b.bound[txRef] = account
}

func (b *Binder) release(txRef string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inFlight, txRef)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
