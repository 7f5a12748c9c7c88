// Package checkout runs one plan purchase from initiation to account registration.
package checkout

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sebuszqo/PlanCheckout/internal/payment/domain"
	"github.com/sebuszqo/PlanCheckout/internal/payment/initiator"
	"github.com/sebuszqo/PlanCheckout/internal/payment/registration"
	"github.com/sebuszqo/PlanCheckout/internal/payment/verification"
)

const defaultSettleDelay = time.Second

type Binder interface {
	Bind(ctx context.Context, res *verification.Result, fields domain.AccountFields) (*registration.Account, error)
}

type Config struct {
	Screen      verification.Config
	QuickPay    verification.Config
	SettleDelay time.Duration
	// OnUpdate receives every verification state change.
	OnUpdate func(verification.State)
}

type Request struct {
	PlanName string
	Amount   float64
	Input    domain.MethodInput
	Payer    domain.Payer
	Password string
	QuickPay bool
}

type Completion struct {
	Intent  domain.PaymentIntent
	Result  *verification.Result
	Account *registration.Account
}

type Flow struct {
	initiator initiator.Service
	verifier  verification.Verifier
	binder    Binder
	cfg       Config
}

func NewFlow(starter initiator.Service, verifier verification.Verifier, binder Binder, cfg Config) *Flow {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	return &Flow{
		initiator: starter,
		verifier:  verifier,
		binder:    binder,
		cfg:       cfg,
	}
}

// Run returns the created account, or the error that sends the payer back to method
// selection: a ValidationError or GatewayError from initiation, a TimeoutError or
// GatewayError from verification, verification.ErrCancelled, or a registration error.
func (f *Flow) Run(ctx context.Context, req Request) (*Completion, error) {
	fields := domain.AccountFields{
		Email:     req.Payer.Email,
		Password:  req.Password,
		FirstName: req.Payer.FirstName,
		LastName:  req.Payer.LastName,
	}
	// Registration runs after the charge; anything it would refuse must fail here.
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	intent, err := f.initiator.Initiate(ctx, initiator.Request{
		Amount:   req.Amount,
		Input:    req.Input,
		Payer:    req.Payer,
		PlanName: req.PlanName,
	})
	if err != nil {
		return nil, err
	}
	completion := &Completion{Intent: *intent}

	cfg := f.cfg.Screen
	if req.QuickPay {
		cfg = f.cfg.QuickPay
	}
	var opts []verification.Option
	if f.cfg.OnUpdate != nil {
		opts = append(opts, verification.WithUpdateHandler(f.cfg.OnUpdate))
	}
	session, err := verification.NewSession(*intent, f.verifier, cfg, opts...)
	if err != nil {
		return completion, fmt.Errorf("start verification: %w", err)
	}

	result, err := session.Run(ctx)
	if err != nil {
		log.Printf("[Checkout] %s not confirmed: %v", intent.TxRef, err)
		return completion, err
	}
	completion.Result = result

	timer := time.NewTimer(f.cfg.SettleDelay)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		return completion, verification.ErrCancelled
	}

	account, err := f.binder.Bind(ctx, result, fields)
	if err != nil {
		return completion, err
	}
	completion.Account = account
	return completion, nil
}
