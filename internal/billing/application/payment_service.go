package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sebuszqo/PlanCheckout/internal/auth"
	"github.com/sebuszqo/PlanCheckout/internal/billing/domain"
	payDomain "github.com/sebuszqo/PlanCheckout/internal/payment/domain"
	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
	"github.com/sebuszqo/PlanCheckout/internal/plans"
	"github.com/sebuszqo/PlanCheckout/internal/user"
)

const subscriptionType = "subscription"

var (
	ErrPaymentNotCompleted = errors.New("payment has not completed successfully")
	ErrEmailMismatch       = errors.New("email does not match the payment")
	ErrPlanMismatch        = errors.New("plan does not match the payment")
	ErrAmountMismatch      = errors.New("amount does not match the plan price")
	ErrAlreadySubscribed   = errors.New("an account already exists for this email")
)

// Provider is the payment gateway the backend relays charges to.
type Provider interface {
	// Start returns the hosted checkout URL, or "" when the payer confirms on their phone.
	Start(ctx context.Context, payment *domain.Payment) (string, error)
	// Check returns nil while the payment is still in flight.
	Check(ctx context.Context, payment domain.Payment) (*domain.Settlement, error)
}

type SubscriberRegistrar interface {
	RegisterSubscriber(ctx context.Context, reg user.Registration) (*user.User, error)
	EmailRegistered(ctx context.Context, email string) (bool, error)
}

type InitializeInput struct {
	Amount        float64
	Email         string
	FirstName     string
	LastName      string
	Type          string
	PaymentMethod string
	PhoneNumber   string
	Reference     string
	PlanName      string
}

type InitializeResult struct {
	TxRef       string
	CheckoutURL string
}

type RegistrationInput struct {
	TxRef     string
	Email     string
	PlanName  string
	Password  string
	FirstName string
	LastName  string
}

type RegistrationResult struct {
	User      *user.User
	Token     string
	ExpiresAt time.Time
}

type PaymentService struct {
	repo     domain.PaymentRepository
	provider Provider
	catalog  *plans.Catalogue
	users    SubscriberRegistrar
	tokens   auth.JWTManagerInterface
	now      func() time.Time
}

func NewPaymentService(repo domain.PaymentRepository, provider Provider, catalog *plans.Catalogue, users SubscriberRegistrar, tokens auth.JWTManagerInterface) *PaymentService {
	return &PaymentService{
		repo:     repo,
		provider: provider,
		catalog:  catalog,
		users:    users,
		tokens:   tokens,
		now:      time.Now,
	}
}

func (s *PaymentService) Plans() []plans.Plan {
	return s.catalog.Plans
}

func (s *PaymentService) Currency() string {
	return s.catalog.Currency
}

func (s *PaymentService) Initialize(ctx context.Context, in InitializeInput) (*InitializeResult, error) {
	payment, err := s.validateInitialize(in)
	if err != nil {
		return nil, err
	}
	// Registration would refuse the account after settlement, so refuse the charge.
	registered, err := s.users.EmailRegistered(ctx, payment.Email)
	if err != nil {
		return nil, fmt.Errorf("could not look up subscriber: %w", err)
	}
	if registered {
		return nil, ErrAlreadySubscribed
	}

	payment.TxRef = "TX-" + uuid.NewString()
	payment.Status = domain.StatusPending
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("could not record payment: %w", err)
	}

	checkoutURL, err := s.provider.Start(ctx, payment)
	if err != nil {
		if _, settleErr := s.repo.SettlePayment(ctx, payment.TxRef, domain.Settlement{
			Status:     domain.StatusFailed,
			ResultDesc: "provider rejected the charge",
		}); settleErr != nil {
			log.Printf("[Billing] could not mark %s failed: %v", payment.TxRef, settleErr)
		}
		return nil, fmt.Errorf("could not start payment: %w", err)
	}

	log.Printf("[Billing] initialized %s: %s %.2f via %s", payment.TxRef, payment.PlanName, payment.Amount, payment.Method)
	return &InitializeResult{TxRef: payment.TxRef, CheckoutURL: checkoutURL}, nil
}

func (s *PaymentService) validateInitialize(in InitializeInput) (*domain.Payment, error) {
	var ve payErrors.ValidationErrors

	ve.Add(payDomain.ValidateAmount(in.Amount))
	ve.Add(payDomain.Payer{Email: in.Email, FirstName: in.FirstName, LastName: in.LastName}.Validate())
	if in.Type != "" && in.Type != subscriptionType {
		ve.Add(payErrors.NewValidationError("type", "must be "+subscriptionType))
	}

	payment := &domain.Payment{
		Amount:    in.Amount,
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	}

	method, err := payDomain.ParseMethod(in.PaymentMethod)
	if err != nil {
		ve.Add(err)
	} else {
		payment.Method = method.String()
		switch method {
		case payDomain.MethodTelebirr, payDomain.MethodMpesa:
			phone, err := payDomain.NormalizePhone(in.PhoneNumber)
			ve.Add(err)
			payment.Phone = phone
		case payDomain.MethodCBE:
			ve.Add(payDomain.CBEInput{Reference: in.Reference}.Validate())
			payment.Reference = strings.TrimSpace(in.Reference)
		}
	}

	plan, err := s.resolvePlan(in.PlanName, in.Amount)
	if err != nil {
		ve.Add(err)
	} else {
		payment.PlanName = plan.Name
	}

	if err := ve.ErrOrNil(); err != nil {
		return nil, err
	}
	return payment, nil
}

// resolvePlan looks the plan up by name, or by price when the client sent none.
func (s *PaymentService) resolvePlan(name string, amount float64) (plans.Plan, error) {
	if strings.TrimSpace(name) == "" {
		for _, p := range s.catalog.Plans {
			if sameAmount(p.Amount, amount) {
				return p, nil
			}
		}
		return plans.Plan{}, payErrors.NewValidationError("amount", "does not match any plan")
	}
	plan, err := s.catalog.Lookup(name)
	if err != nil {
		return plans.Plan{}, payErrors.NewValidationError("planName", "unknown plan "+name)
	}
	if !sameAmount(plan.Amount, amount) {
		return plans.Plan{}, payErrors.NewValidationError("amount", fmt.Sprintf("must be %.2f for the %s plan", plan.Amount, plan.Name))
	}
	return plan, nil
}

// Verify reports the payment's current state, settling it first if the provider has an answer.
func (s *PaymentService) Verify(ctx context.Context, txRef string) (*domain.Payment, error) {
	payment, err := s.repo.GetPayment(ctx, txRef)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, payment)
}

func (s *PaymentService) settle(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if payment.Settled() {
		return payment, nil
	}
	settlement, err := s.provider.Check(ctx, *payment)
	if err != nil {
		return nil, fmt.Errorf("could not check payment: %w", err)
	}
	if settlement == nil {
		return payment, nil
	}
	settled, err := s.repo.SettlePayment(ctx, payment.TxRef, *settlement)
	if err != nil {
		return nil, err
	}
	log.Printf("[Billing] %s settled as %s", settled.TxRef, settled.Status)
	return settled, nil
}

// VerifyRegistration binds a successful payment to a new subscriber account. A txRef can back
// at most one account.
func (s *PaymentService) VerifyRegistration(ctx context.Context, in RegistrationInput) (*RegistrationResult, error) {
	var ve payErrors.ValidationErrors
	if strings.TrimSpace(in.TxRef) == "" {
		ve.Add(payErrors.NewValidationError("txRef", "is required"))
	}
	ve.Add(payDomain.ValidateEmail(in.Email))
	if strings.TrimSpace(in.PlanName) == "" {
		ve.Add(payErrors.NewValidationError("planName", "is required"))
	}
	if err := ve.ErrOrNil(); err != nil {
		return nil, err
	}

	payment, err := s.repo.GetPayment(ctx, in.TxRef)
	if err != nil {
		return nil, err
	}
	if payment, err = s.settle(ctx, payment); err != nil {
		return nil, err
	}
	if payment.Status != domain.StatusSuccess {
		return nil, ErrPaymentNotCompleted
	}
	if !strings.EqualFold(strings.TrimSpace(in.Email), payment.Email) {
		return nil, ErrEmailMismatch
	}
	if !strings.EqualFold(strings.TrimSpace(in.PlanName), payment.PlanName) {
		return nil, ErrPlanMismatch
	}
	plan, err := s.catalog.Lookup(payment.PlanName)
	if err != nil || !sameAmount(plan.Amount, payment.Amount) {
		return nil, ErrAmountMismatch
	}

	if err := s.repo.MarkConsumed(ctx, payment.TxRef, s.now()); err != nil {
		return nil, err
	}

	u, err := s.users.RegisterSubscriber(ctx, user.Registration{
		Email:     payment.Email,
		Password:  in.Password,
		FirstName: firstNonEmpty(in.FirstName, payment.FirstName),
		LastName:  firstNonEmpty(in.LastName, payment.LastName),
		PlanName:  plan.Name,
		TxRef:     payment.TxRef,
	})
	if err != nil {
		s.release(ctx, payment.TxRef)
		return nil, err
	}

	token, expiresAt, err := s.tokens.GenerateAccessJWT(auth.Subject{UserID: u.ID, Email: u.Email, Plan: u.PlanName})
	if err != nil {
		// The account exists; the client can still sign in with the mailed credentials.
		log.Printf("[Billing] could not issue token for %s: %v", u.ID, err)
		return &RegistrationResult{User: u}, nil
	}

	log.Printf("[Billing] %s bound to user %s", payment.TxRef, u.ID)
	return &RegistrationResult{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *PaymentService) release(ctx context.Context, txRef string) {
	if err := s.repo.ReleaseConsumed(context.WithoutCancel(ctx), txRef); err != nil {
		log.Printf("[Billing] could not release %s: %v", txRef, err)
	}
}

func sameAmount(a, b float64) bool {
	return math.Round(a*100) == math.Round(b*100)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
