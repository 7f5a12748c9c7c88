package initiator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sebuszqo/PlanCheckout/internal/payment/api"
	"github.com/sebuszqo/PlanCheckout/internal/payment/domain"
	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
)

type Gateway interface {
	Initialize(ctx context.Context, req api.InitializeRequest) (*api.InitializeResponse, error)
}

// CheckoutOpener presents an external checkout page for card and bank payments.
type CheckoutOpener interface {
	OpenCheckout(ctx context.Context, intent domain.PaymentIntent) error
}

// Notifier tells the payer to watch their handset for the mobile-money prompt.
type Notifier interface {
	ExpectPushPrompt(intent domain.PaymentIntent, phone string)
}

type Request struct {
	Amount   float64
	Input    domain.MethodInput
	Payer    domain.Payer
	PlanName string
}

type Service interface {
	Initiate(ctx context.Context, req Request) (*domain.PaymentIntent, error)
}

type service struct {
	gateway  Gateway
	opener   CheckoutOpener
	notifier Notifier
}

func NewService(gateway Gateway, opener CheckoutOpener, notifier Notifier) Service {
	return &service{
		gateway:  gateway,
		opener:   opener,
		notifier: notifier,
	}
}

func (s *service) Initiate(ctx context.Context, req Request) (*domain.PaymentIntent, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	method := req.Input.Method()
	resp, err := s.gateway.Initialize(ctx, buildRequest(req))
	if err != nil {
		log.Printf("[Initiator] initialize %s payment for plan %s failed: %v", method, req.PlanName, err)
		return nil, err
	}
	if resp.Data == nil || strings.TrimSpace(resp.Data.TxRef) == "" {
		return nil, payErrors.NewGatewayError("initialize", "backend returned no transaction reference", 0)
	}

	intent := domain.PaymentIntent{
		TxRef:       resp.Data.TxRef,
		Method:      method,
		Amount:      req.Amount,
		PlanName:    req.PlanName,
		CheckoutURL: resp.Data.CheckoutURL,
	}
	log.Printf("[Initiator] %s payment initialized: tx_ref=%s amount=%.2f %s", method, intent.TxRef, intent.Amount, domain.Currency)
	if card, ok := req.Input.(domain.CardInput); ok {
		log.Printf("[Initiator] %s charged to card ending %s", intent.TxRef, card.Last4())
	}

	if method.IsMobileMoney() {
		if s.notifier != nil {
			s.notifier.ExpectPushPrompt(intent, domain.PhoneOf(req.Input))
		}
		return &intent, nil
	}

	if intent.CheckoutURL != "" && s.opener != nil {
		// the payer can still finish from the printed URL
		if err := s.opener.OpenCheckout(ctx, intent); err != nil {
			log.Printf("[Initiator] could not open checkout page for %s: %v", intent.TxRef, err)
		}
	}
	return &intent, nil
}

func validate(req Request) error {
	var ve payErrors.ValidationErrors
	ve.Add(domain.ValidateAmount(req.Amount))
	if strings.TrimSpace(req.PlanName) == "" {
		ve.Add(payErrors.NewValidationError("planName", "is required"))
	}
	ve.Add(req.Payer.Validate())
	if req.Input == nil {
		ve.Add(payErrors.NewValidationError("paymentMethod", "is required"))
	} else {
		ve.Add(req.Input.Validate())
	}
	return ve.ErrOrNil()
}

func buildRequest(req Request) api.InitializeRequest {
	return api.InitializeRequest{
		Amount:        req.Amount,
		Email:         strings.TrimSpace(req.Payer.Email),
		FirstName:     strings.TrimSpace(req.Payer.FirstName),
		LastName:      strings.TrimSpace(req.Payer.LastName),
		Description:   fmt.Sprintf("%s plan subscription", req.PlanName),
		Category:      api.CategorySubscription,
		Type:          api.TypeSubscription,
		PaymentMethod: string(req.Input.Method()),
		PhoneNumber:   domain.PhoneOf(req.Input),
		Reference:     domain.ReferenceOf(req.Input),
		PlanName:      req.PlanName,
	}
}
