package interfaces

import (
	"context"

	"github.com/sebuszqo/PlanCheckout/internal/billing/application"
	"github.com/sebuszqo/PlanCheckout/internal/billing/domain"
	"github.com/sebuszqo/PlanCheckout/internal/plans"
)

type MockPaymentService struct {
	InitializeResult *application.InitializeResult
	InitializeErr    error
	LastInitialize   application.InitializeInput

	Payment   *domain.Payment
	VerifyErr error

	RegistrationResult *application.RegistrationResult
	RegistrationErr    error
	LastRegistration   application.RegistrationInput
}

func (m *MockPaymentService) Initialize(ctx context.Context, in application.InitializeInput) (*application.InitializeResult, error) {
	m.LastInitialize = in
	return m.InitializeResult, m.InitializeErr
}

func (m *MockPaymentService) Verify(ctx context.Context, txRef string) (*domain.Payment, error) {
	return m.Payment, m.VerifyErr
}

func (m *MockPaymentService) VerifyRegistration(ctx context.Context, in application.RegistrationInput) (*application.RegistrationResult, error) {
	m.LastRegistration = in
	return m.RegistrationResult, m.RegistrationErr
}

func (m *MockPaymentService) Plans() []plans.Plan {
	return plans.Default().Plans
}

func (m *MockPaymentService) Currency() string {
	return "ETB"
}
