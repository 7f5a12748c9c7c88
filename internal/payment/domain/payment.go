package domain

import (
	"fmt"
	"strings"

	"github.com/badoux/checkmail"

	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
)

type Method string

const (
	MethodTelebirr Method = "telebirr"
	MethodCBE      Method = "cbe"
	MethodCard     Method = "card"
	MethodMpesa    Method = "mpesa"
)

// Currency is fixed: the gateway only settles Ethiopian birr.
const Currency = "ETB"

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodTelebirr, MethodCBE, MethodCard, MethodMpesa:
		return m, nil
	default:
		return "", payErrors.NewValidationError("paymentMethod", "unsupported payment method "+s)
	}
}

// IsMobileMoney reports whether the method confirms through a push prompt on the payer's phone
// instead of an external checkout page.
func (m Method) IsMobileMoney() bool {
	return m == MethodTelebirr || m == MethodMpesa
}

func (m Method) String() string {
	return string(m)
}

// PaymentIntent is issued by the backend at initiation and never mutated afterwards.
type PaymentIntent struct {
	TxRef       string
	Method      Method
	Amount      float64
	PlanName    string
	CheckoutURL string
}

type Payer struct {
	Email     string
	FirstName string
	LastName  string
}

func (p Payer) Validate() error {
	var ve payErrors.ValidationErrors
	ve.Add(ValidateEmail(p.Email))
	if strings.TrimSpace(p.FirstName) == "" {
		ve.Add(payErrors.NewValidationError("firstName", "is required"))
	}
	if strings.TrimSpace(p.LastName) == "" {
		ve.Add(payErrors.NewValidationError("lastName", "is required"))
	}
	return ve.ErrOrNil()
}

// AccountFields are the user-entered values sent along with the txRef at registration.
type AccountFields struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// MinPasswordLength matches the backend's account rule.
const MinPasswordLength = 8

// Validate checks what the backend would refuse at registration, so it can be caught
// before the payer is charged. An empty password means the backend generates one.
func (f AccountFields) Validate() error {
	if f.Password != "" && len([]rune(f.Password)) < MinPasswordLength {
		return payErrors.NewValidationError("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	return nil
}

func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return payErrors.NewValidationError("email", "is required")
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return payErrors.NewValidationError("email", "is not a valid address")
	}
	return nil
}

func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return payErrors.NewValidationError("amount", "must be positive")
	}
	return nil
}
