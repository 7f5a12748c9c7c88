package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
)

const (
	phoneDigits        = 9
	minReferenceLength = 6
	maxReferenceLength = 32
	minCardDigits      = 13
	maxCardDigits      = 19
)

var nowFunc = time.Now

// MethodInput is the method-specific part of a payment request. Only the variants
// declared in this package implement it, so a card input can never carry a phone number.
type MethodInput interface {
	Method() Method
	Validate() error
	isMethodInput()
}

type TelebirrInput struct {
	Phone string
}

func (TelebirrInput) Method() Method { return MethodTelebirr }
func (TelebirrInput) isMethodInput() {}

func (in TelebirrInput) Validate() error {
	_, err := NormalizePhone(in.Phone)
	return err
}

type MpesaInput struct {
	Phone string
}

func (MpesaInput) Method() Method { return MethodMpesa }
func (MpesaInput) isMethodInput() {}

func (in MpesaInput) Validate() error {
	_, err := NormalizePhone(in.Phone)
	return err
}

type CBEInput struct {
	Reference string
}

func (CBEInput) Method() Method { return MethodCBE }
func (CBEInput) isMethodInput() {}

func (in CBEInput) Validate() error {
	ref := strings.TrimSpace(in.Reference)
	if len(ref) < minReferenceLength || len(ref) > maxReferenceLength {
		return payErrors.NewValidationError("reference", fmt.Sprintf("must be between %d and %d characters", minReferenceLength, maxReferenceLength))
	}
	for _, r := range ref {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return payErrors.NewValidationError("reference", "must be alphanumeric")
		}
	}
	return nil
}

type CardInput struct {
	Number string
	Expiry string // MM/YY
	CVV    string
	Holder string
}

func (CardInput) Method() Method { return MethodCard }
func (CardInput) isMethodInput() {}

func (in CardInput) Validate() error {
	var ve payErrors.ValidationErrors

	number := stripSeparators(in.Number)
	switch {
	case number == "":
		ve.Add(payErrors.NewValidationError("cardNumber", "is required"))
	case !isDigits(number) || len(number) < minCardDigits || len(number) > maxCardDigits:
		ve.Add(payErrors.NewValidationError("cardNumber", fmt.Sprintf("must be %d to %d digits", minCardDigits, maxCardDigits)))
	case !luhnValid(number):
		ve.Add(payErrors.NewValidationError("cardNumber", "failed checksum"))
	}

	ve.Add(validateExpiry(in.Expiry, nowFunc()))

	cvv := strings.TrimSpace(in.CVV)
	if !isDigits(cvv) || len(cvv) < 3 || len(cvv) > 4 {
		ve.Add(payErrors.NewValidationError("cvv", "must be 3 or 4 digits"))
	}
	if strings.TrimSpace(in.Holder) == "" {
		ve.Add(payErrors.NewValidationError("cardHolder", "is required"))
	}
	return ve.ErrOrNil()
}

// Last4 is the only part of the card number that may be logged.
func (in CardInput) Last4() string {
	number := stripSeparators(in.Number)
	if len(number) < 4 {
		return number
	}
	return number[len(number)-4:]
}

// NormalizePhone strips separators and the Ethiopian country/trunk prefixes and
// requires exactly nine subscriber digits.
func NormalizePhone(phone string) (string, error) {
	p := stripSeparators(phone)
	p = strings.TrimPrefix(p, "+")
	switch {
	case strings.HasPrefix(p, "251") && len(p) == phoneDigits+3:
		p = p[3:]
	case strings.HasPrefix(p, "0") && len(p) == phoneDigits+1:
		p = p[1:]
	}
	if p == "" {
		return "", payErrors.NewValidationError("phoneNumber", "is required")
	}
	if !isDigits(p) || len(p) != phoneDigits {
		return "", payErrors.NewValidationError("phoneNumber", fmt.Sprintf("must contain %d digits", phoneDigits))
	}
	return p, nil
}

// PhoneOf returns the normalised phone for mobile-money inputs and "" for everything else.
func PhoneOf(in MethodInput) string {
	var raw string
	switch v := in.(type) {
	case TelebirrInput:
		raw = v.Phone
	case MpesaInput:
		raw = v.Phone
	default:
		return ""
	}
	p, err := NormalizePhone(raw)
	if err != nil {
		return ""
	}
	return p
}

// ReferenceOf returns the CBE transfer reference, or "" for other methods.
func ReferenceOf(in MethodInput) string {
	if v, ok := in.(CBEInput); ok {
		return strings.TrimSpace(v.Reference)
	}
	return ""
}

func validateExpiry(expiry string, now time.Time) error {
	parts := strings.Split(strings.TrimSpace(expiry), "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return payErrors.NewValidationError("expiry", "must be in MM/YY format")
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return payErrors.NewValidationError("expiry", "month must be 01-12")
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return payErrors.NewValidationError("expiry", "year must be two digits")
	}
	// valid through the last day of the expiry month
	firstOfNextMonth := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(firstOfNextMonth) {
		return payErrors.NewValidationError("expiry", "card has expired")
	}
	return nil
}

func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func stripSeparators(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
