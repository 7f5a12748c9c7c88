package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sebuszqo/PlanCheckout/internal/payment/api"
	"github.com/sebuszqo/PlanCheckout/internal/payment/domain"
	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
	"github.com/sebuszqo/PlanCheckout/internal/payment/verification"
	"github.com/sebuszqo/PlanCheckout/internal/plans"
)

type options struct {
	Plan       string
	Method     string
	Phone      string
	Reference  string
	CardNumber string
	CardExpiry string
	CardCVV    string
	CardHolder string
	Email      string
	FirstName  string
	LastName   string
	Password   string
	QuickPay   bool
	ListPlans  bool
	Logout     bool
	Login      bool
	Force      bool
}

// methodInput builds the variant matching opts.Method. Fields of other methods are ignored.
func methodInput(opts options) (domain.MethodInput, error) {
	method, err := domain.ParseMethod(opts.Method)
	if err != nil {
		return nil, err
	}
	switch method {
	case domain.MethodTelebirr:
		return domain.TelebirrInput{Phone: opts.Phone}, nil
	case domain.MethodMpesa:
		return domain.MpesaInput{Phone: opts.Phone}, nil
	case domain.MethodCBE:
		return domain.CBEInput{Reference: opts.Reference}, nil
	default:
		holder := opts.CardHolder
		if strings.TrimSpace(holder) == "" {
			holder = strings.TrimSpace(opts.FirstName + " " + opts.LastName)
		}
		return domain.CardInput{Number: opts.CardNumber, Expiry: opts.CardExpiry, CVV: opts.CardCVV, Holder: holder}, nil
	}
}

// resolvePlan prefers the backend's published prices and falls back to the local catalogue.
func resolvePlan(name string, published []api.Plan, local *plans.Catalogue) (plans.Plan, error) {
	if strings.TrimSpace(name) == "" {
		return plans.Plan{}, payErrors.NewValidationError("plan", "is required")
	}
	for _, p := range published {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return plans.Plan{Name: p.Name, Amount: p.Amount, Features: p.Features}, nil
		}
	}
	plan, err := local.Lookup(name)
	if err != nil {
		return plans.Plan{}, payErrors.NewValidationError("plan", fmt.Sprintf("unknown plan %q, choose one of %s", name, strings.Join(local.Names(), ", ")))
	}
	return plan, nil
}

func printPlans(w io.Writer, published []api.Plan, local *plans.Catalogue) {
	if len(published) == 0 {
		for _, p := range local.Plans {
			published = append(published, api.Plan{Name: p.Name, Amount: p.Amount, Currency: local.Currency, Features: p.Features})
		}
	}
	for _, p := range published {
		fmt.Fprintf(w, "%-10s %8.2f %s\n", p.Name, p.Amount, p.Currency)
		for _, f := range p.Features {
			fmt.Fprintf(w, "           - %s\n", f)
		}
	}
}

type consoleOpener struct {
	out io.Writer
}

func (o consoleOpener) OpenCheckout(ctx context.Context, intent domain.PaymentIntent) error {
	_, err := fmt.Fprintf(o.out, "Complete the payment at:\n  %s\n", intent.CheckoutURL)
	return err
}

type consoleNotifier struct {
	out io.Writer
}

func (n consoleNotifier) ExpectPushPrompt(intent domain.PaymentIntent, phone string) {
	fmt.Fprintf(n.out, "Approve the %s prompt sent to %s for %.2f %s.\n", intent.Method, maskPhone(phone), intent.Amount, domain.Currency)
}

// progressPrinter renders session state changes, printing a line only when something
// other than the countdown moved.
type progressPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	last verification.State
}

func (p *progressPrinter) Update(s verification.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Status == p.last.Status && s.Attempts == p.last.Attempts && s.RemainingSeconds()%10 != 0 {
		return
	}
	p.last = s
	switch s.Status {
	case verification.StatusSuccess:
		fmt.Fprintln(p.out, "Payment confirmed.")
	case verification.StatusFailed:
		fmt.Fprintf(p.out, "Payment not confirmed: %s\n", s.Reason)
	default:
		fmt.Fprintf(p.out, "Waiting for confirmation (%s, attempt %d, %ds left)\n", s.Status, s.Attempts, s.RemainingSeconds())
	}
}

func maskPhone(phone string) string {
	if len(phone) <= 3 {
		return phone
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
