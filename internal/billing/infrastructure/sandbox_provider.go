package infrastructure

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sebuszqo/PlanCheckout/internal/billing/domain"
)

// DeclinedPhone is the sandbox number whose push prompt is always rejected.
const DeclinedPhone = "900000000"

// SandboxProvider stands in for the mobile-money and card gateway. Every payment settles
// SettleAfter its creation: successfully, unless it was made from DeclinedPhone.
type SandboxProvider struct {
	SettleAfter     time.Duration
	CheckoutBaseURL string
	now             func() time.Time
}

func NewSandboxProvider(settleAfter time.Duration, checkoutBaseURL string) *SandboxProvider {
	return &SandboxProvider{
		SettleAfter:     settleAfter,
		CheckoutBaseURL: strings.TrimRight(checkoutBaseURL, "/"),
		now:             time.Now,
	}
}

// Start returns the hosted checkout URL for card and bank payments, and "" for mobile money.
func (p *SandboxProvider) Start(ctx context.Context, payment *domain.Payment) (string, error) {
	switch payment.Method {
	case "telebirr", "mpesa":
		log.Printf("[Sandbox] push prompt sent to %s for %s", maskPhone(payment.Phone), payment.TxRef)
		return "", nil
	default:
		if p.CheckoutBaseURL == "" {
			return "", nil
		}
		return p.CheckoutBaseURL + "/" + payment.TxRef, nil
	}
}

// Check returns nil while the payment is still in flight.
func (p *SandboxProvider) Check(ctx context.Context, payment domain.Payment) (*domain.Settlement, error) {
	if p.now().Sub(payment.CreatedAt) < p.SettleAfter {
		return nil, nil
	}
	if payment.Phone == DeclinedPhone {
		return &domain.Settlement{Status: domain.StatusFailed, ResultDesc: "Request cancelled by user"}, nil
	}
	return &domain.Settlement{
		Status:        domain.StatusSuccess,
		ReceiptNumber: receiptNumber(),
		ResultDesc:    "The service request is processed successfully.",
	}, nil
}

func receiptNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func maskPhone(phone string) string {
	if len(phone) <= 3 {
		return phone
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
