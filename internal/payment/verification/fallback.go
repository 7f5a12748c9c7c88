package verification

import (
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DemoFallback fabricates a confirmation for demo deployments whose backend keeps failing.
// A session only gets one when the configuration enables it explicitly.
type DemoFallback struct {
	amount       float64
	threshold    int
	minRemaining time.Duration
	fired        bool
	newReceipt   func() string
}

func NewDemoFallback(amount float64, threshold int, minRemaining time.Duration) *DemoFallback {
	return &DemoFallback{
		amount:       amount,
		threshold:    threshold,
		minRemaining: minRemaining,
		newReceipt:   demoReceiptNumber,
	}
}

// Consider returns a synthetic payment when the error streak has reached the threshold
// and enough of the countdown is left. It yields at most once.
func (f *DemoFallback) Consider(consecutiveErrors int, remaining time.Duration) (PaymentData, bool) {
	if f == nil || f.fired {
		return PaymentData{}, false
	}
	if consecutiveErrors < f.threshold || remaining <= f.minRemaining {
		return PaymentData{}, false
	}
	f.fired = true
	data := PaymentData{
		Amount:        f.amount,
		ReceiptNumber: f.newReceipt(),
		ResultDesc:    "synthesized by demo fallback",
	}
	log.Printf("[DemoFallback] %d consecutive verify errors with %v left, injecting receipt %s", consecutiveErrors, remaining, data.ReceiptNumber)
	return data, true
}

func demoReceiptNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "DEMO-" + strings.ToUpper(id[:8])
}
