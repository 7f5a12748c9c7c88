package verification

import (
	"time"

	"github.com/sebuszqo/PlanCheckout/internal/payment/domain"
)

type Status string

const (
	StatusChecking Status = "checking"
	StatusPending  Status = "pending"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Origin records who asserted the payment result.
type Origin string

const (
	OriginBackend Origin = "backend"
	OriginDemo    Origin = "demo"
)

const (
	ReasonBackendFailed = "payment failed"
	ReasonCountdown     = "countdown expired"
	ReasonMaxAttempts   = "attempt limit reached"
	ReasonCancelled     = "cancelled"
)

type PaymentData struct {
	Amount        float64
	ReceiptNumber string
	ResultDesc    string
}

// State is a copy of the session as observed at one point in time.
type State struct {
	TxRef             string
	Status            Status
	Attempts          int
	Remaining         time.Duration
	ConsecutiveErrors int
	PaymentData       *PaymentData
	Origin            Origin
	Reason            string
	History           []Status
}

func (s State) RemainingSeconds() int {
	return int(s.Remaining / time.Second)
}

func (s State) clone() State {
	c := s
	c.History = append([]Status(nil), s.History...)
	if s.PaymentData != nil {
		pd := *s.PaymentData
		c.PaymentData = &pd
	}
	return c
}

// Result is the confirmed outcome handed to registration.
type Result struct {
	Intent domain.PaymentIntent
	Data   PaymentData
	Origin Origin
}

func (r *Result) IsDemo() bool {
	return r != nil && r.Origin == OriginDemo
}
