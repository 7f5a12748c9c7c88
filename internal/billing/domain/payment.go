package domain

import (
	"context"
	"errors"
	"time"
)

type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusSuccess PaymentStatus = "success"
	StatusFailed  PaymentStatus = "failed"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrDuplicateTxRef  = errors.New("transaction reference already exists")
	ErrAlreadyConsumed = errors.New("transaction already used for a registration")
)

// Payment is the backend's ledger entry for one initiated charge.
type Payment struct {
	TxRef         string
	Method        string
	Amount        float64
	PlanName      string
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	Reference     string
	Status        PaymentStatus
	ReceiptNumber string
	ResultDesc    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ConsumedAt    *time.Time
}

func (p *Payment) Settled() bool {
	return p.Status == StatusSuccess || p.Status == StatusFailed
}

func (p *Payment) Consumed() bool {
	return p.ConsumedAt != nil
}

// Settlement is the provider's final word on a pending payment.
type Settlement struct {
	Status        PaymentStatus
	ReceiptNumber string
	ResultDesc    string
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *Payment) error
	GetPayment(ctx context.Context, txRef string) (*Payment, error)
	// SettlePayment applies s only while the payment is still pending and returns the stored row.
	SettlePayment(ctx context.Context, txRef string, s Settlement) (*Payment, error)
	// MarkConsumed atomically claims a settled payment for one registration.
	MarkConsumed(ctx context.Context, txRef string, at time.Time) error
	ReleaseConsumed(ctx context.Context, txRef string) error
	ExpirePendingBefore(ctx context.Context, cutoff time.Time, resultDesc string) (int64, error)
}
