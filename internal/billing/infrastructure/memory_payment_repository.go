package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/sebuszqo/PlanCheckout/internal/billing/domain"
)

// MemoryPaymentRepository keeps the ledger in process. Used when no database is configured
// and in tests.
type MemoryPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment
	now      func() time.Time
}

func NewMemoryPaymentRepository(now func() time.Time) *MemoryPaymentRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryPaymentRepository{
		payments: make(map[string]*domain.Payment),
		now:      now,
	}
}

func (r *MemoryPaymentRepository) CreatePayment(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.TxRef]; ok {
		return domain.ErrDuplicateTxRef
	}
	now := r.now()
	p.CreatedAt, p.UpdatedAt = now, now
	stored := *p
	r.payments[p.TxRef] = &stored
	return nil
}

func (r *MemoryPaymentRepository) GetPayment(ctx context.Context, txRef string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[txRef]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (r *MemoryPaymentRepository) SettlePayment(ctx context.Context, txRef string, s domain.Settlement) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[txRef]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	if p.Status == domain.StatusPending {
		p.Status = s.Status
		p.ReceiptNumber = s.ReceiptNumber
		p.ResultDesc = s.ResultDesc
		p.UpdatedAt = r.now()
	}
	return clonePayment(p), nil
}

func (r *MemoryPaymentRepository) MarkConsumed(ctx context.Context, txRef string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[txRef]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if p.ConsumedAt != nil {
		return domain.ErrAlreadyConsumed
	}
	p.ConsumedAt = &at
	p.UpdatedAt = r.now()
	return nil
}

func (r *MemoryPaymentRepository) ReleaseConsumed(ctx context.Context, txRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[txRef]; ok {
		p.ConsumedAt = nil
		p.UpdatedAt = r.now()
	}
	return nil
}

func (r *MemoryPaymentRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time, resultDesc string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.payments {
		if p.Status == domain.StatusPending && p.CreatedAt.Before(cutoff) {
			p.Status = domain.StatusFailed
			p.ResultDesc = resultDesc
			p.UpdatedAt = r.now()
			n++
		}
	}
	return n, nil
}

func clonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	if p.ConsumedAt != nil {
		t := *p.ConsumedAt
		c.ConsumedAt = &t
	}
	return &c
}
