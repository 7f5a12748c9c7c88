package infrastructure

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebuszqo/PlanCheckout/internal/billing/domain"
)

func TestMemoryPaymentRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPaymentRepository(nil)

	p := &domain.Payment{TxRef: "TX-1", Method: "mpesa", Amount: 1000, PlanName: "Basic", Status: domain.StatusPending}
	require.NoError(t, repo.CreatePayment(ctx, p))
	assert.False(t, p.CreatedAt.IsZero())
	assert.ErrorIs(t, repo.CreatePayment(ctx, &domain.Payment{TxRef: "TX-1"}), domain.ErrDuplicateTxRef)

	settled, err := repo.SettlePayment(ctx, "TX-1", domain.Settlement{Status: domain.StatusSuccess, ReceiptNumber: "R1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, settled.Status)

	settled, err = repo.SettlePayment(ctx, "TX-1", domain.Settlement{Status: domain.StatusFailed})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, settled.Status, "settled payments keep their first outcome")
	assert.Equal(t, "R1", settled.ReceiptNumber)

	_, err = repo.GetPayment(ctx, "TX-404")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestMemoryPaymentRepository_MarkConsumedIsSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPaymentRepository(nil)
	require.NoError(t, repo.CreatePayment(ctx, &domain.Payment{TxRef: "TX-1", Status: domain.StatusSuccess}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if repo.MarkConsumed(ctx, "TX-1", time.Now()) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	require.NoError(t, repo.ReleaseConsumed(ctx, "TX-1"))
	assert.NoError(t, repo.MarkConsumed(ctx, "TX-1", time.Now()))
	assert.ErrorIs(t, repo.MarkConsumed(ctx, "TX-404", time.Now()), domain.ErrPaymentNotFound)
}

func TestMemoryPaymentRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPaymentRepository(nil)
	require.NoError(t, repo.CreatePayment(ctx, &domain.Payment{TxRef: "TX-1", Status: domain.StatusPending}))

	p, err := repo.GetPayment(ctx, "TX-1")
	require.NoError(t, err)
	p.Status = domain.StatusSuccess

	again, err := repo.GetPayment(ctx, "TX-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, again.Status)
}
