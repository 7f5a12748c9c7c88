//go:build integration

package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sebuszqo/PlanCheckout/internal/billing/domain"
	database "github.com/sebuszqo/PlanCheckout/internal/db"
	"github.com/sebuszqo/PlanCheckout/internal/db/migrate"
	"github.com/sebuszqo/PlanCheckout/internal/user"
)

func startPostgres(t *testing.T) *database.DBService {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("plancheckout"),
		postgres.WithUsername("plancheckout"),
		postgres.WithPassword("plancheckout"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, migrate.Run(dsn, migrate.DirectionUp))

	db, err := database.NewDBService(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgres_PaymentRepository(t *testing.T) {
	ctx := context.Background()
	db := startPostgres(t)
	repo := NewPaymentRepository(db.DB)

	p := &domain.Payment{
		TxRef:     "TX-int-1",
		Method:    "telebirr",
		Amount:    2500,
		PlanName:  "Standard",
		Email:     "abebe@example.com",
		FirstName: "Abebe",
		LastName:  "Kebede",
		Phone:     "911223344",
		Status:    domain.StatusPending,
	}
	require.NoError(t, repo.CreatePayment(ctx, p))
	assert.ErrorIs(t, repo.CreatePayment(ctx, p), domain.ErrDuplicateTxRef)

	got, err := repo.GetPayment(ctx, "TX-int-1")
	require.NoError(t, err)
	assert.Equal(t, 2500.0, got.Amount)
	assert.Nil(t, got.ConsumedAt)

	settled, err := repo.SettlePayment(ctx, "TX-int-1", domain.Settlement{Status: domain.StatusSuccess, ReceiptNumber: "R1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, settled.Status)

	settled, err = repo.SettlePayment(ctx, "TX-int-1", domain.Settlement{Status: domain.StatusFailed})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, settled.Status)

	require.NoError(t, repo.MarkConsumed(ctx, "TX-int-1", time.Now()))
	assert.ErrorIs(t, repo.MarkConsumed(ctx, "TX-int-1", time.Now()), domain.ErrAlreadyConsumed)
	assert.ErrorIs(t, repo.MarkConsumed(ctx, "TX-missing", time.Now()), domain.ErrPaymentNotFound)
	require.NoError(t, repo.ReleaseConsumed(ctx, "TX-int-1"))
	assert.NoError(t, repo.MarkConsumed(ctx, "TX-int-1", time.Now()))

	require.NoError(t, repo.CreatePayment(ctx, &domain.Payment{TxRef: "TX-int-2", Method: "card", Amount: 1000, PlanName: "Basic", Email: "a@example.com", Status: domain.StatusPending}))
	n, err := repo.ExpirePendingBefore(ctx, time.Now().Add(time.Minute), "expired")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	expired, err := repo.GetPayment(ctx, "TX-int-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, expired.Status)
	assert.Equal(t, "expired", expired.ResultDesc)
}

func TestPostgres_UserRepository(t *testing.T) {
	ctx := context.Background()
	db := startPostgres(t)
	svc := user.NewUserService(user.NewUserRepository(db.DB), nil)

	u, err := svc.RegisterSubscriber(ctx, user.Registration{Email: "abebe@example.com", PlanName: "Premium", TxRef: "TX-u1"})
	require.NoError(t, err)

	exists, err := svc.Exists(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = svc.RegisterSubscriber(ctx, user.Registration{Email: "abebe@example.com", PlanName: "Basic", TxRef: "TX-u2"})
	assert.ErrorIs(t, err, user.ErrEmailAlreadyExists)

	_, err = svc.RegisterSubscriber(ctx, user.Registration{Email: "sara@example.com", PlanName: "Basic", TxRef: "TX-u1"})
	assert.ErrorIs(t, err, user.ErrTxRefAlreadyUsed)
}
