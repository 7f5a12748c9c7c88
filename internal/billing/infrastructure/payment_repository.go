package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sebuszqo/PlanCheckout/internal/billing/domain"
)

const uniqueViolation = "23505"

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (tx_ref, method, amount, plan_name, email, first_name, last_name, phone, reference, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at;
	`
	err := r.db.QueryRowContext(ctx, query, p.TxRef, p.Method, p.Amount, p.PlanName, p.Email, p.FirstName, p.LastName, p.Phone, p.Reference, string(p.Status)).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateTxRef
		}
		return fmt.Errorf("could not create payment: %w", err)
	}
	return nil
}

const selectPayment = `
	SELECT tx_ref, method, amount, plan_name, email, first_name, last_name, phone, reference, status,
	       receipt_number, result_desc, created_at, updated_at, consumed_at
	FROM payments
	WHERE tx_ref = $1
`

func (r *PaymentRepository) GetPayment(ctx context.Context, txRef string) (*domain.Payment, error) {
	var p domain.Payment
	var consumedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, selectPayment, txRef).Scan(
		&p.TxRef, &p.Method, &p.Amount, &p.PlanName, &p.Email, &p.FirstName, &p.LastName, &p.Phone, &p.Reference, &p.Status,
		&p.ReceiptNumber, &p.ResultDesc, &p.CreatedAt, &p.UpdatedAt, &consumedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("could not get payment: %w", err)
	}
	if consumedAt.Valid {
		t := consumedAt.Time
		p.ConsumedAt = &t
	}
	return &p, nil
}

func (r *PaymentRepository) SettlePayment(ctx context.Context, txRef string, s domain.Settlement) (*domain.Payment, error) {
	query := `
		UPDATE payments
		SET status = $2, receipt_number = $3, result_desc = $4, updated_at = NOW()
		WHERE tx_ref = $1 AND status = 'pending';
	`
	if _, err := r.db.ExecContext(ctx, query, txRef, string(s.Status), s.ReceiptNumber, s.ResultDesc); err != nil {
		return nil, fmt.Errorf("could not settle payment: %w", err)
	}
	return r.GetPayment(ctx, txRef)
}

func (r *PaymentRepository) MarkConsumed(ctx context.Context, txRef string, at time.Time) error {
	query := `
		UPDATE payments
		SET consumed_at = $2, updated_at = NOW()
		WHERE tx_ref = $1 AND consumed_at IS NULL;
	`
	res, err := r.db.ExecContext(ctx, query, txRef, at)
	if err != nil {
		return fmt.Errorf("could not consume payment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not consume payment: %w", err)
	}
	if rows == 1 {
		return nil
	}
	if _, err := r.GetPayment(ctx, txRef); err != nil {
		return err
	}
	return domain.ErrAlreadyConsumed
}

func (r *PaymentRepository) ReleaseConsumed(ctx context.Context, txRef string) error {
	query := `UPDATE payments SET consumed_at = NULL, updated_at = NOW() WHERE tx_ref = $1;`
	if _, err := r.db.ExecContext(ctx, query, txRef); err != nil {
		return fmt.Errorf("could not release payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time, resultDesc string) (int64, error) {
	query := `
		UPDATE payments
		SET status = 'failed', result_desc = $2, updated_at = NOW()
		WHERE status = 'pending' AND created_at < $1;
	`
	res, err := r.db.ExecContext(ctx, query, cutoff, resultDesc)
	if err != nil {
		return 0, fmt.Errorf("could not expire payments: %w", err)
	}
	return res.RowsAffected()
}
