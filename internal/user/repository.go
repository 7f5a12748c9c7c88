package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var ErrUserNotFound = errors.New("user not found")

type Repository interface {
	createUser(ctx context.Context, user *User) error
	getUserByEmail(ctx context.Context, email string) (*User, error)
	getUserByID(ctx context.Context, id string) (*User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) Repository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) createUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, first_name, last_name, password_hash, plan_name, tx_ref, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at;
	`
	err := r.db.QueryRowContext(ctx, query, user.ID, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.PlanName, user.TxRef, user.IsActive).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if strings.Contains(pgErr.ConstraintName, "tx_ref") {
				return ErrTxRefAlreadyUsed
			}
			return ErrEmailAlreadyExists
		}
		return fmt.Errorf("could not create user: %w", err)
	}
	return nil
}

const selectUser = `
	SELECT id, email, first_name, last_name, password_hash, plan_name, tx_ref, is_active, created_at, updated_at
	FROM users
`

func (r *userRepository) getUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectUser+"WHERE email = $1", email))
}

func (r *userRepository) getUserByID(ctx context.Context, id string) (*User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectUser+"WHERE id::text = $1", id))
}

func (r *userRepository) scanOne(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.PasswordHash, &user.PlanName, &user.TxRef, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("could not find user: %w", err)
	}
	return &user, nil
}

// memoryRepository backs the server when no database is configured.
type memoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
	byTxRef map[string]string
	now     func() time.Time
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
		byTxRef: make(map[string]string),
		now:     time.Now,
	}
}

func (r *memoryRepository) createUser(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return ErrEmailAlreadyExists
	}
	if user.TxRef != "" {
		if _, ok := r.byTxRef[user.TxRef]; ok {
			return ErrTxRefAlreadyUsed
		}
	}
	now := r.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[user.Email] = user.ID
	if user.TxRef != "" {
		r.byTxRef[user.TxRef] = user.ID
	}
	return nil
}

func (r *memoryRepository) getUserByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *r.byID[id]
	return &u, nil
}

func (r *memoryRepository) getUserByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *stored
	return &u, nil
}
