package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	ErrCheckoutSessionExists  = errors.New("checkout session with this idempotency key already exists")
	ErrCheckoutSessionMissing = errors.New("checkout session not found")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// CheckoutSession is the journal row of one checkout attempt.
type CheckoutSession struct {
	ID             string
	UserID         string
	IdempotencyKey string
	Status         domain.CheckoutStatus
	PaymentMethod  domain.PaymentMethod
	TotalAmount    decimal.Decimal
	OrderID        *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Repository struct {
	db *sql.DB
}

type RepoInterface interface {
	Close() error
	RunMigrations(*Credentials) error
	CreateCheckoutSession(ctx context.Context, session *CheckoutSession) error
	UpdateCheckoutSessionStatus(ctx context.Context, id string, status domain.CheckoutStatus, orderID string) error
	GetCheckoutSessionByIdempotencyKey(ctx context.Context, key string) (*CheckoutSession, error)
	ListCheckoutSessions(ctx context.Context, userID string, limit int) ([]*CheckoutSession, error)
}

var _ RepoInterface = (*Repository)(nil)

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) CreateCheckoutSession(ctx context.Context, session *CheckoutSession) error {
	query := `INSERT INTO checkout_sessions (id, user_id, idempotency_key, status, payment_method, total_amount, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
              ON CONFLICT (idempotency_key) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.IdempotencyKey,
		session.Status,
		session.PaymentMethod,
		session.TotalAmount,
	)
	if err != nil {
		return fmt.Errorf("failed to create checkout session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrCheckoutSessionExists
	}
	return nil
}

// UpdateCheckoutSessionStatus moves the session to status. An empty orderID
// keeps the stored one.
func (r *Repository) UpdateCheckoutSessionStatus(ctx context.Context, id string, status domain.CheckoutStatus, orderID string) error {
	query := `UPDATE checkout_sessions
              SET status = $2, order_id = COALESCE(NULLIF($3, ''), order_id), updated_at = NOW()
              WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, status, orderID)
	if err != nil {
		return fmt.Errorf("failed to update checkout session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrCheckoutSessionMissing
	}
	return nil
}

const selectColumns = `id, user_id, idempotency_key, status, payment_method, total_amount, order_id, created_at, updated_at`

func (r *Repository) GetCheckoutSessionByIdempotencyKey(ctx context.Context, key string) (*CheckoutSession, error) {
	query := `SELECT ` + selectColumns + ` FROM checkout_sessions WHERE idempotency_key = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	return s, nil
}

func (r *Repository) ListCheckoutSessions(ctx context.Context, userID string, limit int) ([]*CheckoutSession, error) {
	query := `SELECT ` + selectColumns + ` FROM checkout_sessions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkout sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*CheckoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkout session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*CheckoutSession, error) {
	var (
		s       CheckoutSession
		orderID sql.NullString
	)
	err := row.Scan(&s.ID, &s.UserID, &s.IdempotencyKey, &s.Status, &s.PaymentMethod, &s.TotalAmount, &orderID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if orderID.Valid {
		s.OrderID = &orderID.String
	}
	return &s, nil
}
