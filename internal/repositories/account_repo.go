package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/attendly/internal/database"
	"github.com/BradenHooton/attendly/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, username, password_hash, role, is_active, login_attempts, created_at`

// AccountRepository is the Postgres account store
type AccountRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db, pool: db.Pool}
}

// rowScanner interface for scanning account rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(scanner rowScanner) (*models.Account, error) {
	var a models.Account
	err := scanner.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.IsActive, &a.LoginAttempts, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + accountColumns + ` FROM admins WHERE id = $1`
	account, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return account, nil
}

// GetByUsername looks up the exact username as stored
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM admins WHERE username = $1`
	account, err := scanAccount(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return account, nil
}

// UsernameTaken reports whether any account has this username, ignoring case
func (r *AccountRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM admins WHERE LOWER(username) = LOWER($1))`, username,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return taken, nil
}

func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM admins ORDER BY created_at ASC, username ASC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return accounts, nil
}

// Create inserts the account in one transaction with a case-insensitive re-check.
// The unique index on LOWER(username) is the final guard; a violation maps to models.ErrConflict.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()
	if account.Role == "" {
		account.Role = models.DefaultRole
	}
	account.IsActive = true
	account.LoginAttempts = 0

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var taken bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM admins WHERE LOWER(username) = LOWER($1))`, account.Username,
		).Scan(&taken); err != nil {
			return err
		}
		if taken {
			return models.ErrConflict
		}

		return tx.QueryRow(ctx, `
			INSERT INTO admins (id, username, password_hash, role, is_active, login_attempts)
			VALUES ($1, $2, $3, $4, TRUE, 0)
			RETURNING created_at
		`, account.ID, account.Username, account.PasswordHash, account.Role).Scan(&account.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, database.MapPostgresError(err)
	}

	return account, nil
}

// IncrementLoginAttempts adds one failed attempt atomically and returns the new count
func (r *AccountRepository) IncrementLoginAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx,
		`UPDATE admins SET login_attempts = login_attempts + 1 WHERE id = $1 RETURNING login_attempts`, id,
	).Scan(&attempts)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return attempts, nil
}

func (r *AccountRepository) ResetLoginAttempts(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE admins SET login_attempts = 0 WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE admins SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
