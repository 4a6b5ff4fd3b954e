package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/attendly/internal/database"
	"github.com/BradenHooton/attendly/internal/models"
	"github.com/google/uuid"
)

// SQLiteAccountRepository is the embedded account store. The username column is
// COLLATE NOCASE UNIQUE, so exact lookups opt back into BINARY collation.
type SQLiteAccountRepository struct {
	db *database.SQLiteDB
}

func NewSQLiteAccountRepository(db *database.SQLiteDB) *SQLiteAccountRepository {
	return &SQLiteAccountRepository{db: db}
}

func (r *SQLiteAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM admins WHERE id = ?`
	account, err := scanAccount(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, database.MapSQLiteError(err)
	}
	return account, nil
}

func (r *SQLiteAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM admins WHERE username = ? COLLATE BINARY`
	account, err := scanAccount(r.db.DB.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, database.MapSQLiteError(err)
	}
	return account, nil
}

func (r *SQLiteAccountRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM admins WHERE username = ?)`, username,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return taken, nil
}

func (r *SQLiteAccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM admins ORDER BY created_at ASC, username ASC LIMIT ? OFFSET ?`

	rows, err := r.db.DB.QueryContext(ctx, query, limit, offset)
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

func (r *SQLiteAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()
	if account.Role == "" {
		account.Role = models.DefaultRole
	}
	account.IsActive = true
	account.LoginAttempts = 0
	account.CreatedAt = time.Now().UTC().Truncate(time.Second)

	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var taken bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM admins WHERE username = ?)`, account.Username,
		).Scan(&taken); err != nil {
			return err
		}
		if taken {
			return models.ErrConflict
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO admins (id, username, password_hash, role, is_active, login_attempts, created_at)
			VALUES (?, ?, ?, ?, 1, 0, ?)
		`, account.ID, account.Username, account.PasswordHash, account.Role, account.CreatedAt)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, database.MapSQLiteError(err)
	}

	return account, nil
}

func (r *SQLiteAccountRepository) IncrementLoginAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.DB.QueryRowContext(ctx,
		`UPDATE admins SET login_attempts = login_attempts + 1 WHERE id = ? RETURNING login_attempts`, id,
	).Scan(&attempts)
	if err != nil {
		return 0, database.MapSQLiteError(err)
	}
	return attempts, nil
}

func (r *SQLiteAccountRepository) ResetLoginAttempts(ctx context.Context, id string) error {
	return r.updateOne(ctx, `UPDATE admins SET login_attempts = 0 WHERE id = ?`, id)
}

func (r *SQLiteAccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.updateOne(ctx, `UPDATE admins SET is_active = ? WHERE id = ?`, active, id)
}

func (r *SQLiteAccountRepository) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return database.MapSQLiteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
