package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/logsink/internal/models"
)

// ==========================
// UserRepo
// ==========================
type UserRepo struct {
	DB *sql.DB
}

// ==========================
// Constructor
// ==========================
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

// ==========================
// Create User
// ==========================
// Create stores a new account. A taken username yields ErrDuplicateUsername and no row is written.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash string, isAdmin bool) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, is_admin)
		VALUES ($1, $2, $3)
		RETURNING id, username, password_hash, is_admin, created_at
	`

	user, err := scanUser(r.DB.QueryRowContext(ctx, query, username, passwordHash, isAdmin))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}

	return user, nil
}

// ==========================
// Ensure Admin
// ==========================
// EnsureAdmin creates the account or, if it exists, resets its password and grants the administrator flag.
func (r *UserRepo) EnsureAdmin(ctx context.Context, username, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, is_admin)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (username) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, is_admin = TRUE
		RETURNING id, username, password_hash, is_admin, created_at
	`

	return scanUser(r.DB.QueryRowContext(ctx, query, username, passwordHash))
}

// ==========================
// Get By Username
// ==========================
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, is_admin, created_at
		FROM users
		WHERE username = $1
	`

	user, err := scanUser(r.DB.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, notFound(err)
	}

	return user, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}
