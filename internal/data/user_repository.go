package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, username, email, password, oidc_subject, created_at`

// UserRepository handles database operations for users.
type UserRepository struct {
	DB *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// Create inserts a user and sets user.ID.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	query := `INSERT INTO users (username, email, password, oidc_subject, created_at) VALUES (?, ?, ?, ?, ?)`
	id, err := insertReturningID(ctx, r.DB, query, user.Username, user.Email, user.Password, user.OIDCSubject, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID finds a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByUsername finds a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// GetByOIDCSubject finds the user linked to an OIDC subject.
func (r *UserRepository) GetByOIDCSubject(ctx context.Context, subject string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE oidc_subject = ?`, subject)
}

// ExistsByUsernameOrEmail reports whether the username or e-mail is taken.
func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username string, email *string) (bool, error) {
	var count int
	var err error
	if email == nil {
		err = r.DB.GetContext(ctx, &count, r.DB.Rebind(`SELECT COUNT(*) FROM users WHERE username = ?`), username)
	} else {
		err = r.DB.GetContext(ctx, &count, r.DB.Rebind(`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`), username, *email)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existing users: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*User, error) {
	var user User
	if err := r.DB.GetContext(ctx, &user, r.DB.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
