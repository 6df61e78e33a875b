package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/inkwell/internal/errs"
	"github.com/and161185/inkwell/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, pwd_hash, email, nickname, avatar, role, status, created_at, updated_at`

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (username, pwd_hash, email, nickname, avatar, role, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q,
		u.Username, u.PwdHash, u.Email, u.Nickname, u.Avatar, string(u.Role), string(u.Status),
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if constraint, ok := uniqueViolation(err); ok {
		if strings.Contains(constraint, "email") {
			return errs.ErrDuplicateEmail
		}
		return errs.ErrDuplicateUsername
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, username))
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, email))
}

// UpdateProfile replaces nickname and avatar.
func (r *UserRepo) UpdateProfile(ctx context.Context, id int64, nickname, avatar string) error {
	const q = `
UPDATE users
SET nickname = $2, avatar = $3, updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, errs.ErrNotFound, q, id, nickname, avatar)
}

// UpdatePassword stores newHash if the row still holds oldHash.
// A concurrent change makes the update miss and reports ErrVersionConflict.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, oldHash, newHash string) error {
	const q = `
UPDATE users
SET pwd_hash = $3, updated_at = now()
WHERE id = $1 AND pwd_hash = $2`
	return r.execOne(ctx, errs.ErrVersionConflict, q, id, oldHash, newHash)
}

// SetStatus updates the account status.
func (r *UserRepo) SetStatus(ctx context.Context, id int64, status model.Status) error {
	const q = `
UPDATE users
SET status = $2, updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, errs.ErrNotFound, q, id, string(status))
}

func (r *UserRepo) execOne(ctx context.Context, missErr error, q string, args ...any) error {
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return missErr
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u            model.User
		role, status string
	)
	err := row.Scan(&u.ID, &u.Username, &u.PwdHash, &u.Email, &u.Nickname, &u.Avatar,
		&role, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	u.Role = model.Role(role)
	u.Status = model.Status(status)
	return &u, nil
}
