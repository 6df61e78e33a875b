// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/inkwell/internal/model"
)

// UserRepository provides access to accounts.
type UserRepository interface {
	// Create inserts a new user and fills in ID and timestamps.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateProfile replaces nickname and avatar.
	UpdateProfile(ctx context.Context, id int64, nickname, avatar string) error
	// UpdatePassword swaps the hash only if the stored one still equals oldHash.
	UpdatePassword(ctx context.Context, id int64, oldHash, newHash string) error
	// SetStatus enables or disables an account.
	SetStatus(ctx context.Context, id int64, status model.Status) error
}
