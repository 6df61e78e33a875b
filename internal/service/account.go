// Package service contains application services for accounts and articles.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/inkwell/internal/errs"
	"github.com/and161185/inkwell/internal/limiter"
	"github.com/and161185/inkwell/internal/model"
	"github.com/and161185/inkwell/internal/repository"
)

// PasswordHasher hashes and verifies passwords. Implemented by *crypto.Credentials.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, encoded string) (bool, error)
}

// TokenIssuer mints access tokens. Implemented by *token.Service.
type TokenIssuer interface {
	IssueWithExpiry(username string, userID int64) (string, time.Time, error)
}

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	Nickname string
}

// AccountService implements register, login, password and profile workflows.
type AccountService struct {
	users  repository.UserRepository
	creds  PasswordHasher
	tokens TokenIssuer
	lim    limiter.Limiter
	log    *zap.Logger

	// dummyHash stands in for the stored hash when the username is unknown.
	dummyHash string
}

// NewAccountService constructs AccountService with required dependencies.
// A nil limiter disables throttling.
func NewAccountService(users repository.UserRepository, creds PasswordHasher, tokens TokenIssuer, lim limiter.Limiter, log *zap.Logger) *AccountService {
	if lim == nil {
		lim = limiter.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &AccountService{users: users, creds: creds, tokens: tokens, lim: lim, log: log}
	dummy, err := creds.Hash(context.Background(), "inkwell-unknown-account")
	if err != nil {
		log.Warn("dummy password hash", zap.Error(err))
	}
	s.dummyHash = dummy
	return s
}

// Register creates an ACTIVE account with role USER.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Password == "" || in.Email == "" {
		return nil, fmt.Errorf("%w: username, password and email are required", errs.ErrValidation)
	}

	if err := s.ensureFree(ctx, s.users.GetByUsername, in.Username, errs.ErrDuplicateUsername); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, s.users.GetByEmail, in.Email, errs.ErrDuplicateEmail); err != nil {
		return nil, err
	}

	hash, err := s.creds.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	nickname := strings.TrimSpace(in.Nickname)
	if nickname == "" {
		nickname = in.Username
	}
	u := &model.User{
		Username: in.Username,
		PwdHash:  hash,
		Email:    in.Email,
		Nickname: nickname,
		Role:     model.RoleUser,
		Status:   model.StatusActive,
	}
	// unique constraints still catch a concurrent registration
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AccountService) ensureFree(ctx context.Context, get func(context.Context, string) (*model.User, error), key string, dup error) error {
	_, err := get(ctx, key)
	switch {
	case err == nil:
		return dup
	case errors.Is(err, errs.ErrNotFound):
		return nil
	default:
		return err
	}
}

// Login authenticates with rate limiting by (username, ip) and issues a token.
//
// The password is checked before the account status so a disabled account is
// only revealed to a caller who knows its password.
func (s *AccountService) Login(ctx context.Context, username, password, ip string) (model.Tokens, *model.User, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Tokens{}, nil, fmt.Errorf("limiter: %w", err)
	}
	if !allowed {
		return model.Tokens{}, nil, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, nil, err
	}
	ok := false
	if u != nil {
		if ok, err = s.creds.Verify(ctx, password, u.PwdHash); err != nil {
			return model.Tokens{}, nil, err
		}
	} else {
		_, _ = s.creds.Verify(ctx, password, s.dummyHash)
	}
	if !ok {
		blocked, _, ferr := s.lim.Failure(ctx, username, ipHash)
		if ferr != nil {
			s.log.Warn("limiter failure record", zap.Error(ferr))
		}
		if blocked {
			return model.Tokens{}, nil, errs.ErrRateLimited
		}
		return model.Tokens{}, nil, errs.ErrInvalidCredentials
	}

	if u.Status == model.StatusDisabled {
		return model.Tokens{}, nil, errs.ErrAccountDisabled
	}

	if err := s.lim.Success(ctx, username, ipHash); err != nil {
		s.log.Warn("limiter reset", zap.Error(err))
	}

	access, exp, err := s.tokens.IssueWithExpiry(u.Username, u.ID)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, u, nil
}

// ChangePassword replaces the password after verifying the old one.
func (s *AccountService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", errs.ErrValidation)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.creds.Verify(ctx, oldPassword, u.PwdHash)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrInvalidCredentials
	}
	hash, err := s.creds.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, userID, u.PwdHash, hash)
}

// Profile returns the public profile of userID.
func (s *AccountService) Profile(ctx context.Context, userID int64) (model.UserInfo, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.UserInfo{}, err
	}
	return u.Info(), nil
}

// UpdateProfile changes nickname and avatar and returns the fresh profile.
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, nickname, avatar string) (model.UserInfo, error) {
	if err := s.users.UpdateProfile(ctx, userID, strings.TrimSpace(nickname), strings.TrimSpace(avatar)); err != nil {
		return model.UserInfo{}, err
	}
	return s.Profile(ctx, userID)
}

// SetStatus enables or disables an account. Only ADMIN may call it.
func (s *AccountService) SetStatus(ctx context.Context, p *model.Principal, userID int64, status model.Status) error {
	if p == nil {
		return errs.ErrUnauthenticated
	}
	if !p.IsAdmin() {
		return errs.ErrForbidden
	}
	if status != model.StatusActive && status != model.StatusDisabled {
		return fmt.Errorf("%w: unknown status %q", errs.ErrValidation, status)
	}
	if err := s.users.SetStatus(ctx, userID, status); err != nil {
		return err
	}
	s.log.Info("account status changed",
		zap.Int64("user_id", userID), zap.String("status", string(status)), zap.Int64("by", p.UserID))
	return nil
}
