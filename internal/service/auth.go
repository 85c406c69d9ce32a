package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/usersvc/internal/apperr"
	"github.com/avolkov/usersvc/internal/authz"
	"github.com/avolkov/usersvc/internal/cache"
	"github.com/avolkov/usersvc/internal/logging"
	"github.com/avolkov/usersvc/internal/models"
	"github.com/avolkov/usersvc/internal/repo"
	"github.com/avolkov/usersvc/internal/tokens"
)

// AuthService orchestrates the session lifecycle: sign-up, sign-in, refresh,
// sign-out and credential changes. Every mutating operation performs its
// permission check first and ends in a single atomic save.
type AuthService struct {
	Store  *repo.Store
	Tokens *tokens.Issuer
	Cache  cache.Cache
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type SignUpRequest struct {
	Login    string
	Password string
	Name     string
	Gender   models.Gender
	BirthDay *time.Time
	IsAdmin  bool
}

// SignUp registers a new user. Only an authenticated admin may call it.
func (s *AuthService) SignUp(ctx context.Context, p authz.Principal, req SignUpRequest) (uuid.UUID, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signup", "login", req.Login)

	if err := p.CheckIsAdmin(); err != nil {
		return uuid.Nil, err
	}

	if err := models.ValidateLogin(req.Login); err != nil {
		return uuid.Nil, err
	}
	if err := models.ValidatePassword(req.Password); err != nil {
		return uuid.Nil, err
	}
	if err := models.ValidateName(req.Name); err != nil {
		return uuid.Nil, err
	}
	if err := models.ValidateGender(req.Gender); err != nil {
		return uuid.Nil, err
	}

	unique, err := s.Store.IsLoginUnique(ctx, req.Login)
	if err != nil {
		return uuid.Nil, err
	}
	if !unique {
		return uuid.Nil, apperr.Validation("user with login %q already exists", req.Login)
	}

	hash, salt, err := s.hashPassword(req.Password)
	if err != nil {
		return uuid.Nil, err
	}

	account := models.NewUserAccount(req.Login, hash, salt)
	account.User = models.NewUser(req.Name, req.Gender, req.BirthDay, req.IsAdmin)

	if err := s.Store.SaveAccount(ctx, account, repo.SaveOptions{SoftDelete: true, Actor: p}); err != nil {
		return uuid.Nil, err
	}

	l.Info("user signed up", "user_id", account.User.ID)
	return account.User.ID, nil
}

// SignIn authenticates by login and password and returns a fresh token pair.
// The new refresh token enters the ledger, evicting the oldest active one
// when the account is at capacity.
func (s *AuthService) SignIn(ctx context.Context, login, pw string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signin", "login", login)

	account, err := s.Store.FindAccountByLogin(ctx, login, true, true)
	if err != nil {
		return nil, err
	}

	if !account.IsActive() {
		return nil, apperr.Validation("these credentials were deactivated")
	}
	if !s.verifyPassword(pw, account) {
		l.Warn("sign-in rejected", "reason", "wrong password")
		return nil, apperr.Validation("wrong password")
	}

	refreshToken, err := s.Tokens.CreateRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := account.AddRefreshToken(models.NewRefreshToken(refreshToken, account)); err != nil {
		return nil, err
	}

	// Hard save: an evicted token is pruned, not revoked.
	if err := s.Store.SaveAccount(ctx, account, repo.SaveOptions{SoftDelete: false}); err != nil {
		return nil, err
	}

	accessToken, err := s.Tokens.CreateAccessToken(account)
	if err != nil {
		return nil, err
	}

	l.Info("user signed in")
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh rotates a refresh token: the presented token is validated and
// consumed, a replacement is persisted and a new access token is minted.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	consumed, err := s.validateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	account := consumed.UserAccount

	freshToken, err := s.Tokens.CreateRefreshToken()
	if err != nil {
		return nil, err
	}
	fresh := models.NewRefreshToken(freshToken, account)

	if err := s.Store.RotateRefreshToken(ctx, consumed, fresh, account); err != nil {
		return nil, err
	}

	accessToken, err := s.Tokens.CreateAccessToken(account)
	if err != nil {
		return nil, err
	}

	l.Info("tokens refreshed", "account_id", account.ID)
	return &TokenPair{AccessToken: accessToken, RefreshToken: freshToken}, nil
}

// SignOut revokes every refresh token of the caller's account. The tokens
// are kept as revoked rows, not deleted.
func (s *AuthService) SignOut(ctx context.Context, p authz.Principal) error {
	l := logging.FromContext(ctx).With("svc", "auth.signout")

	accountID, err := p.GetUserAccountID()
	if err != nil {
		return err
	}

	account, err := s.Store.FindAccountByID(ctx, accountID, false, true)
	if err != nil {
		return err
	}
	if err := account.ClearRefreshTokens(); err != nil {
		return err
	}

	if err := s.Store.SaveAccount(ctx, account, repo.SaveOptions{SoftDelete: true, Actor: p}); err != nil {
		return err
	}

	l.Info("user signed out", "account_id", accountID)
	return nil
}

// ChangePassword verifies the current password, stores a new hash and
// replaces the whole ledger with one fresh refresh token.
func (s *AuthService) ChangePassword(ctx context.Context, p authz.Principal, login, oldPw, newPw string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.change_password", "login", login)

	account, err := s.Store.FindAccountByLogin(ctx, login, true, true)
	if err != nil {
		return nil, err
	}
	if err := p.CheckPermission(account); err != nil {
		return nil, err
	}

	if !s.verifyPassword(oldPw, account) {
		return nil, apperr.Validation("incorrect current password")
	}
	if err := models.ValidatePassword(newPw); err != nil {
		return nil, err
	}

	hash, salt, err := s.hashPassword(newPw)
	if err != nil {
		return nil, err
	}
	account.PasswordHash = hash
	account.PasswordSalt = salt

	pair, err := s.replaceLedger(ctx, p, account)
	if err != nil {
		return nil, err
	}

	l.Info("password changed")
	return pair, nil
}

// ChangeLogin renames the account, refreshes the login cache entry and
// replaces the ledger exactly like a password change.
func (s *AuthService) ChangeLogin(ctx context.Context, p authz.Principal, login, newLogin string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.change_login", "login", login)

	account, err := s.Store.FindAccountByLogin(ctx, login, true, true)
	if err != nil {
		return nil, err
	}
	if err := p.CheckPermission(account); err != nil {
		return nil, err
	}

	unique, err := s.Store.IsLoginUnique(ctx, newLogin)
	if err != nil {
		return nil, err
	}
	if !unique {
		return nil, apperr.Validation("user with login %q already exists, the new login must be unique", newLogin)
	}

	if err := account.SetLogin(newLogin); err != nil {
		return nil, err
	}
	s.Cache.Set(ctx, cache.LoginKey(account.ID), newLogin)

	pair, err := s.replaceLedger(ctx, p, account)
	if err != nil {
		return nil, err
	}

	l.Info("login changed", "new_login", newLogin)
	return pair, nil
}

// replaceLedger drops every existing refresh token (hard), issues one fresh
// token and persists everything with the account in a single save.
func (s *AuthService) replaceLedger(ctx context.Context, p authz.Principal, account *models.UserAccount) (*TokenPair, error) {
	if err := account.ClearRefreshTokens(); err != nil {
		return nil, err
	}

	refreshToken, err := s.Tokens.CreateRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := account.AddRefreshToken(models.NewRefreshToken(refreshToken, account)); err != nil {
		return nil, err
	}

	if err := s.Store.SaveAccount(ctx, account, repo.SaveOptions{SoftDelete: false, Actor: p}); err != nil {
		return nil, err
	}

	accessToken, err := s.Tokens.CreateAccessToken(account)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
