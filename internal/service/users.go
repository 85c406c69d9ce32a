package service

import (
	"context"
	"time"

	"github.com/avolkov/usersvc/internal/apperr"
	"github.com/avolkov/usersvc/internal/authz"
	"github.com/avolkov/usersvc/internal/logging"
	"github.com/avolkov/usersvc/internal/models"
	"github.com/avolkov/usersvc/internal/repo"
)

// UserService covers the account-management operations around the session
// core: profile reads and updates, soft-delete/restore and the admin-gated
// user queries.
type UserService struct {
	Store *repo.Store
}

type UserInfo struct {
	Name     string
	Gender   models.Gender
	BirthDay *time.Time
	IsActive bool
}

type PutUserRequest struct {
	Name     string
	Gender   models.Gender
	BirthDay *time.Time
}

func (s *UserService) GetUser(ctx context.Context, p authz.Principal, login string) (*UserInfo, error) {
	account, err := s.Store.FindAccountByLogin(ctx, login, true, false)
	if err != nil {
		return nil, err
	}
	if err := p.CheckPermission(account); err != nil {
		return nil, err
	}
	if account.User == nil {
		return nil, apperr.Precondition("user of account %q was not loaded", login)
	}

	return &UserInfo{
		Name:     account.User.Name,
		Gender:   account.User.Gender,
		BirthDay: account.User.BirthDay,
		IsActive: account.User.IsActive(),
	}, nil
}

func (s *UserService) PutUser(ctx context.Context, p authz.Principal, login string, req PutUserRequest) error {
	account, err := s.Store.FindAccountByLogin(ctx, login, true, false)
	if err != nil {
		return err
	}
	if err := p.CheckPermission(account); err != nil {
		return err
	}
	if account.User == nil {
		return apperr.Precondition("user of account %q was not loaded", login)
	}

	if err := models.ValidateName(req.Name); err != nil {
		return err
	}
	if err := models.ValidateGender(req.Gender); err != nil {
		return err
	}

	account.User.Name = req.Name
	account.User.Gender = req.Gender
	account.User.BirthDay = req.BirthDay

	return s.Store.SaveAccount(ctx, account, repo.SaveOptions{SoftDelete: true, Actor: p})
}

// DeleteUser removes a user; with soft=true the account and profile are
// marked revoked and stay queryable for audit.
func (s *UserService) DeleteUser(ctx context.Context, p authz.Principal, login string, soft bool) error {
	l := logging.FromContext(ctx).With("svc", "users.delete", "login", login, "soft", soft)

	if err := p.CheckIsAdmin(); err != nil {
		return err
	}

	account, err := s.Store.FindAccountByLogin(ctx, login, true, false)
	if err != nil {
		return err
	}

	if err := s.Store.DeleteAccount(ctx, account, soft, p); err != nil {
		return err
	}

	l.Info("user deleted")
	return nil
}

func (s *UserService) RestoreUser(ctx context.Context, p authz.Principal, login string) error {
	l := logging.FromContext(ctx).With("svc", "users.restore", "login", login)

	if err := p.CheckIsAdmin(); err != nil {
		return err
	}

	account, err := s.Store.FindAccountByLogin(ctx, login, true, false)
	if err != nil {
		return err
	}

	account.Restore()
	if account.User != nil {
		account.User.Restore()
	}

	if err := s.Store.SaveAccount(ctx, account, repo.SaveOptions{SoftDelete: true, Actor: p}); err != nil {
		return err
	}

	l.Info("user restored")
	return nil
}

func (s *UserService) GetActiveUsers(ctx context.Context, p authz.Principal) ([]UserInfo, error) {
	if err := p.CheckIsAdmin(); err != nil {
		return nil, err
	}

	users, err := s.Store.ListActiveUsers(ctx)
	if err != nil {
		return nil, err
	}
	return toUserInfos(users), nil
}

func (s *UserService) GetOlderThanUsers(ctx context.Context, p authz.Principal, age int) ([]UserInfo, error) {
	if err := p.CheckIsAdmin(); err != nil {
		return nil, err
	}

	users, err := s.Store.ListUsersOlderThan(ctx, age)
	if err != nil {
		return nil, err
	}
	return toUserInfos(users), nil
}

func toUserInfos(users []models.User) []UserInfo {
	infos := make([]UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, UserInfo{
			Name:     u.Name,
			Gender:   u.Gender,
			BirthDay: u.BirthDay,
			IsActive: u.IsActive(),
		})
	}
	return infos
}
