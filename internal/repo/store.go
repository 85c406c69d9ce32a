package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avolkov/usersvc/internal/apperr"
	"github.com/avolkov/usersvc/internal/authz"
	"github.com/avolkov/usersvc/internal/cache"
	"github.com/avolkov/usersvc/internal/models"
)

// Store is the persistence collaborator. Every mutating use-case ends in a
// single Save* call: one transaction that applies the aggregate's pending
// creates, updates and removals, stamps audit metadata with the acting login
// and, when asked, converts removals of soft-deletable rows into revocation
// updates.
type Store struct {
	DB    *gorm.DB
	Cache cache.Cache

	// Now is overridable in tests; nil means time.Now UTC.
	Now func() time.Time
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Store) FindAccountByLogin(ctx context.Context, login string, withProfile, withTokens bool) (*models.UserAccount, error) {
	return s.findAccount(ctx, "login = ?", login, withProfile, withTokens,
		apperr.NotFound("user with login %q was not found", login))
}

func (s *Store) FindAccountByID(ctx context.Context, id uuid.UUID, withProfile, withTokens bool) (*models.UserAccount, error) {
	return s.findAccount(ctx, "id = ?", id, withProfile, withTokens,
		apperr.NotFound("user account with id %s was not found", id))
}

func (s *Store) findAccount(ctx context.Context, cond string, arg any, withProfile, withTokens bool, notFound error) (*models.UserAccount, error) {
	q := s.DB.WithContext(ctx)
	if withProfile {
		q = q.Preload("User")
	}
	if withTokens {
		q = q.Preload("RefreshTokens", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_on, id")
		})
	}

	var account models.UserAccount
	if err := q.Where(cond, arg).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	if withTokens {
		account.MarkRefreshTokensLoaded()
	}
	return &account, nil
}

// FindRefreshToken locates a token row by exact string match, with the
// owning account and its profile loaded (the profile is needed for the
// access token minted after a successful refresh).
func (s *Store) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var row models.RefreshToken
	err := s.DB.WithContext(ctx).
		Preload("UserAccount.User").
		Where("token = ?", token).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("refresh token was not found")
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &row, nil
}

// IsLoginUnique is the fast-path uniqueness check. The unique index on
// user_accounts.login stays authoritative under concurrent sign-ups.
func (s *Store) IsLoginUnique(ctx context.Context, login string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&models.UserAccount{}).
		Where("login = ?", login).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count logins: %w", err)
	}
	return count == 0, nil
}

type SaveOptions struct {
	// SoftDelete converts removals of soft-deletable rows into revocation
	// updates instead of deletes.
	SoftDelete bool
	// Actor is the caller; an unauthenticated actor stamps with the target
	// account's own login (sign-in, refresh).
	Actor authz.Principal
}

// SaveAccount persists the aggregate's pending changes in one transaction.
func (s *Store) SaveAccount(ctx context.Context, account *models.UserAccount, opts SaveOptions) error {
	actor, err := s.actingLogin(ctx, opts.Actor, account.Login)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if account.CreatedOn.IsZero() {
			return s.insertAccount(tx, account, actor, now)
		}

		stampModified(&account.Entity, actor, now)
		if err := tx.Omit(clause.Associations).Save(account).Error; err != nil {
			return translateUnique(err, account.Login)
		}

		if account.User != nil {
			account.User.UserAccountID = account.ID
			if account.User.CreatedOn.IsZero() {
				stampCreated(&account.User.Entity, actor, now)
				if err := tx.Create(account.User).Error; err != nil {
					return err
				}
			} else {
				stampModified(&account.User.Entity, actor, now)
				if err := tx.Omit(clause.Associations).Save(account.User).Error; err != nil {
					return err
				}
			}
		}

		for _, t := range account.RefreshTokens {
			if !t.CreatedOn.IsZero() {
				continue
			}
			t.UserAccountID = account.ID
			stampCreated(&t.Entity, actor, now)
			if err := tx.Create(t).Error; err != nil {
				return err
			}
		}

		return s.applyRemovals(tx, account.RemovedRefreshTokens(), opts.SoftDelete, actor, now)
	})
	if err != nil {
		return err
	}

	account.ResetRemovedRefreshTokens()
	return nil
}

func (s *Store) insertAccount(tx *gorm.DB, account *models.UserAccount, actor string, now time.Time) error {
	stampCreated(&account.Entity, actor, now)
	if account.User != nil {
		account.User.UserAccountID = account.ID
		stampCreated(&account.User.Entity, actor, now)
	}
	for _, t := range account.RefreshTokens {
		t.UserAccountID = account.ID
		stampCreated(&t.Entity, actor, now)
	}
	if err := tx.Create(account).Error; err != nil {
		return translateUnique(err, account.Login)
	}
	return nil
}

func (s *Store) applyRemovals(tx *gorm.DB, removed []*models.RefreshToken, soft bool, actor string, now time.Time) error {
	for _, t := range removed {
		if soft {
			err := tx.Model(t).Updates(map[string]any{
				"revoked_on":  now,
				"revoked_by":  actor,
				"modified_on": now,
				"modified_by": actor,
			}).Error
			if err != nil {
				return err
			}
			continue
		}
		if err := tx.Delete(t).Error; err != nil {
			return err
		}
	}
	return nil
}

// RotateRefreshToken consumes a validated token row and persists its
// replacement atomically. The rotation runs unauthenticated, so stamps carry
// the owning account's login.
func (s *Store) RotateRefreshToken(ctx context.Context, consumed, fresh *models.RefreshToken, account *models.UserAccount) error {
	now := s.now()
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(consumed).Error; err != nil {
			return err
		}
		fresh.UserAccountID = account.ID
		stampCreated(&fresh.Entity, account.Login, now)
		return tx.Create(fresh).Error
	})
}

// ConsumeRefreshToken removes a token row on its own: the expired-token path
// must persist the consumption even though the refresh call fails.
func (s *Store) ConsumeRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return s.DB.WithContext(ctx).Delete(token).Error
}

// DeleteAccount removes the account with its profile; soft deletion marks
// both revoked instead. Hard deletion also drops the account's token rows.
func (s *Store) DeleteAccount(ctx context.Context, account *models.UserAccount, soft bool, actor authz.Principal) error {
	login, err := s.actingLogin(ctx, actor, account.Login)
	if err != nil {
		return err
	}

	now := s.now()
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if soft {
			revocation := map[string]any{
				"revoked_on":  now,
				"revoked_by":  login,
				"modified_on": now,
				"modified_by": login,
			}
			if err := tx.Model(account).Updates(revocation).Error; err != nil {
				return err
			}
			if account.User != nil {
				return tx.Model(account.User).Updates(revocation).Error
			}
			return nil
		}

		if err := tx.Where("user_account_id = ?", account.ID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_account_id = ?", account.ID).Delete(&models.User{}).Error; err != nil {
			return err
		}
		return tx.Delete(account).Error
	})
}

// actingLogin resolves the login used for audit stamps. Authenticated
// callers resolve through the cache with a DB fallback that refills it;
// anonymous flows stamp with the target account's own login.
func (s *Store) actingLogin(ctx context.Context, actor authz.Principal, fallback string) (string, error) {
	if !actor.IsAuthenticated() {
		return fallback, nil
	}

	accountID, err := actor.GetUserAccountID()
	if err != nil {
		return "", err
	}

	key := cache.LoginKey(accountID)
	if login, ok := s.Cache.Get(ctx, key); ok {
		return login, nil
	}

	var account models.UserAccount
	err = s.DB.WithContext(ctx).
		Select("login").
		Where("id = ?", accountID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.NotFound("user account with id %s was not found", accountID)
		}
		return "", fmt.Errorf("resolve acting login: %w", err)
	}

	s.Cache.Set(ctx, key, account.Login)
	return account.Login, nil
}

func stampCreated(e *models.Entity, actor string, now time.Time) {
	e.CreatedOn = now
	e.CreatedBy = actor
	e.ModifiedOn = now
	e.ModifiedBy = actor
}

func stampModified(e *models.Entity, actor string, now time.Time) {
	e.ModifiedOn = now
	e.ModifiedBy = actor
}

// translateUnique maps a storage-level unique violation on the login column
// to the same Validation failure the fast-path check produces.
func translateUnique(err error, login string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key value") {
		return apperr.Validation("user with login %q already exists", login)
	}
	return err
}
