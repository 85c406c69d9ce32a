package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/usersvc/internal/apperr"
)

// Entity carries the identifier and audit stamps shared by all rows.
// The stamps are written by the store at save time, not by domain code.
type Entity struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedOn  time.Time `json:"created_on"`
	CreatedBy  string    `json:"created_by"`
	ModifiedOn time.Time `json:"modified_on"`
	ModifiedBy string    `json:"modified_by"`
}

// SoftDeletable marks a row revocable instead of removable.
// RevokedOn == nil means the row is active.
type SoftDeletable struct {
	RevokedOn *time.Time `gorm:"index" json:"revoked_on"`
	RevokedBy *string    `json:"revoked_by"`
}

func (s *SoftDeletable) IsActive() bool { return s.RevokedOn == nil }

func (s *SoftDeletable) Restore() {
	s.RevokedOn = nil
	s.RevokedBy = nil
}

type Gender string

const (
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
	GenderUnknown Gender = "unknown"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderFemale, GenderMale, GenderUnknown:
		return true
	}
	return false
}

// User is the profile record associated one-to-one with a UserAccount.
// It is the source of the isAdmin claim and of the audit display name.
type User struct {
	Entity
	SoftDeletable
	Name          string     `gorm:"not null"             json:"name"`
	Gender        Gender     `gorm:"not null"             json:"gender"`
	BirthDay      *time.Time `json:"birth_day"`
	IsAdmin       bool       `gorm:"not null"             json:"is_admin"`
	UserAccountID uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"user_account_id"`
}

// UserAccount is the authentication aggregate: login, credentials and the
// refresh-token ledger. The ledger is owned exclusively by the account and
// may only be touched after it was explicitly loaded from storage.
type UserAccount struct {
	Entity
	SoftDeletable
	Login         string          `gorm:"uniqueIndex;not null" json:"login"`
	PasswordHash  []byte          `gorm:"not null"             json:"-"`
	PasswordSalt  []byte          `gorm:"not null"             json:"-"`
	User          *User           `gorm:"foreignKey:UserAccountID" json:"user,omitempty"`
	RefreshTokens []*RefreshToken `gorm:"foreignKey:UserAccountID" json:"-"`

	tokensLoaded  bool
	removedTokens []*RefreshToken
}

type RefreshToken struct {
	Entity
	SoftDeletable
	Token         string       `gorm:"uniqueIndex;not null"     json:"-"`
	UserAccountID uuid.UUID    `gorm:"type:uuid;index;not null" json:"user_account_id"`
	UserAccount   *UserAccount `gorm:"foreignKey:UserAccountID" json:"-"`
}

func NewUserAccount(login string, passwordHash, passwordSalt []byte) *UserAccount {
	return &UserAccount{
		Entity:       Entity{ID: uuid.New()},
		Login:        login,
		PasswordHash: passwordHash,
		PasswordSalt: passwordSalt,
		tokensLoaded: true,
	}
}

func NewUser(name string, gender Gender, birthDay *time.Time, isAdmin bool) *User {
	return &User{
		Entity:   Entity{ID: uuid.New()},
		Name:     name,
		Gender:   gender,
		BirthDay: birthDay,
		IsAdmin:  isAdmin,
	}
}

func NewRefreshToken(token string, account *UserAccount) *RefreshToken {
	return &RefreshToken{
		Entity:        Entity{ID: uuid.New()},
		Token:         token,
		UserAccountID: account.ID,
	}
}

// maxActiveRefreshTokens bounds the ledger: after any AddRefreshToken call
// at most this many non-revoked tokens remain.
const maxActiveRefreshTokens = 5

// MarkRefreshTokensLoaded is called by the store after the token collection
// was fetched. Ledger mutations on an unloaded collection fail.
func (a *UserAccount) MarkRefreshTokensLoaded() { a.tokensLoaded = true }

func (a *UserAccount) RefreshTokensLoaded() bool { return a.tokensLoaded }

// AddRefreshToken appends a token to the ledger. When the ledger already
// holds the maximum of active tokens, the active token with the oldest
// CreatedOn is removed first; ties resolve to the first one in load order
// (the store loads tokens ordered by created_on, id, so the lowest id wins).
func (a *UserAccount) AddRefreshToken(token *RefreshToken) error {
	if !a.tokensLoaded {
		return apperr.Precondition("refresh tokens of account %q were not loaded", a.Login)
	}

	var active []*RefreshToken
	for _, t := range a.RefreshTokens {
		if t.IsActive() {
			active = append(active, t)
		}
	}

	if len(active) >= maxActiveRefreshTokens {
		oldest := active[0]
		for _, t := range active[1:] {
			if t.CreatedOn.Before(oldest.CreatedOn) {
				oldest = t
			}
		}
		a.removeToken(oldest)
	}

	a.RefreshTokens = append(a.RefreshTokens, token)
	return nil
}

// ClearRefreshTokens removes every token from the ledger. Whether the
// removals end up revoked or deleted is decided by the save call.
func (a *UserAccount) ClearRefreshTokens() error {
	if !a.tokensLoaded {
		return apperr.Precondition("refresh tokens of account %q were not loaded", a.Login)
	}
	a.removedTokens = append(a.removedTokens, a.RefreshTokens...)
	a.RefreshTokens = nil
	return nil
}

func (a *UserAccount) ActiveRefreshTokens() []*RefreshToken {
	var active []*RefreshToken
	for _, t := range a.RefreshTokens {
		if t.IsActive() {
			active = append(active, t)
		}
	}
	return active
}

// RemovedRefreshTokens returns the tokens removed from the ledger since the
// last save; the store consumes the list via ResetRemovedRefreshTokens.
func (a *UserAccount) RemovedRefreshTokens() []*RefreshToken { return a.removedTokens }

func (a *UserAccount) ResetRemovedRefreshTokens() { a.removedTokens = nil }

func (a *UserAccount) removeToken(token *RefreshToken) {
	for i, t := range a.RefreshTokens {
		if t == token {
			a.RefreshTokens = append(a.RefreshTokens[:i], a.RefreshTokens[i+1:]...)
			a.removedTokens = append(a.removedTokens, token)
			return
		}
	}
}
