// Package authz derives the caller's identity from the request's token
// claims and enforces the admin-or-self rules that gate every mutating
// operation. A Principal is built per request by the HTTP layer; the zero
// value is an anonymous caller.
package authz

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/avolkov/usersvc/internal/apperr"
	"github.com/avolkov/usersvc/internal/models"
)

// Principal holds the raw claim strings of the authenticated caller.
type Principal struct {
	UserID        string
	UserAccountID string
	IsAdmin       string
}

// Anonymous reports whether no claims were presented at all.
func (p Principal) Anonymous() bool {
	return p.UserID == "" && p.UserAccountID == "" && p.IsAdmin == ""
}

// IsAuthenticated reports whether all three identity claims are present and
// parseable.
func (p Principal) IsAuthenticated() bool {
	if _, err := p.GetUserID(); err != nil {
		return false
	}
	if _, err := p.GetUserAccountID(); err != nil {
		return false
	}
	if _, err := p.GetIsAdmin(); err != nil {
		return false
	}
	return true
}

func (p Principal) GetUserID() (uuid.UUID, error) {
	id, err := uuid.Parse(p.UserID)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("userId claim is missing or malformed")
	}
	return id, nil
}

func (p Principal) GetUserAccountID() (uuid.UUID, error) {
	id, err := uuid.Parse(p.UserAccountID)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("userAccountId claim is missing or malformed")
	}
	return id, nil
}

func (p Principal) GetIsAdmin() (bool, error) {
	isAdmin, err := strconv.ParseBool(p.IsAdmin)
	if err != nil {
		return false, apperr.Unauthorized("isAdmin claim is missing or malformed")
	}
	return isAdmin, nil
}

// CheckIsAdmin fails unless the caller is an admin.
func (p Principal) CheckIsAdmin() error {
	isAdmin, err := p.GetIsAdmin()
	if err != nil {
		return err
	}
	if !isAdmin {
		return apperr.Forbidden("this action is available to administrators only")
	}
	return nil
}

// CheckPermission passes for an admin caller regardless of the target, and
// for a non-admin caller only when the target is the caller's own active
// account. A revoked account may not act on itself.
func (p Principal) CheckPermission(account *models.UserAccount) error {
	isAdmin, err := p.GetIsAdmin()
	if err != nil {
		return err
	}
	if isAdmin {
		return nil
	}

	accountID, err := p.GetUserAccountID()
	if err != nil {
		return err
	}
	if accountID != account.ID || !account.IsActive() {
		return apperr.Forbidden("this action is available to an administrator or to the active user himself")
	}
	return nil
}
