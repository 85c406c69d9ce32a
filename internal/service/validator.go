package service

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avolkov/usersvc/internal/apperr"
	"github.com/avolkov/usersvc/internal/models"
)

// validateRefreshToken runs the refresh-token state machine and returns the
// consumed token row with its owning account and profile loaded. The row is
// always consumed on lookup; the caller removes it in the same save that
// persists the replacement.
//
// Expired tokens are the one exception: their consumption is persisted
// immediately, so an expired token cannot be presented twice — the second
// attempt fails the lookup, not the signature check.
func (s *AuthService) validateRefreshToken(ctx context.Context, raw string) (*models.RefreshToken, error) {
	verifyErr := s.Tokens.VerifyRefreshToken(raw)

	switch {
	case verifyErr == nil:
		row, err := s.Store.FindRefreshToken(ctx, raw)
		if err != nil {
			return nil, err
		}
		if !row.IsActive() {
			return nil, apperr.Validation("refresh token is not active")
		}
		if row.UserAccount == nil {
			return nil, apperr.Precondition("account of refresh token %s was not loaded", row.ID)
		}
		return row, nil

	case errors.Is(verifyErr, jwt.ErrTokenExpired):
		row, err := s.Store.FindRefreshToken(ctx, raw)
		if err != nil {
			// A missing row keeps its own failure kind.
			return nil, err
		}
		if err := s.Store.ConsumeRefreshToken(ctx, row); err != nil {
			return nil, err
		}
		return nil, apperr.Validation("refresh token is not valid")

	default:
		// Bad signature, wrong issuer or audience: no lookup at all.
		return nil, apperr.Validation("refresh token is not valid")
	}
}
