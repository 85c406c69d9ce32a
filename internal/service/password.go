package service

import (
	"fmt"

	"github.com/avolkov/usersvc/internal/models"
	"github.com/avolkov/usersvc/internal/password"
)

func (s *AuthService) hashPassword(pw string) (hash, salt []byte, err error) {
	hash, salt, err = password.Hash(pw)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, salt, nil
}

func (s *AuthService) verifyPassword(pw string, account *models.UserAccount) bool {
	return password.Verify(pw, account.PasswordHash, account.PasswordSalt)
}
