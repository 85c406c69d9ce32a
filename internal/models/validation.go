package models

import (
	"regexp"

	"github.com/avolkov/usersvc/internal/apperr"
)

var (
	loginPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	namePattern  = regexp.MustCompile(`^[a-zA-Zа-яА-Я]+$`)
)

func ValidateLogin(login string) error {
	if login == "" {
		return apperr.Validation("login must not be empty")
	}
	if !loginPattern.MatchString(login) {
		return apperr.Validation("login may contain only latin letters and digits")
	}
	return nil
}

func ValidatePassword(password string) error {
	if !loginPattern.MatchString(password) {
		return apperr.Validation("password may contain only latin letters and digits")
	}
	return nil
}

func ValidateName(name string) error {
	if name == "" {
		return apperr.Validation("name must not be empty")
	}
	if !namePattern.MatchString(name) {
		return apperr.Validation("name may contain only latin and russian letters")
	}
	return nil
}

func ValidateGender(gender Gender) error {
	if !gender.Valid() {
		return apperr.Validation("gender %q is not valid", gender)
	}
	return nil
}

// SetLogin validates and updates the account login.
func (a *UserAccount) SetLogin(login string) error {
	if err := ValidateLogin(login); err != nil {
		return err
	}
	a.Login = login
	return nil
}
