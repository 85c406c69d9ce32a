package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/avolkov/usersvc/internal/apperr"
	"github.com/avolkov/usersvc/internal/models"
)

// Claim names embedded in access and refresh tokens.
const (
	ClaimID            = "id"
	ClaimUserID        = "userId"
	ClaimUserAccountID = "userAccountId"
	ClaimIsAdmin       = "isAdmin"
)

type AccessClaims struct {
	UserID        string `json:"userId"`
	UserAccountID string `json:"userAccountId"`
	IsAdmin       string `json:"isAdmin"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	// RandomID is the "id" claim: a fresh random identifier, the only
	// payload of a refresh token. The account binding lives in the ledger.
	RandomID string `json:"id"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret          []byte
	Issuer          string
	Audience        string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Issuer mints and verifies the service's JWTs. Now is overridable in tests;
// nil means time.Now.
type Issuer struct {
	Config Config
	Now    func() time.Time
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// CreateAccessToken mints an access token for the account. The profile must
// be loaded: the userId and isAdmin claims come from it.
func (i *Issuer) CreateAccessToken(account *models.UserAccount) (string, error) {
	if account.User == nil {
		return "", apperr.Precondition("user of account %q was not loaded", account.Login)
	}

	isAdmin := "false"
	if account.User.IsAdmin {
		isAdmin = "true"
	}

	return i.signToken(AccessClaims{
		UserID:           account.User.ID.String(),
		UserAccountID:    account.ID.String(),
		IsAdmin:          isAdmin,
		RegisteredClaims: i.registered(i.now().Add(i.Config.AccessTokenTTL)),
	})
}

// CreateRefreshToken mints a refresh token carrying only a random identifier.
func (i *Issuer) CreateRefreshToken() (string, error) {
	return i.signToken(RefreshClaims{
		RandomID:         uuid.NewString(),
		RegisteredClaims: i.registered(i.now().Add(i.Config.RefreshTokenTTL)),
	})
}

// registered builds the shared registered-claims part, so access and refresh
// tokens go through the same signature, issuer and audience rules.
func (i *Issuer) registered(expiry time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    i.Config.Issuer,
		Audience:  jwt.ClaimStrings{i.Config.Audience},
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
}

func (i *Issuer) signToken(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(i.Config.Secret)
}

func (i *Issuer) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(i.Config.Issuer),
		jwt.WithAudience(i.Config.Audience),
		jwt.WithExpirationRequired(),
	}
}

// ParseAccessClaims verifies an access token and returns its claims.
func (i *Issuer) ParseAccessClaims(tokenStr string) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, i.keyFunc, i.parserOptions()...)
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return &claims, nil
}

// VerifyRefreshToken checks signature, issuer, audience and expiry of a
// refresh token. An expired but otherwise well-formed token surfaces as an
// error matching jwt.ErrTokenExpired.
func (i *Issuer) VerifyRefreshToken(tokenStr string) error {
	var claims RefreshClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, i.keyFunc, i.parserOptions()...)
	return err
}

func (i *Issuer) keyFunc(*jwt.Token) (any, error) {
	return i.Config.Secret, nil
}
