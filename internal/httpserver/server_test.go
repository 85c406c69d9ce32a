package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	memorycache "github.com/avolkov/usersvc/internal/cache/memory"
	"github.com/avolkov/usersvc/internal/models"
	"github.com/avolkov/usersvc/internal/repo"
	"github.com/avolkov/usersvc/internal/service"
	"github.com/avolkov/usersvc/internal/tokens"
)

type testServer struct {
	e      *echo.Echo
	store  *repo.Store
	issuer *tokens.Issuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(db))

	loginCache := memorycache.New()
	store := &repo.Store{DB: db, Cache: loginCache}
	issuer := &tokens.Issuer{Config: tokens.Config{
		Secret:          []byte("test-jwt-secret"),
		Issuer:          "usersvc",
		Audience:        "usersvc",
		AccessTokenTTL:  2 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = ErrorHandler
	e.Use(ExtractPrincipal(issuer))

	Register(e, &Deps{
		AuthHandler: &AuthHTTP{
			Svc: &service.AuthService{Store: store, Tokens: issuer, Cache: loginCache},
		},
		UsersHandler: &UsersHTTP{
			Svc: &service.UserService{Store: store},
		},
	})

	return &testServer{e: e, store: store, issuer: issuer}
}

// seedAdminToken persists an administrator account and returns an access
// token for it.
func (ts *testServer) seedAdminToken(t *testing.T) string {
	t.Helper()

	account := models.NewUserAccount("admin", []byte("hash"), []byte("salt"))
	account.User = models.NewUser("Admin", models.GenderUnknown, nil, true)
	require.NoError(t, ts.store.SaveAccount(context.Background(), account, repo.SaveOptions{SoftDelete: true}))

	token, err := ts.issuer.CreateAccessToken(account)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) signUp(t *testing.T, adminToken, login, password string) {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/v1/signup", adminToken, map[string]any{
		"login":    login,
		"password": password,
		"name":     "Tester",
		"gender":   "unknown",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (ts *testServer) signIn(t *testing.T, login, password string) tokenPairResponse {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/v1/signin", "", map[string]any{
		"login":    login,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pair tokenPairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return pair
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestSignUpEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	adminToken := ts.seedAdminToken(t)

	payload := map[string]any{
		"login":    "testuser",
		"password": "secret123",
		"name":     "Tester",
		"gender":   "unknown",
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/signup", "", payload)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/signup", adminToken, payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created signUpResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.UserID)

	rec = ts.do(t, http.MethodPost, "/api/v1/signup", adminToken, payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `user with login "testuser" already exists`, errorMessage(t, rec))
}

func TestSignInEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	adminToken := ts.seedAdminToken(t)
	ts.signUp(t, adminToken, "testuser", "secret123")

	pair := ts.signIn(t, "testuser", "secret123")

	claims, err := ts.issuer.ParseAccessClaims(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "false", claims.IsAdmin)

	rec := ts.do(t, http.MethodPost, "/api/v1/signin", "", map[string]any{
		"login":    "testuser",
		"password": "wrongpass1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "wrong password", errorMessage(t, rec))

	rec = ts.do(t, http.MethodPost, "/api/v1/signin", "", map[string]any{
		"login":    "missing",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	adminToken := ts.seedAdminToken(t)
	ts.signUp(t, adminToken, "testuser", "secret123")
	pair := ts.signIn(t, "testuser", "secret123")

	rec := ts.do(t, http.MethodPost, "/api/v1/refresh", "", map[string]any{
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rotated tokenPairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The consumed token is gone.
	rec = ts.do(t, http.MethodPost, "/api/v1/refresh", "", map[string]any{
		"refresh_token": pair.RefreshToken,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/refresh", "", map[string]any{
		"refresh_token": "not-a-valid-jwt",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignOutEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	adminToken := ts.seedAdminToken(t)
	ts.signUp(t, adminToken, "testuser", "secret123")
	pair := ts.signIn(t, "testuser", "secret123")

	rec := ts.do(t, http.MethodPost, "/api/v1/signout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/signout", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/refresh", "", map[string]any{
		"refresh_token": pair.RefreshToken,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "refresh token is not active", errorMessage(t, rec))
}

func TestChangePasswordEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	adminToken := ts.seedAdminToken(t)
	ts.signUp(t, adminToken, "testuser", "secret123")
	pair := ts.signIn(t, "testuser", "secret123")

	rec := ts.do(t, http.MethodPut, "/api/v1/users/testuser/password", pair.AccessToken, map[string]any{
		"old_password": "secret123",
		"new_password": "newsecret456",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rotated tokenPairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEmpty(t, rotated.RefreshToken)

	ts.signIn(t, "testuser", "newsecret456")

	rec = ts.do(t, http.MethodPut, "/api/v1/users/testuser/password", rotated.AccessToken, map[string]any{
		"old_password": "secret123",
		"new_password": "another789",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "incorrect current password", errorMessage(t, rec))
}

func TestChangeLoginEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	adminToken := ts.seedAdminToken(t)
	ts.signUp(t, adminToken, "testuser", "secret123")
	pair := ts.signIn(t, "testuser", "secret123")

	rec := ts.do(t, http.MethodPut, "/api/v1/users/testuser/login", pair.AccessToken, map[string]any{
		"new_login": "renamed",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ts.signIn(t, "renamed", "secret123")

	rec = ts.do(t, http.MethodPost, "/api/v1/signin", "", map[string]any{
		"login":    "testuser",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	adminToken := ts.seedAdminToken(t)
	ts.signUp(t, adminToken, "testuser", "secret123")
	pair := ts.signIn(t, "testuser", "secret123")

	rec := ts.do(t, http.MethodGet, "/api/v1/users/testuser", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var info userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "Tester", info.Name)
	assert.True(t, info.IsActive)

	rec = ts.do(t, http.MethodPut, "/api/v1/users/testuser", pair.AccessToken, map[string]any{
		"name":   "Renamed",
		"gender": "male",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/users/testuser", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "Renamed", info.Name)
}

func TestUserListEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	adminToken := ts.seedAdminToken(t)
	ts.signUp(t, adminToken, "testuser", "secret123")
	pair := ts.signIn(t, "testuser", "secret123")

	rec := ts.do(t, http.MethodGet, "/api/v1/users", pair.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list usersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.TotalCount)
	assert.Len(t, list.Items, 2)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/older-than/40", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Zero(t, list.TotalCount)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/older-than/nan", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAndRestoreEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	adminToken := ts.seedAdminToken(t)
	ts.signUp(t, adminToken, "testuser", "secret123")
	pair := ts.signIn(t, "testuser", "secret123")

	rec := ts.do(t, http.MethodDelete, "/api/v1/users/testuser", pair.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/users/testuser", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/signin", "", map[string]any{
		"login":    "testuser",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "these credentials were deactivated", errorMessage(t, rec))

	rec = ts.do(t, http.MethodPost, "/api/v1/users/testuser/restore", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ts.signIn(t, "testuser", "secret123")

	rec = ts.do(t, http.MethodDelete, "/api/v1/users/testuser?soft=false", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/testuser", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
