package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/usersvc/internal/events"
	"github.com/avolkov/usersvc/internal/logging"
	"github.com/avolkov/usersvc/internal/service"
)

type AuthHTTP struct {
	Svc      *service.AuthService
	Producer *events.Producer
}

func (h *AuthHTTP) SignUp(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signup")

	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("signup_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	userID, err := h.Svc.SignUp(ctx, principalFrom(c), service.SignUpRequest{
		Login:    req.Login,
		Password: req.Password,
		Name:     req.Name,
		Gender:   req.Gender,
		BirthDay: req.BirthDay,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		return err
	}

	h.publish(c, req.Login, map[string]any{
		"type":    events.TypeUserSignedUp,
		"user_id": userID,
		"login":   req.Login,
	})

	return c.JSON(http.StatusCreated, signUpResponse{UserID: userID.String()})
}

func (h *AuthHTTP) SignIn(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signin")

	var req signInRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("signin_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Svc.SignIn(ctx, req.Login, req.Password)
	if err != nil {
		return err
	}

	h.publish(c, req.Login, map[string]any{
		"type":  events.TypeUserSignedIn,
		"login": req.Login,
	})

	return c.JSON(http.StatusOK, toTokenPairResponse(pair))
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("refresh_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}

	h.publish(c, "", map[string]any{
		"type": events.TypeTokensRefreshed,
	})

	return c.JSON(http.StatusOK, toTokenPairResponse(pair))
}

func (h *AuthHTTP) SignOut(c echo.Context) error {
	ctx := c.Request().Context()

	p := principalFrom(c)
	if err := h.Svc.SignOut(ctx, p); err != nil {
		return err
	}

	h.publish(c, p.UserAccountID, map[string]any{
		"type":       events.TypeUserSignedOut,
		"account_id": p.UserAccountID,
	})

	return c.NoContent(http.StatusOK)
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_change_password")

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("change_password_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Svc.ChangePassword(ctx, principalFrom(c), c.Param("login"), req.OldPassword, req.NewPassword)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toTokenPairResponse(pair))
}

func (h *AuthHTTP) ChangeLogin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_change_login")

	var req changeLoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("change_login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Svc.ChangeLogin(ctx, principalFrom(c), c.Param("login"), req.NewLogin)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toTokenPairResponse(pair))
}

func (h *AuthHTTP) publish(c echo.Context, key string, event map[string]any) {
	if h.Producer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Producer.PublishEvent(ctx, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}
