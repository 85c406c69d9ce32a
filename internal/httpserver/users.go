package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/usersvc/internal/events"
	"github.com/avolkov/usersvc/internal/logging"
	"github.com/avolkov/usersvc/internal/service"
)

type UsersHTTP struct {
	Svc      *service.UserService
	Producer *events.Producer
}

func (h *UsersHTTP) GetUser(c echo.Context) error {
	info, err := h.Svc.GetUser(c.Request().Context(), principalFrom(c), c.Param("login"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(*info))
}

func (h *UsersHTTP) PutUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users_put")

	var req putUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("put_user_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	err := h.Svc.PutUser(ctx, principalFrom(c), c.Param("login"), service.PutUserRequest{
		Name:     req.Name,
		Gender:   req.Gender,
		BirthDay: req.BirthDay,
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (h *UsersHTTP) DeleteUser(c echo.Context) error {
	login := c.Param("login")
	soft := true
	if v := c.QueryParam("soft"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid soft parameter")
		}
		soft = parsed
	}

	if err := h.Svc.DeleteUser(c.Request().Context(), principalFrom(c), login, soft); err != nil {
		return err
	}

	h.publish(c, login, map[string]any{
		"type":  events.TypeUserDeleted,
		"login": login,
		"soft":  soft,
	})

	return c.NoContent(http.StatusOK)
}

func (h *UsersHTTP) RestoreUser(c echo.Context) error {
	login := c.Param("login")

	if err := h.Svc.RestoreUser(c.Request().Context(), principalFrom(c), login); err != nil {
		return err
	}

	h.publish(c, login, map[string]any{
		"type":  events.TypeUserRestored,
		"login": login,
	})

	return c.NoContent(http.StatusOK)
}

func (h *UsersHTTP) GetActiveUsers(c echo.Context) error {
	infos, err := h.Svc.GetActiveUsers(c.Request().Context(), principalFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUsersResponse(infos))
}

func (h *UsersHTTP) GetOlderThanUsers(c echo.Context) error {
	age, err := strconv.Atoi(c.Param("age"))
	if err != nil || age < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid age parameter")
	}

	infos, err := h.Svc.GetOlderThanUsers(c.Request().Context(), principalFrom(c), age)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUsersResponse(infos))
}

func (h *UsersHTTP) publish(c echo.Context, key string, event map[string]any) {
	if h.Producer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Producer.PublishEvent(ctx, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}
