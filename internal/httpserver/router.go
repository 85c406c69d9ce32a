package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Deps struct {
	AuthHandler  *AuthHTTP
	UsersHandler *UsersHTTP
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := e.Group("/api/v1")

	v1.POST("/signup", d.AuthHandler.SignUp)
	v1.POST("/signin", d.AuthHandler.SignIn)
	v1.POST("/refresh", d.AuthHandler.Refresh)
	v1.POST("/signout", d.AuthHandler.SignOut)

	users := v1.Group("/users")

	users.GET("", d.UsersHandler.GetActiveUsers)
	users.GET("/older-than/:age", d.UsersHandler.GetOlderThanUsers)
	users.GET("/:login", d.UsersHandler.GetUser)
	users.PUT("/:login", d.UsersHandler.PutUser)
	users.DELETE("/:login", d.UsersHandler.DeleteUser)
	users.POST("/:login/restore", d.UsersHandler.RestoreUser)
	users.PUT("/:login/password", d.AuthHandler.ChangePassword)
	users.PUT("/:login/login", d.AuthHandler.ChangeLogin)
}
