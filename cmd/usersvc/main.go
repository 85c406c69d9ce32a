package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avolkov/usersvc/internal/cache"
	memorycache "github.com/avolkov/usersvc/internal/cache/memory"
	rediscache "github.com/avolkov/usersvc/internal/cache/redis"
	"github.com/avolkov/usersvc/internal/config"
	"github.com/avolkov/usersvc/internal/events"
	"github.com/avolkov/usersvc/internal/httpserver"
	"github.com/avolkov/usersvc/internal/logging"
	"github.com/avolkov/usersvc/internal/repo"
	"github.com/avolkov/usersvc/internal/service"
	"github.com/avolkov/usersvc/internal/tokens"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")

	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := repo.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := repo.Migrate(db); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	var loginCache cache.Cache
	if cfg.RedisAddr != "" {
		loginCache = rediscache.New(cfg.RedisAddr, cfg.RedisDB)
	} else {
		logger.Warn("REDIS_ADDR is empty, using in-process login cache")
		loginCache = memorycache.New()
	}

	producer := events.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	store := &repo.Store{DB: db, Cache: loginCache}
	issuer := &tokens.Issuer{Config: tokens.Config{
		Secret:          cfg.JWTSecret,
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	}}

	authHandler := &httpserver.AuthHTTP{
		Svc:      &service.AuthService{Store: store, Tokens: issuer, Cache: loginCache},
		Producer: producer,
	}
	usersHandler := &httpserver.UsersHTTP{
		Svc:      &service.UserService{Store: store},
		Producer: producer,
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.HTTPErrorHandler = httpserver.ErrorHandler
	e.Use(httpserver.RequestLogger(logger))
	e.Use(httpserver.ExtractPrincipal(issuer))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:  authHandler,
		UsersHandler: usersHandler,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}
