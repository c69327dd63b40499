package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pedroo-goncalves/Projeto-FBD/libs/config"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/db"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/httpx"
	otelx "github.com/pedroo-goncalves/Projeto-FBD/libs/otel"
	"github.com/pedroo-goncalves/Projeto-FBD/libs/runtime"
	"github.com/pedroo-goncalves/Projeto-FBD/services/auth-service/internal/audit"
	"github.com/pedroo-goncalves/Projeto-FBD/services/auth-service/internal/handlers"
	"github.com/pedroo-goncalves/Projeto-FBD/services/auth-service/internal/sessions"
	"github.com/pedroo-goncalves/Projeto-FBD/services/auth-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "auth-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	secret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	signer, err := handlers.NewHS256Signer(secret)
	if err != nil {
		logger.Error("signer init failed", "err", err)
		panic(err)
	}

	users := storage.NewUserRepository(pool)
	auditRepo := audit.NewRepository(pool)
	refreshRepo := sessions.NewRefreshRepository(pool)

	authHandler := handlers.NewAuthHandler(signer, users, auditRepo, refreshRepo, logger, handlers.Config{
		AccessTTL:  time.Duration(config.Int("ACCESS_TOKEN_TTL_MINUTES", 60)) * time.Minute,
		RefreshTTL: time.Duration(config.Int("REFRESH_TOKEN_TTL_DAYS", 30)) * 24 * time.Hour,
		AdminKey:   config.String("ADMIN_API_KEY", ""),
	})

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.HandleFunc("/api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("/api/v1/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("/api/v1/auth/logout", authHandler.Logout)
	mux.HandleFunc("/api/v1/auth/me", authHandler.Me)
	mux.HandleFunc("/api/v1/auth/users", authHandler.CreateUser)
	mux.HandleFunc("/api/v1/auth/audit", authHandler.Audit)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "auth")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
