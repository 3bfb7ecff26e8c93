package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	accountrepo "umbra-auth/internal/account/repository"
	authhandler "umbra-auth/internal/auth/handler"
	"umbra-auth/internal/auth/service"
	"umbra-auth/internal/config"
	"umbra-auth/internal/db"
	healthhandler "umbra-auth/internal/health/handler"
	"umbra-auth/internal/security"
	"umbra-auth/internal/server"
	sessionrepo "umbra-auth/internal/session/repository"
	"umbra-auth/internal/telemetry"
	"umbra-auth/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	accessTTL, err := cfg.AccessTTL()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	refreshTTL, err := cfg.RefreshTTL()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}

	ctx := context.Background()
	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, server.ServiceName, false)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, accessTTL, refreshTTL)
	svc := service.NewAuthService(
		accountrepo.NewPostgresRepository(sqlDB),
		sessionrepo.NewPostgresRepository(sqlDB),
		security.NewHasher(cfg.BcryptCost),
		tokens,
		telemetry.NewAuthEvents(providers.LoggerProvider),
	)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(authhandler.NewHandler(svc), healthhandler.NewHandler(server.ServiceName), tokens)
	srv := server.New(cfg.HTTPAddr, router)

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
