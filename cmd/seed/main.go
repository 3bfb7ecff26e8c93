// seed inserts a development account for local testing.
// Idempotent: skips the insert if dev@example.com already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	accountdomain "umbra-auth/internal/account/domain"
	accountrepo "umbra-auth/internal/account/repository"
	"umbra-auth/internal/config"
	"umbra-auth/internal/db"
	"umbra-auth/internal/security"
)

const (
	devEmail    = "dev@example.com"
	devPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	ctx := context.Background()
	accounts := accountrepo.NewPostgresRepository(sqlDB)

	existing, err := accounts.GetByEmail(ctx, devEmail)
	if err != nil {
		log.Fatalf("lookup: %v", err)
	}
	if existing != nil {
		log.Printf("seed: %s already exists (id %s); nothing to do", devEmail, existing.ID)
		return
	}

	hashed, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	account := &accountdomain.Account{
		ID:           uuid.New().String(),
		Email:        devEmail,
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := accounts.Create(ctx, account); err != nil {
		log.Fatalf("create: %v", err)
	}
	log.Printf("seed: created %s (id %s, password %q)", devEmail, account.ID, devPassword)
}
