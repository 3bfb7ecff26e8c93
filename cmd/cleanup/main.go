// cleanup deletes refresh-token rows past their expiry. Run from cron; the
// service itself never needs them once expired.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"umbra-auth/internal/config"
	"umbra-auth/internal/db"
	sessionrepo "umbra-auth/internal/session/repository"
)

func main() {
	grace := flag.Duration("grace", 24*time.Hour, "keep expired rows this long past expiry")
	flag.Parse()

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

	cutoff := time.Now().UTC().Add(-*grace)
	n, err := sessionrepo.NewPostgresRepository(sqlDB).DeleteExpired(context.Background(), cutoff)
	if err != nil {
		log.Fatalf("cleanup: %v", err)
	}
	log.Printf("cleanup: removed %d refresh tokens expired before %s", n, cutoff.Format(time.RFC3339))
}
