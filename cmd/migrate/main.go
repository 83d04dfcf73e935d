package main

// Run database migrations:
//   go run ./cmd/migrate            # apply to DATABASE_URL or SQLITE_PATH per DOCUMENT_STORE
//   go run ./cmd/migrate -status    # print applied state

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	"atsense-api/internal/shared/config"
	"atsense-api/internal/shared/storage/db"
)

func main() {
	status := flag.Bool("status", false, "print migration status instead of applying")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	sqlDB, dialect, err := open(ctx, cfg)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if *status {
		err = db.MigrationStatus(ctx, sqlDB, dialect)
	} else {
		err = db.RunMigrations(ctx, sqlDB, dialect)
	}
	if err != nil {
		log.Printf("migrations failed: %v", err)
		os.Exit(1)
	}
}

func open(ctx context.Context, cfg config.Config) (*sql.DB, string, error) {
	if cfg.DocumentStore == "sqlite" {
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		return sqlDB, db.DialectSQLite, err
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	return sqlDB, db.DialectPostgres, err
}
