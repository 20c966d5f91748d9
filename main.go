package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"ramplab/adapters/api"
	"ramplab/adapters/postgres"
	"ramplab/app"
	"ramplab/internal"
	"ramplab/internal/config"
	"ramplab/internal/errors"
	"ramplab/ports"
)

// initDatabase connects to PostgreSQL and ensures the results schema exists.
// Returns (nil, nil) when no DATABASE_URL is configured: the engine runs
// fine without persistence.
func initDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, ports.ResultRepository, error) {
	if cfg.Database.URL == "" {
		return nil, nil, nil
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, errors.Wrap(err, "failed to ping database")
	}

	repo := postgres.NewResultRepository(db)
	if impl, ok := repo.(*postgres.ResultRepositoryImpl); ok {
		if err := impl.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, errors.Wrap(err, "schema setup failed")
		}
	}
	return db, repo, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewDefaultLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, repo, err := initDatabase(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if db != nil {
		defer db.Close()
		logger.Info("result persistence enabled")
	} else {
		logger.Info("no DATABASE_URL configured, results are not persisted")
	}

	service := app.NewAnalysisService(logger)
	server := api.NewServer(service, repo, cfg.Analysis, logger)

	if err := api.ListenAndServe(ctx, ":"+cfg.Server.Port, server.Handler(), logger); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
