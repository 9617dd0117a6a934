package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbell/centsible/internal/api"
	"github.com/mbell/centsible/internal/api/handlers"
	"github.com/mbell/centsible/internal/config"
	"github.com/mbell/centsible/internal/database"
	"github.com/mbell/centsible/internal/database/repository"
	"github.com/mbell/centsible/internal/logger"
	"github.com/mbell/centsible/internal/provider"
	"github.com/mbell/centsible/internal/service"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("auth.jwt_secret must be configured")
	}

	if err := database.RunMigrations(cfg.Database.Path, cfg.Database.Migrations); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	credentials := repository.NewCredentialRepo(db)
	transactions := repository.NewTransactionRepo(db)
	categories := repository.NewCategoryRepo(db)
	budgets := repository.NewBudgetRepo(db)
	accounts := repository.NewAccountRepo(db)

	client := provider.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.ClientID, cfg.Provider.Secret, cfg.Provider.Timeout)
	locks := service.NewUserLocks()

	categorizer := &service.CategorizerService{Categories: categories, Transactions: transactions}
	h := &handlers.Handler{
		Link: &service.LinkService{Credentials: credentials, Provider: client},
		Sync: &service.SyncService{
			DB:           db,
			Credentials:  credentials,
			Transactions: transactions,
			Categorizer:  categorizer,
			Provider:     client,
			Locks:        locks,
		},
		Accounts: &service.AccountService{
			DB:           db,
			Credentials:  credentials,
			Accounts:     accounts,
			Transactions: transactions,
			Provider:     client,
			Log:          log,
		},
		Budgets: &service.BudgetService{
			DB:          db,
			Budgets:     budgets,
			Categories:  categories,
			Categorizer: categorizer,
			Locks:       locks,
		},
		Categorizer:  categorizer,
		Transactions: transactions,
		Log:          log,
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Routes(h, log, cfg.Auth.JWTSecret),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
