package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GwennLsk/BackCantineAston/internal/config"
	"github.com/GwennLsk/BackCantineAston/internal/db"
	"github.com/GwennLsk/BackCantineAston/internal/email"
	"github.com/GwennLsk/BackCantineAston/internal/logger"
	"github.com/GwennLsk/BackCantineAston/internal/server"
	"github.com/GwennLsk/BackCantineAston/internal/user"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=..."
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// @title Cantine Aston API
// @version 1.0
// @description User accounts for the Aston canteen.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cmd := &cobra.Command{
		Use:          "cantine-api",
		Short:        "Cantine Aston user API",
		Long:         `cantine-api serves the user accounts of the Aston canteen over HTTP`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", version, buildDate, commit)

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate()
		},
	})

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.InitWithLevel(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)
	return cfg, nil
}

func migrate() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		return err
	}
	logger.Info("Migrations completed", "path", cfg.MigrationsPath)
	return nil
}

// openStore connects the configured user store. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (user.Repository, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		database, err := db.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
			database.Close()
			return nil, nil, err
		}
		logger.Info("PostgreSQL connected, migrations applied")
		return user.NewPostgresRepository(database), func() { database.Close() }, nil

	default:
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.DBConnectTimeout)
		if err != nil {
			return nil, nil, err
		}
		repo := user.NewMongoRepository(database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		logger.Info("MongoDB connected", "database", cfg.MongoDatabase)
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil
	}
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Info("Starting Cantine Aston API",
		"version", version,
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store", cfg.StoreDriver,
		"email_enabled", cfg.EmailEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open user store", "error", err)
		return err
	}
	defer closeStore()

	var notifier user.Notifier = email.Nop{}
	if cfg.EmailEnabled {
		emailService := email.New(
			cfg.EmailFrom,
			cfg.EmailFromName,
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			cfg.SMTPPass,
			cfg.RedisAddr,
		)
		defer emailService.Close()

		go emailService.Start(ctx)
		notifier = emailService
		logger.Info("Email service initialized", "redis", cfg.RedisAddr)
	}

	srv := server.New(cfg, repo, notifier)

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server listening on %s", cfg.Addr())
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErrChan:
		logger.Error("Server error", "error", err)
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
		return err
	}

	logger.Info("Server stopped")
	return nil
}
