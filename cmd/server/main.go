package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bartermarket/backend/docs"
	"github.com/bartermarket/backend/internal/config"
	"github.com/bartermarket/backend/internal/database"
	"github.com/bartermarket/backend/internal/logger"
	mW "github.com/bartermarket/backend/internal/middleware"
	"github.com/bartermarket/backend/internal/realtime"
	"github.com/bartermarket/backend/internal/services"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// @title BarterMarket Backend API
// @version 1.0
// @description API for the peer-to-peer barter marketplace
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "barterd",
		Short:         "BarterMarket API server",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadConfig(configFile)
			return bindFlags(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", ".env", "path to the .env config file")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "json", "log format (json, console)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	serve.Flags().String("port", "8080", "HTTP listen port")
	serve.Flags().Bool("auto-migrate", false, "apply the schema before serving")
	root.Flags().AddFlagSet(serve.Flags())

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}

	root.AddCommand(serve, migrate)
	return root
}

func loadConfig(configFile string) {
	viper.SetConfigFile(configFile) // explicitly point to .env file
	viper.SetConfigType("env")
	viper.AutomaticEnv() // allow environment variables to override .env

	viper.BindEnv("server.port", "PORT")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.auto_migrate", "DATABASE_AUTO_MIGRATE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("log.format", "LOG_FORMAT")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Config file not found, using environment and defaults: %v\n", err)
	}
}

// bindFlags lets explicitly set flags win over .env and the environment.
func bindFlags(cmd *cobra.Command) error {
	bindings := map[string]string{
		"log-level":    "log.level",
		"log-format":   "log.format",
		"port":         "server.port",
		"auto-migrate": "database.auto_migrate",
	}
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func setupLogger() (*zap.Logger, error) {
	log, err := logger.New(viper.GetString("log.level"), viper.GetString("log.format"))
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

func runMigrate(ctx context.Context) error {
	log, err := setupLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := database.Open(ctx, database.GetConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	log.Info("[DB] schema applied")
	return nil
}

func runServe(ctx context.Context) error {
	log, err := setupLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	if viper.GetString("jwt.secret_key") == "" {
		return fmt.Errorf("jwt.secret_key must be set")
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "BarterMarket Backend API"
	docs.SwaggerInfo.Description = "API for the peer-to-peer barter marketplace"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:" + viper.GetString("server.port")
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db, err := database.Open(ctx, database.GetConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	if viper.GetBool("database.auto_migrate") {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info("[DB] schema applied")
	}

	redisClient := database.InitRedis(ctx)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	cfg := config.LoadMarketConfig()
	publisher := realtime.NewPublisher(redisClient, log)

	ledgerService := services.NewLedgerService(db, cfg, log)
	listingService := services.NewListingService(db, cfg, log)
	notificationService := services.NewNotificationService(db, publisher, log)

	app := &application{
		config:        cfg,
		redis:         redisClient,
		auth:          services.NewAuthService(db, redisClient, ledgerService, cfg, log),
		ledger:        ledgerService,
		listings:      listingService,
		share:         services.NewShareService(listingService, redisClient, cfg, log),
		trades:        services.NewTradeService(db, ledgerService, listingService, notificationService, log),
		messages:      services.NewMessageService(db, cfg, publisher, notificationService, log),
		notifications: notificationService,
		hub:           realtime.NewHub(redisClient, publisher, log),
	}

	port := viper.GetString("server.port")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      app.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("Server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
