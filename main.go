package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"anon-dialog-server/internal/anon"
	"anon-dialog-server/internal/config"
	"anon-dialog-server/internal/logger"
	"anon-dialog-server/internal/models"
	"anon-dialog-server/internal/notify"
	"anon-dialog-server/internal/routes"
	"anon-dialog-server/internal/store"
)

const shutdownTimeout = 10 * time.Second

var envFile string

var rootCmd = &cobra.Command{
	Use:           "anon-dialog-server",
	Short:         "Anonymous dialog relay server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		if _, err := models.InitDB(dbConfig(cfg)); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		log.Info("database migrated", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bootstrap loads the environment, the configuration and the logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	// A missing dotenv file is fine; the environment may already be set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func dbConfig(cfg *config.Config) models.DatabaseConfig {
	return models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Debug:  cfg.Database.Debug,
	}
}

func anonConfig(cfg config.AnonConfig) anon.Config {
	return anon.Config{
		ReplyTimeout: cfg.ReplyTimeout,
		RateLimit: anon.RateLimiterConfig{
			Window:  cfg.RateWindow,
			MaxHits: cfg.RateMaxHits,
			Block:   cfg.RateBlock,
		},
		MinLength:          cfg.MinLength,
		MaxLength:          cfg.MaxLength,
		AdminMaxLength:     cfg.AdminMaxLength,
		PrimaryResponderID: cfg.MainAdminID,
		AdminIDs:           cfg.AdminUserIDs,
		PublicChannelID:    cfg.PublicChannelID,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := models.InitDB(dbConfig(cfg))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if cfg.Anon.MainAdminID == 0 {
		log.Warn("ANON_MAIN_ADMIN_ID is not set; the admin inbox is disabled")
	}

	hub := notify.NewHub(log)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	inbox := notify.NewInbox(db, hub, log)
	st := store.New(db)
	svc := anon.New(anonConfig(cfg.Anon), st, inbox, st, log, nil)
	defer svc.Close()

	restored, err := svc.Recover(ctx)
	if err != nil {
		return fmt.Errorf("restore reply timeouts: %w", err)
	}
	log.Info("reply timeouts restored", zap.Int("count", restored))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, db, svc, inbox, hub, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr), zap.String("env", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			<-hubDone
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	<-hubDone
	return nil
}

func newRouter(cfg *config.Config, db *gorm.DB, svc *anon.Service, inbox *notify.Inbox, hub *notify.Hub, log *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Deps{
		DB:      db,
		Config:  cfg,
		Service: svc,
		Inbox:   inbox,
		Hub:     hub,
		Log:     log,
	})
	return router
}

// requestLogger replaces gin's default text logger with structured access logs.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
