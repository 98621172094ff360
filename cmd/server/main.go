// Package main is the entry point for the rental marketplace API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rental-marketplace/backend/internal/api"
	"github.com/rental-marketplace/backend/internal/auth"
	"github.com/rental-marketplace/backend/internal/booking"
	"github.com/rental-marketplace/backend/internal/clock"
	"github.com/rental-marketplace/backend/internal/config"
	"github.com/rental-marketplace/backend/internal/events"
	"github.com/rental-marketplace/backend/internal/inbox"
	"github.com/rental-marketplace/backend/internal/logger"
	"github.com/rental-marketplace/backend/internal/messaging"
	"github.com/rental-marketplace/backend/internal/realtime"
	"github.com/rental-marketplace/backend/internal/storage"
	"github.com/rental-marketplace/backend/internal/validation"
	"github.com/rental-marketplace/backend/internal/wallet"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	addr := flag.String("addr", "", "HTTP server address (overrides HTTP_ADDR)")
	dataDir := flag.String("data", "", "Data directory for the SQLite database (overrides DATA_DIR)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	issueToken := flag.String("issue-token", "", "Print an access token for the given user ID and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	// Health check mode for container HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.HTTPAddr); err != nil {
			fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Token mode prints the token on stdout, so logs go to stderr.
	var out io.Writer = os.Stdout
	if *issueToken != "" {
		out = os.Stderr
	}
	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  out,
		Service: "rental-marketplace",
	})
	slogger := log.Logger
	slog.SetDefault(slogger)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	cfg.LogConfiguration(slogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPath := filepath.Join(cfg.DataDir, "rental-marketplace.db")
	db, err := storage.NewDB(dbPath)
	if err != nil {
		log.Fatal("failed to open database", "path", dbPath, "error", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(ctx, db, slogger); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}

	clk := clock.NewSystem()
	repos := storage.NewRepositories(db, clk)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL, clk)

	if *issueToken != "" {
		if err := printToken(ctx, repos, tokens, *issueToken); err != nil {
			log.Fatal("failed to issue token", "error", err)
		}
		return
	}

	log.Info("starting rental marketplace server", "version", version)

	hub := realtime.NewHub(slogger.With("component", "hub"))
	go hub.Run(ctx)

	// Realtime pushes go through Redis when configured so every instance's
	// subscribers receive them.
	var publisher realtime.Publisher = hub
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = realtime.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal("failed to connect to redis", "error", err)
		}
		broker := realtime.NewRedisBroker(redisClient, cfg.RedisChannel, hub, slogger.With("component", "redis"))
		go func() {
			if err := broker.Run(ctx); err != nil {
				log.Error("redis subscriber stopped", "error", err)
			}
		}()
		publisher = broker
	}

	eventPublisher := events.NewNop()
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, slogger.With("component", "kafka"))
		if err != nil {
			log.Fatal("failed to create kafka publisher", "error", err)
		}
		eventPublisher = kp
	}
	emitter := events.NewEmitter(eventPublisher, slogger, clk.Now)

	notifier := realtime.NewNotifier(publisher, slogger)
	validator := validation.New()
	ledger := wallet.NewLedger(db, repos.Wallets)

	bookingSvc := booking.NewService(booking.Deps{
		DB:        db,
		Repos:     repos,
		Ledger:    ledger,
		Notifier:  notifier,
		Events:    emitter,
		Validator: validator,
		Clock:     clk,
		Log:       slogger.With("component", "booking"),
	}, booking.Options{RefundOnListingDelete: cfg.RefundOnListingDelete()})
	inboxSvc := inbox.NewService(repos, notifier, validator, slogger.With("component", "inbox"))
	messagingSvc := messaging.NewService(db, repos, notifier, validator, slogger.With("component", "messaging"))

	expiry := booking.NewExpiryScheduler(bookingSvc, cfg.ExpirySchedule, cfg.PendingReservationTTL, slogger.With("component", "expiry"))
	if err := expiry.Start(); err != nil {
		log.Fatal("failed to start expiry scheduler", "error", err)
	}

	router := api.NewRouter(api.Deps{
		DB:        db,
		Repos:     repos,
		Hub:       hub,
		Tokens:    tokens,
		Booking:   bookingSvc,
		Ledger:    ledger,
		Inbox:     inboxSvc,
		Messaging: messagingSvc,
		Validator: validator,
		Log:       slogger,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error("server error", "error", err)
	}

	log.Info("shutting down server")

	expiry.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := eventPublisher.Close(); err != nil {
		log.Warn("closing event publisher", "error", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn("closing redis client", "error", err)
		}
	}

	log.Info("server stopped")
}

// printToken writes a signed access token for userID to stdout.
func printToken(ctx context.Context, repos *storage.Repositories, tokens *auth.Tokens, userID string) error {
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %q not found", userID)
	}

	token, err := tokens.Issue(user.ID, user.Role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("parsing address %q: %w", addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + net.JoinHostPort(host, port) + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
