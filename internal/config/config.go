// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	HTTPAddr  string
	DataDir   string
	LogLevel  string
	LogFormat string

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	KafkaBrokers []string
	KafkaTopic   string

	PendingReservationTTL     time.Duration
	ExpirySchedule            string
	ListingDeleteRefundPolicy string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg := &Config{
		HTTPAddr:  getEnvStr(EnvHTTPAddr, DefaultHTTPAddr),
		DataDir:   getEnvStr(EnvDataDir, DefaultDataDir),
		LogLevel:  getEnvStr(EnvLogLevel, DefaultLogLevel),
		LogFormat: getEnvStr(EnvLogFormat, DefaultLogFormat),

		JWTSecret: getEnvStr(EnvJWTSecret, ""),
		JWTTTL:    getEnvDuration(EnvJWTTTL, DefaultJWTTTL),

		RedisAddr:     getEnvStr(EnvRedisAddr, ""),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),
		RedisChannel:  getEnvStr(EnvRedisChannel, DefaultRedisChannel),

		KafkaBrokers: getEnvList(EnvKafkaBrokers),
		KafkaTopic:   getEnvStr(EnvKafkaTopic, DefaultKafkaTopic),

		PendingReservationTTL:     getEnvDuration(EnvPendingReservationTTL, DefaultPendingReservationTTL),
		ExpirySchedule:            getEnvStr(EnvExpirySchedule, DefaultExpirySchedule),
		ListingDeleteRefundPolicy: strings.ToLower(getEnvStr(EnvListingDeleteRefundPolicy, DefaultListingDeleteRefundPolicy)),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),
	}

	return cfg, nil
}

// Validate reports every invalid setting at once.
func (cfg *Config) Validate() error {
	var problems []string

	if cfg.HTTPAddr == "" {
		problems = append(problems, "HTTPAddr cannot be empty")
	}
	if cfg.DataDir == "" {
		problems = append(problems, "DataDir cannot be empty")
	}
	if len(cfg.JWTSecret) < 16 {
		problems = append(problems, "JWTSecret must be at least 16 characters")
	}
	if cfg.JWTTTL <= 0 {
		problems = append(problems, fmt.Sprintf("JWTTTL must be positive, got: %s", cfg.JWTTTL))
	}
	if cfg.RedisDB < 0 {
		problems = append(problems, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
	}
	if cfg.RedisAddr != "" && cfg.RedisChannel == "" {
		problems = append(problems, "RedisChannel cannot be empty when RedisAddr is set")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		problems = append(problems, "KafkaTopic cannot be empty when KafkaBrokers is set")
	}
	if cfg.PendingReservationTTL <= 0 {
		problems = append(problems, fmt.Sprintf("PendingReservationTTL must be positive, got: %s", cfg.PendingReservationTTL))
	}
	if _, err := cron.ParseStandard(cfg.ExpirySchedule); err != nil {
		problems = append(problems, fmt.Sprintf("ExpirySchedule is not a valid cron spec: %v", err))
	}
	switch cfg.ListingDeleteRefundPolicy {
	case RefundPolicyNone, RefundPolicyRefund:
	default:
		problems = append(problems, fmt.Sprintf("ListingDeleteRefundPolicy must be %q or %q, got: %q",
			RefundPolicyNone, RefundPolicyRefund, cfg.ListingDeleteRefundPolicy))
	}
	for name, d := range map[string]time.Duration{
		"ReadTimeout":     cfg.ReadTimeout,
		"WriteTimeout":    cfg.WriteTimeout,
		"IdleTimeout":     cfg.IdleTimeout,
		"ShutdownTimeout": cfg.ShutdownTimeout,
	} {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got: %s", name, d))
		}
	}

	if len(problems) > 0 {
		msg := "configuration validation failed:\n"
		for i, p := range problems {
			msg += fmt.Sprintf("  %d. %s\n", i+1, p)
		}
		return errors.New(msg)
	}

	return nil
}

// RefundOnListingDelete reports whether deleting a listing refunds its guests.
func (cfg *Config) RefundOnListingDelete() bool {
	return cfg.ListingDeleteRefundPolicy == RefundPolicyRefund
}

// LogConfiguration writes the effective configuration with secrets redacted.
func (cfg *Config) LogConfiguration(log *slog.Logger) {
	log.Info("configuration loaded",
		"http_addr", cfg.HTTPAddr,
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"jwt_secret_set", cfg.JWTSecret != "",
		"jwt_ttl", cfg.JWTTTL,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"redis_channel", cfg.RedisChannel,
		"kafka_brokers", cfg.KafkaBrokers,
		"kafka_topic", cfg.KafkaTopic,
		"pending_reservation_ttl", cfg.PendingReservationTTL,
		"expiry_schedule", cfg.ExpirySchedule,
		"listing_delete_refund_policy", cfg.ListingDeleteRefundPolicy,
	)
}

func getEnvStr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string) []string {
	v := getEnvStr(key, "")
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
