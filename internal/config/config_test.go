package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvJWTSecret, "0123456789abcdef")
	t.Setenv(EnvKafkaBrokers, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Fatalf("expected addr %s, got %s", DefaultHTTPAddr, cfg.HTTPAddr)
	}
	if cfg.PendingReservationTTL != DefaultPendingReservationTTL {
		t.Fatalf("expected ttl %s, got %s", DefaultPendingReservationTTL, cfg.PendingReservationTTL)
	}
	if cfg.RefundOnListingDelete() {
		t.Fatalf("listing deletion must not refund by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	content := strings.Join([]string{
		"JWT_SECRET=from-file-secret-value",
		"KAFKA_BROKERS=k1:9092, k2:9092",
		"PENDING_RESERVATION_TTL=10m",
		"LISTING_DELETE_REFUND_POLICY=REFUND",
	}, "\n")
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	// Already-set variables are not overridden by the file.
	t.Setenv(EnvPendingReservationTTL, "5m")
	// Registered so t.Setenv restores them after godotenv sets them.
	t.Setenv(EnvJWTSecret, "")
	os.Unsetenv(EnvJWTSecret)
	t.Setenv(EnvKafkaBrokers, "")
	os.Unsetenv(EnvKafkaBrokers)
	t.Setenv(EnvListingDeleteRefundPolicy, "")
	os.Unsetenv(EnvListingDeleteRefundPolicy)

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.JWTSecret != "from-file-secret-value" {
		t.Fatalf("expected secret from file, got %q", cfg.JWTSecret)
	}
	if cfg.PendingReservationTTL != 5*time.Minute {
		t.Fatalf("expected env to win, got %s", cfg.PendingReservationTTL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if !cfg.RefundOnListingDelete() {
		t.Fatalf("expected refund policy")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPAddr:                  ":8080",
			DataDir:                   "/tmp",
			JWTSecret:                 "0123456789abcdef",
			JWTTTL:                    time.Hour,
			KafkaTopic:                "t",
			PendingReservationTTL:     time.Minute,
			ExpirySchedule:            "@every 1m",
			ListingDeleteRefundPolicy: RefundPolicyNone,
			ReadTimeout:               time.Second,
			WriteTimeout:              time.Second,
			IdleTimeout:               time.Second,
			ShutdownTimeout:           time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "short secret", mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: "JWTSecret"},
		{name: "bad policy", mutate: func(c *Config) { c.ListingDeleteRefundPolicy = "partial" }, wantErr: "ListingDeleteRefundPolicy"},
		{name: "bad schedule", mutate: func(c *Config) { c.ExpirySchedule = "whenever" }, wantErr: "ExpirySchedule"},
		{name: "kafka without topic", mutate: func(c *Config) {
			c.KafkaBrokers = []string{"k:9092"}
			c.KafkaTopic = ""
		}, wantErr: "KafkaTopic"},
		{name: "zero timeout", mutate: func(c *Config) { c.WriteTimeout = 0 }, wantErr: "WriteTimeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
