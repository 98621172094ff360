package config

import "time"

const (
	DefaultHTTPAddr  = ":8099"
	DefaultDataDir   = "/data"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultJWTTTL = 24 * time.Hour

	DefaultRedisDB      = 0
	DefaultRedisChannel = "rental-marketplace:realtime"

	DefaultKafkaTopic = "rental-marketplace.reservations"

	DefaultPendingReservationTTL     = 30 * time.Minute
	DefaultExpirySchedule            = "@every 1m"
	DefaultListingDeleteRefundPolicy = RefundPolicyNone

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Refund policies applied to reservations of a deleted listing.
const (
	RefundPolicyNone   = "none"
	RefundPolicyRefund = "refund"
)
