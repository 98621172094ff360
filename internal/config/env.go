package config

const (
	EnvHTTPAddr  = "HTTP_ADDR"
	EnvDataDir   = "DATA_DIR"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvJWTSecret = "JWT_SECRET"
	EnvJWTTTL    = "JWT_TTL"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"
	EnvRedisChannel  = "REDIS_CHANNEL"

	EnvKafkaBrokers = "KAFKA_BROKERS"
	EnvKafkaTopic   = "KAFKA_TOPIC"

	EnvPendingReservationTTL     = "PENDING_RESERVATION_TTL"
	EnvExpirySchedule            = "EXPIRY_SCHEDULE"
	EnvListingDeleteRefundPolicy = "LISTING_DELETE_REFUND_POLICY"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
