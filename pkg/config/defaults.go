package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "agendify"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisDB          = 0
	DefaultRedisConnTimeout = 5 * time.Second

	DefaultPort     = "3333"
	DefaultLogLevel = "info"

	DefaultJWTTTL          = 7 * 24 * time.Hour
	DefaultSessionCacheTTL = 15 * time.Minute

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultWorkStartHour = 8.0
	DefaultWorkEndHour   = 18.0

	// Format: "label:minutes,label:minutes"
	DefaultServiceDurations = "consulta:60,avaliacao:30,retorno:30"

	DefaultBookingEventsTopic    = "booking-events"
	DefaultBookingEventsDLQTopic = ""

	DefaultPaginationLimit = 100
)

// DefaultWorkDays is Monday through Friday; Saturday and Sunday are not
// bookable unless configured otherwise.
const DefaultWorkDays = "Monday,Tuesday,Wednesday,Thursday,Friday"
