package main

import (
	accounthandler "agendify/internal/accounts/handler"
	accountrepository "agendify/internal/accounts/repository"
	accountservice "agendify/internal/accounts/service"
	accountvalidator "agendify/internal/accounts/validator"
	bookinghandler "agendify/internal/bookings/handler"
	"agendify/internal/bookings/policy"
	bookingrepository "agendify/internal/bookings/repository"
	bookingservice "agendify/internal/bookings/service"
	bookingvalidator "agendify/internal/bookings/validator"
	"agendify/pkg/app"
	"agendify/pkg/auth"
	"agendify/pkg/config"
	"agendify/pkg/kafka"
	kafka_config "agendify/pkg/kafka/config"
	"agendify/pkg/middleware"

	"github.com/joho/godotenv"
)

const ServiceName = "agendify-server"

func main() {
	_ = godotenv.Load()

	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Agendify server")

	serverApp := app.NewApplication(cfg)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	sessions := auth.NewSessionCache(cfg.Client.Redis, cfg.SessionCacheTTL)
	googleVerifier := auth.NewGoogleVerifier(cfg.GoogleClientID)

	accountRepo := accountrepository.NewMongoAccountRepository(cfg)
	accountService := accountservice.NewAccountService(
		accountRepo,
		accountvalidator.NewAccountValidator(cfg.Log),
		tokens,
		sessions,
		googleVerifier,
		cfg,
	)

	authenticator := middleware.NewAuthenticator(tokens, sessions, accountService, cfg.Log)

	rules, err := policy.NewRules(cfg.WorkStartHour, cfg.WorkEndHour, cfg.WorkDays, nil)
	if err != nil {
		cfg.Log.Fatal("Invalid scheduling policy configuration", "error", err)
	}

	producer := initProducer(cfg, serverApp)

	bookingRepo := bookingrepository.NewMongoBookingRepository(cfg)
	lockRepo := bookingrepository.NewBookingLockRepository(cfg)
	bookingService := bookingservice.NewBookingService(
		bookingRepo,
		lockRepo,
		bookingvalidator.NewBookingValidator(cfg.Log),
		rules,
		accountService,
		producer,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	serverApp.SetApp(
		bookinghandler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
		accounthandler.NewAccountHandler(accountService, authenticator, cfg.Log),
		bookinghandler.NewBookingHandler(bookingService, authenticator, cfg.Log),
	)
	serverApp.Run()
}

// initProducer wires the Kafka producer for booking lifecycle events. A
// failed producer is fatal: events are part of the contract with downstream
// consumers, not an optional add-on.
func initProducer(cfg *config.Config, serverApp *app.Application) bookingservice.EventPublisher {
	producer, err := kafka.NewProducer(kafka_config.Load(), cfg.BookingEventsTopic, cfg.BookingEventsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize Kafka producer", "error", err)
	}
	serverApp.RegisterCloser(producer)
	return producer
}
