package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/order-intake/internal/config"
	"github.com/vasiliy-maslov/order-intake/internal/db"
	"github.com/vasiliy-maslov/order-intake/internal/events"
	"github.com/vasiliy-maslov/order-intake/internal/handler"
	"github.com/vasiliy-maslov/order-intake/internal/inventory"
	"github.com/vasiliy-maslov/order-intake/internal/memstore"
	"github.com/vasiliy-maslov/order-intake/internal/order"
	"github.com/vasiliy-maslov/order-intake/internal/transport"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	setupLogger(cfg.App)
	log.Info().Str("store_driver", cfg.Store.Driver).Msg("Order intake starting...")

	var (
		orderStore     order.Store
		inventoryStore inventory.Store
	)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		mem := memstore.New(cfg.Store.TxTimeout)
		orderStore, inventoryStore = mem.OrderStore(), mem.InventoryStore()
		log.Warn().Msg("Using in-memory store, data is lost on restart")
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		pg, err := db.New(ctx, cfg.Postgres)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := pg.Migrate(); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply migrations")
			}
		}
		orderStore = order.NewPostgresStore(pg, cfg.Store.TxTimeout)
		inventoryStore = inventory.NewPostgresStore(pg, cfg.Store.TxTimeout)
	}

	var publisher order.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrderStatusTopic)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Kafka writer")
			}
		}()
		publisher = kafkaPublisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.OrderStatusTopic).Msg("Publishing order status events")
	}

	coordinator := order.NewCoordinator(orderStore, publisher)
	ledger := inventory.NewLedger(inventoryStore)

	router := transport.NewRouter(
		handler.NewOrderHandler(coordinator),
		handler.NewStockHandler(ledger),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
		return
	}
	log.Info().Msg("Server stopped")
}

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	log.Logger = log.With().Str("service", transport.ServiceName).Logger()
}
