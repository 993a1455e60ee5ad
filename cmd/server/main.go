package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/api"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/config"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/database"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/kafka"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/poller"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/portfolio"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/quote"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/realtime"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/redis"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(cfg.Database.ConnectionString()); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	log.Println("Connected to PostgreSQL database")

	// Connect to Redis
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v (continuing without cache)", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Connected to Redis cache")
	}

	// Create Kafka producer for alert events
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic)
	defer producer.Close()
	log.Printf("Kafka producer initialized (brokers: %v)", cfg.Kafka.Brokers)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the quote watcher
	hub := realtime.NewHub()
	watcher := poller.New(db, quote.NewProvider(), poller.Options{
		Interval:      cfg.Poll.Interval,
		ConfigRefresh: cfg.Poll.ConfigRefresh,
		FetchTimeout:  cfg.Poll.FetchTimeout,
		CostMethod:    portfolio.ParseMethod(cfg.Poll.CostMethod),
	})
	if redisClient != nil {
		watcher.WithCache(redisClient)
	}
	watcher.SetBroadcast(hub.BroadcastJSON)
	watcher.AddNotifier(poller.NotifierFunc(func(ctx context.Context, event models.AlertEvent) {
		fmt.Printf("\a")
		log.Printf("ALERT %s(%s): price %.2f crossed %s %.2f",
			event.Name, event.Symbol, event.Price, event.Rule.Type, event.Rule.Price)
	}))
	watcher.AddNotifier(poller.NotifierFunc(func(ctx context.Context, event models.AlertEvent) {
		if err := producer.PublishAlert(ctx, event); err != nil {
			log.Printf("Failed to publish alert for %s: %v", event.Symbol, err)
		}
	}))
	if redisClient != nil {
		watcher.AddNotifier(poller.NotifierFunc(func(ctx context.Context, event models.AlertEvent) {
			if err := redisClient.PublishAlert(ctx, event); err != nil {
				log.Printf("Failed to publish alert to Redis for %s: %v", event.Symbol, err)
			}
		}))
	}

	go func() {
		if err := watcher.Run(ctx); err != nil {
			log.Printf("Watcher stopped: %v", err)
		}
	}()

	// Create and start Kafka consumer for executed trades
	consumer := kafka.NewTradesConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.TradesTopic,
		cfg.Kafka.ConsumerGroup,
		db,
	)
	go func() {
		log.Printf("Starting Kafka consumer for topic: %s (group: %s)",
			cfg.Kafka.TradesTopic, cfg.Kafka.ConsumerGroup)
		if err := consumer.Start(ctx); err != nil {
			log.Printf("Kafka consumer error: %v", err)
		}
	}()

	// Set up HTTP handler and routes
	handler := api.NewHandler(db, watcher, hub, producer, redisClient)
	router := api.SetupRoutes(handler)

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Cancel context to stop the watcher and Kafka consumer
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := consumer.Close(); err != nil {
		log.Printf("Error closing Kafka consumer: %v", err)
	}

	log.Println("Server stopped")
}

func runMigrations(databaseUrl string) error {
	m, err := migrate.New("file://./db/migrations", databaseUrl)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
