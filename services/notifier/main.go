package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/leadstack/go-crm-system/shared/config"
	"github.com/leadstack/go-crm-system/shared/notify"
	"github.com/leadstack/go-crm-system/shared/utils"
)

// The notifier is a standalone daemon: it consumes lead lifecycle events
// from Kafka and mails the owning organization's admin about conversions.
// It carries no secrets; credential delivery happens synchronously in the
// request path, not here.
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	// Initialize database (admin email lookups)
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Redis is a read-through cache for the admin lookups; the notifier
	// still works without it.
	if err := utils.InitRedis(); err != nil {
		logrus.WithError(err).Warn("Redis unavailable, admin lookups uncached")
	} else {
		defer utils.CloseRedis()
	}

	mailer, err := notify.NewSESMailer()
	if err != nil {
		log.Fatal("Failed to initialize mailer:", err)
	}

	broker := os.Getenv("KAFKA_BROKER")
	if broker == "" {
		broker = "localhost:9092"
	}

	consumer := NewEventConsumer(broker, db, mailer)
	go consumer.Run()

	logrus.Info("Notifier service started")

	// Block until shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down notifier service")
	if err := consumer.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close consumer cleanly")
	}
}
