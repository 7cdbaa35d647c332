package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"guardian-core/internal/config"
	"guardian-core/internal/eventbus"
	"guardian-core/internal/minio"
	"guardian-core/services/moderation"
)

func main() {
	brokers := getEnvBrokers("KAFKA_BROKERS", []string{"redpanda:9092"})
	httpAddr := getEnv("HTTP_ADDR", ":8081")
	banBucket := getEnv("MODERATION_BUCKET", "guardian-moderation")
	profileBucket := getEnv("PROFILE_BUCKET", "guardian-profiles")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down moderation service...")
		cancel()
	}()

	minioClient, err := minio.NewClient(minio.ConfigFromEnv(os.Getenv))
	if err != nil {
		log.Fatal("Failed to connect to MinIO:", err)
	}

	bus := eventbus.NewEventBus(brokers)
	store := moderation.NewMinioStore(minioClient, banBucket)
	service := moderation.NewService(store, bus)

	// Sweep cadence comes from the delivery profile store, so
	// operators tune it without redeploys.
	profiles := config.NewStore(minioClient, profileBucket)
	sweepInterval := config.DefaultProfile.SweepInterval()
	if profile, err := profiles.GetProfile(ctx, "moderation"); err == nil {
		sweepInterval = profile.SweepInterval()
	} else {
		log.Printf("Using default sweep interval: %v", err)
	}

	httpServer := moderation.NewHTTPServer(httpAddr)
	httpServer.RegisterRoutes(service)

	service.Start(sweepInterval)
	httpServer.Start()
	<-ctx.Done()

	httpServer.Stop()
	service.Stop()
	if err := bus.Close(); err != nil {
		log.Printf("Event bus close error: %v", err)
	}
	log.Println("Moderation service stopped.")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBrokers(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		brokers := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				brokers = append(brokers, trimmed)
			}
		}
		if len(brokers) > 0 {
			return brokers
		}
	}
	return fallback
}
