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
	"guardian-core/services/gateway"
)

func main() {
	cfg := gateway.Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
	}
	brokers := getEnvBrokers("KAFKA_BROKERS", []string{"redpanda:9092"})
	profileBucket := getEnv("PROFILE_BUCKET", "guardian-profiles")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down gateway...")
		cancel()
	}()

	minioClient, err := minio.NewClient(minio.ConfigFromEnv(os.Getenv))
	if err != nil {
		log.Fatal("Failed to connect to MinIO:", err)
	}
	profiles := config.NewStore(minioClient, profileBucket)

	bus := eventbus.NewEventBus(brokers)
	service, err := gateway.NewService(cfg, bus, profiles)
	if err != nil {
		log.Fatal("Failed to create gateway:", err)
	}

	service.Start(ctx)
	<-ctx.Done()

	service.Stop()
	if err := bus.Close(); err != nil {
		log.Printf("Event bus close error: %v", err)
	}
	log.Println("Gateway stopped.")
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
