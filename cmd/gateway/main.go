package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/vultr-power/gateway/internal/config"
	"github.com/vultr-power/gateway/pkg/gateway"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			log.Fatalf("fatal error: %v. Did you export VULTR_API_KEY=...?", err)
		}
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	// Load .env file (ignore error if file doesn't exist - env vars might be set externally)
	_ = godotenv.Load()

	// Optional YAML config; environment variables override it
	configFile := os.Getenv("GATEWAY_CONFIG")
	if configFile == "" {
		configFile = "configs/gateway.yaml"
	}

	gw, err := gateway.NewFromEnv(configFile)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start the gateway (blocks until shutdown)
	return gw.Start(ctx)
}
