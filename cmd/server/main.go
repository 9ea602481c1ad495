package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tasksched-go/internal/app"
	"tasksched-go/internal/config"
)

func main() {
	log.SetPrefix("tasksched: ")
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.json"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create a new application instance
	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Application failed to start: %v", err)
	}

	// Wait for a shutdown signal
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	if err := application.Stop(ctx); err != nil {
		log.Printf("Error during graceful shutdown: %v", err)
	}

	log.Println("Application has stopped.")
}
