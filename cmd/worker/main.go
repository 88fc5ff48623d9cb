package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"causalgen-backend/internal/config"
	"causalgen-backend/internal/core"
	"causalgen-backend/internal/core/casegen"
	"causalgen-backend/internal/database"
	"causalgen-backend/internal/messaging"
)

func main() {
	log.Println("Starting Worker Process...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	reciever, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	llm := casegen.NewOpenAI(cfg.OpenAIModel, cfg.Temperature, casegen.DefaultGenerateTimeout)

	processor := core.NewTaskProcessor(db, reciever, llm, cfg.WorkerConcurrency, false)

	go processor.Start()

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")

	// Wait for termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received, stopping worker...")

	processor.Stop()

	log.Println("Worker process stopped.")
}
