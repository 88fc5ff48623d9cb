package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"causalgen-backend/internal/api"
	"causalgen-backend/internal/core"
	"causalgen-backend/internal/core/casegen"
	"causalgen-backend/internal/database"
	"causalgen-backend/internal/messaging"
	"causalgen-backend/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Config struct {
	Root        string  `env:"ROOT" envDefault:"./causalgen"`
	Port        int     `env:"PORT" envDefault:"3001"`
	OpenAIModel string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	Temperature float64 `env:"GEN_TEMPERATURE" envDefault:"0.8"`
	Concurrency int     `env:"CONCURRENCY" envDefault:"5"`
}

func createDatabase(root string) *gorm.DB {
	path := filepath.Join(root, "db", "causalgen.db")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.GetMigrator(db).Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

// createQueue re-enqueues runs that were queued when the process last
// stopped, so restarting the app picks them back up.
func createQueue(db *gorm.DB) *messaging.InMemoryQueue {
	var runs []database.GenerationRun
	if err := db.Where("status = ?", database.RunQueued).Find(&runs).Error; err != nil {
		log.Fatalf("Failed to fetch runs from database: %v", err)
	}

	queue := messaging.NewInMemoryQueue()

	for _, run := range runs {
		if err := queue.PublishGenerateRunTask(context.Background(), messaging.GenerateRunPayload{
			RunId: run.Id,
		}); err != nil {
			log.Fatalf("Failed to publish generate run task: %v", err)
		}
	}

	return queue
}

func createStore(root string) storage.ObjectStore {
	store, err := storage.NewLocalObjectStore(filepath.Join(root, "exports"))
	if err != nil {
		log.Fatalf("Failed to create export store: %v", err)
	}
	return store
}

func createServer(db *gorm.DB, queue messaging.Publisher, store storage.ObjectStore, port int) *http.Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)                    // Log requests
	r.Use(middleware.Recoverer)                 // Recover from panics
	r.Use(middleware.Timeout(60 * time.Second)) // Set request timeout

	apiHandler := api.NewBackendService(db, queue, store)

	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.Port, "model", cfg.OpenAIModel)

	db := createDatabase(cfg.Root)

	queue := createQueue(db)

	llm := casegen.NewOpenAI(cfg.OpenAIModel, cfg.Temperature, casegen.DefaultGenerateTimeout)

	worker := core.NewTaskProcessor(db, queue, llm, cfg.Concurrency, true)

	server := createServer(db, queue, createStore(cfg.Root), cfg.Port)

	slog.Info("starting worker")
	go worker.Start()

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down worker")
		worker.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("server stopped")
}
