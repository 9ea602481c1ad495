package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"tasksched-go/internal/chatapi"
	"tasksched-go/internal/config"
	"tasksched-go/internal/notify"
	"tasksched-go/internal/scheduler"
	"tasksched-go/internal/storage"
	"tasksched-go/internal/tasks"
	"tasksched-go/internal/telegram"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Application holds all the major components of the service.
type Application struct {
	Config        *config.Config
	Logger        *log.Logger
	Store         *storage.SQLiteStore
	Tasks         *tasks.Service
	Loop          *scheduler.Loop
	Dispatcher    *notify.Dispatcher
	MetricsServer *http.Server
}

// New creates and initializes a new Application instance.
func New(cfg *config.Config) (*Application, error) {
	logger := log.New(os.Stdout, "tasksched: ", log.LstdFlags)

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolving timezone: %w", err)
	}

	// Setup: Database
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening task store: %w", err)
	}

	// Setup: assistant host client
	client := chatapi.NewClient(
		cfg.Assistant.BaseURL,
		cfg.Assistant.APIKey,
		cfg.Assistant.DispatchTimeout.Duration,
		logger,
	)

	// Setup: best-effort side effect dispatcher
	dispatcher := notify.NewDispatcher(2, 32, logger)

	// Setup: Telegram (optional)
	var notifier scheduler.Notifier
	if cfg.Telegram.BotToken != "" {
		tg, err := telegram.NewService(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		if err != nil {
			return nil, fmt.Errorf("setting up telegram: %w", err)
		}
		notifier = tg
	}

	// Setup: executor and poll loop
	executor := scheduler.NewExecutor(client, client, client, client, dispatcher, cfg.Assistant.Model, loc, logger)
	loop := scheduler.NewLoop(store, executor, notifier, dispatcher, loc, scheduler.Config{
		PollInterval:    cfg.Scheduler.PollInterval.Duration,
		ErrorBackoff:    cfg.Scheduler.ErrorBackoff.Duration,
		DispatchTimeout: cfg.Assistant.DispatchTimeout.Duration,
		FailThreshold:   cfg.Scheduler.FailThreshold,
	}, logger)

	// Setup: task definition API; task changes wake the loop immediately
	taskService := tasks.NewService(store, loc, loop.Wakeup, logger)

	// Setup: HTTP server for metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	return &Application{
		Config:        cfg,
		Logger:        logger,
		Store:         store,
		Tasks:         taskService,
		Loop:          loop,
		Dispatcher:    dispatcher,
		MetricsServer: metricsServer,
	}, nil
}

// Start begins the application's services.
func (a *Application) Start(ctx context.Context) error {
	a.Logger.Println("Starting application services...")

	a.Dispatcher.Start()
	a.Loop.Start()

	go func() {
		a.Logger.Printf("Starting metrics server on %s", a.MetricsServer.Addr)
		if err := a.MetricsServer.ListenAndServe(); err != http.ErrServerClosed {
			a.Logger.Fatalf("Metrics server ListenAndServe: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the application's services.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.Println("Stopping application services...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.MetricsServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Printf("Metrics server shutdown error: %v", err)
	}

	a.Loop.Stop()
	a.Dispatcher.Stop()

	if err := a.Store.Close(); err != nil {
		a.Logger.Printf("Error closing task store: %v", err)
	}

	a.Logger.Println("Application stopped gracefully.")
	return nil
}
