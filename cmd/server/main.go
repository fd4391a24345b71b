package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"sentimatic/config"
	"sentimatic/internal/api"
	"sentimatic/internal/categorizer"
	"sentimatic/internal/clients"
	"sentimatic/internal/db"
	"sentimatic/internal/logging"
)

type ServerConfig struct {
	OpenAIAPIKey string   `env:"OPENAI_API_KEY,notEmpty,required"`
	OpenAIModel  string   `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	HistoryTable string   `env:"HISTORY_TABLE_NAME,notEmpty,required"`
	AWSRegion    string   `env:"AWS_REGION" envDefault:"us-west-2"`
	AWSEndpoint  string   `env:"AWS_ENDPOINT"`
	APIPort      string   `env:"API_PORT" envDefault:"8080"`
	CORSOrigins  []string `env:"CORS_ORIGINS" envDefault:"*"`
}

func main() {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}
	config.LoadEnv(appEnv)
	logging.InitLogger()

	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		slog.Error("[Main] invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	openAIClient, err := clients.NewOpenAIClient(cfg.OpenAIAPIKey)
	if err != nil {
		slog.Error("[Main] failed to build OpenAI client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dynamoClient, err := clients.NewDynamoDBClient(context.Background(), cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		slog.Error("[Main] failed to build DynamoDB client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := db.NewHistoryStore(dynamoClient, cfg.HistoryTable)
	if err != nil {
		slog.Error("[Main] failed to build history store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	analyzer := categorizer.NewService(openAIClient.Client, store, cfg.OpenAIModel)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	api.NewService(analyzer, store).AddRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Shutdown closes the listeners, which makes ListenAndServe return
	// before active requests have drained. Main blocks on done so the
	// process does not exit until Shutdown and the detached history
	// writes have finished.
	done := make(chan struct{})
	go func() {
		defer close(done)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("[Main] shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("[Main] server forced to shutdown", slog.String("error", err.Error()))
		}
		// Let detached history writes finish before the process exits.
		analyzer.Wait()
	}()

	slog.Info("[Main] API server listening", slog.String("port", cfg.APIPort))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("[Main] server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	<-done
	slog.Info("[Main] server stopped")
}
