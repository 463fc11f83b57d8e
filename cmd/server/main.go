package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nuvio/autoflow"
	"github.com/nuvio/autoflow/engine"
	"github.com/nuvio/autoflow/httpapi"
	"github.com/nuvio/autoflow/store"
)

func main() {
	ctx := context.Background()

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Str("backend", cfg.Store.Backend).Msg("Configuration loaded")

	st, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer cleanup()

	registry := autoflow.NewRegistry()
	registerDemoExecutors(registry)

	eng := engine.New(st, registry,
		engine.WithLogger(log.Logger),
		engine.WithConfig(engine.Config{
			MaxConcurrentSteps:        cfg.Engine.MaxConcurrentSteps,
			DefaultStepTimeoutSeconds: cfg.Engine.DefaultStepTimeoutSeconds,
			CancelGracePeriod:         time.Duration(cfg.Engine.CancelGracePeriodSeconds) * time.Second,
		}),
	)

	log.Info().Msg("Workflow engine initialized successfully")

	app := fiber.New()
	api := httpapi.NewServer(eng, log.Logger)
	api.RegisterRoutes(app)

	go func() {
		log.Info().Str("address", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := app.Listen(cfg.Server.Addr); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight executions finish before the process exits.
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Engine shutdown timed out")
	}

	log.Info().Msg("Server stopped")
}

// newStore builds the configured persistence backend
func newStore(ctx context.Context, cfg *Config) (autoflow.Store, func(), error) {
	noop := func() {}

	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), noop, nil

	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Store.DynamoDB.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg)
		return store.NewDynamoDBStore(client, cfg.Store.DynamoDB.TableName), noop, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.InitSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		return pg, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// registerDemoExecutors wires a pass-through executor for every step type so
// workflows can be exercised end to end without external integrations.
func registerDemoExecutors(registry *autoflow.Registry) {
	passthrough := func(name string) autoflow.StepExecutorFunc {
		return func(ctx context.Context, config autoflow.StepConfig, input map[string]any) (map[string]any, error) {
			log.Debug().Str("step_type", name).Int("input_keys", len(input)).Msg("Executing demo step")
			return map[string]any{name + "_done": true}, nil
		}
	}

	for _, t := range []autoflow.StepType{
		autoflow.StepTypeAIAnalysis,
		autoflow.StepTypeDataExtraction,
		autoflow.StepTypeNotification,
		autoflow.StepTypeAPICall,
		autoflow.StepTypeDatabaseUpdate,
		autoflow.StepTypeAIGeneration,
		autoflow.StepTypeScheduling,
		autoflow.StepTypeIntegration,
	} {
		registry.Register(t, passthrough(t.String()))
	}
}
