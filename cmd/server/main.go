package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/application/dispatcher"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/application/orchestrator"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/application/service"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/config"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/document"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/event"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/export"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/inference"
	httpserver "github.com/Bachina-mahesh/AI-Document-Processing/internal/interfaces/http"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/repository"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/stage"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/storage"
	"github.com/Bachina-mahesh/AI-Document-Processing/pkg/database"
	"github.com/Bachina-mahesh/AI-Document-Processing/pkg/utils"
)

func main() {
	// Load .env if present; real environment variables take precedence
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting AI Document Processing System",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize document storage and reader
	store, err := storage.NewLocalDocumentStore(cfg.Storage.UploadDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize document storage", zap.Error(err))
	}
	reader := document.NewFileReader(cfg.Storage.MaxDocumentChars, logger)

	// Initialize inference collaborator
	prompts := inference.DefaultPrompts()
	if cfg.OpenAI.PromptsPath != "" {
		prompts, err = inference.LoadPrompts(cfg.OpenAI.PromptsPath)
		if err != nil {
			logger.Fatal("Failed to load prompts", zap.Error(err))
		}
	}
	client := inference.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, prompts, reader, logger)

	// Assemble the pipeline stages
	stages := []stage.Stage{
		stage.NewClassifier(client, cfg.Pipeline.StageThreshold("classify"), logger),
		stage.NewExtractor(client, cfg.Pipeline.StageThreshold("extract"), logger),
		stage.NewValidator(client, cfg.Pipeline.RequiredFields, logger),
		stage.NewRouter(cfg.Pipeline.LowConfidenceThreshold, cfg.Pipeline.Budgets(), logger),
	}

	graph, err := cfg.Pipeline.BuildGraph()
	if err != nil {
		logger.Fatal("Failed to build workflow graph", zap.Error(err))
	}

	opts := []orchestrator.Option{
		orchestrator.WithDefaultTimeout(cfg.OpenAI.Timeout),
	}
	for _, node := range graph.Nodes() {
		opts = append(opts, orchestrator.WithStageTimeout(node, cfg.Pipeline.StageTimeout(node.String())))
	}

	engine, err := orchestrator.New(graph, stages, logger, opts...)
	if err != nil {
		logger.Fatal("Failed to initialize orchestrator", zap.Error(err))
	}

	// Initialize run persistence and event handling
	repo := repository.NewRunRepository(db, logger)
	disp := dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger)))
	defer disp.Close()

	ledger := export.NewLedgerWriter(cfg.Storage.LedgerPath, logger)
	disp.SubscribeNamed(event.TypeRunCompleted, "approved-ledger", func(ctx context.Context, evt *event.Event) error {
		if evt.GetPayloadString("status") != run.StatusAutoApproved.String() {
			return nil
		}
		state, err := repo.GetByID(ctx, evt.RunID)
		if err != nil {
			return err
		}
		if state == nil {
			return fmt.Errorf("run not found: %s", evt.RunID)
		}
		return ledger.Append(*state)
	})

	runService := service.NewRunService(store, repo, engine, disp, cfg.Pipeline.MaxConcurrentRuns, logger)
	defer runService.Close()

	// Start the HTTP server and block until shutdown
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, runService, utils.NewKVLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server error", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
