// Command process-document runs a single document through the processing
// pipeline and prints the final run state as JSON. Useful for trying out
// prompt or threshold changes without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/application/orchestrator"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/config"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/document"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/inference"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/stage"
	"github.com/Bachina-mahesh/AI-Document-Processing/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: process-document [-config path] <document>")
		os.Exit(1)
	}
	documentPath := flag.Arg(0)

	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if _, err := os.Stat(documentPath); err != nil {
		logger.Fatal("Document not readable", zap.String("path", documentPath), zap.Error(err))
	}

	reader := document.NewFileReader(cfg.Storage.MaxDocumentChars, logger)

	prompts := inference.DefaultPrompts()
	if cfg.OpenAI.PromptsPath != "" {
		prompts, err = inference.LoadPrompts(cfg.OpenAI.PromptsPath)
		if err != nil {
			logger.Fatal("Failed to load prompts", zap.Error(err))
		}
	}
	client := inference.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, prompts, reader, logger)

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

	state := run.New(documentPath, filepath.Base(documentPath))
	final, err := engine.Run(context.Background(), state)
	if err != nil {
		logger.Fatal("Run aborted", zap.String("run_id", state.RunID), zap.Error(err))
	}

	output, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode run state", zap.Error(err))
	}
	fmt.Println(string(output))

	if final.Status == run.StatusFailed {
		os.Exit(2)
	}
}
