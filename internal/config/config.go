package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// OpenAIConfig holds inference collaborator configuration
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PromptsPath string        `mapstructure:"prompts_path"`
}

// StorageConfig holds document storage configuration
type StorageConfig struct {
	UploadDir        string `mapstructure:"upload_dir"`
	LedgerPath       string `mapstructure:"ledger_path"`
	MaxDocumentChars int    `mapstructure:"max_document_chars"`
}

// StageConfig holds the per-stage execution policy
type StageConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxAttempts         int           `mapstructure:"max_attempts"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
}

// GraphEdges declares the outgoing edges of one stage node, allowing the
// workflow graph to be redefined without code changes
type GraphEdges struct {
	Success       string `mapstructure:"success"`
	LowConfidence string `mapstructure:"low_confidence"`
	Failure       string `mapstructure:"failure"`
	Exhausted     string `mapstructure:"exhausted"`
}

// PipelineConfig holds the workflow engine configuration
type PipelineConfig struct {
	MaxConcurrentRuns      int                    `mapstructure:"max_concurrent_runs"`
	LowConfidenceThreshold float64                `mapstructure:"low_confidence_threshold"`
	EntryStage             string                 `mapstructure:"entry_stage"`
	Stages                 map[string]StageConfig `mapstructure:"stages"`
	RequiredFields         map[string][]string    `mapstructure:"required_fields"`
	Graph                  map[string]GraphEdges  `mapstructure:"graph"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/documents.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	viper.SetDefault("openai.model", "gpt-4")
	viper.SetDefault("openai.timeout", 60*time.Second)

	viper.SetDefault("storage.upload_dir", "uploads")
	viper.SetDefault("storage.ledger_path", "exports/approved_ledger.xlsx")
	viper.SetDefault("storage.max_document_chars", 20000)

	viper.SetDefault("pipeline.max_concurrent_runs", 5)
	viper.SetDefault("pipeline.low_confidence_threshold", 0.8)
	viper.SetDefault("pipeline.entry_stage", "classify")
	viper.SetDefault("pipeline.stages.classify.timeout", 60*time.Second)
	viper.SetDefault("pipeline.stages.classify.max_attempts", 2)
	viper.SetDefault("pipeline.stages.extract.timeout", 90*time.Second)
	viper.SetDefault("pipeline.stages.extract.max_attempts", 2)
	viper.SetDefault("pipeline.stages.validate.timeout", 60*time.Second)
	viper.SetDefault("pipeline.stages.validate.max_attempts", 2)
	viper.SetDefault("pipeline.stages.route.timeout", 5*time.Second)
	viper.SetDefault("pipeline.stages.route.max_attempts", 1)
	viper.SetDefault("pipeline.required_fields", map[string][]string{
		"invoice":        {"invoice_number", "total_amount", "vendor_name"},
		"purchase_order": {"po_number", "total_amount"},
		"contract":       {"parties", "effective_date"},
	})

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("storage.upload_dir", "UPLOAD_DIR")
	viper.BindEnv("server.port", "SERVER_PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port number")
	}

	if c.Pipeline.MaxConcurrentRuns < 1 {
		return fmt.Errorf("pipeline.max_concurrent_runs must be at least 1")
	}
	if c.Pipeline.LowConfidenceThreshold < 0 || c.Pipeline.LowConfidenceThreshold > 1 {
		return fmt.Errorf("pipeline.low_confidence_threshold must be between 0.0 and 1.0")
	}

	for name, stage := range c.Pipeline.Stages {
		if stage.MaxAttempts < 1 {
			return fmt.Errorf("pipeline.stages.%s.max_attempts must be at least 1", name)
		}
		if stage.Timeout <= 0 {
			return fmt.Errorf("pipeline.stages.%s.timeout must be positive", name)
		}
		if stage.ConfidenceThreshold < 0 || stage.ConfidenceThreshold > 1 {
			return fmt.Errorf("pipeline.stages.%s.confidence_threshold must be between 0.0 and 1.0", name)
		}
	}

	return nil
}

// StageThreshold returns the confidence threshold for a stage, falling
// back to the pipeline-wide default
func (p PipelineConfig) StageThreshold(name string) float64 {
	if stage, ok := p.Stages[name]; ok && stage.ConfidenceThreshold > 0 {
		return stage.ConfidenceThreshold
	}
	return p.LowConfidenceThreshold
}

// StageTimeout returns the execution timeout for a stage
func (p PipelineConfig) StageTimeout(name string) time.Duration {
	if stage, ok := p.Stages[name]; ok && stage.Timeout > 0 {
		return stage.Timeout
	}
	return 60 * time.Second
}

// Budgets returns the per-stage maximum attempt counts
func (p PipelineConfig) Budgets() map[string]int {
	budgets := make(map[string]int, len(p.Stages))
	for name, stage := range p.Stages {
		budgets[name] = stage.MaxAttempts
	}
	return budgets
}

// BuildGraph assembles the workflow graph from configuration. Without
// explicit edge definitions the default document pipeline is used, with
// retry budgets taken from the stage settings.
func (p PipelineConfig) BuildGraph() (*workflow.Graph, error) {
	attempts := make(map[workflow.Node]int, len(p.Stages))
	for name, stage := range p.Stages {
		attempts[workflow.Node(name)] = stage.MaxAttempts
	}

	if len(p.Graph) == 0 {
		return workflow.BuildDocumentGraph(attempts)
	}

	defs := make(map[workflow.Node]workflow.EdgeDefinition, len(p.Graph))
	for name, edges := range p.Graph {
		node := workflow.Node(name)
		defs[node] = workflow.EdgeDefinition{
			Success:       workflow.Node(edges.Success),
			LowConfidence: workflow.Node(edges.LowConfidence),
			Failure:       workflow.Node(edges.Failure),
			Exhausted:     workflow.Node(edges.Exhausted),
			MaxAttempts:   attempts[node],
		}
	}

	entry := workflow.Node(p.EntryStage)
	if entry == "" {
		entry = workflow.NodeClassify
	}
	return workflow.FromDefinition(entry, defs)
}
