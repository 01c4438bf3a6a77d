/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/catalog"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/config"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/database"
	_ "github.com/GoogleCloudPlatform/es-context-enrichment/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/es-context-enrichment/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/es-context-enrichment/internal/database/sqlserver"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/genai"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/search"
)

var supportedDialects = []string{"postgres", "cloudsqlpostgres", "mysql", "cloudsqlmysql", "sqlserver", "cloudsqlsqlserver"}

var (
	v       = viper.New()
	cfgFile string
	envFile string

	appConfig *config.Config
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "es_metadata_enricher",
	Short: "A tool to build a metadata dictionary for Elasticsearch indices",
	Long: `es_metadata_enricher samples the values of every field of your Elasticsearch
indices, asks an LLM to describe each field and stores the resulting metadata
dictionary. The dictionary can then be used to translate natural language
questions into Elasticsearch SQL.`,
	PersistentPreRunE: initFlagsAndConfig,
	SilenceUsage:      true,
}

// flagBindings maps persistent flags to config keys.
var flagBindings = map[string]string{
	"es-url":                            "elastic.url",
	"es-username":                       "elastic.username",
	"es-password":                       "elastic.password",
	"es-api-key":                        "elastic.api_key",
	"es-insecure":                       "elastic.insecure_skip_verify",
	"request-timeout":                   "elastic.request_timeout",
	"llm-provider":                      "llm.provider",
	"llm-model":                         "llm.model",
	"llm-endpoint":                      "llm.endpoint",
	"llm-api-key":                       "llm.api_key",
	"llm-temperature":                   "llm.temperature",
	"llm-max-output-tokens":             "llm.max_output_tokens",
	"sink":                              "catalog.sink",
	"catalog-path":                      "catalog.path",
	"catalog-table":                     "catalog.table",
	"dialect":                           "database.dialect",
	"host":                              "database.host",
	"port":                              "database.port",
	"username":                          "database.username",
	"password":                          "database.password",
	"database":                          "database.name",
	"cloudsql-instance-connection-name": "database.cloudsql_instance",
	"cloudsql-use-private-ip":           "database.private_ip",
	"log-level":                         "log.level",
}

// initFlagsAndConfig loads .env and config files, binds flags and builds the logger.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	if err := config.SetDefaults(v); err != nil {
		return err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagBindings[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	appConfig = cfg

	l, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = atomicLevel
	logConfig.DisableStacktrace = true
	return logConfig.Build()
}

func validateDialect(dialect string) error {
	for _, supported := range supportedDialects {
		if dialect == supported {
			return nil
		}
	}
	return fmt.Errorf("unsupported dialect: %s (only %s are supported)", dialect, strings.Join(supportedDialects, ", "))
}

// Client constructors used by the commands. Tests replace them with fakes.
var (
	newSearchClient = setupSearch
	newLLMClient    = setupLLM
)

func setupSearch() (search.ESAdapter, error) {
	client, err := search.NewClient(appConfig.Search, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return client, nil
}

func setupLLM(ctx context.Context) (genai.LLMClient, error) {
	llmCfg := appConfig.LLM
	client, err := genai.NewClient(ctx, genai.Config{
		Provider:        llmCfg.Provider,
		APIKey:          llmCfg.APIKey,
		Model:           llmCfg.Model,
		Endpoint:        llmCfg.Endpoint,
		Temperature:     llmCfg.Temperature,
		MaxOutputTokens: llmCfg.MaxOutputTokens,
		RequestTimeout:  llmCfg.RequestTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return client, nil
}

// openStore returns the configured catalog store and a function releasing
// its resources.
func openStore(ctx context.Context, runID string) (catalog.Store, func(), error) {
	switch appConfig.Catalog.Sink {
	case "sql":
		if err := validateDialect(appConfig.Database.Dialect); err != nil {
			return nil, nil, err
		}
		db, err := database.New(ctx, appConfig.Database, logger)
		if err != nil {
			logger.Error("Failed to connect to database", zap.Error(err))
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store, err := catalog.NewSQLStore(db, appConfig.Catalog.Table, logger)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		store.RunID = runID
		return store, func() { db.Close() }, nil
	default:
		return catalog.NewFileStore(appConfig.Catalog.Path), func() {}, nil
	}
}

// Execute adds all child commands to the root command and runs it with ctx.
func Execute(ctx context.Context) error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "Path to a .env file with environment variables")

	// Elasticsearch
	flags.String("es-url", "", "Elasticsearch URL (env ELASTIC_URL, default http://localhost:9200)")
	flags.String("es-username", "", "Elasticsearch username (env ELASTIC_USERNAME)")
	flags.String("es-password", "", "Elasticsearch password (env ELASTIC_PASSWORD)")
	flags.String("es-api-key", "", "Elasticsearch API key (env ELASTIC_API_KEY)")
	flags.Bool("es-insecure", false, "Skip TLS certificate verification")
	flags.Duration("request-timeout", 0, "Elasticsearch request timeout (default 10000s)")

	// LLM
	flags.String("llm-provider", "", "LLM provider: gemini, openai or anthropic (env LLM_PROVIDER, default gemini)")
	flags.String("llm-model", "", "LLM model name (env LLM_MODEL)")
	flags.String("llm-endpoint", "", "Base URL of an OpenAI-compatible endpoint (env LLM_ENDPOINT)")
	flags.String("llm-api-key", "", "LLM API key (env LLM_API_KEY or the provider specific key)")
	flags.Float64("llm-temperature", 0, "Sampling temperature")
	flags.Int("llm-max-output-tokens", 0, "Maximum tokens per reply (default 1000)")

	// Catalog
	flags.String("sink", "", "Where the dictionary is stored: file or sql (default file)")
	flags.StringP("catalog-path", "o", "", "Dictionary file path for the file sink (default es_full_metadata.json)")
	flags.String("catalog-table", "", "Dictionary table for the sql sink (default metadata_dictionary)")

	// Database connection flags for the sql sink
	flags.String("dialect", "", fmt.Sprintf("Database dialect (%s)", strings.Join(supportedDialects, ", ")))
	flags.String("host", "", "Database host")
	flags.Int("port", 0, "Database port")
	flags.String("username", "", "Database username")
	flags.String("password", "", "Database password (env DB_PASSWORD)")
	flags.String("database", "", "Database name")
	flags.String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	flags.Bool("cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection")

	flags.String("log-level", "", "Log level: debug, info, warn or error (default info)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(askCmd)
}
