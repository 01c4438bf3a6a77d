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
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Search     SearchConfig
	LLM        LLMConfig
	Enrichment EnrichmentConfig
	Catalog    CatalogConfig
	Database   DatabaseConfig
	LogLevel   string
}

// SearchConfig holds Elasticsearch connection configuration
type SearchConfig struct {
	URL                string
	Username           string
	Password           string
	APIKey             string
	InsecureSkipVerify bool
	RequestTimeout     time.Duration
}

// LLMConfig holds text-generation service configuration
type LLMConfig struct {
	Provider        string // gemini, openai or anthropic
	Model           string
	Endpoint        string // base URL for OpenAI-compatible endpoints
	APIKey          string
	Temperature     float64
	MaxOutputTokens int
	RequestTimeout  time.Duration
}

// EnrichmentConfig controls sampling and fan-out.
type EnrichmentConfig struct {
	Threshold       int // max samples passed to the prompt
	TermsSize       int // bucket size for frequent/significant terms; 0 means Threshold
	RareMaxDocCount int
	Workers         int
}

// CatalogConfig selects where the metadata dictionary is persisted.
type CatalogConfig struct {
	Sink  string // "file" or "sql"
	Path  string
	Table string
}

// DatabaseConfig holds database connection configuration for the SQL sink
type DatabaseConfig struct {
	Dialect                        string
	Host                           string
	Port                           int
	User                           string
	Password                       string
	DBName                         string
	SSLMode                        string
	CloudSQLInstanceConnectionName string
	UsePrivateIP                   bool
}

var supportedProviders = []string{"gemini", "openai", "anthropic"}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			URL:            "http://localhost:9200",
			RequestTimeout: 10000 * time.Second,
		},
		LLM: LLMConfig{
			Provider:        "gemini",
			Model:           "gemini-1.5-pro-002",
			Temperature:     0,
			MaxOutputTokens: 1000,
			RequestTimeout:  10000 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			Threshold:       20,
			RareMaxDocCount: 5,
			Workers:         10,
		},
		Catalog: CatalogConfig{
			Sink:  "file",
			Path:  "es_full_metadata.json",
			Table: "metadata_dictionary",
		},
		Database: DatabaseConfig{
			Dialect: "postgres",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		LogLevel: "info",
	}
}

// envBindings maps config keys to the environment variables that can set them.
var envBindings = map[string][]string{
	"elastic.url":                {"ELASTIC_URL"},
	"elastic.username":           {"ELASTIC_USERNAME"},
	"elastic.password":           {"ELASTIC_PASSWORD"},
	"elastic.api_key":            {"ELASTIC_API_KEY"},
	"llm.provider":               {"LLM_PROVIDER"},
	"llm.model":                  {"LLM_MODEL"},
	"llm.endpoint":               {"LLM_ENDPOINT", "WATSONX_ENDPOINT"},
	"llm.api_key":                {"LLM_API_KEY"},
	"llm.keys.gemini":            {"GEMINI_API_KEY"},
	"llm.keys.openai":            {"OPENAI_API_KEY"},
	"llm.keys.anthropic":         {"ANTHROPIC_API_KEY"},
	"database.password":          {"DB_PASSWORD"},
	"database.cloudsql_instance": {"CLOUDSQL_INSTANCE_CONNECTION_NAME"},
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) error {
	d := Default()
	v.SetDefault("elastic.url", d.Search.URL)
	v.SetDefault("elastic.insecure_skip_verify", d.Search.InsecureSkipVerify)
	v.SetDefault("elastic.request_timeout", d.Search.RequestTimeout)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_output_tokens", d.LLM.MaxOutputTokens)
	v.SetDefault("llm.request_timeout", d.LLM.RequestTimeout)
	v.SetDefault("enrichment.threshold", d.Enrichment.Threshold)
	v.SetDefault("enrichment.terms_size", d.Enrichment.TermsSize)
	v.SetDefault("enrichment.rare_max_doc_count", d.Enrichment.RareMaxDocCount)
	v.SetDefault("enrichment.workers", d.Enrichment.Workers)
	v.SetDefault("catalog.sink", d.Catalog.Sink)
	v.SetDefault("catalog.path", d.Catalog.Path)
	v.SetDefault("catalog.table", d.Catalog.Table)
	v.SetDefault("database.dialect", d.Database.Dialect)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.ssl_mode", d.Database.SSLMode)
	v.SetDefault("log.level", d.LogLevel)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Load builds a Config from v. SetDefaults must have been called on v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Search: SearchConfig{
			URL:                v.GetString("elastic.url"),
			Username:           v.GetString("elastic.username"),
			Password:           v.GetString("elastic.password"),
			APIKey:             v.GetString("elastic.api_key"),
			InsecureSkipVerify: v.GetBool("elastic.insecure_skip_verify"),
			RequestTimeout:     v.GetDuration("elastic.request_timeout"),
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(v.GetString("llm.provider")),
			Model:           v.GetString("llm.model"),
			Endpoint:        v.GetString("llm.endpoint"),
			APIKey:          v.GetString("llm.api_key"),
			Temperature:     v.GetFloat64("llm.temperature"),
			MaxOutputTokens: v.GetInt("llm.max_output_tokens"),
			RequestTimeout:  v.GetDuration("llm.request_timeout"),
		},
		Enrichment: EnrichmentConfig{
			Threshold:       v.GetInt("enrichment.threshold"),
			TermsSize:       v.GetInt("enrichment.terms_size"),
			RareMaxDocCount: v.GetInt("enrichment.rare_max_doc_count"),
			Workers:         v.GetInt("enrichment.workers"),
		},
		Catalog: CatalogConfig{
			Sink:  strings.ToLower(v.GetString("catalog.sink")),
			Path:  v.GetString("catalog.path"),
			Table: v.GetString("catalog.table"),
		},
		Database: DatabaseConfig{
			Dialect:                        strings.ToLower(v.GetString("database.dialect")),
			Host:                           v.GetString("database.host"),
			Port:                           v.GetInt("database.port"),
			User:                           v.GetString("database.username"),
			Password:                       v.GetString("database.password"),
			DBName:                         v.GetString("database.name"),
			SSLMode:                        v.GetString("database.ssl_mode"),
			CloudSQLInstanceConnectionName: v.GetString("database.cloudsql_instance"),
			UsePrivateIP:                   v.GetBool("database.private_ip"),
		},
		LogLevel: v.GetString("log.level"),
	}

	// Provider specific keys only apply when no generic key is set.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v.GetString("llm.keys." + cfg.LLM.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Search.URL == "" {
		return fmt.Errorf("elasticsearch URL is required (--es-url or ELASTIC_URL)")
	}
	valid := false
	for _, p := range supportedProviders {
		if c.LLM.Provider == p {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unsupported LLM provider: %s (only %s are supported)", c.LLM.Provider, strings.Join(supportedProviders, ", "))
	}
	if c.Enrichment.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1, got %d", c.Enrichment.Threshold)
	}
	if c.Enrichment.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Enrichment.Workers)
	}
	if c.Enrichment.RareMaxDocCount < 1 {
		return fmt.Errorf("rare max doc count must be at least 1, got %d", c.Enrichment.RareMaxDocCount)
	}
	switch c.Catalog.Sink {
	case "file":
		if c.Catalog.Path == "" {
			return fmt.Errorf("catalog path is required for the file sink")
		}
	case "sql":
		if c.Catalog.Table == "" {
			return fmt.Errorf("catalog table is required for the sql sink")
		}
	default:
		return fmt.Errorf("unsupported catalog sink: %s (only file, sql are supported)", c.Catalog.Sink)
	}
	return nil
}
