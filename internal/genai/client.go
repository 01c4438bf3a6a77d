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
package genai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/apperrors"
)

const serviceName = "llm"

// LLMClient defines the interface for interacting with a generative AI model.
type LLMClient interface {
	// GenerateText sends one system instruction and one user message and
	// returns the raw text of the reply.
	GenerateText(ctx context.Context, system, user string) (string, error)

	// IsAPIKeyValid checks if the configured API key is functional.
	IsAPIKeyValid(ctx context.Context) error

	// Close cleans up any resources used by the client.
	Close() error
}

// Config holds configuration for the GenAI client.
type Config struct {
	Provider        string
	APIKey          string
	Model           string
	Endpoint        string
	Temperature     float64
	MaxOutputTokens int
	RequestTimeout  time.Duration
}

var defaultModels = map[string]string{
	"gemini":    "gemini-1.5-pro-002",
	"openai":    "gpt-4o",
	"anthropic": "claude-3-5-sonnet-latest",
}

// NewClient creates the client for cfg.Provider.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (LLMClient, error) {
	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
		logger.Info("LLM model not specified, using default",
			zap.String("provider", cfg.Provider),
			zap.String("model", cfg.Model))
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 1000
	}

	switch cfg.Provider {
	case "gemini", "":
		return newGeminiClient(ctx, cfg, logger)
	case "openai":
		return newOpenAIClient(cfg, logger)
	case "anthropic":
		return newAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func transportError(msg string, status int, err error) error {
	return &apperrors.TransportError{
		Service:    serviceName,
		StatusCode: status,
		Msg:        msg,
		Err:        err,
	}
}
