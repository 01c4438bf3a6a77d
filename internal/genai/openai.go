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
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// openaiClient talks to any OpenAI-compatible chat completion endpoint
// (OpenAI, vLLM, watsonx gateways).
type openaiClient struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

func newOpenAIClient(cfg Config, logger *zap.Logger) (*openaiClient, error) {
	if cfg.APIKey == "" && cfg.Endpoint == "" {
		return nil, fmt.Errorf("cannot create OpenAI client: API key is missing")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	clientConfig.HTTPClient = httpClient(cfg.RequestTimeout)

	return &openaiClient{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		logger: logger.Named("openai"),
	}, nil
}

// Close is a no-op; the HTTP client holds no resources.
func (c *openaiClient) Close() error {
	return nil
}

// IsAPIKeyValid checks the key by listing models.
func (c *openaiClient) IsAPIKeyValid(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		status := statusCode(err)
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return fmt.Errorf("invalid OpenAI API key or insufficient permissions: %w", err)
		}
		return transportError("verify OpenAI API key by listing models", status, err)
	}
	return nil
}

// GenerateText sends a system and a user message and returns the first choice.
func (c *openaiClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: float32(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxOutputTokens,
	})
	if err != nil {
		c.logger.Debug("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", transportError("chat completion failed", statusCode(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", transportError("no choices in response", 0, nil)
	}

	c.logger.Debug("LLM request completed",
		zap.String("model", c.cfg.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return resp.Choices[0].Message.Content, nil
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
