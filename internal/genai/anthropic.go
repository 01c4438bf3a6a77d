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

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// anthropicClient implements LLMClient using the Anthropic Messages API.
type anthropicClient struct {
	client *anthropic.Client
	cfg    Config
	logger *zap.Logger
}

func newAnthropicClient(cfg Config, logger *zap.Logger) (*anthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cannot create Anthropic client: API key is missing")
	}

	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(httpClient(cfg.RequestTimeout))}
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}

	return &anthropicClient{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		cfg:    cfg,
		logger: logger.Named("anthropic"),
	}, nil
}

// Close is a no-op; the HTTP client holds no resources.
func (c *anthropicClient) Close() error {
	return nil
}

// IsAPIKeyValid sends a one-token request; the Messages API has no cheaper
// authenticated call.
func (c *anthropicClient) IsAPIKeyValid(ctx context.Context) error {
	ping := "ping"
	_, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: 1,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &ping},
			}},
		},
	})
	if err != nil {
		if isAnthropicAuthError(err) {
			return fmt.Errorf("invalid Anthropic API key or insufficient permissions: %w", err)
		}
		return transportError("verify Anthropic API key", anthropicStatusCode(err), err)
	}
	return nil
}

// GenerateText sends the system prompt and one user message.
func (c *anthropicClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	temperature := float32(c.cfg.Temperature)
	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.cfg.Model),
		System:      system,
		MaxTokens:   c.cfg.MaxOutputTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &user},
			}},
		},
	})
	if err != nil {
		return "", transportError("messages request failed", anthropicStatusCode(err), err)
	}

	text := extractTextFromResponse(resp)
	c.logger.Debug("LLM request completed",
		zap.String("model", c.cfg.Model),
		zap.Int("response_len", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

func extractTextFromResponse(resp anthropic.MessagesResponse) string {
	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			parts = append(parts, *block.Text)
		}
	}
	return strings.Join(parts, "")
}

// isAnthropicAuthError reports a rejected key or missing permission. The API
// error body carries the type but not the status code.
func isAnthropicAuthError(err error) bool {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsAuthenticationErr() || apiErr.IsPermissionErr()
	}
	status := anthropicStatusCode(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func anthropicStatusCode(err error) int {
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}
