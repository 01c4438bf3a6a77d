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
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/apperrors"
)

// DefaultFetchSize matches the row cap used when answering questions.
const DefaultFetchSize = 10000

// SQLColumn describes one column of an SQL result.
type SQLColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SQLResult is the tabular answer of the SQL endpoint.
type SQLResult struct {
	Columns []SQLColumn `json:"columns"`
	Rows    [][]any     `json:"rows"`
}

// ExecuteSQL runs query through the Elasticsearch SQL endpoint. Numbers in
// rows are returned as json.Number.
func (c *Client) ExecuteSQL(ctx context.Context, query string, fetchSize int) (*SQLResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("cannot execute empty SQL query")
	}
	if fetchSize <= 0 {
		fetchSize = DefaultFetchSize
	}

	body, err := json.Marshal(map[string]any{
		"query":      query,
		"fetch_size": fetchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode SQL request: %w", err)
	}

	res, err := c.es.SQL.Query(
		bytes.NewReader(body),
		c.es.SQL.Query.WithContext(ctx),
		c.es.SQL.Query.WithFormat("json"),
	)
	if err != nil {
		return nil, &apperrors.TransportError{Service: serviceName, Msg: "sql query", Err: err}
	}

	var result SQLResult
	if err := decodeResponse(res, "", "", "sql query", &result); err != nil {
		return nil, err
	}
	c.logger.Debug("Executed SQL query",
		zap.String("query", query),
		zap.Int("columns", len(result.Columns)),
		zap.Int("rows", len(result.Rows)))
	return &result, nil
}
