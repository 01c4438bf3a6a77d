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
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/apperrors"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/config"
)

const serviceName = "elasticsearch"

// ESAdapter defines the search engine operations needed by the enricher and
// the question translator. Implementations must be safe for concurrent use.
type ESAdapter interface {
	ListIndices(ctx context.Context) ([]string, error)
	ListFields(ctx context.Context, index string) ([]FieldDescriptor, error)
	SampleField(ctx context.Context, index, field, dataType string, opts SampleOptions) (*SampleBundle, error)
	ExecuteSQL(ctx context.Context, query string, fetchSize int) (*SQLResult, error)
	Ping(ctx context.Context) error
	Close() error
}

var _ ESAdapter = (*Client)(nil)

// FieldDescriptor is one mapped field of an index.
type FieldDescriptor struct {
	FieldName string `json:"field_name"`
	DataType  string `json:"data_type"`
}

// Client wraps a go-elasticsearch client. The underlying transport pools
// connections and is shared by every worker.
type Client struct {
	es     *elasticsearch.Client
	logger *zap.Logger
}

// NewClient creates an Elasticsearch client from cfg.
func NewClient(cfg config.SearchConfig, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("cannot create Elasticsearch client: URL is missing")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // matches verify_certs=False clusters
	}
	if cfg.RequestTimeout > 0 {
		transport.ResponseHeaderTimeout = cfg.RequestTimeout
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	return &Client{
		es:     es,
		logger: logger.Named("search"),
	}, nil
}

// Ping checks the cluster is reachable and the credentials are accepted.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return &apperrors.TransportError{Service: serviceName, Msg: "cluster info", Err: err}
	}
	var info struct {
		ClusterName string `json:"cluster_name"`
		Version     struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err := decodeResponse(res, "", "", "cluster info", &info); err != nil {
		return err
	}
	c.logger.Info("Connected to Elasticsearch",
		zap.String("cluster", info.ClusterName),
		zap.String("version", info.Version.Number))
	return nil
}

// Close is a no-op; the HTTP transport needs no explicit shutdown. It is
// kept so callers own the client lifecycle uniformly.
func (c *Client) Close() error {
	return nil
}

// ListIndices returns all non-system index names, sorted.
func (c *Client) ListIndices(ctx context.Context) ([]string, error) {
	res, err := c.es.Indices.GetAlias(c.es.Indices.GetAlias.WithContext(ctx))
	if err != nil {
		return nil, &apperrors.TransportError{Service: serviceName, Msg: "list indices", Err: err}
	}

	var aliases map[string]json.RawMessage
	if err := decodeResponse(res, "", "", "list indices", &aliases); err != nil {
		return nil, err
	}

	indices := make([]string, 0, len(aliases))
	for name := range aliases {
		if strings.HasPrefix(name, ".") {
			continue
		}
		indices = append(indices, name)
	}
	sort.Strings(indices)
	return indices, nil
}

type fieldMapping struct {
	Type       string                  `json:"type"`
	Properties map[string]fieldMapping `json:"properties"`
}

type indexMapping struct {
	Mappings struct {
		Properties map[string]fieldMapping `json:"properties"`
	} `json:"mappings"`
}

// ListFields returns one descriptor per mapped field of index. Object fields
// are flattened into dotted paths; nested fields are reported as-is.
func (c *Client) ListFields(ctx context.Context, index string) ([]FieldDescriptor, error) {
	res, err := c.es.Indices.GetMapping(
		c.es.Indices.GetMapping.WithContext(ctx),
		c.es.Indices.GetMapping.WithIndex(index),
	)
	if err != nil {
		return nil, &apperrors.TransportError{Service: serviceName, Msg: fmt.Sprintf("get mapping for %s", index), Err: err}
	}

	var mappings map[string]indexMapping
	if err := decodeResponse(res, index, "", "get mapping", &mappings); err != nil {
		return nil, err
	}

	// An alias can resolve to several concrete indices; their fields are merged.
	seen := make(map[string]bool)
	var fields []FieldDescriptor
	names := make([]string, 0, len(mappings))
	for name := range mappings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, fd := range flattenProperties("", mappings[name].Mappings.Properties) {
			if seen[fd.FieldName] {
				continue
			}
			seen[fd.FieldName] = true
			fields = append(fields, fd)
		}
	}

	sort.Slice(fields, func(i, j int) bool {
		return fields[i].FieldName < fields[j].FieldName
	})
	return fields, nil
}

func flattenProperties(prefix string, props map[string]fieldMapping) []FieldDescriptor {
	var out []FieldDescriptor
	for name, m := range props {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if len(m.Properties) > 0 && (m.Type == "" || m.Type == "object") {
			out = append(out, flattenProperties(path, m.Properties)...)
			continue
		}
		dataType := m.Type
		if dataType == "" {
			dataType = "unknown"
		}
		out = append(out, FieldDescriptor{FieldName: path, DataType: dataType})
	}
	return out
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// decodeResponse closes res.Body, maps error statuses onto the error
// taxonomy and otherwise decodes the JSON body into out.
func decodeResponse(res *esapi.Response, index, field, op string, out any) error {
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return classifyResponseError(res.StatusCode, index, field, op, raw)
	}

	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &apperrors.TransportError{Service: serviceName, StatusCode: res.StatusCode, Msg: fmt.Sprintf("decode %s response", op), Err: err}
	}
	return nil
}

func classifyResponseError(status int, index, field, op string, raw []byte) error {
	reason := strings.TrimSpace(string(raw))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Reason != "" {
		reason = fmt.Sprintf("%s: %s", body.Error.Type, body.Error.Reason)
	}

	switch status {
	case http.StatusBadRequest, http.StatusNotFound:
		return &apperrors.SchemaError{
			Index: index,
			Field: field,
			Msg:   fmt.Sprintf("%s rejected (HTTP %d): %s", op, status, reason),
		}
	default:
		return &apperrors.TransportError{
			Service:    serviceName,
			StatusCode: status,
			Msg:        fmt.Sprintf("%s failed: %s", op, reason),
		}
	}
}
