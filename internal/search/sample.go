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
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/apperrors"
)

const (
	defaultRareMaxDocCount = 5
	sampleDocumentCount    = 3
)

// SampleOptions controls the bucket sizes of a sampling query.
type SampleOptions struct {
	Size            int // frequent and significant terms; usually the threshold
	RareMaxDocCount int
}

// SampleBundle is the raw material for describing one field. Values are
// returned as the engine produced them: no dedupe, no truncation.
type SampleBundle struct {
	Frequent        []string
	Rare            []string
	Significant     []string
	UniqueCount     int64
	SampleDocuments []json.RawMessage
}

// Values returns frequent, rare and significant values in that order.
func (b *SampleBundle) Values() []string {
	out := make([]string, 0, len(b.Frequent)+len(b.Rare)+len(b.Significant))
	out = append(out, b.Frequent...)
	out = append(out, b.Rare...)
	out = append(out, b.Significant...)
	return out
}

// AggregationTarget resolves the field name aggregations must run against.
// Analyzed text fields are aggregated through their keyword sub-field.
func AggregationTarget(field, dataType string) string {
	if dataType == "text" {
		return field + ".keyword"
	}
	return field
}

func buildSampleQuery(target string, opts SampleOptions) map[string]any {
	rare := opts.RareMaxDocCount
	if rare <= 0 {
		rare = defaultRareMaxDocCount
	}
	return map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"frequent_terms": map[string]any{
				"terms": map[string]any{"field": target, "size": opts.Size},
			},
			"rare_terms": map[string]any{
				"rare_terms": map[string]any{"field": target, "max_doc_count": rare},
			},
			"significant_terms": map[string]any{
				"significant_terms": map[string]any{"field": target, "size": opts.Size},
			},
			"unique_count": map[string]any{
				"cardinality": map[string]any{"field": target},
			},
			"sample_docs": map[string]any{
				"top_hits": map[string]any{"size": sampleDocumentCount},
			},
		},
	}
}

type bucket struct {
	Key         any    `json:"key"`
	KeyAsString string `json:"key_as_string"`
}

type bucketAggregation struct {
	Buckets []bucket `json:"buckets"`
}

type sampleResponse struct {
	Aggregations struct {
		FrequentTerms    bucketAggregation `json:"frequent_terms"`
		RareTerms        bucketAggregation `json:"rare_terms"`
		SignificantTerms bucketAggregation `json:"significant_terms"`
		UniqueCount      struct {
			Value int64 `json:"value"`
		} `json:"unique_count"`
		SampleDocs struct {
			Hits struct {
				Hits []json.RawMessage `json:"hits"`
			} `json:"hits"`
		} `json:"sample_docs"`
	} `json:"aggregations"`
}

// SampleField issues a single search bundling five aggregations on the
// resolved target of field.
func (c *Client) SampleField(ctx context.Context, index, field, dataType string, opts SampleOptions) (*SampleBundle, error) {
	target := AggregationTarget(field, dataType)
	body, err := json.Marshal(buildSampleQuery(target, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to encode sample query for %s.%s: %w", index, field, err)
	}

	start := time.Now()
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, &apperrors.TransportError{Service: serviceName, Msg: fmt.Sprintf("sample %s.%s", index, field), Err: err}
	}

	var resp sampleResponse
	if err := decodeResponse(res, index, field, "sample query", &resp); err != nil {
		return nil, err
	}

	aggs := resp.Aggregations
	bundle := &SampleBundle{
		Frequent:        bucketKeys(aggs.FrequentTerms.Buckets),
		Rare:            bucketKeys(aggs.RareTerms.Buckets),
		Significant:     bucketKeys(aggs.SignificantTerms.Buckets),
		UniqueCount:     aggs.UniqueCount.Value,
		SampleDocuments: aggs.SampleDocs.Hits.Hits,
	}

	c.logger.Debug("Sampled field",
		zap.String("index", index),
		zap.String("field", field),
		zap.String("target", target),
		zap.Int("frequent", len(bundle.Frequent)),
		zap.Int("rare", len(bundle.Rare)),
		zap.Int("significant", len(bundle.Significant)),
		zap.Int64("unique_count", bundle.UniqueCount),
		zap.Duration("elapsed", time.Since(start)))
	return bundle, nil
}

func bucketKeys(buckets []bucket) []string {
	keys := make([]string, 0, len(buckets))
	for _, b := range buckets {
		keys = append(keys, renderKey(b))
	}
	return keys
}

// renderKey prefers key_as_string (dates, booleans) and keeps numbers in
// the form the engine sent them.
func renderKey(b bucket) string {
	if b.KeyAsString != "" {
		return b.KeyAsString
	}
	switch k := b.Key.(type) {
	case nil:
		return ""
	case string:
		return k
	case json.Number:
		return formatNumber(k)
	case bool:
		if k {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(k)
	}
}

// formatNumber drops a redundant ".0" so integral doubles read like integers.
func formatNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return fmt.Sprintf("%d", i)
	}
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return n.String()
}
