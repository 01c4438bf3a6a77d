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
package enricher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/apperrors"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/catalog"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/genai"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/search"
)

const defaultWorkers = 10

// Service builds metadata dictionaries. The search and LLM clients are
// shared by every worker and must be safe for concurrent use.
type Service struct {
	searchClient search.ESAdapter
	llmClient    genai.LLMClient
	cfg          Config
	logger       *zap.Logger
}

// NewService creates a Service. Zero values in cfg fall back to defaults.
func NewService(searchClient search.ESAdapter, llm genai.LLMClient, cfg Config, logger *zap.Logger) *Service {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Service{
		searchClient: searchClient,
		llmClient:    llm,
		cfg:          cfg,
		logger:       logger.Named("enricher"),
	}
}

// VerifyConnections checks that the cluster answers and the LLM key works,
// retrying transport failures.
func (s *Service) VerifyConnections(ctx context.Context) error {
	if _, err := withRetry(ctx, s.logger, DefaultRetryOptions, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.searchClient.Ping(ctx)
	}); err != nil {
		return fmt.Errorf("elasticsearch is not reachable: %w", err)
	}
	if _, err := withRetry(ctx, s.logger, DefaultRetryOptions, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.llmClient.IsAPIKeyValid(ctx)
	}); err != nil {
		return fmt.Errorf("LLM API key validation failed: %w", err)
	}
	return nil
}

// GenerateDictionary describes every field of every selected index. Indices
// are processed one at a time; the fields of one index fan out over the
// worker pool. Unit failures are collected in the result and never stop
// the run.
func (s *Service) GenerateDictionary(ctx context.Context, params GenerateParams) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{RunID: uuid.NewString()}
	logger := s.logger.With(zap.String("run_id", result.RunID))
	logger.Info("Starting metadata dictionary generation",
		zap.Int("workers", s.cfg.Workers),
		zap.Int("threshold", s.cfg.Threshold))

	indices, err := s.searchClient.ListIndices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indices: %w", err)
	}

	filtered := filterIndices(indices, params.IndexFilters)
	if len(filtered) == 0 {
		logger.Info("No indices match the provided filters (--indices)")
		result.Elapsed = time.Since(start)
		return result, nil
	}
	result.Indices = filtered

	for i, index := range filtered {
		if ctx.Err() != nil {
			result.Elapsed = time.Since(start)
			return result, &apperrors.ErrCancelled{Msg: fmt.Sprintf("run stopped before index %s", index), Err: ctx.Err()}
		}
		logger.Info("Processing index",
			zap.String("index", index),
			zap.Int("position", i+1),
			zap.Int("total", len(filtered)))

		indexResult, err := s.ProcessIndex(ctx, index, params)
		if err != nil {
			logger.Error("Failed to process index", zap.String("index", index), zap.Error(err))
			result.Failures = append(result.Failures, FieldFailure{Index: index, Err: err})
			continue
		}
		result.Entries = append(result.Entries, indexResult.Entries...)
		result.Failures = append(result.Failures, indexResult.Failures...)
	}

	result.Elapsed = time.Since(start)
	if ctx.Err() != nil {
		return result, &apperrors.ErrCancelled{Msg: "run interrupted", Err: ctx.Err()}
	}
	logger.Info("Metadata dictionary generation finished",
		zap.Int("indices", len(filtered)),
		zap.Int("entries", len(result.Entries)),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

type unitResult struct {
	entry   *catalog.FieldMetadata
	failure *FieldFailure
}

// ProcessIndex describes the fields of one index over a bounded pool and
// waits for all of them. Entries are in completion order.
func (s *Service) ProcessIndex(ctx context.Context, index string, params GenerateParams) (*IndexResult, error) {
	fields, err := s.searchClient.ListFields(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields of %s: %w", index, err)
	}
	fields = filterFields(index, fields, params.IndexFilters)

	result := &IndexResult{Index: index, Fields: len(fields)}
	if len(fields) == 0 {
		s.logger.Info("No fields to describe", zap.String("index", index))
		return result, nil
	}

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	results := make(chan unitResult, len(fields))
	var wg sync.WaitGroup
	var completed int64
	total := len(fields)

	for _, fd := range fields {
		fd := fd
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			sent := false
			defer func() {
				if r := recover(); r != nil && !sent {
					s.logger.Error("Field worker panicked",
						zap.String("index", index),
						zap.String("field", fd.FieldName),
						zap.Any("panic", r))
					results <- unitResult{failure: &FieldFailure{Index: index, Field: fd.FieldName, Err: fmt.Errorf("panic: %v", r)}}
				}
			}()
			res := s.processField(ctx, index, fd)
			results <- res
			sent = true
			done := atomic.AddInt64(&completed, 1)
			s.logger.Info("Field processed",
				zap.String("index", index),
				zap.String("field", fd.FieldName),
				zap.Bool("ok", res.failure == nil),
				zap.String("progress", fmt.Sprintf("%d/%d", done, total)))
		})
		if submitErr != nil {
			wg.Done()
			results <- unitResult{failure: &FieldFailure{Index: index, Field: fd.FieldName, Err: fmt.Errorf("failed to schedule field: %w", submitErr)}}
		}
	}

	wg.Wait()
	close(results)

	for res := range results {
		if res.failure != nil {
			result.Failures = append(result.Failures, *res.failure)
			continue
		}
		result.Entries = append(result.Entries, *res.entry)
	}
	return result, nil
}

// processField runs one unit: sample, merge, describe.
func (s *Service) processField(ctx context.Context, index string, fd search.FieldDescriptor) unitResult {
	fail := func(err error) unitResult {
		s.logger.Warn("Failed to describe field",
			zap.String("index", index),
			zap.String("field", fd.FieldName),
			zap.Error(err))
		return unitResult{failure: &FieldFailure{Index: index, Field: fd.FieldName, Err: err}}
	}

	if ctx.Err() != nil {
		return fail(&apperrors.ErrCancelled{Msg: "field not started", Err: ctx.Err()})
	}

	bundle, err := s.searchClient.SampleField(ctx, index, fd.FieldName, fd.DataType, search.SampleOptions{
		Size:            s.termsSize(),
		RareMaxDocCount: s.cfg.RareMaxDocCount,
	})
	if err != nil {
		return fail(err)
	}
	if bundle == nil {
		return fail(fmt.Errorf("no samples returned for %s.%s", index, fd.FieldName))
	}

	entry, err := s.DescribeField(ctx, index, fd.FieldName, fd.DataType, bundle.Values())
	if err != nil {
		return fail(err)
	}
	return unitResult{entry: &entry}
}

func (s *Service) termsSize() int {
	if s.cfg.TermsSize > 0 {
		return s.cfg.TermsSize
	}
	return s.cfg.Threshold
}

func filterIndices(allIndices []string, indexFilters map[string][]string) []string {
	if len(indexFilters) == 0 {
		return allIndices
	}
	filtered := make([]string, 0, len(indexFilters))
	for _, index := range allIndices {
		if _, ok := indexFilters[index]; ok {
			filtered = append(filtered, index)
		}
	}
	sort.Strings(filtered)
	return filtered
}

func filterFields(index string, allFields []search.FieldDescriptor, indexFilters map[string][]string) []search.FieldDescriptor {
	if len(indexFilters) == 0 {
		return allFields
	}
	specificFieldFilters, indexIncluded := indexFilters[index]
	if !indexIncluded || len(specificFieldFilters) == 0 {
		return allFields
	}
	allowed := make(map[string]bool, len(specificFieldFilters))
	for _, name := range specificFieldFilters {
		allowed[name] = true
	}
	filtered := make([]search.FieldDescriptor, 0, len(specificFieldFilters))
	for _, fd := range allFields {
		if allowed[fd.FieldName] {
			filtered = append(filtered, fd)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].FieldName < filtered[j].FieldName
	})
	return filtered
}
