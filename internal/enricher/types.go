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
	"time"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/catalog"
)

// Config controls sampling and fan-out for a Service.
type Config struct {
	Threshold         int // max samples passed to the prompt
	TermsSize         int // bucket size for frequent/significant terms; 0 means Threshold
	RareMaxDocCount   int
	Workers           int
	AdditionalContext string
}

// GenerateParams narrows a run to some indices and fields.
type GenerateParams struct {
	// IndexFilters maps index name to the fields to describe. An empty map
	// means every index; an empty field list means every field of that index.
	IndexFilters map[string][]string
}

// FieldFailure records a unit of work that produced no entry. Field is
// empty when the whole index could not be read.
type FieldFailure struct {
	Index string
	Field string
	Err   error
}

// IndexResult is the outcome of describing the fields of one index.
type IndexResult struct {
	Index    string
	Fields   int
	Entries  []catalog.FieldMetadata
	Failures []FieldFailure
}

// RunResult is the outcome of a full dictionary generation run.
type RunResult struct {
	RunID    string
	Indices  []string
	Entries  []catalog.FieldMetadata
	Failures []FieldFailure
	Elapsed  time.Duration
}

// HasFailures reports whether any unit failed.
func (r *RunResult) HasFailures() bool {
	return len(r.Failures) > 0
}
