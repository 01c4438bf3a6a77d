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
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/apperrors"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/catalog"
)

const defaultThreshold = 20

const systemPrompt = "You are a highly knowledgeable metadata dictionary agent. " +
	"Your mission is to help Elasticsearch admins understand their data by providing clear, " +
	"concise natural language descriptions for each field, suitable for a data catalog."

const userPromptTemplate = `Analyze the field based on the input below:
- Index Name: %[1]s
- Field Name: %[2]s
- Data Type: %[3]s
- Sample Values: %[4]s

Generate a description that explains the field's purpose.
Return the output strictly as a single JSON object in the following format, with no additional text before or after it:

{
  "field_name": "%[2]s",
  "index_name": "%[1]s",
  "data_type": "%[3]s",
  "natural_language_description": "<your description>",
  "sample_value": "%[4]s"
}
`

const knowledgeContextTemplate = `
Use the following knowledge context if it says anything about this field:

********** Knowledge Context **********
%s
********** End Knowledge Context **********
`

// PrepareSamples removes empty and duplicate values, keeping first-seen
// order, and truncates the result to threshold entries.
func PrepareSamples(samples []string, threshold int) []string {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	seen := make(map[string]bool, len(samples))
	prepared := make([]string, 0, threshold)
	for _, s := range samples {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		prepared = append(prepared, s)
		if len(prepared) == threshold {
			break
		}
	}
	return prepared
}

func buildUserPrompt(index, field, dataType string, samples []string, knowledgeContext string) string {
	prompt := fmt.Sprintf(userPromptTemplate, index, field, dataType, strings.Join(samples, ", "))
	if strings.TrimSpace(knowledgeContext) != "" {
		prompt += fmt.Sprintf(knowledgeContextTemplate, knowledgeContext)
	}
	return prompt
}

// DescribeField asks the model to describe one field. Malformed responses
// fall back to an entry carrying the raw response as its description;
// transport failures are returned.
func (s *Service) DescribeField(ctx context.Context, index, field, dataType string, samples []string) (catalog.FieldMetadata, error) {
	prepared := PrepareSamples(samples, s.cfg.Threshold)
	user := buildUserPrompt(index, field, dataType, prepared, s.cfg.AdditionalContext)

	start := time.Now()
	raw, err := s.llmClient.GenerateText(ctx, systemPrompt, user)
	if err != nil {
		return catalog.FieldMetadata{}, fmt.Errorf("describe %s.%s: %w", index, field, err)
	}
	raw = strings.TrimSpace(raw)

	logger := s.logger.With(zap.String("index", index), zap.String("field", field))
	entry, err := ParseFieldMetadata(raw)
	if err != nil {
		if !apperrors.IsGenerationFormatError(err) {
			return catalog.FieldMetadata{}, err
		}
		logger.Warn("Model response is not a usable JSON object, using raw text as description", zap.Error(err))
		return fallbackEntry(index, field, dataType, raw, prepared), nil
	}

	if entry.FieldName != field || entry.IndexName != index || entry.DataType != dataType {
		logger.Debug("Model echoed different identity fields, keeping the known values",
			zap.String("echoed_field", entry.FieldName),
			zap.String("echoed_index", entry.IndexName),
			zap.String("echoed_type", entry.DataType))
	}
	entry.FieldName = field
	entry.IndexName = index
	entry.DataType = dataType

	logger.Debug("Described field", zap.Duration("elapsed", time.Since(start)))
	return entry, nil
}

func fallbackEntry(index, field, dataType, raw string, samples []string) catalog.FieldMetadata {
	sample := ""
	if len(samples) > 0 {
		sample = samples[0]
	}
	return catalog.FieldMetadata{
		FieldName:                  field,
		IndexName:                  index,
		DataType:                   dataType,
		NaturalLanguageDescription: raw,
		SampleValue:                sample,
	}
}
