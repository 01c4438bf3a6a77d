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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/apperrors"
)

func TestPrepareSamples(t *testing.T) {
	tests := []struct {
		name      string
		samples   []string
		threshold int
		want      []string
	}{
		{"dedupe keeps first seen order", []string{"b", "a", "b", "c", "a"}, 20, []string{"b", "a", "c"}},
		{"drops empty values", []string{"", "a", "", "b"}, 20, []string{"a", "b"}},
		{"truncates to threshold", []string{"1", "2", "3", "4", "5"}, 3, []string{"1", "2", "3"}},
		{"dedupe before truncation", []string{"x", "x", "x", "y", "z"}, 2, []string{"x", "y"}},
		{"zero threshold uses default", manyValues(30), 0, manyValues(20)},
		{"nil input", nil, 5, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PrepareSamples(tt.samples, tt.threshold)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrepareSamplesInvariant(t *testing.T) {
	var raw []string
	for i := 0; i < 200; i++ {
		raw = append(raw, fmt.Sprintf("v%d", i%37))
	}
	for _, threshold := range []int{1, 5, 20, 50} {
		got := PrepareSamples(raw, threshold)
		assert.LessOrEqual(t, len(got), threshold)
		seen := make(map[string]bool)
		for _, v := range got {
			assert.False(t, seen[v], "duplicate %q with threshold %d", v, threshold)
			seen[v] = true
		}
	}
}

func manyValues(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("value-%02d", i)
	}
	return out
}

func newDescribeService(t *testing.T, llm *mockLLM, cfg Config) *Service {
	t.Helper()
	return NewService(newFakeSearch(), llm, cfg, zaptest.NewLogger(t))
}

func TestDescribeFieldParsesResponse(t *testing.T) {
	llm := &mockLLM{}
	llm.On("GenerateText", mock.Anything, systemPrompt, mock.Anything).Return(func(string) string {
		return `  {"field_name": "gender", "index_name": "other", "data_type": "text",
			"natural_language_description": "Employee gender.", "sample_value": "Male"}  `
	}, nil)

	svc := newDescribeService(t, llm, Config{})
	entry, err := svc.DescribeField(context.Background(), "employee_data", "GenderCode", "keyword", []string{"Male", "Female"})
	require.NoError(t, err)

	assert.Equal(t, "GenderCode", entry.FieldName, "echoed identity fields are replaced")
	assert.Equal(t, "employee_data", entry.IndexName)
	assert.Equal(t, "keyword", entry.DataType)
	assert.Equal(t, "Employee gender.", entry.NaturalLanguageDescription)
	assert.Equal(t, "Male", entry.SampleValue)
	llm.AssertExpectations(t)
}

func TestDescribeFieldPrompt(t *testing.T) {
	llm := &mockLLM{}
	var prompt string
	llm.On("GenerateText", mock.Anything, systemPrompt, mock.Anything).
		Run(func(args mock.Arguments) { prompt = args.String(2) }).
		Return(echoModel, nil)

	svc := newDescribeService(t, llm, Config{Threshold: 2, AdditionalContext: "GenderCode follows HR policy 12."})
	_, err := svc.DescribeField(context.Background(), "employee_data", "GenderCode", "keyword", []string{"Male", "Male", "Female", "Other"})
	require.NoError(t, err)

	assert.Contains(t, prompt, "- Index Name: employee_data")
	assert.Contains(t, prompt, "- Field Name: GenderCode")
	assert.Contains(t, prompt, "- Data Type: keyword")
	assert.Contains(t, prompt, "- Sample Values: Male, Female\n", "samples are deduplicated and truncated before prompting")
	assert.NotContains(t, prompt, "Other")
	for _, key := range requiredKeys {
		assert.Contains(t, prompt, `"`+key+`"`)
	}
	assert.Contains(t, prompt, "GenderCode follows HR policy 12.")
}

func TestDescribeFieldFallback(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		samples    []string
		wantSample string
	}{
		{"no braces", "This field holds the gender of the employee.", []string{"", "Male", "Female", "Male"}, "Male"},
		{"no braces no samples", "No idea.", nil, ""},
		{"broken json", `{"field_name": "GenderCode", "natural_language_description": }`, []string{"F"}, "F"},
		{"missing keys", `{"natural_language_description": "Gender."}`, []string{"M"}, "M"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &mockLLM{}
			llm.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return(tt.response+"\n\n", nil)

			svc := newDescribeService(t, llm, Config{})
			entry, err := svc.DescribeField(context.Background(), "employee_data", "GenderCode", "keyword", tt.samples)
			require.NoError(t, err, "format errors never surface")

			assert.Equal(t, "GenderCode", entry.FieldName)
			assert.Equal(t, "employee_data", entry.IndexName)
			assert.Equal(t, "keyword", entry.DataType)
			assert.Equal(t, strings.TrimSpace(tt.response), entry.NaturalLanguageDescription)
			assert.Equal(t, tt.wantSample, entry.SampleValue)
		})
	}
}

func TestDescribeFieldTransportError(t *testing.T) {
	llm := &mockLLM{}
	llm.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
		Return("", &apperrors.TransportError{Service: "llm", StatusCode: 503, Msg: "overloaded"})

	svc := newDescribeService(t, llm, Config{})
	_, err := svc.DescribeField(context.Background(), "employee_data", "GenderCode", "keyword", []string{"M"})
	require.Error(t, err)
	assert.True(t, apperrors.IsTransportError(err))
	assert.Contains(t, err.Error(), "employee_data.GenderCode")
}
