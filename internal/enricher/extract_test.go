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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/apperrors"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/catalog"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{
			name: "bare object",
			text: `{"a": "b"}`,
			want: `{"a": "b"}`,
		},
		{
			name: "prose around object",
			text: "**Generating Metadata Dictionary in desired format:**\njson\n{\"a\": 1}\nHope this helps!",
			want: `{"a": 1}`,
		},
		{
			name: "nested objects",
			text: `x {"a": {"b": {"c": 1}}, "d": 2} y`,
			want: `{"a": {"b": {"c": 1}}, "d": 2}`,
		},
		{
			name: "braces inside strings",
			text: `{"description": "uses {curly} braces and \"quotes\" }", "n": 1} trailing }`,
			want: `{"description": "uses {curly} braces and \"quotes\" }", "n": 1}`,
		},
		{
			name: "second object ignored",
			text: `{"first": 1} and {"second": 2}`,
			want: `{"first": 1}`,
		},
		{
			name: "stray closing brace after object",
			text: `{"a": {"b": 1} }}`,
			want: `{"a": {"b": 1} }`,
		},
		{
			name: "never balanced uses last brace",
			text: `{"a": {"b": 1}`,
			want: `{"a": {"b": 1}`,
		},
		{
			name:    "no braces",
			text:    "The field stores the employee gender.",
			wantErr: true,
		},
		{
			name:    "open brace only",
			text:    "oops { nothing closes",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsGenerationFormatError(err))
				assert.Contains(t, err.Error(), "no JSON object found")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFieldMetadataRoundTrip(t *testing.T) {
	entries := []catalog.FieldMetadata{
		{
			FieldName:                  "GenderCode",
			IndexName:                  "employee_data",
			DataType:                   "keyword",
			NaturalLanguageDescription: "Gender of the employee, {M|F} coded.",
			SampleValue:                "Male, Female",
		},
		{
			FieldName:                  "Notes",
			IndexName:                  "employee_data",
			DataType:                   "text",
			NaturalLanguageDescription: `Free text with "quotes", back\slashes and a } brace.`,
		},
	}
	for _, want := range entries {
		data, err := json.MarshalIndent(want, "", "    ")
		require.NoError(t, err)

		got, err := ParseFieldMetadata("Sure:\n" + string(data) + "\nDone.")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseFieldMetadataRendersNonStrings(t *testing.T) {
	text := `{
		"field_name": "EmpID",
		"index_name": "employee_data",
		"data_type": "long",
		"natural_language_description": "Unique employee number.",
		"sample_value": 3427
	}`
	got, err := ParseFieldMetadata(text)
	require.NoError(t, err)
	assert.Equal(t, "3427", got.SampleValue)

	text = `{"field_name": "Active", "index_name": "i", "data_type": "boolean",
		"natural_language_description": "Flag.", "sample_value": ["true", false, 1.5]}`
	got, err = ParseFieldMetadata(text)
	require.NoError(t, err)
	assert.Equal(t, "true, false, 1.5", got.SampleValue)

	text = `{"field_name": "x", "index_name": "i", "data_type": "keyword",
		"natural_language_description": null, "sample_value": ""}`
	got, err = ParseFieldMetadata(text)
	require.NoError(t, err)
	assert.Equal(t, "", got.NaturalLanguageDescription)
}

func TestParseFieldMetadataErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantMsg string
	}{
		{"no object", "I cannot help with that.", "no JSON object found"},
		{"invalid json", `{"field_name": "a", "index_name": }`, "error parsing JSON"},
		{"missing keys", `{"field_name": "a", "natural_language_description": "d"}`, "missing required keys: data_type, index_name, sample_value"},
		{"wrong shape", `{"field_name": "a"`, "no JSON object found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFieldMetadata(tt.text)
			require.Error(t, err)
			assert.True(t, apperrors.IsGenerationFormatError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
