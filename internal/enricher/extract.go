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
	"fmt"
	"sort"
	"strings"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/apperrors"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/catalog"
)

var requiredKeys = []string{
	"field_name",
	"index_name",
	"data_type",
	"natural_language_description",
	"sample_value",
}

// ExtractJSONObject returns the first JSON object embedded in text. The
// span starts at the first '{' and ends at its balancing '}', ignoring
// braces inside strings. When the braces never balance the span falls back
// to the last '}' in text.
func ExtractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", &apperrors.GenerationFormatError{Msg: "no JSON object found", Raw: text}
	}
	if span, ok := extractBalancedJSON(text[start:]); ok {
		return span, nil
	}
	end := strings.LastIndexByte(text, '}')
	if end <= start {
		return "", &apperrors.GenerationFormatError{Msg: "no JSON object found", Raw: text}
	}
	return text[start : end+1], nil
}

// extractBalancedJSON scans s, which starts with '{', for the matching '}'.
func extractBalancedJSON(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// ParseFieldMetadata extracts, decodes and validates the object in text.
// Every required key must be present; values that are not strings are
// rendered to strings.
func ParseFieldMetadata(text string) (catalog.FieldMetadata, error) {
	span, err := ExtractJSONObject(text)
	if err != nil {
		return catalog.FieldMetadata{}, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return catalog.FieldMetadata{}, &apperrors.GenerationFormatError{Msg: "error parsing JSON", Raw: text, Err: err}
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return catalog.FieldMetadata{}, &apperrors.GenerationFormatError{
			Msg: fmt.Sprintf("JSON object is missing required keys: %s", strings.Join(missing, ", ")),
			Raw: text,
		}
	}

	return catalog.FieldMetadata{
		FieldName:                  flexibleString(raw["field_name"]),
		IndexName:                  flexibleString(raw["index_name"]),
		DataType:                   flexibleString(raw["data_type"]),
		NaturalLanguageDescription: flexibleString(raw["natural_language_description"]),
		SampleValue:                flexibleString(raw["sample_value"]),
	}, nil
}

// flexibleString converts a raw JSON value to a string, handling models
// that answer with numbers, booleans or lists where a string was asked for.
func flexibleString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal json.Number
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return numVal.String()
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, flexibleString(item))
		}
		return strings.Join(parts, ", ")
	}

	return string(raw)
}
