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
package utils

import (
	"fmt"
	"os"
	"strings"
)

// ReadContextFiles reads the content of the specified context files and combines them into a single string.
func ReadContextFiles(filePaths string) (string, error) {
	if filePaths == "" {
		return "", nil
	}

	paths := strings.Split(filePaths, ",")
	var combinedContext strings.Builder
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read context file '%s': %w", path, err)
		}
		combinedContext.WriteString("\n-- Context from file: " + path + " --\n")
		combinedContext.WriteString(string(content))
	}
	return combinedContext.String(), nil
}

// ParseIndicesFlag parses "idx1[f1,f2],idx2" into index -> fields. An index
// without brackets maps to nil, meaning every field.
func ParseIndicesFlag(indicesFlag string) (map[string][]string, error) {
	indexFields := make(map[string][]string)
	if indicesFlag == "" {
		return indexFields, nil
	}

	indicesFlag = strings.ReplaceAll(indicesFlag, " ", "")

	for _, part := range SplitOutsideBrackets(indicesFlag) {
		if part == "" {
			continue
		}

		bracketStart := strings.Index(part, "[")
		if bracketStart == -1 {
			if strings.Contains(part, "]") {
				return nil, fmt.Errorf("unexpected closing bracket in: %s", part)
			}
			indexFields[part] = nil
			continue
		}

		bracketEnd := strings.Index(part, "]")
		if bracketEnd == -1 {
			return nil, fmt.Errorf("missing closing bracket in: %s", part)
		}
		if bracketEnd != len(part)-1 {
			return nil, fmt.Errorf("unexpected text after closing bracket in: %s", part)
		}

		indexName := part[:bracketStart]
		if indexName == "" {
			return nil, fmt.Errorf("missing index name in: %s", part)
		}

		var fields []string
		for _, f := range strings.Split(part[bracketStart+1:bracketEnd], ",") {
			if f != "" {
				fields = append(fields, f)
			}
		}
		indexFields[indexName] = append(indexFields[indexName], fields...)
	}

	return indexFields, nil
}

// SplitOutsideBrackets splits s on commas that are not within brackets.
func SplitOutsideBrackets(s string) []string {
	var result []string
	var current strings.Builder
	inBrackets := false

	for _, char := range s {
		switch char {
		case '[':
			inBrackets = true
			current.WriteRune(char)
		case ']':
			inBrackets = false
			current.WriteRune(char)
		case ',':
			if inBrackets {
				current.WriteRune(char)
			} else {
				result = append(result, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}
