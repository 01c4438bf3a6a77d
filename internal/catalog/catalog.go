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
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FieldMetadata is one entry of the metadata dictionary. The JSON keys are
// the contract with every consumer of the dictionary file.
type FieldMetadata struct {
	FieldName                  string `json:"field_name"`
	IndexName                  string `json:"index_name"`
	DataType                   string `json:"data_type"`
	NaturalLanguageDescription string `json:"natural_language_description"`
	SampleValue                string `json:"sample_value"`
}

// Store persists a complete dictionary snapshot. Save replaces whatever was
// stored before; there is no merge or append.
type Store interface {
	Save(ctx context.Context, entries []FieldMetadata) error
	Load(ctx context.Context) ([]FieldMetadata, error)
}

// FileStore keeps the dictionary as a JSON array in a single file.
type FileStore struct {
	Path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Save writes entries as an indented JSON array. The file is written to a
// temporary sibling first and renamed into place, so readers never observe
// a partial dictionary.
func (s *FileStore) Save(ctx context.Context, entries []FieldMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entries == nil {
		entries = []FieldMetadata{}
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata dictionary: %w", err)
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write metadata dictionary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("failed to move metadata dictionary into place at %s: %w", s.Path, err)
	}
	return nil
}

// Load reads the dictionary written by Save.
func (s *FileStore) Load(ctx context.Context) ([]FieldMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata dictionary %s: %w", s.Path, err)
	}
	var entries []FieldMetadata
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse metadata dictionary %s: %w", s.Path, err)
	}
	return entries, nil
}

// FilterByIndex keeps the entries of the given indices. Field lists narrow
// the result further; an empty list keeps every field of that index.
func FilterByIndex(entries []FieldMetadata, filters map[string][]string) []FieldMetadata {
	if len(filters) == 0 {
		return entries
	}
	filtered := make([]FieldMetadata, 0, len(entries))
	for _, e := range entries {
		fields, ok := filters[e.IndexName]
		if !ok {
			continue
		}
		if len(fields) > 0 && !contains(fields, e.FieldName) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Sort orders entries by index, then field.
func Sort(entries []FieldMetadata) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IndexName != entries[j].IndexName {
			return entries[i].IndexName < entries[j].IndexName
		}
		return entries[i].FieldName < entries[j].FieldName
	})
}

// FormatAsText renders sorted entries grouped by index.
func FormatAsText(entries []FieldMetadata) string {
	if len(entries) == 0 {
		return "No metadata found.\n"
	}
	var buffer bytes.Buffer
	lastIndex := ""
	for i, e := range entries {
		if i == 0 || e.IndexName != lastIndex {
			if i > 0 {
				buffer.WriteString("\n")
			}
			buffer.WriteString(fmt.Sprintf("--- Index: %s ---\n", e.IndexName))
			lastIndex = e.IndexName
		}
		buffer.WriteString(fmt.Sprintf("  Field: %s (%s)\n", e.FieldName, e.DataType))
		buffer.WriteString(fmt.Sprintf("  Description: %s\n", strings.TrimSpace(e.NaturalLanguageDescription)))
		if e.SampleValue != "" {
			buffer.WriteString(fmt.Sprintf("  Sample: %s\n", e.SampleValue))
		}
	}
	return buffer.String()
}
