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
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/database"
)

var catalogColumns = []string{
	"run_id",
	"index_name",
	"field_name",
	"data_type",
	"natural_language_description",
	"sample_value",
}

// SQLStore keeps the dictionary in a relational table. Each Save replaces
// the table contents in one transaction and tags every row with RunID.
type SQLStore struct {
	db     *database.DB
	table  string
	RunID  string
	logger *zap.Logger
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore returns a store writing to table through db.
func NewSQLStore(db *database.DB, table string, logger *zap.Logger) (*SQLStore, error) {
	if db == nil || db.Handler == nil {
		return nil, fmt.Errorf("database is not initialized")
	}
	if table == "" {
		return nil, fmt.Errorf("catalog table name is required")
	}
	return &SQLStore{
		db:     db,
		table:  table,
		logger: logger.Named("catalog"),
	}, nil
}

// EnsureTable creates the dictionary table when it does not exist.
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	stmt := database.Statement{Query: s.db.Handler.CreateCatalogTableSQL(s.table)}
	if err := s.db.ExecuteStatements(ctx, []database.Statement{stmt}); err != nil {
		return fmt.Errorf("failed to create catalog table %s: %w", s.table, err)
	}
	return nil
}

// Save replaces every stored row with entries.
func (s *SQLStore) Save(ctx context.Context, entries []FieldMetadata) error {
	if err := s.EnsureTable(ctx); err != nil {
		return err
	}

	stmts := make([]database.Statement, 0, len(entries)+1)
	stmts = append(stmts, database.DeleteAllStatement(s.db.Handler, s.table))
	for _, e := range entries {
		stmts = append(stmts, database.InsertStatement(s.db.Handler, s.table, catalogColumns, []any{
			s.RunID,
			e.IndexName,
			e.FieldName,
			e.DataType,
			e.NaturalLanguageDescription,
			e.SampleValue,
		}))
	}

	if err := s.db.ExecuteStatements(ctx, stmts); err != nil {
		return fmt.Errorf("failed to save metadata dictionary to %s: %w", s.table, err)
	}
	s.logger.Info("Saved metadata dictionary",
		zap.String("table", s.table),
		zap.String("run_id", s.RunID),
		zap.Int("entries", len(entries)))
	return nil
}

// Load returns the stored rows ordered by index and field.
func (s *SQLStore) Load(ctx context.Context) ([]FieldMetadata, error) {
	query := database.SelectStatement(s.db.Handler, s.table, catalogColumns[1:], "index_name", "field_name")
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog table %s: %w", s.table, err)
	}
	defer rows.Close()

	entries := []FieldMetadata{}
	for rows.Next() {
		var e FieldMetadata
		if err := rows.Scan(&e.IndexName, &e.FieldName, &e.DataType, &e.NaturalLanguageDescription, &e.SampleValue); err != nil {
			return nil, fmt.Errorf("error scanning catalog row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog rows: %w", err)
	}
	return entries, nil
}
