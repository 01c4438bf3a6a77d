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
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/database"
	_ "github.com/GoogleCloudPlatform/es-context-enrichment/internal/database/postgres"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	handler, err := database.GetDialectHandler("postgres")
	require.NoError(t, err)

	store, err := NewSQLStore(&database.DB{Pool: mockDB, Handler: handler}, "metadata_dictionary", zaptest.NewLogger(t))
	require.NoError(t, err)
	store.RunID = "run-1"
	return store, mock
}

func TestNewSQLStoreValidation(t *testing.T) {
	_, err := NewSQLStore(nil, "t", zaptest.NewLogger(t))
	assert.Error(t, err)

	handler, err := database.GetDialectHandler("postgres")
	require.NoError(t, err)
	_, err = NewSQLStore(&database.DB{Handler: handler}, "", zaptest.NewLogger(t))
	assert.EqualError(t, err, "catalog table name is required")
}

func TestSQLStoreSaveReplacesRows(t *testing.T) {
	store, mock := newMockStore(t)

	entries := []FieldMetadata{
		{IndexName: "employees", FieldName: "GenderCode", DataType: "text", NaturalLanguageDescription: "Gender code", SampleValue: "F, M"},
		{IndexName: "employees", FieldName: "Age", DataType: "long", NaturalLanguageDescription: "Age in years", SampleValue: "42"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "metadata_dictionary"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	insert := regexp.QuoteMeta(`INSERT INTO "metadata_dictionary" ("run_id", "index_name", "field_name", "data_type", "natural_language_description", "sample_value") VALUES ($1, $2, $3, $4, $5, $6)`)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "metadata_dictionary"`)).WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec(insert).WithArgs("run-1", "employees", "GenderCode", "text", "Gender code", "F, M").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs("run-1", "employees", "Age", "long", "Age in years", "42").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), entries))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreSaveFailureKeepsPreviousRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO`).WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := store.Save(context.Background(), []FieldMetadata{{IndexName: "i", FieldName: "f"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save metadata dictionary to metadata_dictionary")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreSaveTableCreationFails(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE`).WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := store.Save(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create catalog table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreLoad(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"index_name", "field_name", "data_type", "natural_language_description", "sample_value"}).
		AddRow("employees", "Age", "long", "Age in years", "42").
		AddRow("employees", "GenderCode", "text", "Gender code", "F, M")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "index_name", "field_name", "data_type", "natural_language_description", "sample_value" FROM "metadata_dictionary" ORDER BY "index_name", "field_name"`)).
		WillReturnRows(rows)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []FieldMetadata{
		{IndexName: "employees", FieldName: "Age", DataType: "long", NaturalLanguageDescription: "Age in years", SampleValue: "42"},
		{IndexName: "employees", FieldName: "GenderCode", DataType: "text", NaturalLanguageDescription: "Gender code", SampleValue: "F, M"},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreLoadQueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("relation does not exist"))

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query catalog table metadata_dictionary")
}
