package postgres

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/config"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/database"
)

// Helper to create a mock DB and handler for testing
func newMockPostgresDB(t *testing.T) (*database.DB, sqlmock.Sqlmock, *postgresHandler) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	handler := postgresHandler{}
	db := &database.DB{
		Pool:    mockDb,
		Handler: &handler,
		Config:  config.DatabaseConfig{Dialect: "postgres"},
	}
	return db, mock, &handler
}

func TestPostgresQuoteIdentifier(t *testing.T) {
	handler := postgresHandler{}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Simple name", "mytable", `"mytable"`},
		{"Name with spaces", "my table", `"my table"`},
		{"Name with quotes", `my"table`, `"my""table"`},
		{"Empty name", "", `""`},
		{"Keyword", "user", `"user"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.QuoteIdentifier(tt.in); got != tt.want {
				t.Errorf("QuoteIdentifier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostgresPlaceholder(t *testing.T) {
	handler := postgresHandler{}
	for n, want := range map[int]string{1: "$1", 2: "$2", 10: "$10"} {
		if got := handler.Placeholder(n); got != want {
			t.Errorf("Placeholder(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestPostgresCreateCatalogTableSQL(t *testing.T) {
	handler := postgresHandler{}
	got := handler.CreateCatalogTableSQL("metadata_dictionary")

	if !strings.HasPrefix(got, `CREATE TABLE IF NOT EXISTS "metadata_dictionary" (`) {
		t.Errorf("CreateCatalogTableSQL() = %q, want CREATE TABLE IF NOT EXISTS prefix", got)
	}
	for _, col := range []string{"run_id", "index_name", "field_name", "data_type", "natural_language_description", "sample_value"} {
		if !strings.Contains(got, col+" ") {
			t.Errorf("CreateCatalogTableSQL() missing column %s", col)
		}
	}
}

func TestPostgresInsertStatement(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()

	stmt := database.InsertStatement(handler, "metadata_dictionary",
		[]string{"index_name", "field_name"}, []any{"employees", "GenderCode"})

	wantQuery := `INSERT INTO "metadata_dictionary" ("index_name", "field_name") VALUES ($1, $2)`
	if stmt.Query != wantQuery {
		t.Fatalf("InsertStatement() query = %q, want %q", stmt.Query, wantQuery)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(wantQuery)).
		WithArgs("employees", "GenderCode").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := db.ExecuteStatements(context.Background(), []database.Statement{stmt}); err != nil {
		t.Fatalf("ExecuteStatements() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresExecuteStatementsRollback(t *testing.T) {
	db, mock, handler := newMockPostgresDB(t)
	defer db.Close()

	stmts := []database.Statement{
		database.DeleteAllStatement(handler, "metadata_dictionary"),
		database.InsertStatement(handler, "metadata_dictionary", []string{"field_name"}, []any{"Age"}),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "metadata_dictionary"`)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "metadata_dictionary"`)).
		WithArgs("Age").
		WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	err := db.ExecuteStatements(context.Background(), stmts)
	if err == nil || !strings.Contains(err.Error(), "failed executing statement #2") {
		t.Fatalf("ExecuteStatements() error = %v, want statement #2 failure", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresRegistered(t *testing.T) {
	for _, dialect := range []string{"postgres", "cloudsqlpostgres"} {
		h, err := database.GetDialectHandler(dialect)
		if err != nil {
			t.Fatalf("GetDialectHandler(%q) error = %v", dialect, err)
		}
		if _, ok := h.(postgresHandler); !ok {
			t.Errorf("GetDialectHandler(%q) = %T, want postgresHandler", dialect, h)
		}
	}
}
