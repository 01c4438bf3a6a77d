package mysql

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/config"
	"github.com/GoogleCloudPlatform/es-context-enrichment/internal/database"
)

func TestMySQLQuoteIdentifier(t *testing.T) {
	handler := mysqlHandler{}
	tests := []struct {
		in   string
		want string
	}{
		{"metadata_dictionary", "`metadata_dictionary`"},
		{"my`table", "`my``table`"},
		{"", "``"},
	}
	for _, tt := range tests {
		if got := handler.QuoteIdentifier(tt.in); got != tt.want {
			t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMySQLPlaceholder(t *testing.T) {
	handler := mysqlHandler{}
	if got := handler.Placeholder(3); got != "?" {
		t.Errorf("Placeholder(3) = %q, want ?", got)
	}
}

func TestMySQLCreateCatalogTableSQL(t *testing.T) {
	got := mysqlHandler{}.CreateCatalogTableSQL("metadata_dictionary")
	if !strings.HasPrefix(got, "CREATE TABLE IF NOT EXISTS `metadata_dictionary` (") {
		t.Errorf("CreateCatalogTableSQL() = %q", got)
	}
	if !strings.Contains(got, "natural_language_description TEXT NOT NULL") {
		t.Errorf("CreateCatalogTableSQL() missing description column: %q", got)
	}
}

func TestMySQLSaveRows(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	handler := mysqlHandler{}
	db := &database.DB{Pool: mockDB, Handler: handler, Config: config.DatabaseConfig{Dialect: "mysql"}}
	defer db.Close()

	columns := []string{"index_name", "field_name", "sample_value"}
	stmts := []database.Statement{
		database.DeleteAllStatement(handler, "dict"),
		database.InsertStatement(handler, "dict", columns, []any{"employees", "Age", "42"}),
		database.InsertStatement(handler, "dict", columns, []any{"employees", "Name", "Ann"}),
	}

	insert := regexp.QuoteMeta("INSERT INTO `dict` (`index_name`, `field_name`, `sample_value`) VALUES (?, ?, ?)")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `dict`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insert).WithArgs("employees", "Age", "42").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs("employees", "Name", "Ann").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	if err := db.ExecuteStatements(context.Background(), stmts); err != nil {
		t.Fatalf("ExecuteStatements() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestMySQLCloudSQLPoolMissingParams(t *testing.T) {
	_, err := mysqlHandler{}.CreateCloudSQLPool(config.DatabaseConfig{Dialect: "cloudsqlmysql", User: "u"})
	if err == nil || !strings.Contains(err.Error(), "missing required CloudSQL connection parameter") {
		t.Errorf("CreateCloudSQLPool() error = %v, want missing parameter error", err)
	}
}
