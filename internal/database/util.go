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
package database

import (
	"fmt"
	"strings"
)

// InsertStatement builds a parameterised INSERT of one row.
func InsertStatement(h DialectHandler, table string, columns []string, values []any) Statement {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = h.QuoteIdentifier(c)
		marks[i] = h.Placeholder(i + 1)
	}
	return Statement{
		Query: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			h.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(marks, ", ")),
		Args: values,
	}
}

// DeleteAllStatement builds a statement removing every row of table.
func DeleteAllStatement(h DialectHandler, table string) Statement {
	return Statement{Query: fmt.Sprintf("DELETE FROM %s", h.QuoteIdentifier(table))}
}

// SelectStatement builds a SELECT of columns ordered by orderBy.
func SelectStatement(h DialectHandler, table string, columns []string, orderBy ...string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = h.QuoteIdentifier(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), h.QuoteIdentifier(table))
	if len(orderBy) > 0 {
		order := make([]string, len(orderBy))
		for i, c := range orderBy {
			order[i] = h.QuoteIdentifier(c)
		}
		query += " ORDER BY " + strings.Join(order, ", ")
	}
	return query
}
