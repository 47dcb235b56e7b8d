package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// InsertSQL builds a positional INSERT for table. A non-empty returning
// column is appended as RETURNING.
func InsertSQL(table string, cols []string, returning string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sanitizeTable(table), quoteAndJoin(cols), strings.Join(ph, ", "))
	if returning != "" {
		q += " RETURNING " + pgx.Identifier{returning}.Sanitize()
	}
	return q
}

// UpdateSQL builds "UPDATE table SET c1 = $1, ... WHERE key = $n+1". When
// touch is set, updated_at = now() is added.
func UpdateSQL(table string, cols []string, key string, touch bool) string {
	sets := make([]string, 0, len(cols)+1)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{c}.Sanitize(), i+1))
	}
	if touch {
		sets = append(sets, `"updated_at" = now()`)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		sanitizeTable(table), strings.Join(sets, ", "), pgx.Identifier{key}.Sanitize(), len(cols)+1)
}

// SelectSQL builds "SELECT cols FROM table WHERE key = $1".
func SelectSQL(table string, cols []string, key string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		quoteAndJoin(cols), sanitizeTable(table), pgx.Identifier{key}.Sanitize())
}

// sanitizeTable handles schema-qualified table names like "public.regions".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
