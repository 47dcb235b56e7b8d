package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertSQL(t *testing.T) {
	got := InsertSQL("regions", []string{"code", "name"}, "id")
	assert.Equal(t, `INSERT INTO "regions" ("code", "name") VALUES ($1, $2) RETURNING "id"`, got)

	got = InsertSQL("public.sync_runs", []string{"id"}, "")
	assert.Equal(t, `INSERT INTO "public"."sync_runs" ("id") VALUES ($1)`, got)
}

func TestUpdateSQL(t *testing.T) {
	got := UpdateSQL("regions", []string{"name", "abbreviation"}, "id", true)
	assert.Equal(t, `UPDATE "regions" SET "name" = $1, "abbreviation" = $2, "updated_at" = now() WHERE "id" = $3`, got)

	got = UpdateSQL("indicator_categories", []string{"color"}, "id", false)
	assert.Equal(t, `UPDATE "indicator_categories" SET "color" = $1 WHERE "id" = $2`, got)
}

func TestSelectSQL(t *testing.T) {
	got := SelectSQL("regions", []string{"id", "code"}, "code")
	assert.Equal(t, `SELECT "id", "code" FROM "regions" WHERE "code" = $1`, got)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.regions", `"public"."regions"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
