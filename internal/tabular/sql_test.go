package tabular

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "omop.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func TestSQLSource_ReadTable(t *testing.T) {
	db, path := openTestDB(t)

	_, err := db.Exec(`
		CREATE TABLE condition_occurrence (
			person_id INTEGER,
			visit_occurrence_id INTEGER,
			condition_concept_id INTEGER,
			condition_start_datetime TEXT
		);
		INSERT INTO condition_occurrence VALUES
			(2, 30, 900, '2020-01-04 08:00:00'),
			(1, 10, 100, '2020-01-02 08:00:00'),
			(1, 10, 200, '2020-01-02 09:00:00'),
			(1, 20, NULL, '2020-01-03 08:00:00');
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := OpenSQL(path)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	rows, err := src.ReadTable(context.Background(), condSpec)
	require.NoError(t, err)
	require.Len(t, rows, 3) // NULL code row dropped

	// Numeric ids come back as exact text, sorted like the file source.
	assert.Equal(t, "1", rows[0]["person_id"])
	assert.Equal(t, "100", rows[0]["condition_concept_id"])
	assert.Equal(t, "200", rows[1]["condition_concept_id"])
	assert.Equal(t, "900", rows[2]["condition_concept_id"])
}

func TestSQLSource_MissingTable(t *testing.T) {
	_, path := openTestDB(t)

	src, err := OpenSQL(path)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	_, err = src.ReadTable(context.Background(), condSpec)
	var missing *MissingSourceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "condition_occurrence", missing.Table)
}

func TestSQLSource_SchemaError(t *testing.T) {
	db, path := openTestDB(t)
	_, err := db.Exec(`CREATE TABLE condition_occurrence (person_id INTEGER, visit_occurrence_id INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := OpenSQL(path)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	_, err = src.ReadTable(context.Background(), condSpec)
	var schema *SchemaError
	require.ErrorAs(t, err, &schema)
	assert.Equal(t, "condition_concept_id", schema.Column)
}

func TestCoerceText(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"abc", "abc"},
		{[]byte("007"), "007"},
		{int64(42), "42"},
		{float64(2.5), "2.5"},
		{true, "true"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, coerceText(c.in))
	}
}
