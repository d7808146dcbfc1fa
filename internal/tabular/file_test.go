package tabular

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

var condSpec = Spec{
	Name:       "condition_occurrence",
	Required:   []string{"person_id", "visit_occurrence_id", "condition_concept_id"},
	IDs:        []string{"person_id", "visit_occurrence_id"},
	TimeColumn: "condition_start_datetime",
}

func TestFileSource_ReadTable(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "condition_occurrence.csv",
		"person_id\tvisit_occurrence_id\tcondition_concept_id\tcondition_start_datetime\n"+
			"P2\tV3\tC9\t2020-01-04 08:00:00\n"+
			"P1\tV2\tC3\t2020-01-03 08:00:00\n"+
			"P1\tV1\tC2\t2020-01-02 09:00:00\n"+
			"P1\tV1\tC1\t2020-01-02 08:00:00\n"+
			"P1\tV1\t\t2020-01-02 10:00:00\n") // missing code: dropped

	rows, err := NewFileSource(dir).ReadTable(context.Background(), condSpec)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	// Sorted ascending by (person id, episode id, timestamp).
	assert.Equal(t, "C1", rows[0]["condition_concept_id"])
	assert.Equal(t, "C2", rows[1]["condition_concept_id"])
	assert.Equal(t, "C3", rows[2]["condition_concept_id"])
	assert.Equal(t, "P2", rows[3]["person_id"])
}

func TestFileSource_IDsStayText(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "condition_occurrence.csv",
		"person_id\tvisit_occurrence_id\tcondition_concept_id\tcondition_start_datetime\n"+
			"007\t00042\t0099\t2020-01-02 08:00:00\n")

	rows, err := NewFileSource(dir).ReadTable(context.Background(), condSpec)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Leading zeros must survive: ids are text, never numbers.
	assert.Equal(t, "007", rows[0]["person_id"])
	assert.Equal(t, "00042", rows[0]["visit_occurrence_id"])
	assert.Equal(t, "0099", rows[0]["condition_concept_id"])
}

func TestFileSource_Compressed(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "condition_occurrence.csv.gz"))
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(
		"person_id\tvisit_occurrence_id\tcondition_concept_id\tcondition_start_datetime\n" +
			"P1\tV1\tC1\t2020-01-02 08:00:00\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	fs := NewFileSource(dir)
	fs.Compressed = true
	rows, err := fs.ReadTable(context.Background(), condSpec)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "C1", rows[0]["condition_concept_id"])
}

func TestFileSource_RowCap(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "person.csv",
		"person_id\n"+"P3\n"+"P1\n"+"P2\n")

	spec := Spec{Name: "person", Required: []string{"person_id"}, IDs: []string{"person_id"}, Limit: 2}
	rows, err := NewFileSource(dir).ReadTable(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// The cap applies after sorting, so it is deterministic.
	assert.Equal(t, "P1", rows[0]["person_id"])
	assert.Equal(t, "P2", rows[1]["person_id"])
}

func TestFileSource_MissingSource(t *testing.T) {
	_, err := NewFileSource(t.TempDir()).ReadTable(context.Background(), condSpec)

	var missing *MissingSourceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "condition_occurrence", missing.Table)
}

func TestFileSource_SchemaError(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "condition_occurrence.csv",
		"person_id\tvisit_occurrence_id\tcondition_start_datetime\n"+
			"P1\tV1\t2020-01-02 08:00:00\n")

	_, err := NewFileSource(dir).ReadTable(context.Background(), condSpec)

	var schema *SchemaError
	require.ErrorAs(t, err, &schema)
	assert.Equal(t, "condition_concept_id", schema.Column)
	assert.Contains(t, err.Error(), "condition_occurrence")
}

func TestFileSource_CustomDelimiter(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "condition_occurrence.csv",
		"person_id,visit_occurrence_id,condition_concept_id,condition_start_datetime\n"+
			"P1,V1,C1,2020-01-02 08:00:00\n")

	fs := NewFileSource(dir)
	fs.Delimiter = ','
	rows, err := fs.ReadTable(context.Background(), condSpec)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
