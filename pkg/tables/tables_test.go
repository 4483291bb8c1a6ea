package tables

import (
	"context"
	"encoding/csv"
	"os"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willbeason/state-of-the-data/pkg/fieldcount"
	"github.com/willbeason/state-of-the-data/pkg/frequency"
	"github.com/willbeason/state-of-the-data/pkg/metadata"
	"github.com/willbeason/state-of-the-data/pkg/schema"
)

var testRun = Run{ID: "run-1", SchemaDigest: "abc"}

var schemaRows = []schema.Row{
	{Path: "title", Parent: "title", ParentWeight: 1, Weight: 1, OptionalWeight: 0},
	{Path: "grants.amount", Parent: "grants", ParentWeight: 102, Weight: 0.05, OptionalWeight: 100},
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func frequencyTable() *frequency.Table {
	m := frequency.NewMatrix().
		Add("A", fieldcount.Vector{"title": 1, "grants.amount": 2, "extra": 1}).
		Add("B", fieldcount.Vector{"title": 1})
	return frequency.Join(m, schemaRows)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("parquet")
	require.NoError(t, err)
	assert.Equal(t, Parquet, f)
	assert.Equal(t, ParquetExt, f.Ext())

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, CSVExt, f.Ext())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestFrequencyRecord_CSV(t *testing.T) {
	record := FrequencyRecord(memory.NewGoAllocator(), testRun, frequencyTable())
	defer record.Release()

	assert.Equal(t, int64(3), record.NumRows())
	assert.Equal(t, "run-1", valueOf(t, record.Schema().Metadata().Keys(), record.Schema().Metadata().Values(), runIDKey))

	outPath, err := Write(t.TempDir(), FrequencyName, CSV, record)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(outPath, "freq.csv"))

	assert.Equal(t, [][]string{
		{"Fields", "Parent", "ParentWeight", "Weight", "OptionalWeight", "In Schema", "A", "B"},
		{"title", "title", "1", "1", "0", "true", "1", "1"},
		{"grants.amount", "grants", "102", "0.05", "100", "true", "2", "0"},
		{"extra", "", "", "", "", "false", "1", "0"},
	}, readCSV(t, outPath))
}

func valueOf(t *testing.T, keys, values []string, key string) string {
	t.Helper()
	for i, k := range keys {
		if k == key {
			return values[i]
		}
	}
	t.Fatalf("no metadata key %q", key)
	return ""
}

func TestSchemaRecord_Parquet(t *testing.T) {
	allocator := memory.NewGoAllocator()
	record := SchemaRecord(allocator, testRun, schemaRows)
	defer record.Release()

	outPath, err := Write(t.TempDir(), SchemaName, Parquet, record)
	require.NoError(t, err)

	reader, err := file.OpenParquetFile(outPath, false)
	require.NoError(t, err)
	defer reader.Close()

	fileReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{}, allocator)
	require.NoError(t, err)

	table, err := fileReader.ReadTable(context.Background())
	require.NoError(t, err)
	defer table.Release()

	require.Equal(t, int64(2), table.NumRows())
	require.Equal(t, int64(5), table.NumCols())

	var names []string
	for _, field := range table.Schema().Fields() {
		names = append(names, field.Name)
	}
	assert.Equal(t, []string{"Fields", "Parent", "ParentWeight", "Weight", "OptionalWeight"}, names)

	paths := table.Column(0).Data().Chunk(0).(*array.String)
	assert.Equal(t, "title", paths.Value(0))
	assert.Equal(t, "grants.amount", paths.Value(1))

	weights := table.Column(3).Data().Chunk(0).(*array.Float64)
	assert.InDelta(t, 0.05, weights.Value(1), 1e-12)
}

func TestMetadataRecord_CSV(t *testing.T) {
	yes, no := true, false
	rows := []metadata.Row{
		{Identifier: "A", Publisher: "Alpha", Downloaded: "2017-03-20", License: &yes, Prefix: "360G-a", Title: "T", Type: "json", Valid: &no},
		{Identifier: "B"},
	}

	record := MetadataRecord(memory.NewGoAllocator(), testRun, rows)
	defer record.Release()

	outPath, err := Write(t.TempDir(), MetadataName, CSV, record)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"Identifier", "Publisher", "Downloaded", "License", "Prefix", "Title", "Type", "Valid"},
		{"A", "Alpha", "2017-03-20", "true", "360G-a", "T", "json", "false"},
		{"B", "", "", "", "", "", "", ""},
	}, readCSV(t, outPath))
}

func TestSummaryRecord_CSV(t *testing.T) {
	summary, err := metadata.Extract(strings.NewReader(`[
  {"identifier": "a", "publisher": {"name": "Alpha"}, "count": 3},
  {"identifier": "b", "datagetter_metadata": {"valid": true}}
]`), metadata.DefaultIdentifier)
	require.NoError(t, err)

	record, err := SummaryRecord(memory.NewGoAllocator(), testRun, summary)
	require.NoError(t, err)
	defer record.Release()

	outPath, err := Write(t.TempDir(), SummaryName, CSV, record)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"Identifier", "count", "datagetter_metadata.valid", "publisher.name"},
		{"a", "3", "", "Alpha"},
		{"b", "", "true", ""},
	}, readCSV(t, outPath))
}

func TestRunMetadata_SkipsEmpty(t *testing.T) {
	md := Run{ID: "x"}.metadata("d")
	assert.Equal(t, []string{comment, runIDKey}, md.Keys())
}

func TestCheckDocumentColumns(t *testing.T) {
	require.NoError(t, CheckDocumentColumns([]string{"a001", "fields", "Identifier"}))

	for _, id := range []string{FieldsColumn, ParentColumn, ParentWeightColumn, WeightColumn, OptionalWeightColumn, InSchemaColumn} {
		err := CheckDocumentColumns([]string{"a001", id})
		assert.ErrorIs(t, err, frequency.ErrAggregation, id)
	}
}
