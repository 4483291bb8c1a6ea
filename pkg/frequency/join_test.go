package frequency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willbeason/state-of-the-data/pkg/fieldcount"
	"github.com/willbeason/state-of-the-data/pkg/metadata"
	"github.com/willbeason/state-of-the-data/pkg/schema"
)

type lookupMap map[string]metadata.Row

func (l lookupMap) Lookup(id string) (metadata.Row, bool) {
	row, ok := l[id]
	return row, ok
}

var schemaRows = []schema.Row{
	{Path: "title", Parent: "title", ParentWeight: 1, Weight: 1, OptionalWeight: 0},
	{Path: "grants.amount", Parent: "grants", ParentWeight: 102, Weight: 0.05, OptionalWeight: 100},
}

func TestReduce_EndToEnd(t *testing.T) {
	vectors := map[string]fieldcount.Vector{
		"B": {"title": 1},
		"A": {"title": 1, "grants.amount": 2},
	}
	lookup := lookupMap{
		"A": {Identifier: "A", Publisher: "Alpha"},
		"B": {Identifier: "B", Publisher: "Beta"},
	}

	table, metadataRows, err := Reduce(vectors, schemaRows, lookup)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, table.Columns)
	require.Len(t, table.Rows, 2)

	title := table.Rows[0]
	assert.Equal(t, "title", title.Path)
	assert.True(t, title.InSchema())
	assert.Equal(t, 1.0, title.Schema.ParentWeight)
	assert.Equal(t, []int64{1, 1}, title.Counts)

	amount := table.Rows[1]
	assert.Equal(t, "grants.amount", amount.Path)
	assert.True(t, amount.InSchema())
	assert.Equal(t, 102.0, amount.Schema.ParentWeight)
	assert.InDelta(t, 0.05, amount.Schema.Weight, 1e-12)
	assert.Equal(t, []int64{2, 0}, amount.Counts)

	assert.Equal(t, []metadata.Row{
		{Identifier: "A", Publisher: "Alpha"},
		{Identifier: "B", Publisher: "Beta"},
	}, metadataRows)
}

func TestJoin_Completeness(t *testing.T) {
	m := NewMatrix().
		Add("d1", fieldcount.Vector{"title": 2, "zeta": 1, "alpha": 4}).
		Add("d2", fieldcount.Vector{"alpha": 1})

	table := Join(m, schemaRows)

	var paths []string
	for _, row := range table.Rows {
		paths = append(paths, row.Path)
	}
	assert.Equal(t, []string{"title", "grants.amount", "alpha", "zeta"}, paths)

	byPath := make(map[string]Row)
	for _, row := range table.Rows {
		byPath[row.Path] = row
	}

	for _, row := range schemaRows {
		assert.True(t, byPath[row.Path].InSchema(), row.Path)
	}

	assert.Nil(t, byPath["grants.amount"].Counts, "schema-only rows have empty counts")

	alpha := byPath["alpha"]
	assert.False(t, alpha.InSchema())
	assert.Nil(t, alpha.Schema)
	assert.Equal(t, []int64{4, 1}, alpha.Counts)

	assert.Equal(t, []int64{1, 0}, byPath["zeta"].Counts)
}

func TestJoin_CountsMatchMatrix(t *testing.T) {
	m := NewMatrix().
		Add("x", fieldcount.Vector{"title": 5}).
		Add("y", fieldcount.Vector{"title": 3, "other": 9})

	table := Join(m, schemaRows)
	for _, row := range table.Rows {
		for j, id := range table.Columns {
			n, ok := m.Count(row.Path, id)
			if row.Counts == nil {
				assert.False(t, ok)
				continue
			}
			assert.Equal(t, n, row.Counts[j], "%s/%s", row.Path, id)
		}
	}
}

func TestMetadataRows_Missing(t *testing.T) {
	m := NewMatrix().Add("known", fieldcount.Vector{}).Add("unknown", fieldcount.Vector{"a": 1})

	_, err := MetadataRows(m, lookupMap{"known": {Identifier: "known"}})
	assert.ErrorIs(t, err, ErrAggregation)

	_, _, err = Reduce(map[string]fieldcount.Vector{"unknown": {}}, schemaRows, lookupMap{})
	assert.ErrorIs(t, err, ErrAggregation)
}
