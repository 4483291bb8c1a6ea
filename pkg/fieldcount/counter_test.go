package fieldcount

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter_Normalize(t *testing.T) {
	c := Counter{Wrapper: DefaultWrapper}

	tcs := []struct {
		path []Segment
		want string
	}{{
		path: []Segment{{Key: "grants"}, {Item: true}, {Key: "title"}},
		want: "title",
	}, {
		path: []Segment{{Key: "grants"}, {Item: true}, {Key: "recipientOrganization"}, {Item: true}, {Key: "name"}},
		want: "recipientOrganization.name",
	}, {
		path: []Segment{{Key: "grants"}, {Item: true}},
		want: "grants",
	}, {
		path: []Segment{{Item: true}, {Key: "grants"}, {Item: true}, {Key: "amount"}},
		want: "grants.amount",
	}, {
		path: []Segment{{Key: "other"}, {Item: true}, {Key: "item"}},
		want: "other.item",
	}, {
		path: nil,
		want: "",
	}}

	for _, tc := range tcs {
		assert.Equal(t, tc.want, c.Normalize(tc.path))
	}

	assert.Equal(t, "grants.title",
		Counter{}.Normalize([]Segment{{Key: "grants"}, {Item: true}, {Key: "title"}}))
}

func TestCounter_Count(t *testing.T) {
	doc := `{"grants": [
  {"id": "a", "title": "T", "recipientOrganization": [{"id": "o1", "name": "N"}], "tags": ["x", "y"]},
  {"id": "b", "recipientOrganization": [{"id": "o2"}, {"id": "o3"}], "extra": null, "flags": {}}
]}`

	got, err := Counter{Wrapper: DefaultWrapper}.Count(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, Vector{
		"id":                         2,
		"title":                      1,
		"recipientOrganization.id":   3,
		"recipientOrganization.name": 1,
		"tags":                       2,
		"extra":                      1,
	}, got)
	assert.Equal(t, int64(10), got.Total())
}

func TestCounter_CountConservation(t *testing.T) {
	for _, n := range []int{0, 1, 7, 250} {
		var sb strings.Builder
		sb.WriteString(`{"grants": [`)
		for i := range n {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, `{"amountAwarded": %d, "other": [{"x": 1}]}`, i)
		}
		sb.WriteString(`]}`)

		got, err := Counter{Wrapper: DefaultWrapper}.Count(strings.NewReader(sb.String()))
		require.NoError(t, err)
		assert.Equal(t, int64(n), got["amountAwarded"])
		assert.Equal(t, int64(n), got["other.x"])
	}
}

func TestCounter_CountMalformed(t *testing.T) {
	_, err := Counter{Wrapper: DefaultWrapper}.Count(strings.NewReader(`{"grants": [{"id": 1}`))
	assert.ErrorIs(t, err, ErrParse)
}
