package ginsrv

import (
	"net/url"
	"testing"

	"github.com/dwidge/table-api/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidates_KeepQueryOrder(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		fields []string
	}{
		{"first seen wins", "name=a&_limit=5&parentId=1&name=b", []string{"name", "parentId"}},
		{"escaped keys", "z%20key=1&a=2", []string{"z key", "a"}},
		{"reserved only", "_offset=1&_order=id", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := url.ParseQuery(tt.raw)
			require.NoError(t, err)

			fields := []string{}
			for _, c := range candidates(tt.raw, query) {
				fields = append(fields, c.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestCandidates_ExpandFollowsQueryOrder(t *testing.T) {
	raw := "name=a&name=b&parentId=1&parentId=2"
	query, err := url.ParseQuery(raw)
	require.NoError(t, err)

	out, err := records.Expand(candidates(raw, query), ExpandLimit)
	require.NoError(t, err)
	assert.Equal(t, []records.Record{
		{"name": "a", "parentId": "1"},
		{"name": "a", "parentId": "2"},
		{"name": "b", "parentId": "1"},
		{"name": "b", "parentId": "2"},
	}, out)

	query, err = url.ParseQuery("parentId=1&parentId=2&name=a&name=b")
	require.NoError(t, err)
	out, err = records.Expand(candidates("parentId=1&parentId=2&name=a&name=b", query), ExpandLimit)
	require.NoError(t, err)
	assert.Equal(t, records.Record{"parentId": "1", "name": "b"}, out[1])
}
