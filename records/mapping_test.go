package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldMapping(t *testing.T) {
	m := FieldMapping{Rename: map[string]string{"title": "name"}, Hidden: []string{"secret"}}

	assert.Equal(t, Record{"name": "a", FieldID: 1}, m.ToStorage(Record{"title": "a", FieldID: 1}))
	assert.Equal(t, Record{"title": "a"}, m.ToPublic(Record{"name": "a", "secret": "x"}))
	assert.NoError(t, CheckMapping(m))
	assert.NoError(t, CheckMapping(Identity))
}

func TestIdentity_Copies(t *testing.T) {
	in := Record{"a": 1}
	out := Identity.ToStorage(in)
	out["a"] = 2

	assert.Equal(t, 1, in["a"])
}
