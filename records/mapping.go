package records

import (
	"errors"
	"fmt"
)

var ErrInvalidMapping = errors.New("invalid mapping")

// Mapping converts records between the shape clients see and the shape
// stored. Both directions must be total and must not invent keys the input
// did not carry.
type Mapping interface {
	ToStorage(public Record) Record
	ToPublic(stored Record) Record
}

// Identity stores records exactly as clients send them
var Identity Mapping = identity{}

type identity struct{}

func (identity) ToStorage(r Record) Record { return r.Clone() }
func (identity) ToPublic(r Record) Record  { return r.Clone() }

// FieldMapping renames public fields to storage columns. Storage columns
// listed in Hidden never reach clients.
type FieldMapping struct {
	Rename map[string]string
	Hidden []string
}

func (m FieldMapping) ToStorage(public Record) Record {
	out := make(Record, len(public))
	for k, v := range public {
		if col, ok := m.Rename[k]; ok {
			k = col
		}
		out[k] = v
	}
	return out
}

func (m FieldMapping) ToPublic(stored Record) Record {
	reverse := make(map[string]string, len(m.Rename))
	for pub, col := range m.Rename {
		reverse[col] = pub
	}
	hidden := make(map[string]bool, len(m.Hidden))
	for _, col := range m.Hidden {
		hidden[col] = true
	}

	out := make(Record, len(stored))
	for k, v := range stored {
		if hidden[k] {
			continue
		}
		if pub, ok := reverse[k]; ok {
			k = pub
		}
		out[k] = v
	}
	return out
}

// CheckMapping verifies that m maps empty records to empty records in both
// directions. A mapping that adds keys such as deletedAt to a partial record
// would silently change every write.
func CheckMapping(m Mapping) error {
	if stored := m.ToStorage(Record{}); len(stored) != 0 {
		return fmt.Errorf("%w: ToStorage adds %v", ErrInvalidMapping, stored.Fields())
	}
	if public := m.ToPublic(Record{}); len(public) != 0 {
		return fmt.Errorf("%w: ToPublic adds %v", ErrInvalidMapping, public.Fields())
	}
	return nil
}

// publicID projects the identity of a stored record
func publicID(m Mapping, stored Record) Record {
	return m.ToPublic(Record{FieldID: stored[FieldID]})
}
