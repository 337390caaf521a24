package record

import "golang.org/x/xerrors"

const (
	// SequenceIDField is the input column holding a record's identifier
	SequenceIDField = "SEQUENCE_ID"
	// MergedField is the document key of the absorbed identifiers
	MergedField = "MERGED_SEQUENCE_IDS"
)

// Record is one entity read from one input row
type Record struct {
	SequenceID        string
	Fields            map[string]string
	MergedSequenceIDs []string
}

// New creates a record from its identifier and the row it was read from.
// The field map is copied so later changes to the row do not leak in.
func New(sequenceID string, fields map[string]string) (*Record, error) {
	if sequenceID == "" {
		return nil, xerrors.Errorf("empty sequence id: %w", ErrValidation)
	}
	if _, ok := fields[SequenceIDField]; !ok {
		return nil, xerrors.Errorf("record %q has no %s field: %w", sequenceID, SequenceIDField, ErrValidation)
	}

	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	copied[SequenceIDField] = sequenceID

	return &Record{
		SequenceID:        sequenceID,
		Fields:            copied,
		MergedSequenceIDs: []string{},
	}, nil
}

// Field returns the value of a named field
func (r *Record) Field(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// MustFields returns the values of the named fields in order, failing on the
// first field the record lacks
func (r *Record) MustFields(names ...string) ([]string, error) {
	values := make([]string, len(names))
	for i, name := range names {
		v, ok := r.Fields[name]
		if !ok {
			return nil, xerrors.Errorf("record %q lacks %s: %w", r.SequenceID, name, ErrMissingField)
		}
		values[i] = v
	}
	return values, nil
}

// Merge absorbs other's identity into r. Field values of r always win and
// other is left untouched; the caller is expected to discard it.
func (r *Record) Merge(other *Record) {
	r.MergedSequenceIDs = append(r.MergedSequenceIDs, other.SequenceID)
}

// Document returns the serializable view of the record: its fields plus the
// list of merged identifiers
func (r *Record) Document() map[string]interface{} {
	doc := make(map[string]interface{}, len(r.Fields)+1)
	for k, v := range r.Fields {
		doc[k] = v
	}
	merged := make([]string, len(r.MergedSequenceIDs))
	copy(merged, r.MergedSequenceIDs)
	doc[MergedField] = merged
	return doc
}
