package export

import (
	"bytes"
	"io"

	json "github.com/goccy/go-json"
	"golang.org/x/xerrors"

	"github.com/ehdc-splitter/internal/record"
)

// Indent is the per-level indentation of written documents
const Indent = "    "

// ErrSerialization matches every error returned when a batch cannot be
// encoded or written
var ErrSerialization = xerrors.New("serialization failed")

// Error reports a failed encode or write of a named output. It matches
// ErrSerialization and unwraps to the underlying cause.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return "serializing " + e.Name + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is ErrSerialization
func (e *Error) Is(target error) bool { return target == ErrSerialization }

// Documents returns the serializable form of b: sequence id to record
// document
func Documents(b *record.Batch) map[string]map[string]interface{} {
	docs := make(map[string]map[string]interface{}, b.Len())
	for _, r := range b.Records() {
		docs[r.SequenceID] = r.Document()
	}
	return docs
}

// Encode writes b to w as an indented JSON object. Object keys are sorted at
// every level so equal batches always encode to identical bytes.
func Encode(w io.Writer, b *record.Batch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", Indent)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Documents(b)); err != nil {
		return &Error{Name: "batch", Err: err}
	}
	return nil
}

// Marshal returns the encoding of b
func Marshal(b *record.Batch) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalRecord returns the compact encoding of a single record document
func MarshalRecord(r *record.Record) ([]byte, error) {
	data, err := json.Marshal(r.Document())
	if err != nil {
		return nil, &Error{Name: "record " + r.SequenceID, Err: err}
	}
	return data, nil
}
