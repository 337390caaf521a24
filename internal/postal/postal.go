//go:build libpostal

package postal

import (
	expand "github.com/openvenues/gopostal/expand"
)

// Available reports whether libpostal support was compiled in
const Available = true

// Normalizer expands address values with libpostal
type Normalizer struct{}

// New returns a libpostal backed normalizer
func New() (*Normalizer, error) {
	return &Normalizer{}, nil
}

// Normalize returns libpostal's first expansion of value, or value itself
// when libpostal produces none
func (n *Normalizer) Normalize(field, value string) string {
	if value == "" {
		return value
	}
	expansions := expand.ExpandAddress(value)
	if len(expansions) == 0 {
		return value
	}
	return expansions[0]
}
