//go:build !libpostal

package postal

// Available reports whether libpostal support was compiled in
const Available = false

// Normalizer is unusable without the libpostal build tag
type Normalizer struct{}

// New fails unless the binary was built with -tags libpostal
func New() (*Normalizer, error) {
	return nil, ErrUnavailable
}

// Normalize returns value unchanged
func (n *Normalizer) Normalize(field, value string) string {
	return value
}
