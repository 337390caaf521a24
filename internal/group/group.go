package group

import (
	"sort"
	"strings"

	"golang.org/x/xerrors"

	"github.com/ehdc-splitter/internal/record"
)

// DefaultKeyFields are the fields records are grouped by, in order
var DefaultKeyFields = []string{"GROUP", "COUNTRY"}

// Key holds the values of the key fields of a group, in key field order
type Key []string

// Join returns the key values joined with sep
func (k Key) Join(sep string) string {
	return strings.Join(k, sep)
}

// id is an unambiguous map key for k
func (k Key) id() string {
	var b strings.Builder
	for _, v := range k {
		b.WriteString(v)
		b.WriteByte(0)
	}
	return b.String()
}

// less orders keys value by value
func (k Key) less(other Key) bool {
	for i := 0; i < len(k) && i < len(other); i++ {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return len(k) < len(other)
}

// Groups maps group keys to the sub-batch of records having those values
type Groups struct {
	fields  []string
	keys    map[string]Key
	batches map[string]*record.Batch
}

// Fields returns the key fields the groups were built from
func (g *Groups) Fields() []string {
	return append([]string(nil), g.fields...)
}

// Len returns the number of groups
func (g *Groups) Len() int {
	return len(g.batches)
}

// Keys returns every group key in ascending order
func (g *Groups) Keys() []Key {
	keys := make([]Key, 0, len(g.keys))
	for _, k := range g.keys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// Get returns the batch of the group with the given key
func (g *Groups) Get(key Key) (*record.Batch, bool) {
	b, ok := g.batches[key.id()]
	return b, ok
}

// By partitions b by the values of keyFields. Every record ends up in
// exactly one group. Group batches share the records of b, which is not
// modified.
func By(b *record.Batch, keyFields ...string) (*Groups, error) {
	if len(keyFields) == 0 {
		keyFields = DefaultKeyFields
	}

	g := &Groups{
		fields:  append([]string(nil), keyFields...),
		keys:    make(map[string]Key),
		batches: make(map[string]*record.Batch),
	}

	for _, r := range b.Records() {
		values, err := r.MustFields(keyFields...)
		if err != nil {
			return nil, xerrors.Errorf("grouping: %w", err)
		}
		key := Key(values)
		id := key.id()

		target, ok := g.batches[id]
		if !ok {
			target = record.NewBatch()
			g.batches[id] = target
			g.keys[id] = key
		}
		if err := target.Add(r); err != nil {
			return nil, err
		}
	}
	return g, nil
}
