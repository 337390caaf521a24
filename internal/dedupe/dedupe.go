// Package dedupe merges records that share an address.
//
// Every record in a batch gets an address key built from a fixed list of
// fields. Records with the same key are merged into the one with the
// lexicographically smallest sequence id; the other ids are kept on the
// survivor as merged references.
package dedupe

import (
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/ehdc-splitter/internal/logger"
	"github.com/ehdc-splitter/internal/record"
)

// DefaultAddressFields are the fields making up an address key, in order
var DefaultAddressFields = []string{"STREET", "CITY", "ZIP", "COUNTRY"}

// KeyMode selects how address field values are combined into a key
type KeyMode string

const (
	// KeyConcat joins the values with no delimiter. Two different field
	// tuples with the same concatenation ("AB"+"C" and "A"+"BC") are
	// treated as the same address.
	KeyConcat KeyMode = "concat"
	// KeyTuple compares the values as a tuple; distinct tuples never collide.
	KeyTuple KeyMode = "tuple"
)

// ParseKeyMode validates a key mode name
func ParseKeyMode(s string) (KeyMode, error) {
	switch KeyMode(strings.ToLower(s)) {
	case "", KeyConcat:
		return KeyConcat, nil
	case KeyTuple:
		return KeyTuple, nil
	}
	return "", xerrors.Errorf("unknown key mode %q (want concat or tuple)", s)
}

// Normalizer rewrites an address field value before it becomes part of a key
type Normalizer interface {
	Normalize(field, value string) string
}

// Stats describes the outcome of one Dedupe call
type Stats struct {
	RecordsIn   int
	RecordsOut  int
	MergeGroups int
	MergedIDs   int
}

// Deduplicator merges records with equal address keys
type Deduplicator struct {
	fields     []string
	mode       KeyMode
	normalizer Normalizer
	log        *zap.Logger
}

// Option configures a Deduplicator
type Option func(*Deduplicator)

// WithAddressFields overrides the fields making up the address key
func WithAddressFields(fields ...string) Option {
	return func(d *Deduplicator) {
		d.fields = append([]string(nil), fields...)
	}
}

// WithKeyMode selects concatenated or tuple keys
func WithKeyMode(mode KeyMode) Option {
	return func(d *Deduplicator) {
		d.mode = mode
	}
}

// WithNormalizer sets the normalizer applied to each field value; nil
// compares values exactly
func WithNormalizer(n Normalizer) Option {
	return func(d *Deduplicator) {
		d.normalizer = n
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(d *Deduplicator) {
		d.log = log
	}
}

// New creates a Deduplicator using the default address fields and
// concatenated keys unless overridden
func New(opts ...Option) *Deduplicator {
	d := &Deduplicator{
		fields: DefaultAddressFields,
		mode:   KeyConcat,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logger.OrNop(d.log)
	return d
}

// AddressKey returns the key of r. It fails if r lacks an address field.
func (d *Deduplicator) AddressKey(r *record.Record) (string, error) {
	values, err := r.MustFields(d.fields...)
	if err != nil {
		return "", err
	}
	if d.normalizer != nil {
		for i, v := range values {
			values[i] = d.normalizer.Normalize(d.fields[i], v)
		}
	}

	if d.mode == KeyTuple {
		// length prefixes keep the encoding injective
		var b strings.Builder
		for _, v := range values {
			b.WriteString(strconv.Itoa(len(v)))
			b.WriteByte(':')
			b.WriteString(v)
		}
		return b.String(), nil
	}
	return strings.Join(values, ""), nil
}

// Dedupe merges, in place, every set of records in b sharing an address
// key into the member with the smallest sequence id
func (d *Deduplicator) Dedupe(b *record.Batch) (Stats, error) {
	stats := Stats{RecordsIn: b.Len()}

	addresses := make(map[string]map[string]struct{})
	for _, r := range b.Records() {
		key, err := d.AddressKey(r)
		if err != nil {
			return stats, xerrors.Errorf("building address key: %w", err)
		}
		ids, ok := addresses[key]
		if !ok {
			ids = make(map[string]struct{})
			addresses[key] = ids
		}
		ids[r.SequenceID] = struct{}{}
	}

	keys := make([]string, 0, len(addresses))
	for key := range addresses {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		set := addresses[key]
		if len(set) < 2 {
			continue
		}
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		mainID, mergeIDs := ids[0], ids[1:]
		d.log.Info("Merging records",
			zap.Strings("merge_ids", mergeIDs),
			zap.String("into", mainID))
		if err := b.Merge(mainID, mergeIDs...); err != nil {
			return stats, xerrors.Errorf("merging into %q: %w", mainID, err)
		}
		stats.MergeGroups++
		stats.MergedIDs += len(mergeIDs)
	}

	stats.RecordsOut = b.Len()
	return stats, nil
}
