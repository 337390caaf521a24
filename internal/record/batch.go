package record

import (
	"sort"

	"golang.org/x/xerrors"
)

// Batch is a collection of records keyed by sequence id
type Batch struct {
	records map[string]*Record
}

// NewBatch creates an empty batch
func NewBatch() *Batch {
	return &Batch{records: make(map[string]*Record)}
}

// Add inserts r under its own sequence id, replacing any record already
// stored under that id
func (b *Batch) Add(r *Record) error {
	if r == nil {
		return xerrors.Errorf("nil record: %w", ErrInvalidRecordType)
	}
	b.records[r.SequenceID] = r
	return nil
}

// Get returns the record stored under id
func (b *Batch) Get(id string) (*Record, bool) {
	r, ok := b.records[id]
	return r, ok
}

// Len returns the number of records in the batch
func (b *Batch) Len() int {
	return len(b.records)
}

// IDs returns all sequence ids in ascending lexicographic order
func (b *Batch) IDs() []string {
	ids := make([]string, 0, len(b.records))
	for id := range b.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Records returns all records ordered by sequence id
func (b *Batch) Records() []*Record {
	ids := b.IDs()
	out := make([]*Record, len(ids))
	for i, id := range ids {
		out[i] = b.records[id]
	}
	return out
}

// Merge folds the records under mergeIDs into the record under mainID, in
// argument order, removing them from the batch. Every id is checked before
// anything is changed, so a failed merge leaves the batch as it was.
func (b *Batch) Merge(mainID string, mergeIDs ...string) error {
	main, ok := b.records[mainID]
	if !ok {
		return xerrors.Errorf("main record %q: %w", mainID, ErrKeyNotFound)
	}

	seen := make(map[string]bool, len(mergeIDs))
	for _, id := range mergeIDs {
		if id == mainID {
			return xerrors.Errorf("record %q: %w", id, ErrSelfMerge)
		}
		if _, ok := b.records[id]; !ok || seen[id] {
			return xerrors.Errorf("merge record %q: %w", id, ErrKeyNotFound)
		}
		seen[id] = true
	}

	for _, id := range mergeIDs {
		other := b.records[id]
		delete(b.records, id)
		main.Merge(other)
	}
	return nil
}
