package group

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehdc-splitter/internal/record"
)

func batch(t *testing.T, rows ...[3]string) *record.Batch {
	t.Helper()
	b := record.NewBatch()
	for _, row := range rows {
		r, err := record.New(row[0], map[string]string{
			record.SequenceIDField: row[0],
			"GROUP":                row[1],
			"COUNTRY":              row[2],
		})
		require.NoError(t, err)
		require.NoError(t, b.Add(r))
	}
	return b
}

func TestByPartitions(t *testing.T) {
	b := batch(t,
		[3]string{"001", "G1", "US"},
		[3]string{"002", "G1", "CA"},
		[3]string{"003", "G2", "US"},
		[3]string{"004", "G1", "US"},
	)

	groups, err := By(b, "GROUP", "COUNTRY")
	require.NoError(t, err)

	assert.Equal(t, []Key{{"G1", "CA"}, {"G1", "US"}, {"G2", "US"}}, groups.Keys())
	assert.Equal(t, 3, groups.Len())

	g1us, ok := groups.Get(Key{"G1", "US"})
	require.True(t, ok)
	assert.Equal(t, []string{"001", "004"}, g1us.IDs())

	// union of the groups equals the input and no record is in two groups
	seen := map[string]int{}
	for _, k := range groups.Keys() {
		sub, _ := groups.Get(k)
		for _, id := range sub.IDs() {
			seen[id]++
		}
	}
	assert.Len(t, seen, b.Len())
	for id, n := range seen {
		assert.Equal(t, 1, n, "record %s", id)
	}
}

func TestBySharesRecords(t *testing.T) {
	b := batch(t, [3]string{"001", "G1", "US"})

	groups, err := By(b)
	require.NoError(t, err)

	sub, ok := groups.Get(Key{"G1", "US"})
	require.True(t, ok)
	orig, _ := b.Get("001")
	grouped, _ := sub.Get("001")
	assert.Same(t, orig, grouped)
	assert.Equal(t, 1, b.Len(), "input batch is not modified")
	assert.Equal(t, DefaultKeyFields, groups.Fields())
}

func TestByKeyFieldOrder(t *testing.T) {
	b := batch(t, [3]string{"001", "G1", "US"})

	groups, err := By(b, "COUNTRY", "GROUP")
	require.NoError(t, err)
	assert.Equal(t, []Key{{"US", "G1"}}, groups.Keys())
	assert.Equal(t, "US_G1", groups.Keys()[0].Join("_"))
}

func TestByDoesNotConfuseJoinedValues(t *testing.T) {
	b := batch(t,
		[3]string{"001", "A_B", "C"},
		[3]string{"002", "A", "B_C"},
	)

	groups, err := By(b)
	require.NoError(t, err)
	assert.Equal(t, 2, groups.Len())
}

func TestByMissingField(t *testing.T) {
	b := record.NewBatch()
	r, err := record.New("001", map[string]string{record.SequenceIDField: "001", "COUNTRY": "US"})
	require.NoError(t, err)
	require.NoError(t, b.Add(r))

	groups, err := By(b, "GROUP", "COUNTRY")
	require.Error(t, err)
	assert.Nil(t, groups)
	assert.True(t, errors.Is(err, record.ErrMissingField))
	assert.Contains(t, err.Error(), "GROUP")
}

func TestByEmptyBatch(t *testing.T) {
	groups, err := By(record.NewBatch())
	require.NoError(t, err)
	assert.Zero(t, groups.Len())
	assert.Empty(t, groups.Keys())
}
