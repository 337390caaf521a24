package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ehdc-splitter/internal/dedupe"
	"github.com/ehdc-splitter/internal/export"
	import_pkg "github.com/ehdc-splitter/internal/import"
	"github.com/ehdc-splitter/internal/record"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readOutput(t *testing.T, dir, name string) map[string]map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name+export.Ext))
	require.NoError(t, err)
	var out map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestRunEndToEnd(t *testing.T) {
	input := writeInput(t, "SEQUENCE_ID,STREET,CITY,ZIP,COUNTRY,GROUP\n"+
		"001,1 Elm,A,0,US,G1\n"+
		"002,1 Elm,A,0,US,G1\n")
	outDir := filepath.Join(t.TempDir(), "results")

	result, err := New(Options{}, export.NewFileSink(outDir), nil).Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, []string{"final", "G1_US"}, result.Outputs)
	assert.Equal(t, 1, result.Groups)
	assert.Equal(t, 1, result.Dedupe.MergeGroups)

	final := readOutput(t, outDir, "final")
	require.Len(t, final, 1)
	require.Contains(t, final, "001")
	assert.Equal(t, []interface{}{"002"}, final["001"][record.MergedField])
	assert.Equal(t, "1 Elm", final["001"]["STREET"])

	group := readOutput(t, outDir, "G1_US")
	assert.Equal(t, final, group)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunGroupsPartitionFinal(t *testing.T) {
	input := writeInput(t, "SEQUENCE_ID,STREET,CITY,ZIP,COUNTRY,GROUP\n"+
		"003,1 Elm,A,0,US,G1\n"+
		"001,1 Elm,A,0,US,G1\n"+
		"002,1 Elm,A,0,US,G1\n"+
		"004,9 Oak,B,1,CA,G1\n"+
		"005,5 Ash,C,2,US,G2\n")
	outDir := t.TempDir()

	result, err := New(Options{}, export.NewFileSink(outDir), nil).Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, []string{"final", "G1_CA", "G1_US", "G2_US"}, result.Outputs)

	final := readOutput(t, outDir, "final")
	assert.Equal(t, []interface{}{"002", "003"}, final["001"][record.MergedField])

	union := map[string]map[string]interface{}{}
	for _, name := range result.Outputs[1:] {
		for id, doc := range readOutput(t, outDir, name) {
			_, dup := union[id]
			require.False(t, dup, "record %s in two groups", id)
			union[id] = doc
		}
	}
	assert.Equal(t, final, union)
}

func TestRunDeterministicOutput(t *testing.T) {
	input := writeInput(t, "SEQUENCE_ID,STREET,CITY,ZIP,COUNTRY,GROUP\n"+
		"2,1 Elm,A,0,US,G1\n10,1 Elm,A,0,US,G1\n3,7 Fir,D,4,US,G1\n")

	run := func() []byte {
		dir := t.TempDir()
		_, err := New(Options{}, export.NewFileSink(dir), nil).Run(context.Background(), input)
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(dir, "final.json"))
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, run(), run())
}

func TestRunMissingGroupField(t *testing.T) {
	input := writeInput(t, "SEQUENCE_ID,STREET,CITY,ZIP,COUNTRY\n001,1 Elm,A,0,US\n")
	outDir := t.TempDir()

	_, err := New(Options{}, export.NewFileSink(outDir), nil).Run(context.Background(), input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, record.ErrMissingField))

	// the full output is written before grouping fails
	_, statErr := os.Stat(filepath.Join(outDir, "final.json"))
	assert.NoError(t, statErr)
}

func TestRunRowLackingGroup(t *testing.T) {
	input := writeInput(t, "SEQUENCE_ID,STREET,CITY,ZIP,COUNTRY,GROUP\n"+
		"001,1 Elm,A,0,US,G1\n"+
		"002,2 Elm,A,0,US\n")

	_, err := New(Options{}, export.NewFileSink(t.TempDir()), nil).Run(context.Background(), input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, record.ErrMissingField), "got %v", err)
	assert.False(t, errors.Is(err, import_pkg.ErrFileRead))
}

func TestRunMissingAddressField(t *testing.T) {
	input := writeInput(t, "SEQUENCE_ID,STREET,CITY,GROUP\n001,1 Elm,A,G1\n")

	_, err := New(Options{}, export.NewFileSink(t.TempDir()), nil).Run(context.Background(), input)
	assert.True(t, errors.Is(err, record.ErrMissingField))
}

func TestRunInputErrors(t *testing.T) {
	runner := New(Options{}, export.NewFileSink(t.TempDir()), nil)

	_, err := runner.Run(context.Background(), "")
	assert.True(t, errors.Is(err, ErrMissingInputPath))

	_, err = runner.Run(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	assert.True(t, errors.Is(err, import_pkg.ErrFileRead))
}

func TestRunSerializationError(t *testing.T) {
	input := writeInput(t, "SEQUENCE_ID,STREET,CITY,ZIP,COUNTRY,GROUP\n001,1 Elm,A,0,US,G1\n")
	blocked := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocked, nil, 0o644))

	_, err := New(Options{}, export.NewFileSink(blocked), nil).Run(context.Background(), input)
	assert.True(t, errors.Is(err, export.ErrSerialization))
}

func TestRunGroupNameCollision(t *testing.T) {
	input := writeInput(t, "SEQUENCE_ID,STREET,CITY,ZIP,COUNTRY,GROUP\n"+
		"001,1 Elm,A,0,C,A_B\n"+
		"002,2 Elm,A,0,B_C,A\n")
	outDir := t.TempDir()

	_, err := New(Options{}, export.NewFileSink(outDir), nil).Run(context.Background(), input)
	assert.True(t, errors.Is(err, ErrGroupNameCollision))

	_, statErr := os.Stat(filepath.Join(outDir, "A_B_C.json"))
	assert.True(t, os.IsNotExist(statErr), "no group file is written when names collide")
}

func TestRunInvalidGroupName(t *testing.T) {
	input := writeInput(t, "SEQUENCE_ID,STREET,CITY,ZIP,COUNTRY,GROUP\n001,1 Elm,A,0,US,../x\n")

	_, err := New(Options{}, export.NewFileSink(t.TempDir()), nil).Run(context.Background(), input)
	assert.True(t, errors.Is(err, export.ErrSerialization))
	assert.True(t, errors.Is(err, export.ErrInvalidName))
}

func TestRunTupleKeyMode(t *testing.T) {
	input := writeInput(t, "SEQUENCE_ID,STREET,CITY,ZIP,COUNTRY,GROUP\n"+
		"001,1 ElmA,,0,US,G1\n"+
		"002,1 Elm,A,0,US,G1\n")

	concat, err := New(Options{}, export.NewFileSink(t.TempDir()), nil).Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, concat.Dedupe.RecordsOut)

	tuple, err := New(Options{KeyMode: dedupe.KeyTuple}, export.NewFileSink(t.TempDir()), nil).Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 2, tuple.Dedupe.RecordsOut)
}

func TestRunDelimiterAndBOM(t *testing.T) {
	input := writeInput(t, "\ufeffSEQUENCE_ID;STREET;CITY;ZIP;COUNTRY;GROUP\n001;1 Elm, Rear;A;0;US;G1\n")
	outDir := t.TempDir()

	_, err := New(Options{Delimiter: ';'}, export.NewFileSink(outDir), nil).Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "1 Elm, Rear", readOutput(t, outDir, "G1_US")["001"]["STREET"])
}

func TestRunLogs(t *testing.T) {
	input := writeInput(t, "SEQUENCE_ID,STREET,CITY,ZIP,COUNTRY,GROUP\n001,1 Elm,A,0,US,G1\n002,1 Elm,A,0,US,G1\n")
	core, logs := observer.New(zapcore.InfoLevel)

	_, err := New(Options{}, export.NewFileSink(t.TempDir()), zap.New(core)).Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("Merging records").Len())
	assert.Equal(t, 1, logs.FilterMessage("Writing all records").Len())
	assert.Equal(t, 1, logs.FilterMessage("Writing group records").Len())
}
