package import_pkg

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/xerrors"

	"github.com/ehdc-splitter/internal/logger"
	"github.com/ehdc-splitter/internal/record"
)

// ErrFileRead is matched by every failure to open or parse an input file
var ErrFileRead = xerrors.New("cannot read input file")

// Row is one input line keyed by header column
type Row map[string]string

// CSVReader reads delimited files with a header row into rows and records
type CSVReader struct {
	Delimiter rune
	Required  []string
	log       *zap.Logger
}

// NewCSVReader creates a reader for comma separated files requiring a
// SEQUENCE_ID column
func NewCSVReader(log *zap.Logger) *CSVReader {
	return &CSVReader{
		Delimiter: ',',
		Required:  []string{record.SequenceIDField},
		log:       logger.OrNop(log),
	}
}

// ReadRows parses r. A leading UTF-8 byte-order mark is dropped so the
// first header column keeps its plain name.
func (cr *CSVReader) ReadRows(ctx context.Context, r io.Reader) ([]Row, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.Comma = cr.Delimiter
	// short rows are kept; their missing trailing columns are absent from the Row
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, xerrors.Errorf("empty input, no header row: %w", ErrFileRead)
	}
	if err != nil {
		return nil, xerrors.Errorf("failed to read header: %v: %w", err, ErrFileRead)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if err := cr.checkRequired(header); err != nil {
		return nil, err
	}
	cr.log.Debug("CSV columns", zap.Strings("columns", header))

	var rows []Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, xerrors.Errorf("failed to read CSV record %d: %v: %w", len(rows)+1, err, ErrFileRead)
		}

		if len(values) > len(header) {
			return nil, xerrors.Errorf("CSV record %d has %d fields, header has %d: %w",
				len(rows)+1, len(values), len(header), ErrFileRead)
		}
		row := make(Row, len(values))
		for i, v := range values {
			row[header[i]] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (cr *CSVReader) checkRequired(header []string) error {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	for _, col := range cr.Required {
		if !present[col] {
			return xerrors.Errorf("missing required column %s: %w", col, ErrFileRead)
		}
	}
	return nil
}

// ReadFile opens path and parses it with ReadRows
func (cr *CSVReader) ReadFile(ctx context.Context, path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open file %s: %v: %w", path, err, ErrFileRead)
	}
	defer file.Close()

	return cr.ReadRows(ctx, file)
}

// BuildBatch turns rows into records keyed by their SEQUENCE_ID value
func BuildBatch(rows []Row) (*record.Batch, error) {
	batch := record.NewBatch()
	for i, row := range rows {
		r, err := record.New(row[record.SequenceIDField], row)
		if err != nil {
			return nil, xerrors.Errorf("row %d: %w", i+1, err)
		}
		if err := batch.Add(r); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// LoadBatch reads path and builds its batch
func (cr *CSVReader) LoadBatch(ctx context.Context, path string) (*record.Batch, error) {
	rows, err := cr.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	cr.log.Info("Read input rows", zap.String("path", path), zap.Int("rows", len(rows)))

	return BuildBatch(rows)
}
