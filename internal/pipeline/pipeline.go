// Package pipeline runs one split: read the input file, merge records with
// the same address, write the merged set, then write one output per group.
package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/ehdc-splitter/internal/dedupe"
	"github.com/ehdc-splitter/internal/export"
	"github.com/ehdc-splitter/internal/group"
	import_pkg "github.com/ehdc-splitter/internal/import"
	"github.com/ehdc-splitter/internal/logger"
	"github.com/ehdc-splitter/internal/record"
)

var (
	// ErrMissingInputPath is returned when no input file was given
	ErrMissingInputPath = xerrors.New("no input file given")
	// ErrGroupNameCollision is returned when two groups map to one output name
	ErrGroupNameCollision = xerrors.New("group output names collide")
)

// Options configure a Runner
type Options struct {
	Delimiter     rune
	AddressFields []string
	GroupFields   []string
	KeyMode       dedupe.KeyMode
	Normalizer    dedupe.Normalizer
}

// Result summarizes a finished run
type Result struct {
	Dedupe  dedupe.Stats
	Groups  int
	Outputs []string
}

// Runner executes runs against a sink
type Runner struct {
	opts Options
	sink export.Sink
	log  *zap.Logger
}

// New creates a Runner writing to sink
func New(opts Options, sink export.Sink, log *zap.Logger) *Runner {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if len(opts.AddressFields) == 0 {
		opts.AddressFields = dedupe.DefaultAddressFields
	}
	if len(opts.GroupFields) == 0 {
		opts.GroupFields = group.DefaultKeyFields
	}
	if opts.KeyMode == "" {
		opts.KeyMode = dedupe.KeyConcat
	}
	return &Runner{opts: opts, sink: sink, log: logger.OrNop(log)}
}

// Run processes the file at inputPath. Any failure aborts the run; outputs
// written before the failure are left in place.
func (r *Runner) Run(ctx context.Context, inputPath string) (Result, error) {
	var result Result
	if strings.TrimSpace(inputPath) == "" {
		return result, ErrMissingInputPath
	}
	r.log.Info("Processing file", zap.String("path", inputPath))

	batch, err := r.load(ctx, inputPath)
	if err != nil {
		return result, err
	}

	done := logger.Timing(r.log, "dedupe")
	result.Dedupe, err = dedupe.New(
		dedupe.WithAddressFields(r.opts.AddressFields...),
		dedupe.WithKeyMode(r.opts.KeyMode),
		dedupe.WithNormalizer(r.opts.Normalizer),
		dedupe.WithLogger(r.log),
	).Dedupe(batch)
	done()
	if err != nil {
		return result, err
	}
	r.log.Info("Merged duplicate addresses",
		zap.Int("records_in", result.Dedupe.RecordsIn),
		zap.Int("records_out", result.Dedupe.RecordsOut),
		zap.Int("merge_groups", result.Dedupe.MergeGroups))

	r.log.Info("Writing all records", zap.String("output", export.FinalName), zap.Int("records", batch.Len()))
	if err := r.sink.WriteBatch(ctx, export.FinalName, batch); err != nil {
		return result, err
	}
	result.Outputs = append(result.Outputs, export.FinalName)

	groups, err := group.By(batch, r.opts.GroupFields...)
	if err != nil {
		return result, err
	}
	result.Groups = groups.Len()
	names, err := outputNames(groups)
	if err != nil {
		return result, err
	}
	r.log.Debug("Groups", zap.Strings("names", names))

	for i, key := range groups.Keys() {
		sub, _ := groups.Get(key)
		r.log.Info("Writing group records",
			zap.Strings("group", key),
			zap.String("output", names[i]),
			zap.Int("records", sub.Len()))
		if err := r.sink.WriteBatch(ctx, names[i], sub); err != nil {
			return result, err
		}
		result.Outputs = append(result.Outputs, names[i])
	}
	return result, nil
}

func (r *Runner) load(ctx context.Context, path string) (*record.Batch, error) {
	reader := import_pkg.NewCSVReader(r.log)
	reader.Delimiter = r.opts.Delimiter

	batch, err := reader.LoadBatch(ctx, path)
	if err != nil {
		return nil, err
	}
	r.log.Debug("Batch loaded", zap.Int("records", batch.Len()), zap.Strings("ids", batch.IDs()))
	return batch, nil
}

// outputNames returns the output name of each group in Keys order. It fails
// before anything is written if two groups would share a name or a name
// would clash with the full output.
func outputNames(groups *group.Groups) ([]string, error) {
	keys := groups.Keys()
	names := make([]string, len(keys))
	owner := map[string]group.Key{export.FinalName: nil}
	for i, key := range keys {
		name := export.GroupName(key)
		if err := export.ValidateName(name); err != nil {
			return nil, &export.Error{Name: name, Err: err}
		}
		if prev, taken := owner[name]; taken {
			return nil, xerrors.Errorf("groups %q and %q both write %s: %w", prev, key, name, ErrGroupNameCollision)
		}
		owner[name] = key
		names[i] = name
	}
	return names, nil
}
