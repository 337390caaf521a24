package export

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"github.com/ehdc-splitter/internal/group"
	"github.com/ehdc-splitter/internal/record"
)

const (
	// FinalName is the output holding the whole deduplicated batch
	FinalName = "final"
	// GroupSeparator joins the key values of a group into its output name
	GroupSeparator = "_"
	// Ext is the extension of files written by FileSink
	Ext = ".json"
)

// ErrInvalidName is returned for output names that are empty or would
// escape the output directory
var ErrInvalidName = xerrors.New("invalid output name")

// Sink stores a named batch
type Sink interface {
	WriteBatch(ctx context.Context, name string, b *record.Batch) error
}

// GroupName returns the output name of the group with the given key
func GroupName(key group.Key) string {
	return key.Join(GroupSeparator)
}

// ValidateName rejects names that cannot be used as a single file name
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return xerrors.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// FileSink writes each batch to <Dir>/<name>.json
type FileSink struct {
	Dir      string
	PermFile os.FileMode
	PermDir  os.FileMode
}

// NewFileSink returns a sink writing into dir, which is created on first
// write if absent
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir, PermFile: 0o644, PermDir: 0o755}
}

// Path returns the file a batch with the given name is written to
func (s *FileSink) Path(name string) string {
	return filepath.Join(s.Dir, name+Ext)
}

// WriteBatch encodes b into a temporary file next to the target and renames
// it into place, so a failed write never leaves a truncated output behind
func (s *FileSink) WriteBatch(ctx context.Context, name string, b *record.Batch) error {
	if err := ctx.Err(); err != nil {
		return &Error{Name: name, Err: err}
	}
	if err := ValidateName(name); err != nil {
		return &Error{Name: name, Err: err}
	}
	if err := os.MkdirAll(s.Dir, s.PermDir); err != nil {
		return &Error{Name: name, Err: err}
	}
	if err := s.writeAtomic(s.Path(name), b); err != nil {
		return &Error{Name: name, Err: err}
	}
	return nil
}

func (s *FileSink) writeAtomic(dest string, b *record.Batch) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = Encode(bw, b); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(s.PermFile); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dest)
}

// MultiSink writes every batch to each of its sinks in order, stopping at
// the first failure
type MultiSink []Sink

// WriteBatch implements Sink
func (m MultiSink) WriteBatch(ctx context.Context, name string, b *record.Batch) error {
	for _, s := range m {
		if err := s.WriteBatch(ctx, name, b); err != nil {
			return err
		}
	}
	return nil
}
