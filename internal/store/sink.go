// Package store persists output batches to a SQL database, one row per
// record, so runs can be queried without parsing the JSON files.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/ehdc-splitter/internal/db"
	"github.com/ehdc-splitter/internal/export"
	"github.com/ehdc-splitter/internal/logger"
	"github.com/ehdc-splitter/internal/record"
)

// DefaultTable holds the records of every written batch
const DefaultTable = "splitter_record"

// SQLSink writes batches into a table keyed by batch name and sequence id
type SQLSink struct {
	db      *sql.DB
	driver  string
	table   string
	log     *zap.Logger
	created bool
}

// NewSQLSink returns a sink over an open connection
func NewSQLSink(conn *db.Connection, log *zap.Logger) *SQLSink {
	return &SQLSink{db: conn.DB, driver: conn.Driver, table: DefaultTable, log: logger.OrNop(log)}
}

// placeholder returns the n-th (1-based) bind parameter of the dialect
func (s *SQLSink) placeholder(n int) string {
	if s.driver == db.DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// EnsureSchema creates the record table if absent
func (s *SQLSink) EnsureSchema(ctx context.Context) error {
	if s.created {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			batch_name  TEXT NOT NULL,
			sequence_id TEXT NOT NULL,
			document    TEXT NOT NULL,
			PRIMARY KEY (batch_name, sequence_id)
		)
	`)
	if err != nil {
		return xerrors.Errorf("failed to create %s: %w", s.table, err)
	}
	s.created = true
	return nil
}

// WriteBatch replaces the stored rows of name with the records of b in a
// single transaction
func (s *SQLSink) WriteBatch(ctx context.Context, name string, b *record.Batch) error {
	if err := s.writeBatch(ctx, name, b); err != nil {
		return &export.Error{Name: name, Err: err}
	}
	s.log.Debug("Stored batch", zap.String("batch", name), zap.Int("records", b.Len()), zap.String("table", s.table))
	return nil
}

func (s *SQLSink) writeBatch(ctx context.Context, name string, b *record.Batch) (err error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		"DELETE FROM "+s.table+" WHERE batch_name = "+s.placeholder(1), name); err != nil {
		return xerrors.Errorf("failed to clear batch %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (batch_name, sequence_id, document) VALUES (%s, %s, %s)",
		s.table, s.placeholder(1), s.placeholder(2), s.placeholder(3)))
	if err != nil {
		return xerrors.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range b.Records() {
		doc, err := export.MarshalRecord(r)
		if err != nil {
			return err
		}
		if _, err = stmt.ExecContext(ctx, name, r.SequenceID, string(doc)); err != nil {
			return xerrors.Errorf("failed to insert record %s: %w", r.SequenceID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return xerrors.Errorf("failed to commit batch %s: %w", name, err)
	}
	return nil
}

// Names returns the names of every stored batch in ascending order
func (s *SQLSink) Names(ctx context.Context) ([]string, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT batch_name FROM "+s.table+" ORDER BY batch_name")
	if err != nil {
		return nil, xerrors.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Load returns the stored documents of one batch keyed by sequence id
func (s *SQLSink) Load(ctx context.Context, name string) (map[string]string, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT sequence_id, document FROM "+s.table+" WHERE batch_name = "+s.placeholder(1), name)
	if err != nil {
		return nil, xerrors.Errorf("failed to load batch %s: %w", name, err)
	}
	defer rows.Close()

	docs := make(map[string]string)
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		docs[id] = doc
	}
	return docs, rows.Err()
}
