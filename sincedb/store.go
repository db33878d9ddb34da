package sincedb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/base"
	"github.com/relex/slog-shipper/defs"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const lockFileSuffix = ".lock"

// Store is the persistent offset store ("sincedb") backed by SQLite
//
// Store is not safe for concurrent use; the harvester loop is its only caller
type Store struct {
	logger    logger.Logger
	path      string
	db        *sql.DB
	lock      *flock.Flock
	tx        *sql.Tx // pending writes, nil if nothing to commit
	retention time.Duration
	now       func() time.Time
}

// Open opens or creates the sincedb at the given path and takes an exclusive lock on it
//
// retention is how long an inactive record stays visible to LoadActive
func Open(parentLogger logger.Logger, path string, retention time.Duration) (*Store, error) {
	slogger := parentLogger.WithFields(logger.Fields{
		defs.LabelComponent: "SinceDB",
		defs.LabelPath:      path,
	})

	lock := flock.New(path + lockFileSuffix)
	locked, lerr := lock.TryLock()
	if lerr != nil {
		return nil, base.NewStoreError(fmt.Errorf("acquire lock: %w", lerr))
	}
	if !locked {
		return nil, base.NewStoreError(fmt.Errorf("sincedb %s is locked by another instance", path))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, base.NewStoreError(fmt.Errorf("open sqlite db: %w", err))
	}
	db.SetMaxOpenConns(1) // one writer; keeps the pending transaction and reads on the same connection

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", defs.SinceDBBusyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, base.NewStoreError(fmt.Errorf("apply pragma %q: %w", pragma, execErr))
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, base.NewStoreError(fmt.Errorf("create schema: %w", err))
	}

	slogger.Info("sincedb opened")
	return &Store{
		logger:    slogger,
		path:      path,
		db:        db,
		lock:      lock,
		tx:        nil,
		retention: retention,
		now:       time.Now,
	}, nil
}

// LoadActive returns non-expired records active within the retention window, keyed by inode
//
// Pending writes are visible to the result
func (s *Store) LoadActive(ctx context.Context) (map[base.Inode]base.ProgressRecord, error) {
	if s.db == nil {
		return nil, base.NewStoreError(errors.New("sincedb is closed"))
	}
	since := s.now().Add(-s.retention)
	rows, err := s.queryer().QueryContext(ctx,
		`SELECT inode, last_read_offset, last_active_timestamp, last_path
		   FROM pybeats_sincedb
		  WHERE last_active_timestamp > ? AND expired = 0`,
		since.UnixMilli(),
	)
	if err != nil {
		return nil, base.NewStoreError(fmt.Errorf("query active records: %w", err))
	}
	defer rows.Close()

	s.logger.Debugf("inode | last_read_offset | last_active_timestamp | last_path")
	records := make(map[base.Inode]base.ProgressRecord)
	for rows.Next() {
		var inode int64
		var activeMillis int64
		rec := base.ProgressRecord{}
		if err := rows.Scan(&inode, &rec.LastReadOffset, &activeMillis, &rec.LastPath); err != nil {
			return nil, base.NewStoreError(fmt.Errorf("scan record: %w", err))
		}
		rec.Inode = base.Inode(inode)
		rec.LastActiveAt = time.UnixMilli(activeMillis)
		s.logger.Debugf("%d | %d | %s | %s", rec.Inode, rec.LastReadOffset, rec.LastActiveAt.Format(time.RFC3339), rec.LastPath)
		records[rec.Inode] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, base.NewStoreError(fmt.Errorf("iterate records: %w", err))
	}
	return records, nil
}

// Insert creates a new active record for the inode
//
// Any other active row of the same inode, e.g. one that dropped out of the retention window, is expired first
func (s *Store) Insert(ctx context.Context, inode base.Inode, record base.ProgressRecord) error {
	tx, err := s.pendingTx(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE pybeats_sincedb SET expired = 1 WHERE inode = ? AND expired = 0`,
		int64(inode),
	)
	if err != nil {
		return base.NewStoreError(fmt.Errorf("expire previous records of inode %d: %w", inode, err))
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Infof("expired %d stale record(s) of inode %d", n, inode)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pybeats_sincedb (inode, last_read_offset, last_active_timestamp, last_path, expired)
		 VALUES (?, ?, ?, ?, 0)`,
		int64(inode), record.LastReadOffset, timestampOf(record), record.LastPath,
	); err != nil {
		return base.NewStoreError(fmt.Errorf("insert record of inode %d: %w", inode, err))
	}
	return nil
}

// Update sets offset and timestamp of the active row matched by (inode, record.LastPath)
func (s *Store) Update(ctx context.Context, inode base.Inode, record base.ProgressRecord) error {
	tx, err := s.pendingTx(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE pybeats_sincedb SET last_read_offset = ?, last_active_timestamp = ?
		  WHERE inode = ? AND last_path = ? AND expired = 0`,
		record.LastReadOffset, timestampOf(record), int64(inode), record.LastPath,
	)
	if err != nil {
		return base.NewStoreError(fmt.Errorf("update record of inode %d: %w", inode, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return base.NewStoreError(fmt.Errorf("update record of inode %d: no active row for path %s", inode, record.LastPath))
	}
	return nil
}

// MarkExpired freezes the (inode, path) row; an expired row is never mutated again
func (s *Store) MarkExpired(ctx context.Context, inode base.Inode, path string) error {
	tx, err := s.pendingTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE pybeats_sincedb SET expired = 1 WHERE inode = ? AND last_path = ? AND expired = 0`,
		int64(inode), path,
	); err != nil {
		return base.NewStoreError(fmt.Errorf("expire record of inode %d: %w", inode, err))
	}
	return nil
}

// Commit durably flushes pending writes. It does nothing if there is none.
func (s *Store) Commit() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return base.NewStoreError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Close rolls back uncommitted writes, closes the database and releases the lock. It may be called more than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	var errs []error
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("rollback: %w", err))
		}
		s.tx = nil
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close db: %w", err))
	}
	s.db = nil
	if err := s.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release lock: %w", err))
	}
	s.logger.Info("sincedb closed")
	if len(errs) > 0 {
		return base.NewStoreError(errors.Join(errs...))
	}
	return nil
}

func (s *Store) pendingTx(ctx context.Context) (*sql.Tx, error) {
	if s.db == nil {
		return nil, base.NewStoreError(errors.New("sincedb is closed"))
	}
	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, base.NewStoreError(fmt.Errorf("begin: %w", err))
		}
		s.tx = tx
	}
	return s.tx, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) queryer() queryer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func timestampOf(record base.ProgressRecord) int64 {
	if record.LastActiveAt.IsZero() {
		return 0
	}
	return record.LastActiveAt.UnixMilli()
}
