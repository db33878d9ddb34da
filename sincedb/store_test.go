package sincedb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string) *Store {
	store, err := Open(logger.Root(), path, 24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func activeRecord(inode base.Inode, path string, offset int64) base.ProgressRecord {
	rec := base.NewProgressRecord(inode, path, offset)
	rec.LastActiveAt = time.Now()
	return rec
}

func TestStoreInsertUpdateReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sincedb")

	store := openTestStore(t, path)
	assert.NoError(t, store.Insert(ctx, 11, activeRecord(11, "/var/log/a.log", 0)))
	assert.NoError(t, store.Insert(ctx, 12, activeRecord(12, "/var/log/b.log", 0)))
	assert.NoError(t, store.Commit())

	assert.NoError(t, store.Update(ctx, 11, activeRecord(11, "/var/log/a.log", 120)))
	assert.NoError(t, store.Commit())

	records, err := store.LoadActive(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int64(120), records[11].LastReadOffset)
	assert.Equal(t, "/var/log/a.log", records[11].LastPath)
	assert.Equal(t, int64(0), records[12].LastReadOffset)
	assert.False(t, records[11].Expired)

	// survives reopen
	assert.NoError(t, store.Close())
	reopened := openTestStore(t, path)
	records, err = reopened.LoadActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(120), records[11].LastReadOffset)
}

func TestStoreUncommittedWritesAreLostOnClose(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sincedb")

	store := openTestStore(t, path)
	assert.NoError(t, store.Insert(ctx, 21, activeRecord(21, "/a", 0)))
	assert.NoError(t, store.Commit())
	assert.NoError(t, store.Update(ctx, 21, activeRecord(21, "/a", 500)))

	// pending writes are visible before commit
	records, err := store.LoadActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), records[21].LastReadOffset)

	assert.NoError(t, store.Close())
	reopened := openTestStore(t, path)
	records, err = reopened.LoadActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), records[21].LastReadOffset)
}

func TestStoreMarkExpired(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "sincedb"))

	assert.NoError(t, store.Insert(ctx, 31, activeRecord(31, "/old.log", 80)))
	assert.NoError(t, store.MarkExpired(ctx, 31, "/old.log"))
	assert.NoError(t, store.Insert(ctx, 31, activeRecord(31, "/new.log", 0)))
	assert.NoError(t, store.Commit())

	records, err := store.LoadActive(ctx)
	require.NoError(t, err)
	if assert.Contains(t, records, base.Inode(31)) {
		assert.Equal(t, "/new.log", records[31].LastPath)
		assert.Equal(t, int64(0), records[31].LastReadOffset)
	}

	// the expired row is frozen
	assert.Error(t, store.Update(ctx, 31, activeRecord(31, "/old.log", 999)))
	assert.Equal(t, 1, countRows(t, store, 31, true))
	assert.Equal(t, 1, countRows(t, store, 31, false))
}

func TestStoreSingleActiveRecordPerInode(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "sincedb"))

	// a stale record outside the retention window doesn't show in LoadActive but still counts as active
	stale := base.NewProgressRecord(41, "/stale.log", 10)
	stale.LastActiveAt = time.Now().Add(-48 * time.Hour)
	assert.NoError(t, store.Insert(ctx, 41, stale))
	assert.NoError(t, store.Commit())

	records, err := store.LoadActive(ctx)
	require.NoError(t, err)
	assert.NotContains(t, records, base.Inode(41))

	assert.NoError(t, store.Insert(ctx, 41, activeRecord(41, "/stale.log", 0)))
	assert.NoError(t, store.Commit())
	assert.Equal(t, 1, countRows(t, store, 41, false))
	assert.Equal(t, 1, countRows(t, store, 41, true))

	// the unique index rejects a second active row written behind the store's back
	_, err = store.db.ExecContext(ctx,
		`INSERT INTO pybeats_sincedb (inode, last_read_offset, last_active_timestamp, last_path, expired) VALUES (41, 0, 0, '/x', 0)`)
	assert.Error(t, err)
}

func TestStoreExclusiveLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sincedb")
	store := openTestStore(t, path)

	_, err := Open(logger.Root(), path, time.Hour)
	if assert.Error(t, err) {
		assert.ErrorIs(t, err, base.ErrStore)
	}

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "second close is a no-op")
	_, err = store.LoadActive(context.Background())
	assert.ErrorIs(t, err, base.ErrStore)

	again := openTestStore(t, path)
	assert.NotNil(t, again)
}

func countRows(t *testing.T, store *Store, inode base.Inode, expired bool) int {
	expiredFlag := 0
	if expired {
		expiredFlag = 1
	}
	query := `SELECT COUNT(1) FROM pybeats_sincedb WHERE inode = ? AND expired = ?`
	var row *sql.Row
	if store.tx != nil {
		row = store.tx.QueryRowContext(context.Background(), query, int64(inode), expiredFlag)
	} else {
		row = store.db.QueryRowContext(context.Background(), query, int64(inode), expiredFlag)
	}
	var count int
	require.NoError(t, row.Scan(&count))
	return count
}
