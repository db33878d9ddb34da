// Package sincedb persists per-inode read progress of watched files in SQLite.
//
// Rows are never deleted. When an inode is seen under a new path, its row for the old path is frozen as expired
// and a new row is inserted; at most one non-expired row exists per inode, which is enforced both by Insert and
// by a partial unique index.
//
// Writes are buffered in a transaction until Commit, so that a crash between reading a file and committing its
// progress can only cause re-delivery, never skipping.
package sincedb
