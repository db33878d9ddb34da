package base

import (
	"fmt"
	"time"
)

// ProgressRecord is the persisted read progress of one inode under one path
//
// At most one non-expired record exists per inode. A record is never deleted: when its inode shows up under
// another path the record is marked expired and a new one takes over.
type ProgressRecord struct {
	Inode          Inode
	LastReadOffset int64     // offset right after the last complete line handed to the delivery queue
	LastActiveAt   time.Time // when the file was last visited by the harvester
	LastPath       string
	Expired        bool
}

// NewProgressRecord creates a fresh record starting at the given offset
func NewProgressRecord(inode Inode, path string, offset int64) ProgressRecord {
	return ProgressRecord{
		Inode:          inode,
		LastReadOffset: offset,
		LastActiveAt:   time.Time{},
		LastPath:       path,
		Expired:        false,
	}
}

func (rec ProgressRecord) String() string {
	return fmt.Sprintf("inode=%d offset=%d path=%s active=%s expired=%t",
		rec.Inode, rec.LastReadOffset, rec.LastPath, rec.LastActiveAt.Format(time.RFC3339), rec.Expired)
}
