package base

import (
	"fmt"
	"os"
)

// Inode is the OS-level identity of a file, stable across renames
type Inode uint64

// SourceFile is an opened file matched by the watch pattern
//
// The identity key is the inode, not the path: the same SourceFile may be observed under different paths over time
type SourceFile struct {
	Path  string
	Inode Inode
	File  *os.File // nil after Close
}

// Size returns the current size of the file through its open handle
func (sf *SourceFile) Size() (int64, error) {
	if sf.File == nil {
		return 0, fmt.Errorf("%s: already closed", sf.Path)
	}
	stat, err := sf.File.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// Close closes the handle. It may be called more than once.
func (sf *SourceFile) Close() error {
	if sf.File == nil {
		return nil
	}
	err := sf.File.Close()
	sf.File = nil
	return err
}

func (sf *SourceFile) String() string {
	return fmt.Sprintf("%s (inode %d)", sf.Path, sf.Inode)
}
