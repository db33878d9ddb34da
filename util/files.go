package util

import (
	"os"
	"path/filepath"

	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"
)

// ListFiles lists non-dir files matching the given path pattern, sorted by path
//
// Unlike filepath.Glob, matched directories are skipped rather than expanded
func ListFiles(filePattern string) ([]string, error) {
	inputList, gerr := filepath.Glob(filePattern)
	if gerr != nil {
		return nil, gerr
	}
	pathList := make([]string, 0, len(inputList))
	for _, input := range inputList {
		stat, serr := os.Stat(input)
		if serr != nil {
			if os.IsNotExist(serr) {
				continue // removed between glob and stat
			}
			return nil, serr
		}
		if stat.IsDir() {
			continue
		}
		pathList = append(pathList, input)
	}
	slices.Sort(pathList)
	return pathList, nil
}

// StatInode returns the inode number of an opened file
func StatInode(file *os.File) (uint64, error) {
	var stat unix.Stat_t
	if err := unix.Fstat(int(file.Fd()), &stat); err != nil {
		return 0, err
	}
	return uint64(stat.Ino), nil
}
