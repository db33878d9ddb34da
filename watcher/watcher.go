// Package watcher enumerates files matching the watch pattern and opens them for harvesting
package watcher

import (
	"errors"
	"fmt"
	"os"

	"github.com/gobwas/glob"
	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/base"
	"github.com/relex/slog-shipper/defs"
	"github.com/relex/slog-shipper/util"
	"github.com/samber/lo"
)

// FileWatcher finds source files by glob pattern and tracks every handle it opens
//
// Open failures are collected, not fatal: OpenAll returns what could be opened along with an error naming every
// path that could not.
type FileWatcher struct {
	logger   logger.Logger
	excludes []glob.Glob
	opened   []*base.SourceFile
}

// NewFileWatcher creates a FileWatcher; paths matching any of the exclude patterns are never returned
func NewFileWatcher(parentLogger logger.Logger, excludePatterns []string) (*FileWatcher, error) {
	excludes := make([]glob.Glob, 0, len(excludePatterns))
	for _, pattern := range excludePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude pattern '%s': %w", pattern, err)
		}
		excludes = append(excludes, g)
	}
	return &FileWatcher{
		logger:   parentLogger.WithField(defs.LabelComponent, "FileWatcher"),
		excludes: excludes,
		opened:   nil,
	}, nil
}

// Enumerate returns the current set of regular files matching the pattern, sorted by path
func (w *FileWatcher) Enumerate(pattern string) ([]string, error) {
	paths, err := util.ListFiles(pattern)
	if err != nil {
		return nil, base.NewFileAccessError(fmt.Errorf("list '%s': %w", pattern, err))
	}
	return lo.Filter(paths, func(path string, _ int) bool {
		for _, g := range w.excludes {
			if g.Match(path) {
				w.logger.Debugf("excluded: %s", path)
				return false
			}
		}
		return true
	}), nil
}

// OpenAll opens every path and resolves its inode
//
// Files that can't be opened or stat'ed are skipped and reported together in the returned error; the successfully
// opened files are always returned and tracked for CloseAll
func (w *FileWatcher) OpenAll(paths []string) ([]*base.SourceFile, error) {
	files := make([]*base.SourceFile, 0, len(paths))
	var errs []error
	for _, path := range paths {
		sf, err := w.open(path)
		if err != nil {
			w.logger.Warnf("failed to open '%s': %s", path, err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		w.logger.Debugf("'%s' opened", path)
		w.opened = append(w.opened, sf)
		files = append(files, sf)
	}
	if len(errs) > 0 {
		return files, base.NewFileAccessError(errors.Join(errs...))
	}
	return files, nil
}

// CloseAll releases every handle opened so far. It may be called more than once.
func (w *FileWatcher) CloseAll() {
	numClosed := 0
	for _, sf := range w.opened {
		if sf.File == nil {
			continue
		}
		if err := sf.Close(); err != nil {
			w.logger.Warnf("failed to close '%s': %s", sf.Path, err.Error())
		}
		numClosed++
	}
	w.opened = nil
	if numClosed > 0 {
		w.logger.Debugf("closed %d files", numClosed)
	}
}

func (w *FileWatcher) open(path string) (*base.SourceFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	inode, err := util.StatInode(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &base.SourceFile{
		Path:  path,
		Inode: base.Inode(inode),
		File:  file,
	}, nil
}
