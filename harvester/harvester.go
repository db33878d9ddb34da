// Package harvester drives the poll loop: reconcile files against the sincedb, read new lines and ship them
package harvester

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/base"
	"github.com/relex/slog-shipper/base/bconfig"
	"github.com/relex/slog-shipper/defs"
	"github.com/relex/slog-shipper/queue"
	"github.com/relex/slog-shipper/transport"
	"github.com/relex/slog-shipper/util"
)

// OffsetStore persists read progress per inode, e.g. sincedb.Store
type OffsetStore interface {
	LoadActive(ctx context.Context) (map[base.Inode]base.ProgressRecord, error)
	Insert(ctx context.Context, inode base.Inode, record base.ProgressRecord) error
	Update(ctx context.Context, inode base.Inode, record base.ProgressRecord) error
	MarkExpired(ctx context.Context, inode base.Inode, path string) error
	Commit() error
	Close() error
}

// FileWatcher finds and opens source files, e.g. watcher.FileWatcher
type FileWatcher interface {
	Enumerate(pattern string) ([]string, error)
	OpenAll(paths []string) ([]*base.SourceFile, error)
	CloseAll()
}

// LineSender delivers batches to the collector, e.g. transport.Transport
type LineSender interface {
	Send(batch base.LogBatch) error
	Close()
	State() transport.State
}

// Dependencies are the collaborators owned by one Harvester
//
// The Harvester closes all of them in Shutdown
type Dependencies struct {
	Store     OffsetStore
	Watcher   FileWatcher
	Queue     *queue.DeliveryQueue
	Transport LineSender
}

// Params are the harvesting settings taken from AgentConfig
type Params struct {
	Pattern          string
	BatchSize        int
	PollInterval     time.Duration
	ReadBufferSize   int
	RotationPolicy   bconfig.RotationPolicy
	TruncationPolicy bconfig.TruncationPolicy
}

// ParamsFromConfig extracts Params from a verified config
func ParamsFromConfig(config bconfig.AgentConfig) Params {
	return Params{
		Pattern:          config.Path,
		BatchSize:        config.BatchSize,
		PollInterval:     config.PollInterval(),
		ReadBufferSize:   int(config.ReadBufferSize.Bytes()),
		RotationPolicy:   config.RotationPolicy,
		TruncationPolicy: config.TruncationPolicy,
	}
}

// Harvester runs the single-threaded poll loop over all matched files
//
// Each cycle is one synchronous pass: load progress snapshot, open matched files, read each from its recorded
// offset, hand full batches to the transport and commit the new offset per file.
type Harvester struct {
	logger   logger.Logger
	params   Params
	deps     Dependencies
	metrics  harvesterMetrics
	now      func() time.Time
	teardown func() bool
}

// NewHarvester creates a Harvester owning the given dependencies
func NewHarvester(parentLogger logger.Logger, params Params, deps Dependencies, metricFactory *base.MetricFactory) *Harvester {
	if params.ReadBufferSize <= 0 {
		params.ReadBufferSize = defs.HarvesterReadBufferSize
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 1
	}
	h := &Harvester{
		logger:  parentLogger.WithField(defs.LabelComponent, "Harvester"),
		params:  params,
		deps:    deps,
		metrics: newHarvesterMetrics(metricFactory),
		now:     time.Now,
	}
	h.teardown = util.NewRunOnce(h.flushAndClose)
	return h
}

// Run runs harvest cycles until stopRequest is signaled or the transport fails for good
//
// The stop request interrupts the sleep between cycles; a cycle in progress runs to completion.
// Only an error matching base.ErrTransport is returned. Shutdown is not called here.
func (h *Harvester) Run(stopRequest channels.Awaitable) error {
	h.logger.Infof("start watching %s every %s", h.params.Pattern, h.params.PollInterval)
	ctx := context.Background()
	for !stopRequest.Peek() {
		if err := h.RunCycle(ctx); err != nil {
			if errors.Is(err, base.ErrTransport) {
				h.logger.Errorf("stopped by transport failure: %s", err.Error())
				return err
			}
			h.metrics.cycleErrorsTotal.Inc()
			h.logger.Errorf("cycle ended with errors, will retry in next cycle: %s", err.Error())
		}
		if stopRequest.Wait(h.params.PollInterval) {
			break
		}
	}
	h.logger.Info("stop requested")
	return nil
}

// RunCycle performs one pass over all files matched by the watch pattern
//
// Store and file errors of individual files don't stop the pass; they are joined into the returned error.
// A transport error aborts the pass immediately.
func (h *Harvester) RunCycle(ctx context.Context) error {
	h.metrics.cyclesTotal.Inc()

	snapshot, err := h.deps.Store.LoadActive(ctx)
	if err != nil {
		return err
	}
	paths, err := h.deps.Watcher.Enumerate(h.params.Pattern)
	if err != nil {
		h.metrics.fileErrorsTotal.Inc()
		return err
	}
	files, openErr := h.deps.Watcher.OpenAll(paths)
	defer h.deps.Watcher.CloseAll()

	var errs []error
	if openErr != nil {
		h.logger.Warnf("some files cannot be opened: %s", openErr.Error())
		h.metrics.fileErrorsTotal.Inc()
		errs = append(errs, openErr)
	}
	h.metrics.watchedFiles.Set(float64(len(files)))

	harvestedPaths := make(map[base.Inode]string, len(files))
	for _, file := range files {
		if firstPath, seen := harvestedPaths[file.Inode]; seen {
			h.logger.Debugf("skip %s: inode %d already harvested as %s in this cycle", file.Path, file.Inode, firstPath)
			h.metrics.skippedHardLinkTotal.Inc()
			_ = file.Close()
			continue
		}
		harvestedPaths[file.Inode] = file.Path

		if err := h.harvestFile(ctx, snapshot, file); err != nil {
			if errors.Is(err, base.ErrTransport) {
				return err
			}
			if errors.Is(err, base.ErrFileAccess) {
				h.metrics.fileErrorsTotal.Inc()
			}
			h.logger.Errorf("failed to harvest %s: %s", file, err.Error())
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes every pending line through the transport, then closes transport, store and watcher in that order
//
// Errors are logged and swallowed. Only the first call has any effect.
func (h *Harvester) Shutdown() {
	h.teardown()
}

func (h *Harvester) harvestFile(ctx context.Context, snapshot map[base.Inode]base.ProgressRecord, file *base.SourceFile) error {
	flogger := h.logger.WithFields(logger.Fields{
		defs.LabelPath:  file.Path,
		defs.LabelInode: file.Inode,
	})
	defer func() {
		if err := file.Close(); err != nil {
			flogger.Warnf("failed to close: %s", err.Error())
		}
	}()

	record, found := snapshot[file.Inode]
	switch {
	case !found:
		flogger.Info("start tracking new file")
		record = base.NewProgressRecord(file.Inode, file.Path, 0)
		record.LastActiveAt = h.now()
		if err := h.deps.Store.Insert(ctx, file.Inode, record); err != nil {
			return err
		}
	case record.LastPath != file.Path:
		var err error
		if record, err = h.rotate(ctx, flogger, record, file); err != nil {
			return err
		}
	}

	size, err := file.Size()
	if err != nil {
		return base.NewFileAccessError(fmt.Errorf("stat %s: %w", file.Path, err))
	}
	if size < record.LastReadOffset {
		h.metrics.truncationsTotal.Inc()
		if h.params.TruncationPolicy == bconfig.TruncationReset {
			flogger.Warnf("file shrunk from offset %d to %d bytes, reading from start", record.LastReadOffset, size)
			record.LastReadOffset = 0
		} else {
			flogger.Debugf("file shrunk from offset %d to %d bytes, ignored", record.LastReadOffset, size)
		}
	}

	var readErr error
	if size > record.LastReadOffset {
		var offset int64
		offset, readErr = h.readLines(flogger, file, record.LastReadOffset)
		if errors.Is(readErr, base.ErrTransport) {
			// keep the new or rotated record but not the offset of undelivered lines
			if err := h.deps.Store.Commit(); err != nil {
				flogger.Warnf("failed to commit: %s", err.Error())
			}
			return readErr
		}
		record.LastReadOffset = offset
	}

	record.LastActiveAt = h.now()
	if err := h.deps.Store.Update(ctx, file.Inode, record); err != nil {
		return err
	}
	if err := h.deps.Store.Commit(); err != nil {
		return err
	}
	return readErr
}

// rotate expires the record left under the old path and starts a new one for the current path
func (h *Harvester) rotate(ctx context.Context, flogger logger.Logger, old base.ProgressRecord, file *base.SourceFile) (base.ProgressRecord, error) {
	h.metrics.rotationsTotal.Inc()
	if err := h.deps.Store.MarkExpired(ctx, file.Inode, old.LastPath); err != nil {
		return old, err
	}
	offset := int64(0)
	if h.params.RotationPolicy == bconfig.RotationResume {
		if endsLineAt(file, old.LastReadOffset) {
			offset = old.LastReadOffset
		} else {
			// the inode was likely freed and reused by an unrelated file
			flogger.Warnf("content of %s doesn't end a line at offset %d, reading from start", file.Path, old.LastReadOffset)
		}
	}
	flogger.Infof("moved from %s, continue at offset %d", old.LastPath, offset)
	record := base.NewProgressRecord(file.Inode, file.Path, offset)
	record.LastActiveAt = h.now()
	if err := h.deps.Store.Insert(ctx, file.Inode, record); err != nil {
		return old, err
	}
	return record, nil
}

// endsLineAt checks that the file is at least offset bytes long and the byte before offset is a newline
func endsLineAt(file *base.SourceFile, offset int64) bool {
	if offset == 0 {
		return true
	}
	last := make([]byte, 1)
	if _, err := file.File.ReadAt(last, offset-1); err != nil {
		return false
	}
	return last[0] == '\n'
}

// readLines reads complete lines from offset to the end of file and returns the offset after the last one
//
// A trailing fragment without newline is left unread for the next cycle.
func (h *Harvester) readLines(flogger logger.Logger, file *base.SourceFile, offset int64) (int64, error) {
	if _, err := file.File.Seek(offset, io.SeekStart); err != nil {
		return offset, base.NewFileAccessError(fmt.Errorf("seek %s to %d: %w", file.Path, offset, err))
	}
	reader := bufio.NewReaderSize(file.File, h.params.ReadBufferSize)
	startOffset := offset
	numLines := 0
	for {
		data, err := reader.ReadBytes('\n')
		if len(data) > 0 {
			if data[len(data)-1] != '\n' {
				flogger.Debugf("incomplete line of %d bytes at offset %d, left for next cycle", len(data), offset)
			} else {
				offset += int64(len(data))
				numLines++
				h.metrics.OnLineRead(len(data))
				h.deps.Queue.Append(file.Path, base.LogLine(data))
				if batch := h.deps.Queue.DrainIfFull(file.Path, h.params.BatchSize); batch != nil {
					if serr := h.send(file.Path, batch); serr != nil {
						return offset, serr
					}
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return offset, base.NewFileAccessError(fmt.Errorf("read %s at %d: %w", file.Path, offset, err))
		}
	}
	flogger.Debugf("read %d lines, offset %d -> %d", numLines, startOffset, offset)
	return offset, nil
}

// send delivers one drained batch; unsent lines are put back to the queue for the shutdown flush
func (h *Harvester) send(key string, batch base.LogBatch) error {
	err := h.deps.Transport.Send(batch)
	if err == nil {
		return nil
	}
	var sendErr *transport.SendError
	if errors.As(err, &sendErr) {
		h.deps.Queue.Prepend(key, sendErr.Unsent)
	}
	return err
}

func (h *Harvester) flushAndClose() {
	h.safely("flush", func() {
		keys, batches := h.deps.Queue.DrainAll()
		for i, batch := range batches {
			h.logger.Infof("flushing %d pending lines of %s", len(batch), keys[i])
			if err := h.deps.Transport.Send(batch); err != nil {
				h.logger.Warnf("failed to flush %s: %s", keys[i], err.Error())
				if h.deps.Transport.State() == transport.StateFailed {
					h.logger.Warnf("collector unreachable, dropped pending lines of %d sources", len(batches)-i)
					return
				}
			}
		}
	})
	h.safely("close transport", h.deps.Transport.Close)
	h.safely("close sincedb", func() {
		if err := h.deps.Store.Close(); err != nil {
			h.logger.Warnf("error closing sincedb: %s", err.Error())
		}
	})
	h.safely("close files", h.deps.Watcher.CloseAll)
	h.logger.Info("shut down")
}

func (h *Harvester) safely(step string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorf("panic in shutdown step '%s': %v", step, r)
		}
	}()
	f()
}
