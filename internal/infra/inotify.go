package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"go.uber.org/zap"

	"github.com/dbrox/privacyd/internal/domain"
)

// deviceWatchMask covers open/close activity plus removal of the node.
const deviceWatchMask = unix.IN_OPEN | unix.IN_CLOSE | unix.IN_DELETE_SELF

// dirWatchMask covers camera node lifecycle inside the device directory.
const dirWatchMask = unix.IN_CREATE | unix.IN_ATTRIB

// DeviceWatcher observes the device directory for camera node lifecycle
// and each camera node for open/close activity. It implements
// domain.EventSource and self-heals its watch set whenever the camera
// inventory changes.
type DeviceWatcher struct {
	devDir     string
	namePrefix string
	scanner    domain.BaselineScanner
	logger     *zap.Logger
}

// NewDeviceWatcher creates a watcher over devDir for entries whose name
// begins with namePrefix. The scanner seeds the ref-count state before
// the live watch and after every rebuild.
func NewDeviceWatcher(devDir, namePrefix string, scanner domain.BaselineScanner, logger *zap.Logger) *DeviceWatcher {
	return &DeviceWatcher{
		devDir:     devDir,
		namePrefix: namePrefix,
		scanner:    scanner,
		logger:     logger,
	}
}

// Name identifies the source in logs.
func (w *DeviceWatcher) Name() string {
	return "camera-devices"
}

// Run establishes the watches and blocks on the notification loop until
// ctx is cancelled. Failure to initialize inotify or to read the device
// directory is fatal: without it no camera activity would ever be
// reported, which is worse than failing loudly.
func (w *DeviceWatcher) Run(ctx context.Context, events chan<- domain.Event) error {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return fmt.Errorf("failed to initialize inotify: %w", err)
	}

	// Closing the fd is the only way to unblock the read loop; do it
	// exactly once whether we stop via cancellation or via error.
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
		}
		unix.Close(fd)
	}()

	dirWd, err := unix.InotifyAddWatch(fd, w.devDir, dirWatchMask)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.devDir, err)
	}

	table, err := w.buildTable(fd)
	if err != nil {
		return err
	}
	w.logger.Info("camera watch established",
		zap.String("dir", w.devDir),
		zap.Int("devices", table.Len()))

	// Seed the aggregator with opens that predate the watch, before any
	// live event can race it.
	if !w.reseed(ctx, events) {
		return ctx.Err()
	}

	buf := make([]byte, 64*(unix.SizeofInotifyEvent+unix.NAME_MAX+1))
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("inotify read failed: %w", err)
		}

		offset := 0
		for offset+unix.SizeofInotifyEvent <= n {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			nameLen := int(raw.Len)
			name := ""
			if nameLen > 0 {
				name = strings.TrimRight(
					string(buf[offset+unix.SizeofInotifyEvent:offset+unix.SizeofInotifyEvent+nameLen]),
					"\x00")
			}
			offset += unix.SizeofInotifyEvent + nameLen

			table, err = w.handle(ctx, fd, dirWd, table, raw.Wd, raw.Mask, name, events)
			if err != nil {
				return err
			}
		}
	}
}

// handle processes one raw notification, returning the (possibly
// rebuilt) watch table.
func (w *DeviceWatcher) handle(
	ctx context.Context,
	fd, dirWd int,
	table *WatchTable,
	wd int32, mask uint32, name string,
	events chan<- domain.Event,
) (*WatchTable, error) {
	switch {
	case int(wd) == dirWd:
		// A lifecycle event inside /dev; only camera-named entries are
		// worth the churn of a rebuild.
		if mask&dirWatchMask != 0 && strings.HasPrefix(name, w.namePrefix) {
			return w.rebuild(ctx, fd, table, events)
		}

	case mask&unix.IN_DELETE_SELF != 0:
		if _, ok := table.Path(int(wd)); ok {
			return w.rebuild(ctx, fd, table, events)
		}

	case mask&unix.IN_OPEN != 0:
		if path, ok := table.Path(int(wd)); ok {
			if !deliver(ctx, events, domain.Event{Kind: domain.EventCameraOpen, DevicePath: path}, w.logger) {
				return table, ctx.Err()
			}
		}

	case mask&unix.IN_CLOSE != 0:
		if path, ok := table.Path(int(wd)); ok {
			if !deliver(ctx, events, domain.Event{Kind: domain.EventCameraClose, DevicePath: path}, w.logger) {
				return table, ctx.Err()
			}
		}
	}

	return table, nil
}

// rebuild discards the watch table and re-scans the device directory.
// Every path watched before but not after gets a reset event - the only
// way a ref-count entry is ever removed - and the baseline re-seeds the
// map afterwards so missed events cannot linger.
func (w *DeviceWatcher) rebuild(ctx context.Context, fd int, old *WatchTable, events chan<- domain.Event) (*WatchTable, error) {
	for _, path := range old.Paths() {
		if wd, ok := old.Descriptor(path); ok {
			// Deleted nodes already dropped their watch; an error here
			// only means the kernel beat us to it.
			_, _ = unix.InotifyRmWatch(fd, uint32(wd))
		}
	}

	table, err := w.buildTable(fd)
	if err != nil {
		return nil, err
	}

	for _, path := range old.Removed(table) {
		w.logger.Info("camera device removed", zap.String("path", path))
		if !deliver(ctx, events, domain.Event{Kind: domain.EventCameraReset, DevicePath: path}, w.logger) {
			return nil, ctx.Err()
		}
	}

	if !w.reseed(ctx, events) {
		return nil, ctx.Err()
	}

	w.logger.Info("camera watch rebuilt",
		zap.Int("devices", table.Len()))

	return table, nil
}

// buildTable scans the device directory and establishes a watch per
// camera entry. A single device failing to watch (e.g. a transient
// permission race) is skipped, not fatal; the next rebuild retries it.
func (w *DeviceWatcher) buildTable(fd int) (*WatchTable, error) {
	entries, err := os.ReadDir(w.devDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", w.devDir, err)
	}

	table := NewWatchTable()
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), w.namePrefix) {
			continue
		}
		path := filepath.Join(w.devDir, entry.Name())
		wd, err := unix.InotifyAddWatch(fd, path, deviceWatchMask)
		if err != nil {
			w.logger.Warn("failed to watch device, skipping",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		table.Insert(path, wd)
	}
	return table, nil
}

// reseed runs the baseline scanner and emits its snapshot as a single
// previous-state event. Returns false when delivery was abandoned due
// to cancellation.
func (w *DeviceWatcher) reseed(ctx context.Context, events chan<- domain.Event) bool {
	snapshot, err := w.scanner.Scan(ctx)
	if err != nil {
		w.logger.Warn("baseline scan failed, seeding empty state", zap.Error(err))
		snapshot = make(map[string]domain.RefCount)
	}
	return deliver(ctx, events, domain.Event{
		Kind:     domain.EventPreviousState,
		Baseline: snapshot,
	}, w.logger)
}
