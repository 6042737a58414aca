package infra

// WatchTable is the bidirectional mapping between camera device paths
// and inotify watch descriptors. One direction resolves an incoming
// notification to its path, the other enumerates watched paths when the
// table is rebuilt. Owned exclusively by the watcher goroutine.
type WatchTable struct {
	pathToWd map[string]int
	wdToPath map[int]string
}

// NewWatchTable creates an empty watch table.
func NewWatchTable() *WatchTable {
	return &WatchTable{
		pathToWd: make(map[string]int),
		wdToPath: make(map[int]string),
	}
}

// Insert records a path/descriptor pair.
func (t *WatchTable) Insert(path string, wd int) {
	t.pathToWd[path] = wd
	t.wdToPath[wd] = path
}

// Path resolves a watch descriptor to its device path.
func (t *WatchTable) Path(wd int) (string, bool) {
	path, ok := t.wdToPath[wd]
	return path, ok
}

// Descriptor resolves a device path to its watch descriptor.
func (t *WatchTable) Descriptor(path string) (int, bool) {
	wd, ok := t.pathToWd[path]
	return wd, ok
}

// Paths returns all currently watched device paths.
func (t *WatchTable) Paths() []string {
	paths := make([]string, 0, len(t.pathToWd))
	for path := range t.pathToWd {
		paths = append(paths, path)
	}
	return paths
}

// Len returns the number of watched devices.
func (t *WatchTable) Len() int {
	return len(t.pathToWd)
}

// Removed returns the paths present in t but absent from newer. After a
// rebuild these are the devices that disappeared and need a reset event.
func (t *WatchTable) Removed(newer *WatchTable) []string {
	var removed []string
	for path := range t.pathToWd {
		if _, ok := newer.pathToWd[path]; !ok {
			removed = append(removed, path)
		}
	}
	return removed
}
