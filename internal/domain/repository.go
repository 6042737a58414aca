package domain

import "context"

// EventSource is a producer of activity events. Implementations run a
// blocking loop on their own goroutine and push events into the shared
// channel until the context is cancelled.
// Implementations: PipeWire registry monitor, camera device watcher.
type EventSource interface {
	// Name identifies the source in logs.
	Name() string

	// Run blocks on the source's event loop, sending events until ctx is
	// cancelled. A non-nil error means the source is permanently down:
	// either it failed to initialize (daemon connection, inotify init) or
	// its event feed ended unexpectedly. Run never returns nil before
	// cancellation.
	Run(ctx context.Context, events chan<- Event) error
}

// BaselineScanner produces a snapshot of camera device opens that predate
// the live watch, keyed by device path and seeded debt-free (Floor 0).
type BaselineScanner interface {
	// Scan is read-only, has no side effects and is safe to call
	// repeatedly. In restricted environments (sandboxed /proc) it returns
	// an empty snapshot rather than an error.
	Scan(ctx context.Context) (map[string]RefCount, error)
}

// ActivityState is the single-owner state machine fed by all sources.
// It is not safe for concurrent use: the consuming goroutine owns it
// exclusively and serializes Apply and Recompute.
type ActivityState interface {
	// Apply folds one event into the underlying sets and ref-count map.
	// Malformed or out-of-order events are absorbed, never rejected.
	Apply(ev Event)

	// Recompute derives a fresh ActivitySnapshot from the current state.
	Recompute() ActivitySnapshot
}
