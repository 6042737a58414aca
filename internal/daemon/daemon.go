// Package daemon wires the event sources into the aggregator and runs
// the consuming loop.
package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dbrox/privacyd/internal/domain"
)

// Config holds daemon loop configuration.
type Config struct {
	TickInterval  time.Duration // How often to recompute and publish the snapshot
	QueueCapacity int           // Bound of the shared event channel
}

// DefaultConfig returns default daemon configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval:  2 * time.Second,
		QueueCapacity: 100,
	}
}

// Daemon owns the consuming side of the pipeline: it starts every event
// source on its own goroutine, drains their shared channel into the
// single-owner aggregator and republishes the activity snapshot on each
// tick. All mutable activity state stays inside the aggregator, touched
// only by the Run goroutine.
type Daemon struct {
	config  Config
	state   domain.ActivityState
	sources []domain.EventSource
	logger  *zap.Logger

	mu       sync.Mutex
	snapshot domain.ActivitySnapshot
	onChange func(domain.ActivitySnapshot)
}

// New creates a daemon consuming the given sources.
func New(config Config, state domain.ActivityState, logger *zap.Logger, sources ...domain.EventSource) *Daemon {
	return &Daemon{
		config:  config,
		state:   state,
		sources: sources,
		logger:  logger,
	}
}

// OnChange registers a handler invoked whenever the published snapshot
// differs from the previous one. The handler runs on the daemon
// goroutine and must not block. Register before calling Run.
func (d *Daemon) OnChange(fn func(domain.ActivitySnapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// Snapshot returns the most recently published activity snapshot. It is
// never older than one tick interval plus processing latency.
func (d *Daemon) Snapshot() domain.ActivitySnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}

// Run starts the sources and blocks on the consuming loop until ctx is
// cancelled. A source failing permanently is surfaced loudly but does
// not stop the daemon: partial visibility beats none.
func (d *Daemon) Run(ctx context.Context) error {
	events := make(chan domain.Event, d.config.QueueCapacity)

	for _, src := range d.sources {
		go func(src domain.EventSource) {
			err := src.Run(ctx, events)
			if err != nil && ctx.Err() == nil {
				d.logger.Error("event source is down, its activity will no longer be reported",
					zap.String("source", src.Name()),
					zap.Error(err))
			}
		}(src)
	}

	d.logger.Info("privacy daemon started",
		zap.Duration("tick", d.config.TickInterval),
		zap.Int("sources", len(d.sources)))

	ticker := time.NewTicker(d.config.TickInterval)
	defer ticker.Stop()

	d.publish(d.state.Recompute())

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("privacy daemon stopping")
			return ctx.Err()

		case ev := <-events:
			d.state.Apply(ev)

		case <-ticker.C:
			d.publish(d.state.Recompute())
		}
	}
}

// publish stores the snapshot and notifies the handler on transitions.
func (d *Daemon) publish(snap domain.ActivitySnapshot) {
	d.mu.Lock()
	changed := snap != d.snapshot
	d.snapshot = snap
	handler := d.onChange
	d.mu.Unlock()

	if !changed {
		return
	}

	d.logger.Info("activity changed",
		zap.Bool("microphone", snap.MicrophoneActive),
		zap.Bool("screenshare", snap.ScreenShareActive),
		zap.Bool("camera", snap.CameraActive))

	if handler != nil {
		handler(snap)
	}
}
