// Package usecase contains the activity aggregation logic.
package usecase

import (
	"go.uber.org/zap"

	"github.com/dbrox/privacyd/internal/domain"
)

// ActivityAggregator is the single-writer state machine fusing registry,
// camera and baseline events into one consistent activity state. It
// implements domain.ActivityState and must only ever be driven by one
// goroutine; cross-thread handoff happens upstream, on the event channel.
type ActivityAggregator struct {
	microphones  map[uint32]struct{}
	screenShares map[uint32]struct{}
	cameras      map[string]domain.RefCount
	logger       *zap.Logger
}

// NewActivityAggregator creates an aggregator with empty state.
func NewActivityAggregator(logger *zap.Logger) *ActivityAggregator {
	return &ActivityAggregator{
		microphones:  make(map[uint32]struct{}),
		screenShares: make(map[uint32]struct{}),
		cameras:      make(map[string]domain.RefCount),
		logger:       logger,
	}
}

// Apply folds one event into the state. Duplicate adds, removes without
// a matching add and closes without a matching open are normal
// consequences of concurrent, possibly-missed delivery; they are
// absorbed here, never treated as errors.
func (a *ActivityAggregator) Apply(ev domain.Event) {
	switch ev.Kind {
	case domain.EventMicrophoneAdd:
		a.microphones[ev.NodeID] = struct{}{}

	case domain.EventScreenShareAdd:
		a.screenShares[ev.NodeID] = struct{}{}

	case domain.EventNodeRemove:
		// The remove carries only the id; drop it from both sets,
		// whichever holds it.
		delete(a.microphones, ev.NodeID)
		delete(a.screenShares, ev.NodeID)

	case domain.EventCameraOpen:
		entry := a.cameras[ev.DevicePath]
		entry.Count++
		a.cameras[ev.DevicePath] = entry

	case domain.EventCameraClose:
		// An unseen path starts at (0,0); the floor then tracks the
		// resulting debt so it never flips activity.
		entry := a.cameras[ev.DevicePath]
		entry.Count--
		if entry.Count < entry.Floor {
			entry.Floor = entry.Count
		}
		a.cameras[ev.DevicePath] = entry

	case domain.EventCameraReset:
		delete(a.cameras, ev.DevicePath)

	case domain.EventPreviousState:
		a.cameras = make(map[string]domain.RefCount, len(ev.Baseline))
		for path, entry := range ev.Baseline {
			a.cameras[path] = entry
		}

	default:
		a.logger.Warn("unknown event kind ignored",
			zap.Int("kind", int(ev.Kind)))
	}
}

// Recompute derives the activity snapshot wholesale from the current
// sets and ref-count map.
func (a *ActivityAggregator) Recompute() domain.ActivitySnapshot {
	return domain.ActivitySnapshot{
		MicrophoneActive:  len(a.microphones) > 0,
		ScreenShareActive: len(a.screenShares) > 0,
		CameraActive:      a.cameraInUse(),
	}
}

// cameraInUse reports whether any tracked device contributes a positive
// count-minus-floor balance.
func (a *ActivityAggregator) cameraInUse() bool {
	for _, entry := range a.cameras {
		if entry.Active() {
			return true
		}
	}
	return false
}
