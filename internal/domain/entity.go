// Package domain contains core entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

// ResourceKind identifies which privacy-sensitive resource a stream node uses.
type ResourceKind string

const (
	ResourceMicrophone  ResourceKind = "microphone"
	ResourceScreenShare ResourceKind = "screenshare"
	ResourceCamera      ResourceKind = "camera"
)

// EventKind identifies the type of an activity event.
type EventKind int

const (
	// EventMicrophoneAdd reports a new microphone-capture stream node.
	EventMicrophoneAdd EventKind = iota

	// EventScreenShareAdd reports a new screen-capture stream node.
	EventScreenShareAdd

	// EventNodeRemove reports that a stream node disappeared from the registry.
	EventNodeRemove

	// EventCameraOpen reports an observed open on a camera device node.
	EventCameraOpen

	// EventCameraClose reports an observed close on a camera device node.
	EventCameraClose

	// EventCameraReset reports that a camera device node vanished and its
	// reference-count history must be forgotten.
	EventCameraReset

	// EventPreviousState carries a baseline snapshot that replaces the
	// entire camera reference-count map.
	EventPreviousState
)

// String returns a human-readable event kind name for logging.
func (k EventKind) String() string {
	switch k {
	case EventMicrophoneAdd:
		return "microphone-add"
	case EventScreenShareAdd:
		return "screenshare-add"
	case EventNodeRemove:
		return "node-remove"
	case EventCameraOpen:
		return "camera-open"
	case EventCameraClose:
		return "camera-close"
	case EventCameraReset:
		return "camera-reset"
	case EventPreviousState:
		return "previous-state"
	default:
		return "unknown"
	}
}

// Event is the immutable value passed from source goroutines to the
// aggregator. Exactly one payload field is meaningful, selected by Kind:
// NodeID for registry events, DevicePath for camera open/close/reset,
// Baseline for previous-state.
type Event struct {
	Kind       EventKind
	NodeID     uint32
	DevicePath string
	Baseline   map[string]RefCount
}

// RefCount tracks observed opens of a single camera device node.
// Count moves with every open (+1) and close (-1); Floor is the running
// minimum Count has ever reached. Count-Floor is the node's contribution
// to camera activity, so a close without a matching open (an open that
// predates the watcher, or a missed event) drags both down together and
// never yields a negative contribution.
type RefCount struct {
	Count int
	Floor int
}

// Active reports whether this entry contributes to camera activity.
func (r RefCount) Active() bool {
	return r.Count-r.Floor > 0
}

// ActivitySnapshot is the derived three-boolean state handed to the
// presentation layer. It is recomputed wholesale on every aggregation
// tick and never mutated in place.
type ActivitySnapshot struct {
	MicrophoneActive  bool
	ScreenShareActive bool
	CameraActive      bool
}

// Any reports whether any sensor is in use. When all three flags are
// false the presentation layer is expected to render nothing.
func (s ActivitySnapshot) Any() bool {
	return s.MicrophoneActive || s.ScreenShareActive || s.CameraActive
}
