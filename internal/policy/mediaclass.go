// Package policy maps PipeWire media classes to privacy resource kinds.
// The classification rules decide which registry nodes count as
// microphone or screen capture; everything else is ignored.
package policy

import (
	"github.com/dbrox/privacyd/internal/domain"
)

// Recognized media-class property values on PipeWire stream nodes.
const (
	// MediaClassAudioCapture marks an application capturing audio input.
	MediaClassAudioCapture = "Stream/Input/Audio"

	// MediaClassVideoCapture marks an application capturing video input.
	// Screen captures and recordings on Wayland go through PipeWire with
	// this class.
	MediaClassVideoCapture = "Stream/Input/Video"
)

// Registry holds the media-class classification rules.
type Registry struct {
	rules map[string]domain.ResourceKind
}

// NewRegistry creates a registry with the default classification rules.
func NewRegistry() *Registry {
	r := &Registry{
		rules: make(map[string]domain.ResourceKind),
	}

	r.Register(MediaClassAudioCapture, domain.ResourceMicrophone)
	r.Register(MediaClassVideoCapture, domain.ResourceScreenShare)

	return r
}

// NewRegistryWithRules creates an empty registry for custom rules (for testing).
func NewRegistryWithRules() *Registry {
	return &Registry{
		rules: make(map[string]domain.ResourceKind),
	}
}

// Register adds a classification rule.
func (r *Registry) Register(mediaClass string, kind domain.ResourceKind) {
	r.rules[mediaClass] = kind
}

// Classify resolves a media-class value to a resource kind. The second
// return value is false for unrecognized classes, which callers ignore.
func (r *Registry) Classify(mediaClass string) (domain.ResourceKind, bool) {
	kind, ok := r.rules[mediaClass]
	return kind, ok
}

// MediaClasses returns all recognized media-class values.
func (r *Registry) MediaClasses() []string {
	classes := make([]string, 0, len(r.rules))
	for class := range r.rules {
		classes = append(classes, class)
	}
	return classes
}
