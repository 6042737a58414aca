package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"go.uber.org/zap"

	"github.com/dbrox/privacyd/internal/domain"
	"github.com/dbrox/privacyd/internal/policy"
)

// pipewireNodeType is the registry object type carrying stream nodes.
const pipewireNodeType = "PipeWire:Interface:Node"

// mediaClassProp is the node property used for classification.
const mediaClassProp = "media.class"

// registryObject is one entry of a pw-dump update batch. A null (or
// absent) Info marks the object as removed from the registry.
type registryObject struct {
	ID   uint32        `json:"id"`
	Type string        `json:"type"`
	Info *registryInfo `json:"info"`
}

type registryInfo struct {
	Props map[string]any `json:"props"`
}

// RegistryMonitor subscribes to the PipeWire shared object registry and
// emits typed add/remove events for capture stream nodes. It implements
// domain.EventSource.
//
// There is no cgo-free PipeWire binding, so the subscription runs
// through `pw-dump --monitor`: the initial dump replays all existing
// registry objects, then every change arrives as a further JSON batch
// with removed objects carrying a null info. Delivery is therefore
// at-least-once (a changed node repeats its add), which the aggregator's
// idempotent set inserts absorb.
type RegistryMonitor struct {
	command string
	rules   *policy.Registry
	logger  *zap.Logger
}

// NewRegistryMonitor creates a registry monitor running the given
// pw-dump command with the supplied classification rules.
func NewRegistryMonitor(command string, rules *policy.Registry, logger *zap.Logger) *RegistryMonitor {
	return &RegistryMonitor{
		command: command,
		rules:   rules,
		logger:  logger,
	}
}

// Name identifies the source in logs.
func (m *RegistryMonitor) Name() string {
	return "pipewire-registry"
}

// Run connects to the PipeWire daemon and consumes registry updates
// until ctx is cancelled. Failure to connect, or an unexpected end of
// the update stream, is fatal for this source and returned as an error.
func (m *RegistryMonitor) Run(ctx context.Context, events chan<- domain.Event) error {
	cmd := exec.CommandContext(ctx, m.command, "--monitor")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open registry stream: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to connect to pipewire via %s: %w", m.command, err)
	}

	m.logger.Info("subscribed to pipewire registry",
		zap.String("command", m.command))

	consumeErr := m.consume(ctx, stdout, events)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if consumeErr != nil {
		return consumeErr
	}
	// The monitor stream never ends on its own; EOF means the daemon
	// connection is gone and this source is permanently down.
	if waitErr != nil {
		return fmt.Errorf("pipewire registry stream ended: %w", waitErr)
	}
	return errors.New("pipewire registry stream ended unexpectedly")
}

// consume decodes consecutive JSON update batches from the stream and
// dispatches each object.
func (m *RegistryMonitor) consume(ctx context.Context, r io.Reader, events chan<- domain.Event) error {
	dec := json.NewDecoder(r)
	for {
		var batch []registryObject
		if err := dec.Decode(&batch); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("malformed registry update: %w", err)
		}
		for _, obj := range batch {
			if !m.dispatch(ctx, obj, events) {
				return nil
			}
		}
	}
}

// dispatch classifies one registry object and emits the matching event.
// Returns false when delivery was abandoned due to cancellation.
func (m *RegistryMonitor) dispatch(ctx context.Context, obj registryObject, events chan<- domain.Event) bool {
	ev, ok := m.classify(obj)
	if !ok {
		return true
	}

	if ev.Kind != domain.EventNodeRemove {
		m.logger.Debug("capture stream node",
			zap.Uint32("id", obj.ID),
			zap.Stringer("kind", ev.Kind))
	}

	return deliver(ctx, events, ev, m.logger)
}

// classify maps one registry object to its activity event, if any.
func (m *RegistryMonitor) classify(obj registryObject) (domain.Event, bool) {
	if obj.Info == nil {
		// Registry global-remove. The aggregator drops the id from
		// whichever set holds it; unknown ids are a no-op there.
		return domain.Event{Kind: domain.EventNodeRemove, NodeID: obj.ID}, true
	}

	if obj.Type != pipewireNodeType {
		return domain.Event{}, false
	}
	mediaClass, _ := obj.Info.Props[mediaClassProp].(string)
	kind, ok := m.rules.Classify(mediaClass)
	if !ok {
		return domain.Event{}, false
	}

	switch kind {
	case domain.ResourceMicrophone:
		return domain.Event{Kind: domain.EventMicrophoneAdd, NodeID: obj.ID}, true
	case domain.ResourceScreenShare:
		return domain.Event{Kind: domain.EventScreenShareAdd, NodeID: obj.ID}, true
	default:
		return domain.Event{}, false
	}
}

// CollectOnce performs a single non-monitoring registry dump and returns
// the add events for currently live capture nodes. Used by the one-shot
// activity probe.
func (m *RegistryMonitor) CollectOnce(ctx context.Context) ([]domain.Event, error) {
	out, err := exec.CommandContext(ctx, m.command).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to dump pipewire registry via %s: %w", m.command, err)
	}

	var batch []registryObject
	if err := json.Unmarshal(out, &batch); err != nil {
		return nil, fmt.Errorf("malformed registry dump: %w", err)
	}

	collected := make([]domain.Event, 0, len(batch))
	for _, obj := range batch {
		if obj.Info == nil {
			continue
		}
		if ev, ok := m.classify(obj); ok {
			collected = append(collected, ev)
		}
	}
	return collected, nil
}
