//go:build integration

package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/dbrox/privacyd/internal/daemon"
	"github.com/dbrox/privacyd/internal/domain"
	"github.com/dbrox/privacyd/internal/usecase"
)

// scriptedSource replays a fixed sequence, then blocks until cancelled.
type scriptedSource struct {
	events []domain.Event
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Run(ctx context.Context, events chan<- domain.Event) error {
	for _, ev := range s.events {
		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

// feedSource forwards externally pushed events, letting a spec drive the
// daemon in phases.
type feedSource struct {
	ch chan domain.Event
}

func newFeedSource() *feedSource {
	return &feedSource{ch: make(chan domain.Event)}
}

func (f *feedSource) Name() string { return "feed" }

func (f *feedSource) send(ev domain.Event) {
	f.ch <- ev
}

func (f *feedSource) Run(ctx context.Context, events chan<- domain.Event) error {
	for {
		select {
		case ev := <-f.ch:
			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var _ = Describe("Activity Pipeline", func() {
	var (
		cancel context.CancelFunc
	)

	startDaemon := func(sources ...domain.EventSource) *daemon.Daemon {
		d := daemon.New(
			daemon.Config{TickInterval: 5 * time.Millisecond, QueueCapacity: 100},
			usecase.NewActivityAggregator(zap.NewNop()),
			zap.NewNop(),
			sources...,
		)
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go func() {
			_ = d.Run(ctx)
		}()
		return d
	}

	AfterEach(func() {
		cancel()
	})

	Context("with a seeded baseline", func() {
		It("reports the camera active from pre-existing opens alone", func() {
			d := startDaemon(&scriptedSource{events: []domain.Event{
				{Kind: domain.EventPreviousState, Baseline: map[string]domain.RefCount{
					"/dev/video0": {Count: 2, Floor: 0},
				}},
			}})

			Eventually(func() bool {
				return d.Snapshot().CameraActive
			}, time.Second).Should(BeTrue())
		})

		It("turns the camera off exactly when the balance drains to zero", func() {
			feed := newFeedSource()
			d := startDaemon(feed)

			feed.send(domain.Event{Kind: domain.EventPreviousState, Baseline: map[string]domain.RefCount{
				"/dev/video0": {Count: 2, Floor: 0},
			}})
			Eventually(func() bool {
				return d.Snapshot().CameraActive
			}, time.Second).Should(BeTrue())

			// Drain both pre-existing opens plus one spurious extra close.
			feed.send(domain.Event{Kind: domain.EventCameraClose, DevicePath: "/dev/video0"})
			feed.send(domain.Event{Kind: domain.EventCameraClose, DevicePath: "/dev/video0"})
			feed.send(domain.Event{Kind: domain.EventCameraClose, DevicePath: "/dev/video0"})

			Eventually(func() bool {
				return !d.Snapshot().CameraActive
			}, time.Second).Should(BeTrue())
		})
	})

	Context("with camera and registry events interleaved", func() {
		It("tracks each sensor independently", func() {
			d := startDaemon(
				&scriptedSource{events: []domain.Event{
					{Kind: domain.EventMicrophoneAdd, NodeID: 31},
					{Kind: domain.EventScreenShareAdd, NodeID: 32},
					{Kind: domain.EventNodeRemove, NodeID: 32},
				}},
				&scriptedSource{events: []domain.Event{
					{Kind: domain.EventCameraOpen, DevicePath: "/dev/video0"},
					{Kind: domain.EventCameraOpen, DevicePath: "/dev/video1"},
					{Kind: domain.EventCameraClose, DevicePath: "/dev/video0"},
					{Kind: domain.EventCameraReset, DevicePath: "/dev/video1"},
				}},
			)

			Eventually(func() domain.ActivitySnapshot {
				return d.Snapshot()
			}, time.Second).Should(Equal(domain.ActivitySnapshot{
				MicrophoneActive:  true,
				ScreenShareActive: false,
				CameraActive:      false,
			}))
		})
	})

	Context("under a burst larger than the queue capacity", func() {
		It("loses no events", func() {
			feed := newFeedSource()
			d := daemon.New(
				daemon.Config{TickInterval: 5 * time.Millisecond, QueueCapacity: 8},
				usecase.NewActivityAggregator(zap.NewNop()),
				zap.NewNop(),
				feed,
			)
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				_ = d.Run(ctx)
			}()

			for i := 0; i < 300; i++ {
				feed.send(domain.Event{Kind: domain.EventCameraOpen, DevicePath: "/dev/video0"})
			}
			Eventually(func() bool {
				return d.Snapshot().CameraActive
			}, 2*time.Second).Should(BeTrue())

			// Every open must be matched by its close; a single dropped
			// event on either side would leave the final state wrong.
			for i := 0; i < 300; i++ {
				feed.send(domain.Event{Kind: domain.EventCameraClose, DevicePath: "/dev/video0"})
			}
			Eventually(func() bool {
				return !d.Snapshot().CameraActive
			}, 2*time.Second).Should(BeTrue())
			Consistently(func() bool {
				return d.Snapshot().CameraActive
			}, 200*time.Millisecond).Should(BeFalse())
		})
	})
})
