package infra

import (
	"context"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/dbrox/privacyd/internal/domain"
)

// ProcScanner finds camera devices that were already open before the
// live watch attached, by walking every process's open file descriptors.
// It implements domain.BaselineScanner using gopsutil.
type ProcScanner struct {
	devicePathPrefix string
	flatpakMarker    string
	logger           *zap.Logger
}

// NewProcScanner creates a baseline scanner counting descriptors that
// resolve to paths under devicePathPrefix (e.g. "/dev/video").
func NewProcScanner(devicePathPrefix, flatpakMarker string, logger *zap.Logger) *ProcScanner {
	return &ProcScanner{
		devicePathPrefix: devicePathPrefix,
		flatpakMarker:    flatpakMarker,
		logger:           logger,
	}
}

// Scan returns a snapshot of device path -> open descriptor count,
// seeded debt-free (Floor 0): pre-existing opens count as currently
// active state. Inside a Flatpak sandbox, or when /proc cannot be
// enumerated, it degrades to an empty snapshot instead of failing the
// watcher. Read-only, no side effects, safe to call repeatedly.
func (s *ProcScanner) Scan(ctx context.Context) (map[string]domain.RefCount, error) {
	snapshot := make(map[string]domain.RefCount)

	if s.flatpakMarker != "" {
		if _, err := os.Stat(s.flatpakMarker); err == nil {
			s.logger.Warn("sandboxed runtime detected, baseline scan skipped",
				zap.String("marker", s.flatpakMarker))
			return snapshot, nil
		}
	}

	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		s.logger.Warn("cannot enumerate processes, baseline scan degraded to empty",
			zap.Error(err))
		return snapshot, nil
	}

	for _, pid := range pids {
		proc := process.Process{Pid: pid}
		files, err := proc.OpenFilesWithContext(ctx)
		if err != nil {
			// Not our process, or it exited between enumeration and
			// inspection; partial visibility is fine.
			continue
		}
		for _, f := range files {
			if !strings.HasPrefix(f.Path, s.devicePathPrefix) {
				continue
			}
			entry := snapshot[f.Path]
			entry.Count++
			snapshot[f.Path] = entry
		}
	}

	s.logger.Debug("baseline scan complete",
		zap.Int("devices", len(snapshot)))

	return snapshot, nil
}
