// Package scanner samples video frames for machine-readable codes. The
// loop is cooperative: the owner calls Tick on its frame cadence and no
// background goroutine is involved, so a cooldown flag is enough to keep
// detections from overlapping.
package scanner

import (
	"time"

	"go.uber.org/zap"

	"qrattend/internal/camera"
	"qrattend/internal/metrics"
)

// DefaultCooldown suppresses re-detection of a still-visible code.
const DefaultCooldown = 2 * time.Second

// Detector recognizes a code in one frame. found is false both when no
// code is present and when the frame is undecodable; err is reserved for
// backend failures, which the loop logs and survives.
type Detector interface {
	Detect(f camera.Frame) (raw string, found bool, err error)
}

// Loop drives a Detector over successive frames with a post-detection
// cooldown window.
type Loop struct {
	det      Detector
	sink     func(raw string)
	cooldown time.Duration
	holdOff  time.Time
	logger   *zap.Logger
}

// NewLoop builds a loop forwarding detections to sink.
func NewLoop(det Detector, cooldown time.Duration, sink func(string), logger *zap.Logger) *Loop {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{det: det, sink: sink, cooldown: cooldown, logger: logger}
}

// Tick samples one frame. Zero-dimension frames (stream not yet ready) are
// skipped; the caller simply reschedules. A positive detection opens the
// cooldown window and forwards the raw string to the sink.
func (l *Loop) Tick(now time.Time, f camera.Frame) {
	if now.Before(l.holdOff) {
		return
	}
	if f.Width == 0 || f.Height == 0 {
		return
	}

	raw, found, err := l.det.Detect(f)
	if err != nil {
		l.logger.Debug("detector backend error", zap.Error(err))
		return
	}
	if !found {
		return
	}

	l.holdOff = now.Add(l.cooldown)
	metrics.ScanDetections.Inc()
	l.sink(raw)
}

// CoolingDown reports whether the loop is inside the post-detection window.
func (l *Loop) CoolingDown(now time.Time) bool {
	return now.Before(l.holdOff)
}
