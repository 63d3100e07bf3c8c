package camera

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"qrattend/internal/metrics"
)

// State of the acquisition machine.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateStreaming
	StateError
	StateRecovering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	case StateRecovering:
		return "recovering"
	default:
		return "unknown"
	}
}

var (
	// ErrClosed is returned once the machine is torn down.
	ErrClosed = errors.New("camera machine closed")
	// ErrRetriesExhausted marks the terminal error state; only a fresh
	// machine (reopening the scanner) recovers from it.
	ErrRetriesExhausted = errors.New("camera retries exhausted")
)

const busyRetryDelay = 500 * time.Millisecond

// Config tunes a Machine.
type Config struct {
	// Mobile selects the lower-resolution base constraints used for
	// compatibility on phone-class devices.
	Mobile     bool
	Facing     Facing
	MaxRetries int
	Logger     *zap.Logger
	// Sleep is swapped in tests; nil means time.Sleep.
	Sleep func(time.Duration)
}

// Machine negotiates camera acquisition over a VideoSource. It holds at
// most one live stream; every path that acquires a new stream stops the
// previous one first.
type Machine struct {
	src    VideoSource
	mobile bool
	max    int
	sleep  func(time.Duration)
	logger *zap.Logger

	mu      sync.Mutex
	state   State
	stream  Stream
	facing  Facing
	retries int
	closed  bool
	gen     int
	lastErr *AcquireError
}

// NewMachine builds an idle machine preferring the rear camera.
func NewMachine(src VideoSource, cfg Config) *Machine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Facing == "" {
		cfg.Facing = FacingBack
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Machine{
		src:    src,
		mobile: cfg.Mobile,
		max:    cfg.MaxRetries,
		sleep:  cfg.Sleep,
		logger: cfg.Logger,
		state:  StateIdle,
		facing: cfg.Facing,
	}
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Facing returns the current facing preference.
func (m *Machine) Facing() Facing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facing
}

// LastError returns the classified failure that put the machine in the
// error state, or nil.
func (m *Machine) LastError() *AcquireError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Frame samples the live stream, zero-dimension when not streaming.
func (m *Machine) Frame() Frame {
	m.mu.Lock()
	s := m.stream
	m.mu.Unlock()
	if s == nil {
		return Frame{}
	}
	return s.Frame()
}

// Start moves Idle -> Acquiring and runs the tiered acquisition strategy.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state == StateStreaming {
		m.mu.Unlock()
		return nil
	}
	m.state = StateAcquiring
	m.gen++
	gen, facing := m.gen, m.facing
	m.mu.Unlock()

	stream, aerr := m.acquire(ctx, facing)
	return m.settle(gen, stream, aerr)
}

// SwitchCamera stops the current stream's tracks, flips the facing
// preference, and re-enters acquisition.
func (m *Machine) SwitchCamera(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.stream != nil {
		m.stream.Stop()
		m.stream = nil
	}
	m.facing = m.facing.Opposite()
	m.state = StateAcquiring
	m.gen++
	gen, facing := m.gen, m.facing
	m.mu.Unlock()

	stream, aerr := m.acquire(ctx, facing)
	return m.settle(gen, stream, aerr)
}

// Retry is the manual recovery path out of the error state. It is bounded:
// once MaxRetries consecutive retries have failed the machine is terminal
// and no further source calls are made.
func (m *Machine) Retry(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state == StateStreaming {
		m.mu.Unlock()
		return nil
	}
	if m.retries >= m.max {
		m.state = StateError
		m.mu.Unlock()
		return ErrRetriesExhausted
	}
	m.retries++
	m.state = StateRecovering
	m.gen++
	gen, facing := m.gen, m.facing
	m.mu.Unlock()

	stream, aerr := m.acquire(ctx, facing)
	return m.settle(gen, stream, aerr)
}

// Terminal reports whether the retry budget is spent.
func (m *Machine) Terminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateError && m.retries >= m.max
}

// Close tears the machine down, synchronously stopping any live stream.
// An acquisition still in flight is detected when it settles and its
// stream is stopped rather than installed; nothing leaks.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.gen++
	if m.stream != nil {
		m.stream.Stop()
		m.stream = nil
	}
	m.state = StateIdle
}

// settle installs the result of an acquisition attempt, unless the machine
// was closed or superseded while the attempt was in flight.
func (m *Machine) settle(gen int, stream Stream, aerr *AcquireError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.gen {
		if stream != nil {
			stream.Stop()
		}
		return ErrClosed
	}
	if aerr != nil {
		m.state = StateError
		m.lastErr = aerr
		metrics.CameraErrors.WithLabelValues(string(aerr.Class)).Inc()
		m.logger.Warn("camera acquisition failed",
			zap.String("class", string(aerr.Class)),
			zap.Error(aerr.Err))
		return aerr
	}
	m.stream = stream
	m.state = StateStreaming
	m.lastErr = nil
	m.retries = 0
	m.logger.Debug("camera streaming", zap.String("facing", string(m.facing)))
	return nil
}

// base returns the opening constraint tier for a facing mode: modest
// resolution on mobile for compatibility, higher on desktop.
func (m *Machine) base(facing Facing) Constraints {
	c := Constraints{Video: true, Facing: facing, Width: 1280, Height: 720}
	if m.mobile {
		c.Width, c.Height = 640, 480
	}
	return c
}

// acquire runs the tiered strategy for one entry into Acquiring. The
// returned error, if any, carries the classification of the original
// failure for busy chains or of the final attempt otherwise.
func (m *Machine) acquire(ctx context.Context, facing Facing) (Stream, *AcquireError) {
	base := m.base(facing)
	stream, err := m.src.Acquire(ctx, base)
	if err == nil {
		return stream, nil
	}

	switch class := Classify(err); class {
	case ClassPermissionDenied, ClassNoDevice:
		// Requires user action or has no remedy; no automatic fallback.
		return nil, &AcquireError{Class: class, Err: err}

	case ClassUnsupported:
		// One retry with the opposite facing mode before failing.
		stream, err2 := m.src.Acquire(ctx, m.base(facing.Opposite()))
		if err2 == nil {
			return stream, nil
		}
		return nil, &AcquireError{Class: Classify(err2), Err: err2}

	default: // busy
		fallbacks := []Constraints{
			{Video: true},
			m.base(facing.Opposite()),
			{Video: true, Facing: facing, Width: 320, Height: 240},
		}
		for _, c := range fallbacks {
			if s, err2 := m.src.Acquire(ctx, c); err2 == nil {
				return s, nil
			}
		}
		// Single delayed retry of the base request.
		m.sleep(busyRetryDelay)
		if s, err2 := m.src.Acquire(ctx, base); err2 == nil {
			return s, nil
		}
		return nil, &AcquireError{Class: ClassDeviceBusy, Err: err}
	}
}
