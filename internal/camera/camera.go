// Package camera drives acquisition of a video stream from an abstract
// capability-negotiating source, with constraint fallback and bounded
// recovery from transient device contention.
package camera

import (
	"context"
	"image"
)

// Facing is the preferred camera direction.
type Facing string

const (
	FacingFront Facing = "user"
	FacingBack  Facing = "environment"
)

// Opposite flips the facing preference.
func (f Facing) Opposite() Facing {
	if f == FacingBack {
		return FacingFront
	}
	return FacingBack
}

// Constraints describe a requested stream. A plain boolean request
// (Video true, everything else zero) asks for any camera at all.
type Constraints struct {
	Video  bool
	Facing Facing
	Width  int
	Height int
}

// Frame is one sampled video frame. Width and Height are zero until the
// stream is delivering; consumers must skip zero-dimension frames.
type Frame struct {
	Width  int
	Height int
	Image  image.Image
}

// Stream is a live video stream. Stop releases the underlying device and
// must always be called; an unreleased stream blocks other consumers.
type Stream interface {
	Frame() Frame
	Stop()
}

// Device describes an attachable camera.
type Device struct {
	ID     string
	Label  string
	Facing Facing
}

// VideoSource is the platform camera binding.
type VideoSource interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
	ListDevices(ctx context.Context) ([]Device, error)
}
