package camera

import "errors"

// Sentinel acquisition failures. Sources wrap one of these so the machine
// can pick a recovery path.
var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera device found")
	ErrDeviceBusy       = errors.New("camera device busy")
	ErrUnsupported      = errors.New("requested constraints unsupported")
)

// Class is the user-facing failure classification.
type Class string

const (
	ClassPermissionDenied Class = "permission_denied"
	ClassNoDevice         Class = "no_device"
	ClassDeviceBusy       Class = "device_busy"
	ClassUnsupported      Class = "unsupported"
)

// Classify maps a source error to its class. Unrecognized errors classify
// as busy, the retryable path.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return ClassPermissionDenied
	case errors.Is(err, ErrNoDevice):
		return ClassNoDevice
	case errors.Is(err, ErrUnsupported):
		return ClassUnsupported
	default:
		return ClassDeviceBusy
	}
}

// Hint returns a remediation message for the class.
func (c Class) Hint() string {
	switch c {
	case ClassPermissionDenied:
		return "Camera access was denied. Allow camera access in your settings and retry."
	case ClassNoDevice:
		return "No camera was found on this device. Scanning is unavailable."
	case ClassDeviceBusy:
		return "The camera is in use. Close other apps using the camera and retry."
	case ClassUnsupported:
		return "This camera does not support the requested mode."
	default:
		return "Camera unavailable."
	}
}

// AcquireError is a classified acquisition failure.
type AcquireError struct {
	Class Class
	Err   error
}

func (e *AcquireError) Error() string {
	return e.Class.Hint() + ": " + e.Err.Error()
}

func (e *AcquireError) Unwrap() error { return e.Err }
