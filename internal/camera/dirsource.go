package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const lockName = ".lock"

// DirectorySource implements VideoSource over a directory an external
// frame grabber writes still images into. It exists for headless kiosks:
// each Frame call samples the newest image in the directory. A lock file
// enforces single-consumer access the way a real device does.
type DirectorySource struct {
	dir string
}

// NewDirectorySource creates a source over dir.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{dir: dir}
}

// Acquire validates the directory and takes the consumer lock. Errors wrap
// the camera sentinels so the machine classifies them normally.
func (s *DirectorySource) Acquire(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(s.dir)
	switch {
	case os.IsNotExist(err):
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, s.dir)
	case os.IsPermission(err):
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, s.dir)
	case err != nil:
		return nil, err
	case !info.IsDir():
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNoDevice, s.dir)
	}

	lock := filepath.Join(s.dir, lockName)
	f, err := os.OpenFile(lock, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s held", ErrDeviceBusy, lock)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, lock)
		}
		return nil, err
	}
	_ = f.Close()

	return &dirStream{dir: s.dir, lock: lock}, nil
}

// ListDevices reports the directory as a single rear-facing device when
// it exists.
func (s *DirectorySource) ListDevices(_ context.Context) ([]Device, error) {
	info, err := os.Stat(s.dir)
	if err != nil || !info.IsDir() {
		return nil, nil
	}
	return []Device{{ID: s.dir, Label: "frame directory", Facing: FacingBack}}, nil
}

type dirStream struct {
	dir  string
	lock string
	once sync.Once
}

// Frame decodes the newest image in the directory, zero-dimension when the
// grabber has not delivered one yet or the file is unreadable.
func (s *dirStream) Frame() Frame {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Frame{}
	}

	type candidate struct {
		path string
		mod  int64
	}
	var frames []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".png", ".jpg", ".jpeg":
		default:
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		frames = append(frames, candidate{
			path: filepath.Join(s.dir, e.Name()),
			mod:  info.ModTime().UnixNano(),
		})
	}
	if len(frames) == 0 {
		return Frame{}
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].mod > frames[j].mod })

	f, err := os.Open(frames[0].path)
	if err != nil {
		return Frame{}
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return Frame{}
	}
	b := img.Bounds()
	return Frame{Width: b.Dx(), Height: b.Dy(), Image: img}
}

// Stop releases the consumer lock. Safe to call more than once.
func (s *dirStream) Stop() {
	s.once.Do(func() {
		_ = os.Remove(s.lock)
	})
}
