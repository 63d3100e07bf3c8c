package scanner

import (
	"bytes"
	"errors"
	"image"
	_ "image/png"
	"testing"
	"time"

	qrcodegen "github.com/skip2/go-qrcode"

	"qrattend/internal/camera"
)

type fakeDetector struct {
	raw   string
	found bool
	err   error
	calls int
}

func (d *fakeDetector) Detect(_ camera.Frame) (string, bool, error) {
	d.calls++
	return d.raw, d.found, d.err
}

var liveFrame = camera.Frame{Width: 640, Height: 480}

func TestTickForwardsDetection(t *testing.T) {
	det := &fakeDetector{raw: "payload", found: true}
	var got []string
	loop := NewLoop(det, 2*time.Second, func(s string) { got = append(got, s) }, nil)

	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	loop.Tick(now, liveFrame)

	if len(got) != 1 || got[0] != "payload" {
		t.Fatalf("sink received %v, want [payload]", got)
	}
	if !loop.CoolingDown(now.Add(time.Second)) {
		t.Error("expected cooldown after detection")
	}
}

func TestCooldownSuppressesRetrigger(t *testing.T) {
	det := &fakeDetector{raw: "payload", found: true}
	var got []string
	loop := NewLoop(det, 2*time.Second, func(s string) { got = append(got, s) }, nil)

	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	loop.Tick(now, liveFrame)

	// The same still-visible code must not re-trigger inside the window.
	for _, dt := range []time.Duration{100 * time.Millisecond, time.Second, 2 * time.Second - time.Millisecond} {
		loop.Tick(now.Add(dt), liveFrame)
	}
	if len(got) != 1 {
		t.Fatalf("sink received %d detections inside cooldown, want 1", len(got))
	}
	if det.calls != 1 {
		t.Errorf("detector ran %d times inside cooldown, want 1", det.calls)
	}

	// Past the window the loop detects again.
	loop.Tick(now.Add(2*time.Second), liveFrame)
	if len(got) != 2 {
		t.Errorf("sink received %d detections after cooldown, want 2", len(got))
	}
}

func TestZeroDimensionFramesSkipped(t *testing.T) {
	det := &fakeDetector{raw: "payload", found: true}
	loop := NewLoop(det, time.Second, func(string) {}, nil)

	loop.Tick(time.Now(), camera.Frame{})
	loop.Tick(time.Now(), camera.Frame{Width: 640})
	loop.Tick(time.Now(), camera.Frame{Height: 480})

	if det.calls != 0 {
		t.Errorf("detector ran %d times on unready frames, want 0", det.calls)
	}
}

func TestDetectorErrorLoggedAndSurvived(t *testing.T) {
	det := &fakeDetector{err: errors.New("backend exploded")}
	var got []string
	loop := NewLoop(det, time.Second, func(s string) { got = append(got, s) }, nil)

	now := time.Now()
	loop.Tick(now, liveFrame)
	if len(got) != 0 {
		t.Error("errored tick must not forward a detection")
	}
	if loop.CoolingDown(now) {
		t.Error("errored tick must not open the cooldown window")
	}

	// Loop keeps scanning after the failure.
	det.err = nil
	det.found = true
	det.raw = "payload"
	loop.Tick(now.Add(50*time.Millisecond), liveFrame)
	if len(got) != 1 {
		t.Error("loop did not recover after detector error")
	}
}

func TestQRDetectorRoundTrip(t *testing.T) {
	const payload = `{"type":"attendance","sessionId":"sess-1","lecturerId":"lec-1","subjectCode":"CS101"}`
	pngBytes, err := qrcodegen.Encode(payload, qrcodegen.Medium, 256)
	if err != nil {
		t.Fatalf("encode QR: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("decode PNG: %v", err)
	}

	det := NewQRDetector()
	b := img.Bounds()
	raw, found, err := det.Detect(camera.Frame{Width: b.Dx(), Height: b.Dy(), Image: img})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !found {
		t.Fatal("QR code not detected in rendered image")
	}
	if raw != payload {
		t.Errorf("payload: got %q, want %q", raw, payload)
	}

	t.Run("blank frame misses quietly", func(t *testing.T) {
		blank := image.NewRGBA(image.Rect(0, 0, 64, 64))
		_, found, err := det.Detect(camera.Frame{Width: 64, Height: 64, Image: blank})
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if found {
			t.Error("blank frame reported a detection")
		}
	})
}
