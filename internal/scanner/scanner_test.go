package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	goqr "github.com/skip2/go-qrcode"
)

const testUUID = "3f2b8c1e-4d5a-4b6c-8d7e-9f0a1b2c3d4e"

func qrImage(t *testing.T, text string) image.Image {
	t.Helper()
	q, err := goqr.New(text, goqr.Medium)
	if err != nil {
		t.Fatalf("encoding QR: %v", err)
	}
	return q.Image(400)
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding PNG: %v", err)
	}
	return buf.Bytes()
}

func blank() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

type failingBackend struct{ name string }

func (b failingBackend) Name() string { return b.name }
func (b failingBackend) Open(ctx context.Context, c Constraints) (Stream, error) {
	return nil, errors.New("permission denied")
}

type imageBackend struct{ img image.Image }

func (b imageBackend) Name() string { return "image" }
func (b imageBackend) Open(ctx context.Context, c Constraints) (Stream, error) {
	return &cycleStream{frames: []image.Image{b.img}}, nil
}

// blockingStream holds every Frame call until release is closed.
type blockingStream struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStream) Frame(ctx context.Context) (image.Image, error) {
	s.once.Do(func() { close(s.entered) })
	select {
	case <-s.release:
		return blank(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
func (s *blockingStream) Close() error { return nil }

type blockingBackend struct{ s *blockingStream }

func (b blockingBackend) Name() string { return "blocking" }
func (b blockingBackend) Open(ctx context.Context, c Constraints) (Stream, error) {
	return b.s, nil
}

// recordingDetector remembers the frames it was given and never matches.
type recordingDetector struct {
	mu     sync.Mutex
	frames []image.Image
}

func (d *recordingDetector) Detect(img image.Image) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, img)
	return nil, nil
}

func newTestSession(t *testing.T, native Detector, backends ...Backend) *Session {
	t.Helper()
	s := NewSession(NewCapture(DefaultConstraints(), Environment{}, backends...), native)
	s.interval = 0
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestCaptureFallbackChain(t *testing.T) {
	c := NewCapture(DefaultConstraints(), Environment{},
		failingBackend{"a"}, failingBackend{"b"}, imageBackend{blank()})
	if !c.Init(context.Background()) {
		t.Fatal("expected third backend to open")
	}
	if c.Backend() != "image" {
		t.Errorf("expected image backend, got %q", c.Backend())
	}
	if got := len(c.Capabilities().Errors); got != 2 {
		t.Errorf("expected 2 recorded failures, got %d", got)
	}
}

func TestCaptureChainIsBounded(t *testing.T) {
	c := NewCapture(DefaultConstraints(), Environment{},
		failingBackend{"a"}, failingBackend{"b"}, failingBackend{"c"}, failingBackend{"d"}, imageBackend{blank()})
	if c.Init(context.Background()) {
		t.Fatal("expected the fifth backend to be ignored")
	}
	if got := len(c.Capabilities().Backends); got != MaxBackends {
		t.Errorf("expected %d backends tried, got %d", MaxBackends, got)
	}
}

func TestSecureContext(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://lend.example.org", true},
		{"http://localhost:8080", true},
		{"http://127.0.0.1:8080", true},
		{"http://[::1]:8080", true},
		{"http://lend.example.org", false},
		{"http://192.168.1.20:8080", false},
		{"", true},
	}
	for _, tt := range tests {
		if got := secureContext(tt.url); got != tt.want {
			t.Errorf("secureContext(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestStartFailureCarriesRemediation(t *testing.T) {
	s := NewSession(NewCapture(DefaultConstraints(),
		Environment{ServerURL: "http://lend.example.org", Mobile: true},
		failingBackend{"a"}), nil)

	err := s.Start(context.Background())
	var camErr *CameraError
	if !errors.As(err, &camErr) {
		t.Fatalf("expected *CameraError, got %v", err)
	}
	caps := camErr.Capabilities
	if caps.Secure || !caps.Mobile {
		t.Errorf("unexpected capabilities %+v", caps)
	}
	if len(caps.Remediation()) < 4 {
		t.Errorf("expected insecure and mobile guidance, got %v", caps.Remediation())
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle after failed start, got %s", s.State())
	}
}

func TestDoubleStart(t *testing.T) {
	s := newTestSession(t, nil, imageBackend{blank()})
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestScanRequiresStart(t *testing.T) {
	s := newTestSession(t, nil, imageBackend{blank()})
	if _, err := s.Scan(context.Background()); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive, got %v", err)
	}
}

func TestScanBoundedAttempts(t *testing.T) {
	det := &recordingDetector{}
	s := newTestSession(t, det, imageBackend{blank()})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := s.Scan(ctx)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
	if s.Attempts() != MaxAttempts {
		t.Errorf("expected %d attempts, got %d", MaxAttempts, s.Attempts())
	}
	if len(det.frames) != MaxAttempts {
		t.Errorf("expected %d frames examined, got %d", MaxAttempts, len(det.frames))
	}
	if s.State() != StateActive {
		t.Errorf("expected active after exhausted scan, got %s", s.State())
	}
}

func TestConcurrentScanRejected(t *testing.T) {
	stream := &blockingStream{entered: make(chan struct{}), release: make(chan struct{})}
	s := newTestSession(t, &recordingDetector{}, blockingBackend{stream})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Scan(ctx)
		done <- err
	}()
	<-stream.entered

	if _, err := s.Scan(ctx); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("expected ErrScanInProgress, got %v", err)
	}
	close(stream.release)

	select {
	case err := <-done:
		if !errors.Is(err, ErrNoMatch) {
			t.Errorf("expected first scan to end with ErrNoMatch, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first scan did not finish")
	}
}

func TestScanCancelled(t *testing.T) {
	stream := &blockingStream{entered: make(chan struct{}), release: make(chan struct{})}
	s := newTestSession(t, nil, blockingBackend{stream})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Scan(ctx)
		done <- err
	}()
	<-stream.entered
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if s.State() != StateActive {
		t.Errorf("expected active after cancelled scan, got %s", s.State())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := newTestSession(t, nil, imageBackend{blank()})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Stop(); err != nil {
			t.Fatalf("Stop #%d: %v", i+1, err)
		}
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle, got %s", s.State())
	}
	if err := s.Start(context.Background()); err != nil {
		t.Errorf("restart after stop: %v", err)
	}
}

func TestMirrorDoesNotAffectDetection(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})

	det := &recordingDetector{}
	s := newTestSession(t, det, imageBackend{img})
	s.maxAttempts = 1
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if !s.ToggleMirror() {
		t.Fatal("expected mirror on after toggle")
	}
	if _, err := s.Scan(ctx); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
	if r, _, _, _ := det.frames[0].At(0, 0).RGBA(); r != 0xffff {
		t.Error("detector saw a mirrored frame")
	}

	preview, err := s.Preview(ctx)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if r, _, _, _ := preview.At(7, 0).RGBA(); r != 0xffff {
		t.Error("expected preview to be mirrored")
	}
}

func TestQRRoundTrip(t *testing.T) {
	img := qrImage(t, testUUID)

	for name, det := range map[string]Detector{"native": NewNativeDetector(), "qr": NewQRDetector()} {
		t.Run(name, func(t *testing.T) {
			found, err := det.Detect(img)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if len(found) == 0 || found[0].Text != testUUID {
				t.Fatalf("expected %s, got %+v", testUUID, found)
			}
		})
	}
}

func TestLinearBarcodeDetection(t *testing.T) {
	ean, err := oned.NewEAN13Writer().Encode("4006381333931", gozxing.BarcodeFormat_EAN_13, 400, 120, nil)
	if err != nil {
		t.Fatalf("encoding EAN-13: %v", err)
	}

	found, err := NewNativeDetector().Detect(ean)
	if err != nil {
		t.Fatalf("native Detect: %v", err)
	}
	if len(found) == 0 || found[0].Text != "4006381333931" {
		t.Errorf("expected native detector to read EAN-13, got %+v", found)
	}

	found, err = NewQRDetector().Detect(ean)
	if err != nil {
		t.Fatalf("QR Detect: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected QR detector to find nothing, got %+v", found)
	}
}

func TestDetectConcurrent(t *testing.T) {
	ean, err := oned.NewEAN13Writer().Encode("4006381333931", gozxing.BarcodeFormat_EAN_13, 400, 120, nil)
	if err != nil {
		t.Fatalf("encoding EAN-13: %v", err)
	}
	qr := qrImage(t, testUUID)
	d := NewNativeDetector()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, want := image.Image(ean), "4006381333931"
			if i%2 == 1 {
				img, want = qr, testUUID
			}
			found, err := d.Detect(img)
			if err != nil {
				errs <- err
				return
			}
			if len(found) == 0 || found[0].Text != want {
				errs <- fmt.Errorf("goroutine %d: expected %s, got %+v", i, want, found)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSessionScansWithFallback(t *testing.T) {
	s := newTestSession(t, nil, ReaderBackend{R: bytes.NewReader(pngBytes(t, qrImage(t, testUUID)))})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got.Text != testUUID || got.Format != "QR_CODE" {
		t.Errorf("unexpected detection %+v", got)
	}
	if s.Attempts() != 1 {
		t.Errorf("expected a match on the first frame, got %d attempts", s.Attempts())
	}
}

func TestDirBackend(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	stream, err := DirBackend{Dir: dir}.Open(ctx, DefaultConstraints())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Close()

	if _, err := stream.Frame(ctx); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame for empty dir, got %v", err)
	}

	for _, name := range []string{"a.png", "b.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), pngBytes(t, blank()), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	for i := 0; i < 3; i++ {
		if _, err := stream.Frame(ctx); err != nil {
			t.Fatalf("Frame #%d: %v", i+1, err)
		}
	}
	if s := stream.(*dirStream); s.last != "a.png" {
		t.Errorf("expected wrap around to a.png, got %q", s.last)
	}

	if _, err := (DirBackend{Dir: filepath.Join(dir, "missing")}).Open(ctx, DefaultConstraints()); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestDirBackendSkipsPartialFrame(t *testing.T) {
	dir := t.TempDir()
	good := pngBytes(t, qrImage(t, testUUID))
	if err := os.WriteFile(filepath.Join(dir, "a_partial.png"), good[:len(good)/3], 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b_good.png"), good, 0o644); err != nil {
		t.Fatal(err)
	}

	s := newTestSession(t, NewNativeDetector(), DirBackend{Dir: dir})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got.Text != testUUID {
		t.Errorf("expected %s, got %+v", testUUID, got)
	}
	if s.Attempts() != 2 {
		t.Errorf("expected the partial frame to cost one attempt, got %d", s.Attempts())
	}
}

func TestFilesBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	if err := os.WriteFile(path, pngBytes(t, blank()), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := (FilesBackend{}).Open(context.Background(), DefaultConstraints()); err == nil {
		t.Error("expected error with no files")
	}
	stream, err := FilesBackend{Paths: []string{path}}.Open(context.Background(), DefaultConstraints())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	stream.Close()
	if _, err := stream.Frame(context.Background()); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed, got %v", err)
	}
}
