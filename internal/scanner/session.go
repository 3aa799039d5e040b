package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/oprema/internal/imaging"
)

// Scan loop bounds: about one second of frames per scan.
const (
	MaxAttempts   = 30
	FrameInterval = 33 * time.Millisecond
	FrameWidth    = 1280
	FrameHeight   = 720
)

var (
	ErrAlreadyActive  = errors.New("scanner already active")
	ErrScanInProgress = errors.New("scan already in progress")
	ErrNotActive      = errors.New("scanner not active")
	ErrNoMatch        = errors.New("no barcode detected")
)

// CameraError is returned by Start when no frame source could be opened.
type CameraError struct {
	Capabilities Capabilities
}

func (e *CameraError) Error() string {
	if len(e.Capabilities.Errors) == 0 {
		return "camera unavailable"
	}
	return "camera unavailable: " + strings.Join(e.Capabilities.Errors, "; ")
}

// State of a Session.
type State int

const (
	StateIdle State = iota
	StateActive
	StateScanning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateScanning:
		return "scanning"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session moves between idle, active and scanning. Only one scan runs at a
// time; Stop from any state returns to idle and releases the stream.
type Session struct {
	capture  *Capture
	native   Detector
	fallback Detector

	maxAttempts int
	interval    time.Duration

	mu       sync.Mutex
	state    State
	mirror   bool
	attempts int
}

// NewSession returns an idle session. If native is nil every frame goes
// through the QR-only fallback detector.
func NewSession(capture *Capture, native Detector) *Session {
	return &Session{
		capture:     capture,
		native:      native,
		fallback:    NewQRDetector(),
		maxAttempts: MaxAttempts,
		interval:    FrameInterval,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the camera.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyActive
	}
	if !s.capture.Init(ctx) {
		return &CameraError{Capabilities: s.capture.Capabilities()}
	}
	s.state = StateActive
	slog.Info("scanner started", "backend", s.capture.Backend())
	return nil
}

// Stop releases the stream. It is safe to call in any state.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return nil
	}
	s.state = StateIdle
	return s.capture.Close()
}

// Scan grabs frames until one yields a barcode or MaxAttempts frames have
// been tried.
func (s *Session) Scan(ctx context.Context) (Detection, error) {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.mu.Unlock()
		return Detection{}, ErrNotActive
	case StateScanning:
		s.mu.Unlock()
		return Detection{}, ErrScanInProgress
	}
	s.state = StateScanning
	s.attempts = 0
	stream := s.capture.Stream()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.state == StateScanning {
			s.state = StateActive
		}
		s.mu.Unlock()
	}()

	detector := s.native
	if detector == nil {
		detector = s.fallback
	}

	for i := 0; i < s.maxAttempts; i++ {
		if i > 0 && s.interval > 0 {
			select {
			case <-ctx.Done():
				return Detection{}, ctx.Err()
			case <-time.After(s.interval):
			}
		}
		if err := ctx.Err(); err != nil {
			return Detection{}, err
		}

		s.mu.Lock()
		s.attempts = i + 1
		stopped := s.state == StateIdle
		s.mu.Unlock()
		if stopped {
			return Detection{}, ErrNotActive
		}

		frame, err := stream.Frame(ctx)
		if errors.Is(err, ErrNoFrame) {
			continue
		}
		if errors.Is(err, ErrStreamClosed) {
			return Detection{}, ErrNotActive
		}
		if err != nil {
			return Detection{}, fmt.Errorf("reading frame: %w", err)
		}

		found, err := DetectFrame(detector, frame)
		if err != nil {
			return Detection{}, err
		}
		if len(found) > 0 {
			slog.Info("barcode detected", "format", found[0].Format, "attempts", i+1)
			return found[0], nil
		}
	}
	return Detection{}, ErrNoMatch
}

// DetectFrame fits a frame to the capture size and runs d over it.
func DetectFrame(d Detector, frame image.Image) ([]Detection, error) {
	return d.Detect(imaging.Fit(frame, FrameWidth, FrameHeight))
}

// Attempts reports how many frames the last scan examined.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// ToggleMirror flips the preview mirror and returns the new setting. It never
// affects what the detector sees.
func (s *Session) ToggleMirror() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = !s.mirror
	return s.mirror
}

// Mirrored reports the preview mirror setting.
func (s *Session) Mirrored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirror
}

// Preview returns the current frame as the operator should see it.
func (s *Session) Preview(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil, ErrNotActive
	}
	stream := s.capture.Stream()
	mirror := s.mirror
	s.mu.Unlock()

	frame, err := stream.Frame(ctx)
	if err != nil {
		return nil, err
	}
	frame = imaging.Fit(frame, FrameWidth, FrameHeight)
	if mirror {
		frame = imaging.Mirror(frame)
	}
	return frame, nil
}
