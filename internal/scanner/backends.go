package scanner

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/erazemk/oprema/internal/imaging"
)

// FilesBackend cycles through a fixed list of image files.
type FilesBackend struct {
	Paths []string
}

func (b FilesBackend) Name() string { return "files" }

func (b FilesBackend) Open(ctx context.Context, c Constraints) (Stream, error) {
	if len(b.Paths) == 0 {
		return nil, fmt.Errorf("no frame files given")
	}
	frames := make([]image.Image, 0, len(b.Paths))
	for _, p := range b.Paths {
		img, err := decodeFile(p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)
	}
	return &cycleStream{frames: frames}, nil
}

// DirBackend delivers every image in a directory, rescanning it as files
// appear. A phone syncing photos into the directory acts as the camera.
type DirBackend struct {
	Dir string
}

func (b DirBackend) Name() string { return "dir" }

func (b DirBackend) Open(ctx context.Context, c Constraints) (Stream, error) {
	info, err := os.Stat(b.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening frame directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", b.Dir)
	}
	return &dirStream{dir: b.Dir}, nil
}

// ReaderBackend delivers a single image, once decoded, on every frame.
type ReaderBackend struct {
	R io.Reader
}

func (b ReaderBackend) Name() string { return "reader" }

func (b ReaderBackend) Open(ctx context.Context, c Constraints) (Stream, error) {
	if b.R == nil {
		return nil, fmt.Errorf("no image given")
	}
	img, _, err := imaging.Decode(b.R)
	if err != nil {
		return nil, err
	}
	return &cycleStream{frames: []image.Image{img}}, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame: %w", err)
	}
	defer f.Close()
	img, _, err := imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return img, nil
}

type cycleStream struct {
	mu     sync.Mutex
	frames []image.Image
	next   int
	closed bool
}

func (s *cycleStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	img := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	return img, nil
}

func (s *cycleStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type dirStream struct {
	mu     sync.Mutex
	dir    string
	last   string
	closed bool
}

var frameExts = []string{".jpg", ".jpeg", ".png"}

// Frame returns the next image file after the last one delivered, in name
// order, wrapping around at the end. A file that does not decode yet, such as
// a photo still being synced, is passed over as ErrNoFrame.
func (s *dirStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading frame directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(frameExts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, ErrNoFrame
	}

	pick := names[0]
	for _, n := range names {
		if n > s.last {
			pick = n
			break
		}
	}
	s.last = pick
	img, err := decodeFile(filepath.Join(s.dir, pick))
	if err != nil {
		slog.Warn("skipping unreadable frame", "file", pick, "error", err)
		return nil, ErrNoFrame
	}
	return img, nil
}

func (s *dirStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
