// Package scanner acquires camera frames and decodes barcodes from them.
//
// A Capture walks a short chain of frame sources and keeps the first one that
// opens. A Session drives a bounded detection loop over that source.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"net/url"
	"strings"
)

// MaxBackends is the length of the capture fallback chain.
const MaxBackends = 4

// Constraints describe the preferred stream. Backends treat them as hints.
type Constraints struct {
	Facing string
	Width  int
	Height int
}

// DefaultConstraints prefers the rear camera at 1280x720.
func DefaultConstraints() Constraints {
	return Constraints{Facing: "environment", Width: 1280, Height: 720}
}

// Stream yields frames until closed. Implementations are safe for
// concurrent use.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Backend opens a Stream.
type Backend interface {
	Name() string
	Open(ctx context.Context, c Constraints) (Stream, error)
}

var (
	// ErrNoFrame means the stream has nothing to deliver right now.
	ErrNoFrame = errors.New("no frame available")
	// ErrStreamClosed is returned by Frame after Close.
	ErrStreamClosed = errors.New("stream closed")
)

// Environment is what the station knows about where it runs.
type Environment struct {
	ServerURL string
	Mobile    bool
}

// Capabilities summarises why capture could not start.
type Capabilities struct {
	Backends []string `json:"backends"`
	Secure   bool     `json:"secure"`
	Mobile   bool     `json:"mobile"`
	Errors   []string `json:"errors,omitempty"`
}

// Remediation returns guidance lines for the operator.
func (c Capabilities) Remediation() []string {
	var lines []string
	if len(c.Backends) == 0 {
		lines = append(lines, "No camera source is configured. Set a frame directory, frame files, or upload an image.")
	}
	if !c.Secure {
		lines = append(lines, "The server address is not secure. Use https or a localhost address so the camera can be used.")
	}
	if c.Mobile {
		lines = append(lines, "On a phone or tablet, allow camera access for this app in the system settings.")
	}
	lines = append(lines,
		"Check that the camera is connected and not in use by another application.",
		"Fix the problem above and start scanning again.",
	)
	return lines
}

// Capture owns the active stream.
type Capture struct {
	backends    []Backend
	constraints Constraints
	env         Environment

	stream  Stream
	backend string
	caps    Capabilities
}

// NewCapture returns a Capture over at most MaxBackends backends, tried in order.
func NewCapture(c Constraints, env Environment, backends ...Backend) *Capture {
	if len(backends) > MaxBackends {
		backends = backends[:MaxBackends]
	}
	return &Capture{backends: backends, constraints: c, env: env}
}

// Init opens the first backend that succeeds and reports whether a stream is
// available. It does not retry.
func (c *Capture) Init(ctx context.Context) bool {
	c.caps = Capabilities{Secure: secureContext(c.env.ServerURL), Mobile: c.env.Mobile}
	for _, b := range c.backends {
		c.caps.Backends = append(c.caps.Backends, b.Name())
		s, err := b.Open(ctx, c.constraints)
		if err != nil {
			slog.Warn("camera backend failed", "backend", b.Name(), "error", err)
			c.caps.Errors = append(c.caps.Errors, fmt.Sprintf("%s: %v", b.Name(), err))
			continue
		}
		c.stream = s
		c.backend = b.Name()
		return true
	}
	return false
}

// Stream returns the open stream, or nil.
func (c *Capture) Stream() Stream { return c.stream }

// Backend returns the name of the backend that opened.
func (c *Capture) Backend() string { return c.backend }

// Capabilities returns what the last Init found.
func (c *Capture) Capabilities() Capabilities { return c.caps }

// Close releases the stream. Calling it again is a no-op.
func (c *Capture) Close() error {
	if c.stream == nil {
		return nil
	}
	err := c.stream.Close()
	c.stream = nil
	c.backend = ""
	return err
}

// secureContext reports whether serverURL is https or a loopback address.
func secureContext(serverURL string) bool {
	if serverURL == "" {
		return true
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Scheme, "https") {
		return true
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
