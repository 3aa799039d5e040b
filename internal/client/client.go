// Package client talks to the equipment API on behalf of a scanning station.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	sesskeyHeader      = "X-Sesskey"
)

// CodeNetworkError marks failures that never produced a server answer.
const CodeNetworkError = "network_error"

// ErrInFlight is returned when the same action on the same item is already
// waiting for the server.
var ErrInFlight = errors.New("request already in flight")

// Config is everything the client needs to reach the server.
type Config struct {
	BaseURL    string
	Token      string
	SessKey    string
	HTTPClient *http.Client
}

// Client issues lookup and action calls. It holds no item state; every
// successful action returns the server's view of the item.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New returns a client for cfg.
func New(cfg Config) *Client {
	c := &Client{
		cfg: Config{
			BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Token:   strings.TrimSpace(cfg.Token),
			SessKey: strings.TrimSpace(cfg.SessKey),
		},
		httpClient: cfg.HTTPClient,
		inflight:   make(map[string]struct{}),
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return c
}

// ActionError is a failed call. Code is one of the inventory error codes,
// a generic server code, or CodeNetworkError.
type ActionError struct {
	Code    string
	Message string
	Status  int
}

func (e *ActionError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the code of an *ActionError in err's chain.
func CodeOf(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// guard claims key until the returned release is called.
func (c *Client) guard(key string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return nil, ErrInFlight
	}
	c.inflight[key] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, target any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return c.send(ctx, path, "application/json", bytes.NewReader(data), target)
}

func (c *Client) postForm(ctx context.Context, path string, values url.Values, target any) error {
	values.Set("sesskey", c.cfg.SessKey)
	return c.send(ctx, path, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()), target)
}

func (c *Client) send(ctx context.Context, path, contentType string, body io.Reader, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if c.cfg.SessKey != "" {
		req.Header.Set(sesskeyHeader, c.cfg.SessKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ActionError{Code: CodeNetworkError, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &ActionError{Code: CodeNetworkError, Message: err.Error(), Status: resp.StatusCode}
	}

	if resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(raw, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(raw))
			if body.Error == "" {
				body.Error = http.StatusText(resp.StatusCode)
			}
		}
		return &ActionError{Code: body.Code, Message: body.Error, Status: resp.StatusCode}
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
