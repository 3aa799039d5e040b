package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/erazemk/oprema/internal/events"
)

const watchHandshakeTimeout = 10 * time.Second

// Watch streams inventory events to fn until ctx ends or the server closes
// the connection. A nil error means ctx was cancelled.
func (c *Client) Watch(ctx context.Context, fn func(events.Event)) error {
	u, err := url.Parse(c.cfg.BaseURL + "/api/events")
	if err != nil {
		return fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"token": {c.cfg.Token}}.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: watchHandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return &ActionError{Code: CodeNetworkError, Message: err.Error(), Status: status}
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading event: %w", err)
		}
		fn(ev)
	}
}
