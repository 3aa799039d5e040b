package client

import (
	"context"

	"github.com/erazemk/oprema/internal/model"
)

// Session is what a successful login hands back.
type Session struct {
	Token   string      `json:"token"`
	SessKey string      `json:"sesskey"`
	User    *model.User `json:"user"`
}

// Login exchanges credentials for a token and session key. Only BaseURL and
// HTTPClient of cfg are used.
func Login(ctx context.Context, cfg Config, username, password string) (*Session, error) {
	c := New(Config{BaseURL: cfg.BaseURL, HTTPClient: cfg.HTTPClient})
	var s Session
	body := map[string]string{"username": username, "password": password}
	if err := c.postJSON(ctx, "/api/auth/login", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Logout revokes the client's token.
func (c *Client) Logout(ctx context.Context) error {
	return c.postJSON(ctx, "/api/auth/logout", struct{}{}, nil)
}
