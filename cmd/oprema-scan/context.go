package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/oprema/internal/client"
	"github.com/erazemk/oprema/internal/config"
)

type rootFlags struct {
	config  string
	server  string
	verbose bool
	json    bool
}

type commandContext struct {
	flags *rootFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if server := strings.TrimRight(strings.TrimSpace(c.flags.server), "/"); server != "" {
			cfg.Station.ServerURL = server
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) clientConfig() client.Config {
	cfg := c.config.Station
	return client.Config{
		BaseURL:    cfg.ServerURL,
		Token:      cfg.Token,
		SessKey:    cfg.SessKey,
		HTTPClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// client returns an API client for the logged-in session.
func (c *commandContext) client() (*client.Client, error) {
	if c.config.Station.Token == "" {
		return nil, errors.New("not logged in; run 'oprema-scan login' first")
	}
	return client.New(c.clientConfig()), nil
}

func (c *commandContext) withClient(fn func(*client.Client) error) error {
	cl, err := c.client()
	if err != nil {
		return err
	}
	return fn(cl)
}

// output prints v as JSON with --json, or calls render otherwise.
func (c *commandContext) output(cmd *cobra.Command, v any, render func() string) error {
	if c.flags.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := cmd.OutOrStdout().Write([]byte(render()))
	return err
}

func (c *commandContext) colorize(cmd *cobra.Command) bool {
	return colorEnabled(cmd.OutOrStdout())
}
