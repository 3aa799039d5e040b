package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Server.DBPath == "" {
		return errors.New("server.db must not be empty")
	}
	if c.Server.AdminUser == "" {
		return errors.New("server.admin_user must not be empty")
	}
	if c.Server.PublicURL != "" {
		if err := validateURL(c.Server.PublicURL); err != nil {
			return fmt.Errorf("server.public_url: %w", err)
		}
	}
	if err := validateURL(c.Station.ServerURL); err != nil {
		return fmt.Errorf("station.server_url: %w", err)
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
