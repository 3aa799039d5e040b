package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeServer(); err != nil {
		return err
	}
	return c.normalizeStation()
}

func (c *Config) normalizeServer() error {
	var err error
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Server.AdminUser = strings.TrimSpace(c.Server.AdminUser)
	c.Server.PublicURL = strings.TrimRight(strings.TrimSpace(c.Server.PublicURL), "/")
	if c.Server.DBPath, err = expandPath(strings.TrimSpace(c.Server.DBPath)); err != nil {
		return fmt.Errorf("server.db: %w", err)
	}
	if c.Server.LogPath, err = expandPath(strings.TrimSpace(c.Server.LogPath)); err != nil {
		return fmt.Errorf("server.log: %w", err)
	}
	return nil
}

func (c *Config) normalizeStation() error {
	var err error
	c.Station.ServerURL = strings.TrimRight(strings.TrimSpace(c.Station.ServerURL), "/")
	c.Station.Token = strings.TrimSpace(c.Station.Token)
	c.Station.SessKey = strings.TrimSpace(c.Station.SessKey)
	if c.Station.CameraDir, err = expandPath(strings.TrimSpace(c.Station.CameraDir)); err != nil {
		return fmt.Errorf("station.camera_dir: %w", err)
	}
	for i, f := range c.Station.Frames {
		if c.Station.Frames[i], err = expandPath(strings.TrimSpace(f)); err != nil {
			return fmt.Errorf("station.frames: %w", err)
		}
	}
	if c.Station.TimeoutSeconds <= 0 {
		c.Station.TimeoutSeconds = defaultTimeout
	}
	return nil
}
