package config

import (
	"os"
	"strconv"
	"strings"
)

const (
	defaultConfigPath = "~/.config/oprema/config.toml"
	projectConfigName = "oprema.toml"

	defaultAddr      = ":8080"
	defaultDBPath    = "oprema.sqlite3"
	defaultAdminUser = "Admin"
	defaultServerURL = "http://localhost:8080"
	defaultTimeout   = 15
)

// Environment variables that override file settings.
const (
	EnvConfig    = "OPREMA_CONFIG"
	EnvAddr      = "OPREMA_ADDR"
	EnvDB        = "OPREMA_DB"
	EnvLog       = "OPREMA_LOG"
	EnvAdmin     = "OPREMA_ADMIN"
	EnvPublicURL = "OPREMA_URL"
	EnvServer    = "OPREMA_SERVER"
	EnvToken     = "OPREMA_TOKEN"
	EnvSessKey   = "OPREMA_SESSKEY"
	EnvCameraDir = "OPREMA_CAMERA_DIR"
	EnvMobile    = "OPREMA_MOBILE"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: Server{
			Addr:      defaultAddr,
			DBPath:    defaultDBPath,
			AdminUser: defaultAdminUser,
		},
		Station: Station{
			ServerURL:      defaultServerURL,
			TimeoutSeconds: defaultTimeout,
		},
	}
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, EnvAddr)
	setString(&c.Server.DBPath, EnvDB)
	setString(&c.Server.LogPath, EnvLog)
	setString(&c.Server.AdminUser, EnvAdmin)
	setString(&c.Server.PublicURL, EnvPublicURL)
	setString(&c.Station.ServerURL, EnvServer)
	setString(&c.Station.Token, EnvToken)
	setString(&c.Station.SessKey, EnvSessKey)
	setString(&c.Station.CameraDir, EnvCameraDir)
	if v, ok := os.LookupEnv(EnvMobile); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Station.Mobile = b
		}
	}
}

func setString(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*target = strings.TrimSpace(v)
	}
}
