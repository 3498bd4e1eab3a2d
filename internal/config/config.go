// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/BurntSushi/toml"
)

// Defaults applied by validate.
const (
	DefaultPort         = 8080
	DefaultShutDownTime = 5
	DefaultCacheTTL     = 3600
	DefaultCacheStore   = "memory"
	DefaultGormEngine   = "sqlite"
	DefaultDBName       = "settingsd"
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	if _, err = toml.DecodeFile(path+"main.toml", &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv("SETTINGSD_CONFIG_JSON")

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	return c, validate(&c)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate fills defaults and rejects settings the daemon can not start
// with. Key and value size limits stay zero here; the validators apply their
// own defaults.
func validate(c *Config) error {
	if c.Webserver.Port == 0 {
		c.Webserver.Port = DefaultPort
	}

	if c.Webserver.Port < 1 || c.Webserver.Port > 65535 {
		return errors.Wrapf(ErrWebServerPortInvalid, "got %d", c.Webserver.Port)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = DefaultShutDownTime
	}

	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = DefaultCacheTTL
	}

	if c.Cache.Store == "" {
		c.Cache.Store = DefaultCacheStore
	}

	switch c.Cache.Store {
	case "memory", "mysql", "postgres":
	default:
		return errors.Wrapf(ErrUnknownCacheStore, "got %q", c.Cache.Store)
	}

	if c.DB.GormEngine == "" {
		c.DB.GormEngine = DefaultGormEngine
	}

	switch c.DB.GormEngine {
	case "mysql", "postgres", "sqlite":
	default:
		return errors.Wrapf(ErrUnknownGormEngine, "got %q", c.DB.GormEngine)
	}

	if c.DB.Name == "" {
		c.DB.Name = DefaultDBName
	}

	return nil
}
