package config

import (
	"errors"
)

var (
	// ErrWebServerPortInvalid error if config webserver listening port is out of range.
	ErrWebServerPortInvalid = errors.New("toml config webserver.port must be between 1 and 65535")

	// ErrUnknownCacheStore error if config cache.store names no known substrate.
	ErrUnknownCacheStore = errors.New("toml config cache.store must be one of memory, mysql, postgres")

	// ErrUnknownGormEngine error if config db.gormengine names no known driver.
	ErrUnknownGormEngine = errors.New("toml config db.gormengine must be one of mysql, postgres, sqlite")
)
