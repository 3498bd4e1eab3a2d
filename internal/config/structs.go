package config

import (
	"github.com/settingsd/settingsd/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode    bool // enable dev mode for development
	Title      string
	DB         DB
	Log        logger.Log
	Cache      Cache
	Validation Validation
	Events     Events
	Webserver  Webserver
}

// Cache holds the cache layer settings.
type Cache struct {
	Enabled    bool   // true = enable cache, false = disable cache
	Store      string // memory, mysql or postgres
	Prefix     string // prepended to every composite cache key
	DefaultTTL int    // entry lifetime in seconds
	UseTags    bool   // tag-based invalidation; without it scope flushes clear the whole store
}

// CustomRule attaches validation rules to every key matching a glob pattern.
type CustomRule struct {
	Pattern string
	Rules   []string
}

// Validation holds the key and value validation settings.
type Validation struct {
	MaxKeyLength     int    // maximum key length, 0 = default (255)
	MaxValueSize     int    // maximum canonical JSON size in bytes, 0 = default (1 MiB)
	AllowedKeyChars  string // punctuation allowed besides letters and digits, "" = default ("._-")
	ReservedPatterns []string
	SanitizeHTML     bool
	CustomRules      []CustomRule
}

// Events holds the notification dispatch flags.
type Events struct {
	Enabled  bool
	Changing bool
	Changed  bool
	Deleting bool
	Deleted  bool
}

// Webserver implement webserver settings.
type Webserver struct {
	Port           int    // listening port for the webserver
	URL            string // base url for the webserver
	ShutDownTime   int    // wait time for shutdown
	DisableRecover bool   // disable recover middleware
}
