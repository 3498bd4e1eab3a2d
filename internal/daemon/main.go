// Package daemon wires the settings service together: database, cache
// substrate, event bus, engine and the web front-end.
package daemon

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	cachemysql "github.com/gofiber/storage/mysql/v2"
	cachepostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/settingsd/settingsd/internal/cache"
	"github.com/settingsd/settingsd/internal/config"
	"github.com/settingsd/settingsd/internal/db/dsn"
	"github.com/settingsd/settingsd/internal/db/models"
	"github.com/settingsd/settingsd/internal/engine"
	"github.com/settingsd/settingsd/internal/events"
	"github.com/settingsd/settingsd/internal/validation"
	"github.com/settingsd/settingsd/internal/web"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
	engine     *engine.Engine
}

// Start runs the Daemon's web service until a shutdown signal arrives.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// Engine returns the wired settings engine.
func (d *Daemon) Engine() *engine.Engine {
	return d.engine
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}

	eng, err := BuildEngine(cfg, db)
	if err != nil {
		return nil, err
	}

	return &Daemon{
		cfg:        cfg,
		webService: web.New(cfg, eng),
		engine:     eng,
	}, nil
}

// OpenDB opens the configured backing store with gorm and migrates the
// settings schema.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case "mysql":
		dialector = gormmysql.Open(dsn.Create(cfg))
	case "postgres":
		dialector = gormpostgres.Open(dsn.CreatePostgres(cfg))
	case "sqlite":
		dialector = sqlite.Open(cfg.DB.Name)
	default:
		return nil, errors.Wrapf(config.ErrUnknownGormEngine, "got %q", cfg.DB.GormEngine)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err = db.AutoMigrate(&models.Setting{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return db, nil
}

// BuildEngine assembles the settings engine from the configuration: cache
// substrate, event bus and validators.
func BuildEngine(cfg *config.Config, db *gorm.DB) (*engine.Engine, error) {
	store, err := buildCacheStore(cfg)
	if err != nil {
		return nil, err
	}

	cacheLayer := cache.New(cache.Config{
		Enabled:    cfg.Cache.Enabled,
		Prefix:     cfg.Cache.Prefix,
		DefaultTTL: time.Duration(cfg.Cache.DefaultTTL) * time.Second,
		UseTags:    cfg.Cache.UseTags,
	}, store)

	bus := events.NewBus(events.Config{
		Enabled:  cfg.Events.Enabled,
		Changing: cfg.Events.Changing,
		Changed:  cfg.Events.Changed,
		Deleting: cfg.Events.Deleting,
		Deleted:  cfg.Events.Deleted,
	})

	patterns := make([]validation.PatternRule, 0, len(cfg.Validation.CustomRules))
	for _, rule := range cfg.Validation.CustomRules {
		patterns = append(patterns, validation.PatternRule{Pattern: rule.Pattern, Rules: rule.Rules})
	}

	reserved := cfg.Validation.ReservedPatterns
	if reserved == nil {
		reserved = validation.DefaultReservedPatterns
	}

	return engine.New(
		db,
		cacheLayer,
		bus,
		validation.NewKeyValidator(cfg.Validation.MaxKeyLength, cfg.Validation.AllowedKeyChars, reserved),
		validation.NewValueValidator(cfg.Validation.MaxValueSize, patterns),
		engine.Config{SanitizeHTML: cfg.Validation.SanitizeHTML},
	), nil
}

// buildCacheStore selects the cache substrate. The SQL-backed stores share
// entries between processes but have no tag support, so they rely on the
// full-flush fallback.
func buildCacheStore(cfg *config.Config) (cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	ttl := time.Duration(cfg.Cache.DefaultTTL) * time.Second

	switch cfg.Cache.Store {
	case "memory":
		return cache.NewMemoryStore(ttl), nil
	case "mysql":
		return cache.NewSharedStore(cachemysql.New(cachemysql.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "settings_cache",
		})), nil
	case "postgres":
		return cache.NewSharedStore(cachepostgres.New(cachepostgres.Config{
			ConnectionURI: dsn.CreatePostgres(cfg),
			Table:         "settings_cache",
		})), nil
	default:
		return nil, errors.Wrapf(config.ErrUnknownCacheStore, "got %q", cfg.Cache.Store)
	}
}
