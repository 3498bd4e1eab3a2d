// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"

	"github.com/settingsd/settingsd/internal/config"
)

// Create builds the MySQL Data Source Name from the configuration.
func Create(cfg *config.Config) string {
	out := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.Name,
		cfg.DB.Extras,
	)

	return out
}

// CreatePostgres builds the PostgreSQL Data Source Name from the configuration.
func CreatePostgres(cfg *config.Config) string {
	out := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s %s",
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Name,
		cfg.DB.Extras,
	)

	return out
}
