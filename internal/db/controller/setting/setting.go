// Package setting implements the persistence boundary for settings rows. All
// operations are scoped by (key, owner) and every mutation runs inside a
// single transaction; the package never caches.
package setting

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/settingsd/settingsd/internal/db/models"
	"github.com/settingsd/settingsd/internal/scope"
)

const (
	scopedKeyQueryPattern = "key = ? AND owner_type = ? AND owner_id = ?"
	scopeQueryPattern     = "owner_type = ? AND owner_id = ?"
)

var (
	// ErrSettingNotFound is returned when a setting is not found.
	ErrSettingNotFound = errors.New("setting not found")
	// ErrSettingKeyEmpty is returned when attempting to persist a setting with an empty key.
	ErrSettingKeyEmpty = errors.New("setting key cannot be empty")
	// ErrInvalidScope is returned when owner type and owner id are not both set or both absent.
	ErrInvalidScope = errors.New("owner type and owner id must be both set or both absent")
	// ErrConcurrentModification is returned when a uniqueness race on
	// (key, owner) is detected; callers may retry.
	ErrConcurrentModification = errors.New("setting was modified concurrently")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Stats summarizes the stored settings.
type Stats struct {
	Total       int64            `json:"total"`
	Global      int64            `json:"global"`
	ByOwnerType map[string]int64 `json:"by_owner_type"`
}

func guard(db *gorm.DB, sc scope.Scope, key string) error {
	if db == nil {
		return ErrDBNil
	}
	if key == "" {
		return ErrSettingKeyEmpty
	}
	if !sc.Valid() {
		return ErrInvalidScope
	}

	return nil
}

// Find retrieves the setting stored under a top-level key in the given scope.
func Find(db *gorm.DB, sc scope.Scope, key string) (*models.Setting, error) {
	if err := guard(db, sc, key); err != nil {
		return nil, err
	}

	var setting models.Setting
	result := db.Where(scopedKeyQueryPattern, key, sc.OwnerType, sc.OwnerID).First(&setting)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, result.Error
	}

	return &setting, nil
}

// Exists reports whether a setting row exists under a top-level key in the
// given scope.
func Exists(db *gorm.DB, sc scope.Scope, key string) (bool, error) {
	_, err := Find(db, sc, key)
	if errors.Is(err, ErrSettingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// Upsert atomically creates or updates the setting row for (key, scope). Name
// and description are only written when non-nil, so a plain value write never
// clears metadata. The persisted row is returned.
//
// Two concurrent upserts on the same (key, scope) resolve through the unique
// index: the loser updates the winner's row. A duplicate-key error that still
// surfaces is translated to ErrConcurrentModification.
func Upsert(db *gorm.DB, sc scope.Scope, key string, value []byte, name, description *string) (*models.Setting, error) {
	if err := guard(db, sc, key); err != nil {
		return nil, err
	}

	row := models.Setting{
		Key:       key,
		Value:     value,
		OwnerType: sc.OwnerType,
		OwnerID:   sc.OwnerID,
	}

	assignments := []string{"value", "updated_at"}

	if name != nil {
		row.Name = *name
		assignments = append(assignments, "name")
	}

	if description != nil {
		row.Description = *description
		assignments = append(assignments, "description")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "key"}, {Name: "owner_type"}, {Name: "owner_id"},
			},
			DoUpdates: clause.AssignmentColumns(assignments),
		}).Create(&row)
		if result.Error != nil {
			return result.Error
		}

		// Reload so callers always see the persisted row, ID included,
		// regardless of which conflict branch the driver took.
		return tx.Where(scopedKeyQueryPattern, key, sc.OwnerType, sc.OwnerID).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConcurrentModification
		}
		return nil, err
	}

	return &row, nil
}

// Entry is one element of a bulk upsert.
type Entry struct {
	Key         string
	Value       []byte
	Name        *string
	Description *string
}

// UpsertMany persists a batch of entries in one transaction; a failure on any
// entry rolls back the entire batch.
func UpsertMany(db *gorm.DB, sc scope.Scope, entries []Entry) error {
	if db == nil {
		return ErrDBNil
	}
	if !sc.Valid() {
		return ErrInvalidScope
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			if _, err := Upsert(tx, sc, e.Key, e.Value, e.Name, e.Description); err != nil {
				return err
			}
		}

		return nil
	})
}

// Delete removes the setting row for (key, scope).
func Delete(db *gorm.DB, sc scope.Scope, key string) error {
	if err := guard(db, sc, key); err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where(scopedKeyQueryPattern, key, sc.OwnerType, sc.OwnerID).Delete(&models.Setting{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSettingNotFound
		}

		return nil
	})
}

// DeleteAllInScope removes every setting row of a scope in one statement and
// returns how many rows were removed.
func DeleteAllInScope(db *gorm.DB, sc scope.Scope) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}
	if !sc.Valid() {
		return 0, ErrInvalidScope
	}

	var deleted int64

	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where(scopeQueryPattern, sc.OwnerType, sc.OwnerID).Delete(&models.Setting{})
		if result.Error != nil {
			return result.Error
		}

		deleted = result.RowsAffected

		return nil
	})

	return deleted, err
}

// All retrieves every setting, optionally restricted to one scope, ordered by
// owner and key for stable export output.
func All(db *gorm.DB, sc *scope.Scope) ([]models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db.Order("owner_type, owner_id, key")
	if sc != nil {
		if !sc.Valid() {
			return nil, ErrInvalidScope
		}
		query = query.Where(scopeQueryPattern, sc.OwnerType, sc.OwnerID)
	}

	var settings []models.Setting
	if result := query.Find(&settings); result.Error != nil {
		return nil, result.Error
	}

	return settings, nil
}

// Search retrieves settings whose key matches a glob pattern (`*` any run,
// `?` one character), optionally restricted to one scope.
func Search(db *gorm.DB, pattern string, sc *scope.Scope) ([]models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db.Where(`key LIKE ? ESCAPE '\'`, globToLike(pattern)).Order("owner_type, owner_id, key")
	if sc != nil {
		if !sc.Valid() {
			return nil, ErrInvalidScope
		}
		query = query.Where(scopeQueryPattern, sc.OwnerType, sc.OwnerID)
	}

	var settings []models.Setting
	if result := query.Find(&settings); result.Error != nil {
		return nil, result.Error
	}

	return settings, nil
}

// GetStats summarizes row counts overall, for the global scope and per owner
// type.
func GetStats(db *gorm.DB) (*Stats, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	stats := Stats{ByOwnerType: make(map[string]int64)}

	if result := db.Model(&models.Setting{}).Count(&stats.Total); result.Error != nil {
		return nil, result.Error
	}

	if result := db.Model(&models.Setting{}).
		Where(scopeQueryPattern, "", "").
		Count(&stats.Global); result.Error != nil {
		return nil, result.Error
	}

	rows := []struct {
		OwnerType string
		N         int64
	}{}

	result := db.Model(&models.Setting{}).
		Select("owner_type, count(*) as n").
		Where("owner_type <> ''").
		Group("owner_type").
		Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	for _, r := range rows {
		stats.ByOwnerType[r.OwnerType] = r.N
	}

	return &stats, nil
}

// globToLike translates the glob pattern language into a SQL LIKE pattern,
// escaping LIKE metacharacters in the literal parts.
func globToLike(pattern string) string {
	var like strings.Builder

	for _, r := range pattern {
		switch r {
		case '*':
			like.WriteByte('%')
		case '?':
			like.WriteByte('_')
		case '%', '_', '\\':
			like.WriteByte('\\')
			like.WriteRune(r)
		default:
			like.WriteRune(r)
		}
	}

	return like.String()
}
