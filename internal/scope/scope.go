// Package scope models the partition a setting belongs to: either the global
// scope or a single owning entity identified by an (owner type, owner id)
// pair. The zero value is the global scope.
package scope

import "fmt"

// Scope identifies the partition a setting belongs to. Both fields empty
// means global; otherwise both must be set.
type Scope struct {
	OwnerType string
	OwnerID   string
}

// Global returns the global scope.
func Global() Scope {
	return Scope{}
}

// Owned returns the scope of a single owning entity.
func Owned(ownerType, ownerID string) Scope {
	return Scope{OwnerType: ownerType, OwnerID: ownerID}
}

// IsGlobal reports whether s is the global scope.
func (s Scope) IsGlobal() bool {
	return s.OwnerType == "" && s.OwnerID == ""
}

// Valid reports whether owner type and owner id are either both set or both
// absent.
func (s Scope) Valid() bool {
	return (s.OwnerType == "") == (s.OwnerID == "")
}

// CacheKey builds the composite cache key for a top-level key in this scope.
func (s Scope) CacheKey(prefix, mainKey string) string {
	if s.IsGlobal() {
		return fmt.Sprintf("%sglobal:%s", prefix, mainKey)
	}

	return fmt.Sprintf("%smodel:%s:%s:%s", prefix, s.OwnerType, s.OwnerID, mainKey)
}

// Tags returns the invalidation tags every cache entry of this scope carries:
// the store-wide tag plus either the global tag or the owner-type and
// owner-instance tags.
func (s Scope) Tags(prefix string) []string {
	all := prefix + "settings"

	if s.IsGlobal() {
		return []string{all, prefix + "settings:global"}
	}

	return []string{
		all,
		prefix + "settings:owner:" + s.OwnerType,
		prefix + "settings:owner:" + s.OwnerType + ":" + s.OwnerID,
	}
}

// ScopeTag returns the most specific invalidation tag for s, used to flush
// every entry of one scope at once.
func (s Scope) ScopeTag(prefix string) string {
	tags := s.Tags(prefix)
	return tags[len(tags)-1]
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}

	return fmt.Sprintf("%s:%s", s.OwnerType, s.OwnerID)
}
