package engine

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/settingsd/settingsd/internal/db/models"
)

// emptyObject is the base document when a nested write targets a setting
// whose current value is absent or not a mapping.
var emptyObject = []byte(`{}`)

// SplitKey splits a dot-notated key into the top-level key addressing a
// setting row and the nested path addressing a field inside its value. A key
// without a dot has no nested path.
func SplitKey(key string) (mainKey, nestedPath string) {
	if i := strings.IndexByte(key, '.'); i >= 0 {
		return key[:i], key[i+1:]
	}

	return key, ""
}

// extract resolves a nested path inside a raw JSON value. An empty path
// yields the whole decoded value. The second return reports whether the path
// exists.
func extract(raw []byte, nestedPath string) (any, bool) {
	if nestedPath == "" {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, false
		}

		return value, true
	}

	result := gjson.GetBytes(raw, nestedPath)
	if !result.Exists() {
		return nil, false
	}

	return result.Value(), true
}

// mergeValue computes the full value to persist. Without a nested path the
// encoded new value replaces the row's value wholesale. With one, the new
// value is deep-set inside the existing document, preserving sibling fields;
// an absent or non-mapping existing value is treated as an empty mapping.
func mergeValue(existing *models.Setting, nestedPath string, rawValue []byte) ([]byte, error) {
	if nestedPath == "" {
		return rawValue, nil
	}

	base := emptyObject
	if existing != nil && gjson.ParseBytes(existing.Value).IsObject() {
		base = existing.Value
	}

	return sjson.SetRawBytes(base, nestedPath, rawValue)
}

// deleteNested removes a nested path from a raw JSON value, leaving siblings
// untouched.
func deleteNested(raw []byte, nestedPath string) ([]byte, error) {
	return sjson.DeleteBytes(raw, nestedPath)
}
