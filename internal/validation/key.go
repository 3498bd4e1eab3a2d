// Package validation implements the key and value validation pipeline run
// before any settings mutation: keys are checked fast-fail rule by rule,
// values are checked for serializability and size, and batches aggregate
// every failure instead of stopping at the first.
package validation

import (
	"fmt"
	"strings"

	"github.com/settingsd/settingsd/internal/glob"
)

// DefaultMaxKeyLength bounds key length when no limit is configured.
const DefaultMaxKeyLength = 255

// DefaultAllowedPunctuation is the punctuation allowed in keys besides ASCII
// letters and digits.
const DefaultAllowedPunctuation = "._-"

// DefaultReservedPatterns are the key patterns rejected out of the box.
var DefaultReservedPatterns = []string{"__*", "system.*", "cache.*"}

// KeyValidator checks the syntactic validity of a setting key.
type KeyValidator struct {
	maxLength   int
	punctuation string
	reserved    []string
}

// NewKeyValidator builds a key validator. Zero maxLength and empty
// punctuation fall back to the package defaults; reserved may be nil for no
// reserved patterns.
func NewKeyValidator(maxLength int, punctuation string, reserved []string) *KeyValidator {
	if maxLength <= 0 {
		maxLength = DefaultMaxKeyLength
	}

	if punctuation == "" {
		punctuation = DefaultAllowedPunctuation
	}

	return &KeyValidator{
		maxLength:   maxLength,
		punctuation: punctuation,
		reserved:    reserved,
	}
}

// Validate checks key against every rule in order and returns the first
// violation. The reserved-pattern rule sees the full key, nested portion
// included.
func (v *KeyValidator) Validate(key string) error {
	if key == "" {
		return &KeyError{Key: key, Rule: RuleKeyEmpty}
	}

	if len(key) > v.maxLength {
		return &KeyError{
			Key:    key,
			Rule:   RuleKeyTooLong,
			Detail: fmt.Sprintf("%d characters, maximum is %d", len(key), v.maxLength),
		}
	}

	if bad := v.invalidChars(key); bad != "" {
		return &KeyError{
			Key:    key,
			Rule:   RuleKeyCharset,
			Detail: fmt.Sprintf("invalid characters %q", bad),
		}
	}

	if strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") || strings.Contains(key, "..") {
		return &KeyError{Key: key, Rule: RuleKeyDots, Detail: "malformed dot notation"}
	}

	if pattern, ok := glob.First(v.reserved, key); ok {
		return &KeyError{
			Key:    key,
			Rule:   RuleKeyReserved,
			Detail: fmt.Sprintf("matches reserved pattern %q", pattern),
		}
	}

	return nil
}

// invalidChars returns every distinct character of key outside the allowed
// set, in order of first appearance.
func (v *KeyValidator) invalidChars(key string) string {
	var bad strings.Builder

	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune(v.punctuation, r):
		case strings.ContainsRune(bad.String(), r):
		default:
			bad.WriteRune(r)
		}
	}

	return bad.String()
}
