package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/settingsd/settingsd/internal/glob"
)

// DefaultMaxValueSize bounds the canonical JSON encoding of a value when no
// limit is configured (1 MiB).
const DefaultMaxValueSize = 1 << 20

// PatternRule attaches a set of value rules (go-playground validator tags,
// e.g. "email", "url") to every key matching a glob pattern.
type PatternRule struct {
	Pattern string
	Rules   []string
}

// ValueValidator checks size, serializability and pattern-specific rules of
// a setting value.
type ValueValidator struct {
	maxSize  int
	patterns []PatternRule
	check    *validator.Validate
}

// NewValueValidator builds a value validator. Zero maxSize falls back to
// DefaultMaxValueSize. Pattern rules are evaluated first-match-wins against
// the full key.
func NewValueValidator(maxSize int, patterns []PatternRule) *ValueValidator {
	if maxSize <= 0 {
		maxSize = DefaultMaxValueSize
	}

	return &ValueValidator{
		maxSize:  maxSize,
		patterns: patterns,
		check:    validator.New(),
	}
}

// Encode returns the canonical JSON encoding of value, distinguishing
// circular structures from generally non-serializable ones.
func (v *ValueValidator) Encode(value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		var unsupported *json.UnsupportedValueError
		if errors.As(err, &unsupported) && strings.Contains(unsupported.Str, "cycle") {
			return nil, &ValueError{Rule: RuleValueCircular, Detail: err.Error()}
		}

		return nil, &ValueError{Rule: RuleValueNotSerializable, Detail: err.Error()}
	}

	return raw, nil
}

// Validate checks value against the size limit, serializability and the rule
// set of the first pattern matching key (if any). It returns the encoded
// canonical JSON on success so callers do not marshal twice.
func (v *ValueValidator) Validate(key string, value any) ([]byte, error) {
	raw, err := v.Encode(value)
	if err != nil {
		return nil, err
	}

	if len(raw) > v.maxSize {
		return nil, &ValueError{
			Rule:   RuleValueTooLarge,
			Detail: fmt.Sprintf("%d bytes, maximum is %d", len(raw), v.maxSize),
		}
	}

	if err := v.applyPatternRules(key, value); err != nil {
		return nil, err
	}

	return raw, nil
}

// applyPatternRules runs the rule set of the first pattern matching key.
func (v *ValueValidator) applyPatternRules(key string, value any) error {
	for _, pr := range v.patterns {
		if !glob.Match(pr.Pattern, key) {
			continue
		}

		for _, rule := range pr.Rules {
			if err := v.check.Var(value, rule); err != nil {
				return &ValueError{
					Rule:   RuleValuePattern,
					Detail: fmt.Sprintf("rule %q failed for key %q", rule, key),
				}
			}
		}

		// First matching pattern wins.
		return nil
	}

	return nil
}

// ValidateMany validates an entire batch, aggregating every key and value
// failure instead of stopping at the first. A nil return means the whole
// batch passed.
func ValidateMany(keys *KeyValidator, values *ValueValidator, batch map[string]any) error {
	agg := NewAggregate()

	for key, value := range batch {
		if err := keys.Validate(key); err != nil {
			agg.Add(key, err)
			continue
		}

		if _, err := values.Validate(key, value); err != nil {
			agg.Add(key, err)
		}
	}

	if agg.Empty() {
		return nil
	}

	return agg
}
